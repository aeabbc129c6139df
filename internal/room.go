package internal

import (
	"fmt"
	"slices"
)

// Methods and pure helpers for the Room document. These never touch the
// store; callers snapshot a Room, reason here, then write back.

// NextDrawer returns the player that follows current in the rotation
// snapshot, wrapping around. With an empty or unknown current (first turn,
// or a rotation rebuilt after the drawer left) it returns the head of the
// rotation.
func NextDrawer(rotation []string, current string) string {
	if len(rotation) == 0 {
		return ""
	}
	idx := slices.Index(rotation, current)
	if idx < 0 {
		return rotation[0]
	}
	return rotation[(idx+1)%len(rotation)]
}

// IsLastInRotation reports whether drawer holds the final slot of the
// rotation snapshot, i.e. whether the round completes when their turn ends.
func IsLastInRotation(rotation []string, drawer string) bool {
	if len(rotation) == 0 {
		return false
	}
	return rotation[len(rotation)-1] == drawer
}

func (r *Room) IsFull() bool {
	return r.PlayerCount >= r.MaxPlayers
}

func (r *Room) Joinable() bool {
	return r.Status == StatusWaiting && !r.IsFull()
}

// TurnLive reports whether guessing and drawing are unblocked: a turn is
// in progress and the drawer has picked a word.
func (r *Room) TurnLive() bool {
	return r.Status == StatusPlaying && r.CurrentWord != ""
}

// Validate checks the cross-field invariants of a room snapshot. Used by
// tests after every transition and by the watcher when an inconsistent
// snapshot would indicate a torn write.
func (r *Room) Validate() error {
	if r.CurrentWord != "" && r.Status != StatusPlaying {
		return fmt.Errorf("room %s: currentWord set while status=%s", r.Id, r.Status)
	}
	if r.Status == StatusPlaying && r.DrawerId == "" {
		return fmt.Errorf("room %s: playing with no drawer", r.Id)
	}
	if r.DrawerId != "" && len(r.Rotation) > 0 && !slices.Contains(r.Rotation, r.DrawerId) {
		return fmt.Errorf("room %s: drawer %s not in rotation", r.Id, r.DrawerId)
	}
	if r.Timer < 0 || r.Timer > TurnSeconds {
		return fmt.Errorf("room %s: timer %d out of range", r.Id, r.Timer)
	}
	if r.CurrentRound < 0 || r.MaxRounds < 1 {
		return fmt.Errorf("room %s: round bounds %d/%d", r.Id, r.CurrentRound, r.MaxRounds)
	}
	return nil
}
