package game

import (
	"errors"
	"fmt"
)

var (
	// ErrRoomNotFound surfaces a join-by-code miss.
	ErrRoomNotFound = errors.New("room not found")

	// ErrPreconditionFailed is the parent of every user-facing rejection:
	// the action is refused and no state is mutated.
	ErrPreconditionFailed = errors.New("precondition failed")

	ErrNotInRoom      = fmt.Errorf("%w: player has not joined this room", ErrPreconditionFailed)
	ErrNotHost        = fmt.Errorf("%w: only the host may do that", ErrPreconditionFailed)
	ErrNotDrawer      = fmt.Errorf("%w: only the current drawer may do that", ErrPreconditionFailed)
	ErrNotWaiting     = fmt.Errorf("%w: game already started or ended", ErrPreconditionFailed)
	ErrNotPlaying     = fmt.Errorf("%w: no turn in progress", ErrPreconditionFailed)
	ErrTooFewPlayers  = fmt.Errorf("%w: need at least 2 players to start", ErrPreconditionFailed)
	ErrRoomFull       = fmt.Errorf("%w: room is full", ErrPreconditionFailed)
	ErrWordAlreadySet = fmt.Errorf("%w: word already selected this turn", ErrPreconditionFailed)
	ErrWordNotSet     = fmt.Errorf("%w: drawer has not picked a word yet", ErrPreconditionFailed)
)
