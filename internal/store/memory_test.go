package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Naraveni/DraGuess/internal/store"
)

func TestMemoryGetSet(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	_, err := m.Get(ctx, "rooms/r1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, m.Set(ctx, "rooms/r1", store.Document{"status": "waiting", "timer": 0}, false))

	doc, err := m.Get(ctx, "rooms/r1")
	require.NoError(t, err)
	assert.Equal(t, "waiting", doc["status"])

	// Returned documents are copies, not aliases of stored state.
	doc["status"] = "mutated"
	doc2, err := m.Get(ctx, "rooms/r1")
	require.NoError(t, err)
	assert.Equal(t, "waiting", doc2["status"])
}

func TestMemorySetMerge(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	require.NoError(t, m.Set(ctx, "rooms/r1", store.Document{"a": "1", "b": "2"}, false))
	require.NoError(t, m.Set(ctx, "rooms/r1", store.Document{"b": "3"}, true))

	doc, err := m.Get(ctx, "rooms/r1")
	require.NoError(t, err)
	assert.Equal(t, "1", doc["a"], "merge keeps fields it does not mention")
	assert.Equal(t, "3", doc["b"])
}

func TestMemoryUpdate(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	err := m.Update(ctx, "rooms/missing", map[string]any{"x": 1})
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, m.Set(ctx, "rooms/r1", store.Document{"timer": 80}, false))
	require.NoError(t, m.Update(ctx, "rooms/r1", map[string]any{"timer": store.Inc(-1)}))

	doc, err := m.Get(ctx, "rooms/r1")
	require.NoError(t, err)
	assert.Equal(t, float64(79), doc["timer"])
}

func TestMemoryConcurrentInc(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.Set(ctx, "rooms/r1/players/p1", store.Document{"score": 0}, false))

	const writers = 50
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func() {
			defer wg.Done()
			_ = m.Update(ctx, "rooms/r1/players/p1", map[string]any{"score": store.Inc(10)})
		}()
	}
	wg.Wait()

	doc, err := m.Get(ctx, "rooms/r1/players/p1")
	require.NoError(t, err)
	assert.Equal(t, float64(writers*10), doc["score"], "no increment may be lost to a race")
}

func TestMemoryQuery(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	require.NoError(t, m.Set(ctx, "rooms/r1", store.Document{"status": "waiting", "visibility": "public"}, false))
	require.NoError(t, m.Set(ctx, "rooms/r2", store.Document{"status": "playing", "visibility": "public"}, false))
	require.NoError(t, m.Set(ctx, "rooms/r3", store.Document{"status": "waiting", "visibility": "private"}, false))
	// A nested document must not appear as a member of the parent collection.
	require.NoError(t, m.Set(ctx, "rooms/r1/players/p1", store.Document{"status": "waiting"}, false))

	snaps, err := m.Query(ctx, "rooms",
		store.Where("status", "waiting"),
		store.Where("visibility", "public"),
	)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "r1", snaps[0].ID)
	assert.Equal(t, "rooms/r1", snaps[0].Path)
}

func TestMemorySubscribeDoc(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.Set(ctx, "rooms/r1", store.Document{"timer": 80}, false))

	ch, cancel, err := m.SubscribeDoc(ctx, "rooms/r1")
	require.NoError(t, err)

	initial := <-ch
	assert.Equal(t, float64(80), initial["timer"], "subscription starts with current state")

	require.NoError(t, m.Update(ctx, "rooms/r1", map[string]any{"timer": store.Inc(-1)}))
	next := recvDoc(t, ch)
	assert.Equal(t, float64(79), next["timer"])

	require.NoError(t, m.Delete(ctx, "rooms/r1"))
	gone := recvDoc(t, ch)
	assert.Nil(t, gone, "deletion is delivered as a nil snapshot")

	cancel()
	_, open := <-ch
	assert.False(t, open, "cancel closes the channel")
}

func TestMemorySubscribeDocAbsent(t *testing.T) {
	m := store.NewMemory()

	ch, cancel, err := m.SubscribeDoc(context.Background(), "rooms/ghost")
	require.NoError(t, err)
	defer cancel()

	initial := <-ch
	assert.Nil(t, initial, "absent document delivers nil first")
}

func TestMemorySubscribeCollection(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	ch, cancel, err := m.SubscribeCollection(ctx, "rooms/r1/players")
	require.NoError(t, err)
	defer cancel()

	initial := <-ch
	assert.Empty(t, initial)

	require.NoError(t, m.Set(ctx, "rooms/r1/players/p1", store.Document{"name": "Ana"}, false))
	snaps := recvCol(t, ch)
	require.Len(t, snaps, 1)
	assert.Equal(t, "p1", snaps[0].ID)
}

func TestMemorySubscribeContextCancel(t *testing.T) {
	m := store.NewMemory()
	ctx, cancelCtx := context.WithCancel(context.Background())

	ch, _, err := m.SubscribeDoc(ctx, "rooms/r1")
	require.NoError(t, err)
	<-ch // initial

	cancelCtx()
	select {
	case _, open := <-ch:
		assert.False(t, open, "context cancellation closes the feed")
	case <-time.After(time.Second):
		t.Fatal("feed not closed after context cancel")
	}
}

func TestMemoryBatchAtomicVisibility(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.Set(ctx, "rooms/r1", store.Document{"status": "playing", "drawer_id": "a"}, false))
	require.NoError(t, m.Set(ctx, "rooms/r1/players/a", store.Document{"has_guessed": true}, false))
	require.NoError(t, m.Set(ctx, "rooms/r1/strokes/s1", store.Document{"color": "red"}, false))

	roomCh, cancelRoom, err := m.SubscribeDoc(ctx, "rooms/r1")
	require.NoError(t, err)
	defer cancelRoom()
	<-roomCh // initial

	err = m.Batch().
		Delete("rooms/r1/strokes/s1").
		Update("rooms/r1/players/a", map[string]any{"has_guessed": false}).
		Update("rooms/r1", map[string]any{"drawer_id": "b", "timer": 80}).
		Commit(ctx)
	require.NoError(t, err)

	// By the time any subscriber sees the new room state, the sibling
	// writes of the same batch are already applied.
	room := recvDoc(t, roomCh)
	assert.Equal(t, "b", room["drawer_id"])

	_, err = m.Get(ctx, "rooms/r1/strokes/s1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	player, err := m.Get(ctx, "rooms/r1/players/a")
	require.NoError(t, err)
	assert.Equal(t, false, player["has_guessed"])
}

func TestMemoryBatchRejectsUpdateOfMissingDoc(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.Set(ctx, "rooms/r1", store.Document{"status": "waiting"}, false))

	err := m.Batch().
		Update("rooms/r1", map[string]any{"status": "playing"}).
		Update("rooms/ghost", map[string]any{"status": "playing"}).
		Commit(ctx)
	require.ErrorIs(t, err, store.ErrNotFound)

	doc, err := m.Get(ctx, "rooms/r1")
	require.NoError(t, err)
	assert.Equal(t, "waiting", doc["status"], "a failed batch applies nothing")
}

func TestDocRoundtrip(t *testing.T) {
	type rec struct {
		Name  string `json:"name"`
		Score int    `json:"score"`
	}

	doc, err := store.DocOf(rec{Name: "Ana", Score: 42})
	require.NoError(t, err)
	assert.Equal(t, float64(42), doc["score"], "documents carry JSON-normalized values")

	var out rec
	require.NoError(t, store.DataTo(doc, &out))
	assert.Equal(t, rec{Name: "Ana", Score: 42}, out)

	assert.ErrorIs(t, store.DataTo(nil, &out), store.ErrNotFound)
}

func recvDoc(t *testing.T, ch <-chan store.Document) store.Document {
	t.Helper()
	select {
	case doc := <-ch:
		return doc
	case <-time.After(time.Second):
		t.Fatal("no document update within 1s")
		return nil
	}
}

func recvCol(t *testing.T, ch <-chan []store.Snapshot) []store.Snapshot {
	t.Helper()
	select {
	case snaps := <-ch:
		return snaps
	case <-time.After(time.Second):
		t.Fatal("no collection update within 1s")
		return nil
	}
}
