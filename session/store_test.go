package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediafetch/internal"
)

func TestStore_DispatchAndSubscribe(t *testing.T) {
	store := NewStore(Initial())
	updates, cancel := store.Subscribe()
	defer cancel()

	require.True(t, store.Dispatch(URLChanged{URL: "https://youtu.be/a"}))
	require.True(t, store.Dispatch(URLChanged{URL: "https://reddit.com/r/a"}))

	// only the latest unread snapshot is kept
	snap := <-updates
	assert.Equal(t, "https://reddit.com/r/a", snap.URL)
	assert.Equal(t, internal.PlatformReddit, snap.SelectedPlatform)

	select {
	case <-updates:
		t.Fatal("expected no further snapshot")
	default:
	}
}

func TestStore_CloseDiscardsEvents(t *testing.T) {
	store := NewStore(Initial())
	updates, _ := store.Subscribe()

	store.Close()
	assert.True(t, store.Closed())
	assert.False(t, store.Dispatch(URLChanged{URL: "late"}))
	assert.Empty(t, store.Snapshot().URL)

	_, ok := <-updates
	assert.False(t, ok)

	late, cancel := store.Subscribe()
	cancel()
	_, ok = <-late
	assert.False(t, ok)

	store.Close()
}

func TestStore_CancelSubscription(t *testing.T) {
	store := NewStore(Initial())
	updates, cancel := store.Subscribe()

	cancel()
	cancel()
	_, ok := <-updates
	assert.False(t, ok)
	assert.True(t, store.Dispatch(URLChanged{URL: "x"}))
}

func TestStore_ConcurrentDispatch(t *testing.T) {
	store := NewStore(Initial())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			store.Dispatch(SelectionToggled{ID: string(rune('a' + i%26))})
		}(i)
	}
	wg.Wait()

	// each letter toggled once or twice; the set stays duplicate free
	seen := map[string]bool{}
	for _, id := range store.Snapshot().Selection {
		assert.False(t, seen[id], "duplicate %s", id)
		seen[id] = true
	}
}
