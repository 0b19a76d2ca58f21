package recording

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryAddGetRemove(t *testing.T) {
	reg := NewRegistry()

	rec := newRecording("1700000000001", ModeMixed, "room-a", "user-1")
	reg.Add(rec)

	got, ok := reg.Get(rec.ID)
	require.True(t, ok)
	assert.Same(t, rec, got)
	assert.Equal(t, 1, reg.Len())

	reg.Remove(rec.ID)
	_, ok = reg.Get(rec.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, reg.Len())
}

func TestRegistryStale(t *testing.T) {
	reg := NewRegistry()

	fresh := newRecording("fresh", ModeMixed, "room-a", "u")
	old := newRecording("old", ModeMixed, "room-b", "u")
	old.StartedAt = time.Now().Add(-3 * time.Hour)

	reg.Add(fresh)
	reg.Add(old)

	stale := reg.Stale(2 * time.Hour)
	require.Len(t, stale, 1)
	assert.Equal(t, "old", stale[0].ID)
}

func TestHealthCheckForceStopsStaleRecordings(t *testing.T) {
	reg := NewRegistry()

	old := newRecording("old", ModeMixed, "room-b", "u")
	old.StartedAt = time.Now().Add(-3 * time.Hour)
	reg.Add(old)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopped := make(chan string, 1)
	reg.StartHealthCheck(ctx, 10*time.Millisecond, 2*time.Hour, func(rec *Recording) {
		select {
		case stopped <- rec.ID:
		default:
		}
	})

	select {
	case id := <-stopped:
		assert.Equal(t, "old", id)
	case <-time.After(time.Second):
		t.Fatal("health check did not force-stop the stale recording")
	}
}

func TestNewRecordingIDMonotonic(t *testing.T) {
	seen := make(map[string]bool)
	prev := ""
	for i := 0; i < 100; i++ {
		id := NewRecordingID()
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
		require.Greater(t, id, prev)
		prev = id
	}
}
