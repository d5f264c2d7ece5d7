package notifybus

import (
	"testing"

	"github.com/stretchr/testify/require"

	"karcfs/kerr"
)

func TestNotificationFiltering(t *testing.T) {
	b := New(1024)
	wd := b.AddWatch("/a", Modify|Create)
	require.EqualValues(t, 1, wd)

	require.True(t, b.Trigger(Modify, "/a/x"))
	require.False(t, b.Trigger(Access, "/a/x"))
	require.False(t, b.Trigger(Modify, "/b"))

	events := b.ReadEvents(10)
	require.Len(t, events, 1)
	require.Equal(t, "/a/x", events[0].Path)
	require.Equal(t, Modify, events[0].Kind)
}

func TestOverflowBackpressure(t *testing.T) {
	b := New(4)
	b.AddWatch("/", Modify)
	for _, p := range []string{"/e1", "/e2", "/e3", "/e4", "/e5"} {
		require.True(t, b.Trigger(Modify, p))
	}

	require.Equal(t, 4, b.PendingCount())
	events := b.ReadEvents(10)
	require.Len(t, events, 4)
	got := make([]string, len(events))
	for i, e := range events {
		got[i] = e.Path
	}
	require.Equal(t, []string{"/e2", "/e3", "/e4", "/e5"}, got)
	require.EqualValues(t, 1, b.Dropped())
}

func TestRemoveWatchUnknownIsNotFound(t *testing.T) {
	b := New(1024)
	require.Equal(t, kerr.NotFound, b.RemoveWatch(99))
}

func TestRemoveWatchStopsMatching(t *testing.T) {
	b := New(1024)
	wd := b.AddWatch("/a", Modify)
	require.Equal(t, kerr.OK, b.RemoveWatch(wd))
	require.False(t, b.Trigger(Modify, "/a/x"))
}

func TestDedupesAcrossOverlappingWatches(t *testing.T) {
	b := New(1024)
	b.AddWatch("/a", Modify)
	b.AddWatch("/a/x", Modify)
	require.True(t, b.Trigger(Modify, "/a/x"))
	require.Equal(t, 1, b.PendingCount())
}

func TestReadEventsLeavesRemainderQueued(t *testing.T) {
	b := New(1024)
	b.TriggerUnchecked(Modify, "/p1")
	b.TriggerUnchecked(Modify, "/p2")
	b.TriggerUnchecked(Modify, "/p3")

	first := b.ReadEvents(2)
	require.Len(t, first, 2)
	require.Equal(t, 1, b.PendingCount())

	rest := b.ReadEvents(10)
	require.Len(t, rest, 1)
	require.Equal(t, "/p3", rest[0].Path)
}
