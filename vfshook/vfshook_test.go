package vfshook

import (
	"testing"

	"github.com/stretchr/testify/require"

	"karcfs/notifybus"
	"karcfs/vfs"
)

func TestWriteThroughHook(t *testing.T) {
	fs := vfs.NewMem()
	bus := notifybus.New(1024)
	bus.AddWatch("/", notifybus.Create|notifybus.Modify|notifybus.Delete|notifybus.Access)
	h := New(fs, 16, bus)

	require.NoError(t, h.WriteFile("/f", []byte("hi")))

	diskData, err := fs.ReadFile("/f")
	require.NoError(t, err)
	require.Equal(t, []byte("hi"), diskData)

	events := bus.ReadEvents(10)
	require.Len(t, events, 2)
	require.Equal(t, notifybus.Create, events[0].Kind)
	require.Equal(t, notifybus.Modify, events[1].Kind)

	data, err := h.ReadFile("/f")
	require.NoError(t, err)
	require.Equal(t, []byte("hi"), data)
	events = bus.ReadEvents(10)
	require.Len(t, events, 1)
	require.Equal(t, notifybus.Access, events[0].Kind)

	require.NoError(t, h.RemoveFile("/f"))
	events = bus.ReadEvents(10)
	require.Len(t, events, 1)
	require.Equal(t, notifybus.Delete, events[0].Kind)

	_, err = h.ReadFile("/f")
	require.Error(t, err)
	require.Equal(t, 0, bus.PendingCount())
}

// TestHookAtomicity verifies that a failing write_file leaves the cache
// exactly as it was, and emits no event.
func TestHookAtomicity(t *testing.T) {
	fs := &failingFS{Mem: vfs.NewMem()}
	bus := notifybus.New(1024)
	bus.AddWatch("/", notifybus.Create|notifybus.Modify)
	h := New(fs, 16, bus)

	require.NoError(t, h.WriteFile("/f", []byte("before")))
	bus.ReadEvents(10)

	fs.failWrite = true
	err := h.WriteFile("/f", []byte("after"))
	require.Error(t, err)
	require.Equal(t, 0, bus.PendingCount(), "a failed write must emit no event")

	data, err := h.ReadFile("/f")
	require.NoError(t, err)
	require.Equal(t, []byte("before"), data)
}

func TestCreateDir(t *testing.T) {
	fs := vfs.NewMem()
	bus := notifybus.New(1024)
	bus.AddWatch("/", notifybus.Create|notifybus.Modify|notifybus.Delete|notifybus.Access)
	h := New(fs, 16, bus)

	require.NoError(t, h.CreateDir("/d"))

	exists, err := fs.Exists("/d")
	require.NoError(t, err)
	require.True(t, exists)

	events := bus.ReadEvents(10)
	require.Len(t, events, 1)
	require.Equal(t, notifybus.Create, events[0].Kind)
	require.Equal(t, "/d", events[0].Path)
}

func TestRemoveDir(t *testing.T) {
	fs := vfs.NewMem()
	bus := notifybus.New(1024)
	bus.AddWatch("/", notifybus.Create|notifybus.Modify|notifybus.Delete|notifybus.Access)
	h := New(fs, 16, bus)

	require.NoError(t, h.CreateDir("/d"))
	bus.ReadEvents(10)

	require.NoError(t, h.RemoveDir("/d"))

	exists, err := fs.Exists("/d")
	require.NoError(t, err)
	require.False(t, exists)

	events := bus.ReadEvents(10)
	require.Len(t, events, 1)
	require.Equal(t, notifybus.Delete, events[0].Kind)
	require.Equal(t, "/d", events[0].Path)
}

// TestRenameInvalidatesDestinationCache guards against a rename that only
// invalidates the source path's cache entry: if newPath was already cached
// with its pre-rename content, reading newPath after the rename must return
// the renamed-in bytes, not the stale cached ones.
func TestRenameInvalidatesDestinationCache(t *testing.T) {
	fs := vfs.NewMem()
	bus := notifybus.New(1024)
	bus.AddWatch("/", notifybus.Create|notifybus.Modify|notifybus.Delete|notifybus.Access)
	h := New(fs, 16, bus)

	require.NoError(t, h.WriteFile("/new", []byte("stale")))
	_, err := h.ReadFile("/new")
	require.NoError(t, err)

	require.NoError(t, h.WriteFile("/old", []byte("fresh")))
	bus.ReadEvents(10)

	require.NoError(t, h.Rename("/old", "/new"))

	data, err := h.ReadFile("/new")
	require.NoError(t, err)
	require.Equal(t, []byte("fresh"), data)
}

type failingFS struct {
	*vfs.Mem
	failWrite bool
}

func (f *failingFS) WriteFile(path string, data []byte) error {
	if f.failWrite {
		return errFailingWrite
	}
	return f.Mem.WriteFile(path, data)
}

var errFailingWrite = &writeError{}

type writeError struct{}

func (*writeError) Error() string { return "simulated VFS write failure" }
