// Package vfshook instruments file operations with an ARC cache and a
// notification bus in front of an underlying vfs.FS. Every operation
// either fully succeeds -- updating the VFS, the cache, and the bus
// together -- or fails leaving the VFS, the cached entries, and the bus
// unchanged, so the cache never diverges from the VFS it fronts. The only
// trace a failed ReadFile leaves is its path in the hook's negative-lookup
// cache.
package vfshook

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"karcfs/arc"
	"karcfs/notifybus"
	"karcfs/vfs"
)

// negLookupCapacity bounds the ancillary cache of recently-failed path
// lookups. It is deliberately small: its only job is to absorb repeated
// misses on the same missing path within a short window.
const negLookupCapacity = 256

// Hook wires an ARC cache and a notification bus onto an underlying
// vfs.FS. The zero value is not usable; construct one with New.
type Hook struct {
	fs    vfs.FS
	cache *arc.Cache
	bus   *notifybus.Bus

	// negLookup remembers paths whose most recent ReadFile missed both
	// the ARC cache and the VFS, so a repeated read of the same missing
	// path doesn't round-trip to the VFS only to fail again. It is not
	// part of the core cache: arc.Cache's invariants never mention it.
	negLookup *lru.Cache[string, struct{}]
}

// New constructs a Hook over fs, caching up to cacheCapacity paths and
// publishing events on bus.
func New(fs vfs.FS, cacheCapacity int, bus *notifybus.Bus) *Hook {
	neg, err := lru.New[string, struct{}](negLookupCapacity)
	if err != nil {
		panic(err)
	}
	return &Hook{fs: fs, cache: arc.New(cacheCapacity), bus: bus, negLookup: neg}
}

// ReadFile returns path's contents, serving from cache on a hit and
// populating the cache on a miss. Every successful call emits Access.
func (h *Hook) ReadFile(path string) ([]byte, error) {
	if v, ok := h.cache.Get(path); ok {
		h.bus.Trigger(notifybus.Access, path)
		return v, nil
	}
	if _, recentlyMissing := h.negLookup.Get(path); recentlyMissing {
		return nil, vfs.ErrNotExist
	}
	data, err := h.fs.ReadFile(path)
	if err != nil {
		h.negLookup.Add(path, struct{}{})
		return nil, err
	}
	h.cache.Put(path, data)
	h.bus.Trigger(notifybus.Access, path)
	return data, nil
}

// WriteFile writes data to path, write-through to both the VFS and the
// cache. It emits Create if path did not previously exist, then always
// emits Modify. The existence check, the write, and the cache/event
// update all happen before returning, so a VFS failure leaves no trace in
// either the cache or the bus.
func (h *Hook) WriteFile(path string, data []byte) error {
	existed, err := h.fs.Exists(path)
	if err != nil {
		return err
	}
	if err := h.fs.WriteFile(path, data); err != nil {
		return err
	}
	if !existed {
		h.bus.Trigger(notifybus.Create, path)
	}
	h.negLookup.Remove(path)
	h.cache.Put(path, data)
	h.bus.Trigger(notifybus.Modify, path)
	return nil
}

// RemoveFile deletes path from the VFS, invalidates its cache entry, and
// emits Delete.
func (h *Hook) RemoveFile(path string) error {
	if err := h.fs.RemoveFile(path); err != nil {
		return err
	}
	h.cache.Invalidate(path)
	h.bus.Trigger(notifybus.Delete, path)
	return nil
}

// CreateDir creates path as a directory and emits Create.
func (h *Hook) CreateDir(path string) error {
	if err := h.fs.CreateDir(path); err != nil {
		return err
	}
	h.negLookup.Remove(path)
	h.bus.Trigger(notifybus.Create, path)
	return nil
}

// RemoveDir removes the directory at path and emits Delete.
func (h *Hook) RemoveDir(path string) error {
	if err := h.fs.RemoveDir(path); err != nil {
		return err
	}
	h.bus.Trigger(notifybus.Delete, path)
	return nil
}

// Rename moves oldPath to newPath, invalidating any cache entry for
// oldPath and for newPath -- newPath may already hold a cached entry from
// before the rename, and that entry's content is now stale VFS truth -- then
// emits Delete on oldPath followed by Create on newPath.
func (h *Hook) Rename(oldPath, newPath string) error {
	if err := h.fs.Rename(oldPath, newPath); err != nil {
		return err
	}
	h.cache.Invalidate(oldPath)
	h.cache.Invalidate(newPath)
	h.negLookup.Remove(newPath)
	h.bus.Trigger(notifybus.Delete, oldPath)
	h.bus.Trigger(notifybus.Create, newPath)
	return nil
}

// Stats exposes the underlying cache's statistics, for diagnostics and
// tests.
func (h *Hook) Stats() arc.Stats {
	return h.cache.Stats()
}
