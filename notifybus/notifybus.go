// Package notifybus implements an inotify-style file-change notification
// bus: a small watch table keyed by path prefix, and a bounded FIFO event
// queue with tail-wins backpressure.
//
// The watch table expects only tens of live watches, so it is a plain
// mutex-guarded map with a typed accessor rather than a bare map or a
// sharded structure built for much higher contention. The event queue
// follows a ring-buffer discipline -- a fixed backing slice indexed by
// tail and head rather than a fresh allocation per event -- so triggering
// an event under load never allocates; every Trigger call acquires the
// watch table lock before the queue lock, in that fixed order.
package notifybus

import (
	"strings"
	"sync/atomic"
	"time"

	"karcfs/kerr"
	"karcfs/kmutex"
)

// EventKind is a bitmask over the kinds of file-change events a watch can
// subscribe to.
type EventKind uint32

const (
	Create EventKind = 1 << iota
	Modify
	Delete
	Access
)

// Event is a single notification: what happened, to which path, and when.
type Event struct {
	Kind      EventKind
	Path      string
	Timestamp uint64
}

type watch struct {
	pathPrefix string
	mask       EventKind
}

// Bus is an inotify-style notification bus. The zero value is not usable;
// construct one with New.
type Bus struct {
	wLock    kmutex.IRQRWMutex
	watches  map[int32]watch
	nextWD   int32

	qLock     kmutex.IRQRWMutex
	queue     []Event
	qHead     int // index of oldest event
	qLen      int
	maxEvents int

	dropped uint64
}

// New constructs a Bus whose event queue holds at most maxEvents entries.
// maxEvents <= 0 selects the spec's default of 1024.
func New(maxEvents int) *Bus {
	if maxEvents <= 0 {
		maxEvents = 1024
	}
	return &Bus{
		watches:   make(map[int32]watch),
		nextWD:    1,
		queue:     make([]Event, maxEvents),
		maxEvents: maxEvents,
	}
}

// AddWatch registers a subscription to events on paths with the given
// prefix whose kind bit is set in mask, returning a watch descriptor that
// uniquely identifies it for the life of the Bus.
func (b *Bus) AddWatch(pathPrefix string, mask EventKind) int32 {
	b.wLock.Lock()
	defer b.wLock.Unlock()

	wd := b.nextWD
	b.nextWD++
	b.watches[wd] = watch{pathPrefix: pathPrefix, mask: mask}
	return wd
}

// RemoveWatch cancels a subscription. It returns kerr.NotFound if wd is
// unknown.
func (b *Bus) RemoveWatch(wd int32) kerr.Err {
	b.wLock.Lock()
	defer b.wLock.Unlock()

	if _, ok := b.watches[wd]; !ok {
		return kerr.NotFound
	}
	delete(b.watches, wd)
	return kerr.OK
}

// Trigger enqueues an event of the given kind and path if it matches at
// least one live watch (prefix match on path, kind bit set in the watch's
// mask). An event matching several watches is still enqueued exactly
// once. It reports whether the event was enqueued.
func (b *Bus) Trigger(kind EventKind, path string) bool {
	if !b.matches(kind, path) {
		return false
	}
	b.enqueue(Event{Kind: kind, Path: path, Timestamp: nowU64()})
	return true
}

// TriggerUnchecked enqueues an event unconditionally, bypassing
// subscription filtering. It exists for tests and bootstrap paths that
// need to seed the queue without registering a watch.
func (b *Bus) TriggerUnchecked(kind EventKind, path string) {
	b.enqueue(Event{Kind: kind, Path: path, Timestamp: nowU64()})
}

func (b *Bus) matches(kind EventKind, path string) bool {
	b.wLock.RLock()
	defer b.wLock.RUnlock()

	for _, w := range b.watches {
		if w.mask&kind != 0 && strings.HasPrefix(path, w.pathPrefix) {
			return true
		}
	}
	return false
}

// enqueue appends ev to the tail of the queue, dropping the oldest entry
// first if the queue is already at maxEvents (tail-wins backpressure).
// This is the queue's single mutating entry point, so every Trigger call
// linearizes at the qLock acquisition here.
func (b *Bus) enqueue(ev Event) {
	b.qLock.Lock()
	defer b.qLock.Unlock()

	if b.qLen == b.maxEvents {
		b.qHead = (b.qHead + 1) % b.maxEvents
		b.qLen--
		atomic.AddUint64(&b.dropped, 1)
	}
	tail := (b.qHead + b.qLen) % b.maxEvents
	b.queue[tail] = ev
	b.qLen++
}

// ReadEvents drains and returns up to max events in insertion order. The
// queue is the only persistent store of events; there is no replay after
// a read.
func (b *Bus) ReadEvents(max int) []Event {
	b.qLock.Lock()
	defer b.qLock.Unlock()

	n := max
	if n > b.qLen {
		n = b.qLen
	}
	if n <= 0 {
		return nil
	}
	out := make([]Event, n)
	for i := 0; i < n; i++ {
		out[i] = b.queue[(b.qHead+i)%b.maxEvents]
	}
	b.qHead = (b.qHead + n) % b.maxEvents
	b.qLen -= n
	return out
}

// PendingCount reports the number of events currently queued.
func (b *Bus) PendingCount() int {
	b.qLock.RLock()
	defer b.qLock.RUnlock()
	return b.qLen
}

// Dropped reports how many events have been discarded by backpressure
// since the Bus was created.
func (b *Bus) Dropped() uint64 {
	return atomic.LoadUint64(&b.dropped)
}

func nowU64() uint64 {
	return uint64(time.Now().UnixNano())
}
