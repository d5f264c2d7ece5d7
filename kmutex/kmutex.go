// Package kmutex provides the interrupt-safe mutual-exclusion primitives
// that the allocator, cache, and notification bus build on.
//
// This kernel's code runs as ordinary goroutines under the Go scheduler,
// which may preempt a goroutine mid-critical-section the same way a real
// interrupt would on bare metal. This package names its wrapper types
// after what a call site needs to know -- that the lock is
// interrupt-disciplined -- while delegating to sync.Mutex/sync.RWMutex
// for the actual exclusion.
package kmutex

import "sync"

// IRQMutex is an exclusive lock safe to acquire from a context where
// interrupts may occur mid-critical-section.
type IRQMutex struct {
	mu sync.Mutex
}

// Lock acquires the mutex. It only excludes other holders; it does not
// mask interrupts or goroutine preemption while held.
func (m *IRQMutex) Lock() { m.mu.Lock() }

// Unlock releases the mutex.
func (m *IRQMutex) Unlock() { m.mu.Unlock() }

// IRQRWMutex is a reader/writer lock with the same interrupt discipline as
// IRQMutex. Used by the ARC cache's five protected lists and by the
// notification bus's watch table and event queue.
type IRQRWMutex struct {
	mu sync.RWMutex
}

// Lock acquires the mutex for writing.
func (m *IRQRWMutex) Lock() { m.mu.Lock() }

// Unlock releases a write lock.
func (m *IRQRWMutex) Unlock() { m.mu.Unlock() }

// RLock acquires the mutex for reading. Multiple readers may hold it
// concurrently.
func (m *IRQRWMutex) RLock() { m.mu.RLock() }

// RUnlock releases a read lock.
func (m *IRQRWMutex) RUnlock() { m.mu.RUnlock() }
