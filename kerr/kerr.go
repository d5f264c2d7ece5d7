// Package kerr defines the error-kind vocabulary shared by the allocator,
// cache, notification bus, and hook layer. Failures are represented as a
// small signed integer type instead of the error interface, so a failed
// call never allocates.
package kerr

// Err is a kernel-style error kind. The zero value means success, matching
// the convention that callers check "if err != kerr.OK".
type Err int

const (
	// OK indicates success.
	OK Err = 0
	// InvalidParam means an argument violated a documented constraint:
	// zero length, misaligned address, non-power-of-two alignment, or an
	// out-of-range value.
	InvalidParam Err = -1
	// NoMemory means no free extent of the requested size exists, or
	// internal bookkeeping could not grow to record an allocation.
	NoMemory Err = -2
	// NotFound means a named subscription or entry does not exist.
	NotFound Err = -3
	// AlreadyExists means a create targeted a name that already exists.
	AlreadyExists Err = -4
)

func (e Err) String() string {
	switch e {
	case OK:
		return "ok"
	case InvalidParam:
		return "invalid parameter"
	case NoMemory:
		return "no memory"
	case NotFound:
		return "not found"
	case AlreadyExists:
		return "already exists"
	default:
		return "unknown error"
	}
}

// Error implements the error interface so Err can be returned from ordinary
// Go call sites (e.g. vfs.FS) that expect one, without giving up the
// kernel-style zero-means-ok comparisons used internally.
func (e Err) Error() string {
	return e.String()
}
