package winmap

import "github.com/pkg/errors"

// ErrWrongIdentifierKind is returned by FileID.AsPath / FileID.AsFD (and,
// transitively, Cursor.Path / Cursor.FD) when the caller asks for the
// identifier kind the cursor's file was not opened with.
var ErrWrongIdentifierKind = errors.New("wrong identifier kind")

// ErrInvalidState is returned by cursor accessors (OfsBegin, OfsEnd, ...)
// when called on a cursor that holds no pinned region - see Cursor.IsValid.
var ErrInvalidState = errors.New("cursor is not in a valid state")

// ResourceExhaustedError wraps a failure of the underlying mmap
// primitive (file descriptor limit, virtual-address exhaustion, quota).
// newRegion returns it for any mmap failure; the placement routines then
// run one full eviction pass (see Manager.Collect), retry once, and
// return it if the retry fails too.
type ResourceExhaustedError struct {
	cause error
}

func (e *ResourceExhaustedError) Error() string {
	return "resource exhausted mapping region: " + e.cause.Error()
}

func (e *ResourceExhaustedError) Unwrap() error { return e.cause }

func newResourceExhausted(cause error) error {
	return &ResourceExhaustedError{cause: cause}
}

// IsResourceExhausted reports whether err (or any error it wraps) is a
// ResourceExhaustedError.
func IsResourceExhausted(err error) bool {
	var rex *ResourceExhaustedError
	return errors.As(err, &rex)
}

// errHandleCapReached is wrapped into a ResourceExhaustedError when a
// placement routine (mapSliding, mapWholeFile) refuses to map a new
// region solely because
// Manager.MaxFileHandles was reached (as opposed to the mmap syscall
// itself failing).
var errHandleCapReached = errors.New("max file handles reached")
