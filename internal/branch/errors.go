package branch

import "errors"

var (
	// ErrDisposed indicates an operation on a branch after Dispose.
	ErrDisposed = errors.New("branch disposed")
)
