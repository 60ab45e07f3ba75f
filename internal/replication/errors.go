package replication

import (
	"errors"
	"fmt"
)

// ErrCycle is returned by Attach when the child already contains the parent.
var ErrCycle = errors.New("replication: attach would create a cycle")

// ErrMissingTarget is wrapped by ApplyError when a diff addresses a nested
// object the target does not have.
var ErrMissingTarget = errors.New("replication: nested target does not exist")

// ErrUnsupportedValue is wrapped by ApplyError when a diff holds a value
// that is neither a Snapshot nor an ir.IRValue.
var ErrUnsupportedValue = errors.New("replication: unsupported diff value")

// ApplyError reports where ApplyDiff stopped.
type ApplyError struct {
	// Path is the dotted path of the key that could not be applied.
	Path string
	Err  error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("apply diff at %q: %v", e.Path, e.Err)
}

func (e *ApplyError) Unwrap() error {
	return e.Err
}
