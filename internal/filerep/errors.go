package filerep

import "fmt"

// InvalidStateError reports an operation the stream cannot perform in its
// current state
type InvalidStateError struct {
	Op     string
	Reason string
}

func (e InvalidStateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// NotImplementedError reports an operation write streams do not support.
// It unwraps to an InvalidStateError.
type NotImplementedError struct {
	Op     string
	Reason string
}

func (e NotImplementedError) Error() string {
	return fmt.Sprintf("%s not supported: %s", e.Op, e.Reason)
}

func (e NotImplementedError) Unwrap() error {
	return InvalidStateError{Op: e.Op, Reason: e.Reason}
}
