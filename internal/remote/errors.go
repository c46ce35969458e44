package remote

import (
	"errors"
	"fmt"
)

// RejectedError means the remote service produced a real response and
// declined the request (validation, authorization, not-found). A rejection
// is a policy decision, not a transient fault: it is never retried and
// never queued for replay.
type RejectedError struct {
	Status int    // HTTP status code
	Detail string // server-provided detail message, if any
}

func (e *RejectedError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("remote rejected request (%d): %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("remote rejected request (%d)", e.Status)
}

// UnreachableError means no usable response was obtained: a network
// failure, a timeout, or a 5xx. Unreachable outcomes always make the
// corresponding write eligible for the pending-operation queue.
type UnreachableError struct {
	Err error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("remote unreachable: %v", e.Err)
}

func (e *UnreachableError) Unwrap() error {
	return e.Err
}

// IsRejected reports whether err is a remote rejection.
func IsRejected(err error) bool {
	var re *RejectedError
	return errors.As(err, &re)
}

// IsUnreachable reports whether err is a connectivity failure.
func IsUnreachable(err error) bool {
	var ue *UnreachableError
	return errors.As(err, &ue)
}
