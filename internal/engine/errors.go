package engine

import (
	"errors"
	"fmt"
)

// ErrNoCachedData is returned when the remote service is unreachable and
// the local store holds no record for the requested entity.
var ErrNoCachedData = errors.New("offline and no cached data")

// SoftError marks a write whose local commit succeeded but whose remote
// call was rejected. The returned value is valid and durable; the wrapped
// rejection is informational and nothing was queued for retry.
type SoftError struct {
	Err error
}

func (e *SoftError) Error() string {
	return fmt.Sprintf("saved locally, remote declined: %v", e.Err)
}

func (e *SoftError) Unwrap() error {
	return e.Err
}

// IsSoft reports whether err is a soft failure: the operation's local
// result is usable despite the error.
func IsSoft(err error) bool {
	var se *SoftError
	return errors.As(err, &se)
}
