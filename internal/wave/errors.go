package wave

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a batch or picking does not exist
var ErrNotFound = errors.New("record not found")

// ConsistencyError is a user-facing validation failure: the operation would
// leave a batch with pickings of more than one type, or with a wave type that
// does not match its members.
type ConsistencyError struct {
	Message string
}

func (e *ConsistencyError) Error() string {
	return e.Message
}

func consistencyf(format string, args ...interface{}) error {
	return &ConsistencyError{Message: fmt.Sprintf(format, args...)}
}

// IsConsistencyError reports whether err carries a ConsistencyError
func IsConsistencyError(err error) bool {
	var ce *ConsistencyError
	return errors.As(err, &ce)
}
