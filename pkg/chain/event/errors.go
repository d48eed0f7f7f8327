package event

import (
	"errors"
	"fmt"
)

// Errors returned by the bus.
var (
	ErrBusClosed          = errors.New("bus is closed")
	ErrTooManySubscribers = errors.New("subscriber limit reached")
)

// PublishError reports an event that could not be delivered.
type PublishError struct {
	EventID string
	Type    string
	Err     error
}

// Error implements error.
func (e *PublishError) Error() string {
	return fmt.Sprintf("event %s (%s): %v", e.EventID, e.Type, e.Err)
}

// Unwrap returns the underlying error.
func (e *PublishError) Unwrap() error {
	return e.Err
}
