package messaging

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownTopic    = errors.New("unknown topic or partition")
	ErrClosed          = errors.New("messaging: closed")
	ErrNotAcknowledged = errors.New("broker did not acknowledge message")
)

// PublishError is returned when a message could not be appended. The message
// was not accepted by the broker.
type PublishError struct {
	Topic string
	Key   string
	Err   error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish to %s (key %s): %v", e.Topic, e.Key, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// ConsumeError is a transient failure while reading from a topic.
type ConsumeError struct {
	Topic string
	Err   error
}

func (e *ConsumeError) Error() string {
	return fmt.Sprintf("consume from %s: %v", e.Topic, e.Err)
}

func (e *ConsumeError) Unwrap() error {
	return e.Err
}
