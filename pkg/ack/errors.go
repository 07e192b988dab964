package ack

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAckTimeout matches every *TimeoutError via errors.Is.
	ErrAckTimeout = errors.New("ack timeout")

	// ErrClosed is returned for registrations outstanding when the tracker closes.
	ErrClosed = errors.New("ack tracker closed")
)

// TimeoutError reports that no acknowledgment arrived in time.
type TimeoutError struct {
	MessageID string
	Timeout   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("ack timeout for %s after %s", e.MessageID, e.Timeout)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrAckTimeout
}
