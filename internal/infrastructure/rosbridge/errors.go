package rosbridge

import "errors"

// Sentinel errors for rosbridge operations.
var (
	// ErrNotConnected is returned when an operation needs an open socket.
	ErrNotConnected = errors.New("rosbridge: not connected")

	// ErrClosed is returned after the link has been closed.
	ErrClosed = errors.New("rosbridge: link closed")

	// ErrEmptyTopic is returned when an operation names no topic.
	ErrEmptyTopic = errors.New("rosbridge: topic is required")
)
