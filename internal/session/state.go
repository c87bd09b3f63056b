package session

import (
	"fmt"
	"time"
)

// State is the lifecycle state of a Connection.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText encodes the state by name for JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// canTransition reports whether a Connection may move from one state to
// another. A failed attempt goes Connecting → Disconnected; nothing leaves
// Disconnected except the initial move to Connecting.
func canTransition(from, to State) bool {
	switch from {
	case Disconnected:
		return to == Connecting
	case Connecting:
		return to == Connected || to == Disconnected
	case Connected:
		return to == Disconnected
	}
	return false
}

// StateChange describes one transition of one Connection.
type StateChange struct {
	Connection *Connection
	From       State
	To         State
	// Err is the transport error behind a move to Disconnected, if any.
	Err error
	At  time.Time
}
