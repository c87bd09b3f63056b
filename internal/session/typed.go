package session

import "encoding/json"

// Topic binds a topic name and schema to the Go payload type T, so
// subscribe and publish calls are checked at compile time.
type Topic[T any] struct {
	Name   string
	Schema string
}

// Subscribe registers fn for decoded messages of t on c. Payloads that do
// not decode into T are logged and skipped.
func Subscribe[T any](c *Connection, t Topic[T], fn func(T)) *Subscription {
	if c == nil || fn == nil {
		return inertSubscription(t.Name, t.Schema)
	}
	m := c.m
	return m.Subscribe(c, t.Name, t.Schema, func(payload []byte) {
		var msg T
		if err := json.Unmarshal(payload, &msg); err != nil {
			m.logger.Warn("dropping undecodable message", "topic", t.Name, "schema", t.Schema, "error", err)
			return
		}
		fn(msg)
	})
}

// Publish sends msg on t over c. See Manager.PublishOn.
func Publish[T any](c *Connection, t Topic[T], msg T) bool {
	return c.Publish(t.Name, t.Schema, msg)
}
