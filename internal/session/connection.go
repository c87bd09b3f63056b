package session

import (
	"encoding/json"
	"fmt"
)

// Connection is one logical session lifetime to the broker. It is created
// by Open or by an automatic reconnect and is never revived once
// Disconnected.
type Connection struct {
	m        *Manager
	id       uint64
	endpoint string
	link     Link

	// Guarded by m.mu.
	state  State
	closed bool
	topics map[string]*topicEntry
}

// topicEntry tracks the subscriptions sharing one transport subscription.
// ready is closed once the transport subscribe has returned; failed records
// its outcome.
type topicEntry struct {
	schema string
	subs   []*Subscription
	ready  chan struct{}
	failed bool
}

// ID returns the connection's sequence number within its Manager.
func (c *Connection) ID() uint64 {
	if c == nil {
		return 0
	}
	return c.id
}

// Endpoint returns the endpoint this connection was dialled to.
func (c *Connection) Endpoint() string {
	if c == nil {
		return ""
	}
	return c.endpoint
}

// State returns the connection's current state.
func (c *Connection) State() State {
	if c == nil {
		return Disconnected
	}
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.state
}

// Subscribe is shorthand for Manager.Subscribe on this connection.
func (c *Connection) Subscribe(topic, schema string, h Handler) *Subscription {
	if c == nil {
		return inertSubscription(topic, schema)
	}
	return c.m.Subscribe(c, topic, schema, h)
}

// Publish is shorthand for Manager.PublishOn on this connection.
func (c *Connection) Publish(topic, schema string, payload any) bool {
	if c == nil {
		return false
	}
	return c.m.PublishOn(c, topic, schema, payload)
}

// Subscribe registers h for messages on topic. When c is not Connected, or
// topic is already subscribed on c with a different schema, the returned
// Subscription is inert: it never fires and Unsubscribe is a no-op.
func (m *Manager) Subscribe(c *Connection, topic, schema string, h Handler) *Subscription {
	if c == nil || c.m != m || topic == "" || h == nil {
		return inertSubscription(topic, schema)
	}

	m.mu.Lock()
	if c.state != Connected {
		m.mu.Unlock()
		m.logger.Debug("subscribe ignored, not connected", "topic", topic, "state", c.state.String())
		return inertSubscription(topic, schema)
	}
	entry, exists := c.topics[topic]
	if exists && entry.schema != schema {
		m.mu.Unlock()
		m.logger.Warn("subscribe ignored, schema mismatch",
			"topic", topic,
			"schema", schema,
			"existing_schema", entry.schema,
		)
		return inertSubscription(topic, schema)
	}
	if !exists {
		entry = &topicEntry{schema: schema, ready: make(chan struct{})}
		c.topics[topic] = entry
	}
	sub := &Subscription{conn: c, topic: topic, schema: schema, handler: h, active: true}
	entry.subs = append(entry.subs, sub)
	link := c.link
	m.mu.Unlock()

	if exists {
		return m.awaitEntry(entry, sub)
	}

	err := link.Subscribe(topic, schema)

	m.mu.Lock()
	if err != nil {
		// The broker never saw the topic: release every handle that joined
		// while the subscribe was in flight.
		entry.failed = true
		for _, s := range entry.subs {
			s.active = false
		}
		entry.subs = nil
		if c.topics[topic] == entry {
			delete(c.topics, topic)
		}
	}
	close(entry.ready)
	m.mu.Unlock()

	if err != nil {
		m.logger.Warn("transport subscribe failed", "topic", topic, "schema", schema, "error", err)
		return inertSubscription(topic, schema)
	}
	m.logger.Debug("subscribed", "topic", topic, "schema", schema, "connection", c.id)
	return sub
}

// awaitEntry waits for the transport subscribe of a shared entry, and
// returns sub if it succeeded and sub is still live.
func (m *Manager) awaitEntry(entry *topicEntry, sub *Subscription) *Subscription {
	<-entry.ready

	m.mu.Lock()
	ok := !entry.failed && sub.active
	m.mu.Unlock()

	if !ok {
		return inertSubscription(sub.topic, sub.schema)
	}
	return sub
}

// PublishOn makes one delivery attempt of payload on c. It returns false,
// without touching the transport, when c is not Connected. There is no
// queueing, retry or acknowledgement.
//
// payload may be []byte or json.RawMessage (sent as-is) or any value that
// encodes to JSON.
func (m *Manager) PublishOn(c *Connection, topic, schema string, payload any) bool {
	if c == nil || c.m != m || topic == "" {
		return false
	}

	m.mu.Lock()
	if c.state != Connected {
		m.mu.Unlock()
		m.logger.Debug("publish dropped, not connected", "topic", topic, "state", c.state.String())
		return false
	}
	link := c.link
	m.mu.Unlock()

	data, err := encodePayload(payload)
	if err != nil {
		m.logger.Warn("publish dropped, payload not encodable", "topic", topic, "error", err)
		return false
	}
	if err := link.Publish(topic, schema, data); err != nil {
		m.logger.Warn("transport publish failed", "topic", topic, "schema", schema, "error", err)
		return false
	}
	return true
}

// dispatch hands an inbound message to every live subscription on topic.
// Messages arriving on a connection that is not Connected are dropped.
func (m *Manager) dispatch(c *Connection, topic string, payload []byte) {
	m.mu.Lock()
	if c.state != Connected {
		m.mu.Unlock()
		return
	}
	entry := c.topics[topic]
	if entry == nil {
		m.mu.Unlock()
		return
	}
	subs := make([]*Subscription, len(entry.subs))
	copy(subs, entry.subs)
	m.mu.Unlock()

	for _, s := range subs {
		if !s.Active() {
			continue
		}
		m.safeCall("handler "+topic, func() { s.handler(payload) })
	}
}

// encodePayload turns a publish payload into wire bytes.
func encodePayload(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case nil:
		return []byte("{}"), nil
	case []byte:
		return p, nil
	case json.RawMessage:
		return p, nil
	default:
		data, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("encoding payload: %w", err)
		}
		return data, nil
	}
}
