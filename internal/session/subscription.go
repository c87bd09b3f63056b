package session

// Handler receives the raw payload of one inbound message.
type Handler func(payload []byte)

// Subscription is a (topic, schema, handler) registration on one
// Connection. It is owned by its creator and must be released with
// Unsubscribe, or goes away with its Connection.
type Subscription struct {
	conn    *Connection
	topic   string
	schema  string
	handler Handler

	// active is guarded by conn.m.mu.
	active bool
}

// inertSubscription returns a handle that never fires.
func inertSubscription(topic, schema string) *Subscription {
	return &Subscription{topic: topic, schema: schema}
}

// Topic returns the subscribed topic name.
func (s *Subscription) Topic() string { return s.topic }

// Schema returns the declared message schema.
func (s *Subscription) Schema() string { return s.schema }

// Active reports whether the handler can still be invoked.
func (s *Subscription) Active() bool {
	if s == nil || s.conn == nil {
		return false
	}
	s.conn.m.mu.Lock()
	defer s.conn.m.mu.Unlock()
	return s.active
}

// Unsubscribe stops further handler invocations. A message already being
// dispatched may still complete. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.conn == nil {
		return
	}
	c := s.conn
	m := c.m

	m.mu.Lock()
	if !s.active {
		m.mu.Unlock()
		return
	}
	s.active = false

	last := false
	if entry := c.topics[s.topic]; entry != nil {
		for i, other := range entry.subs {
			if other == s {
				entry.subs = append(entry.subs[:i], entry.subs[i+1:]...)
				break
			}
		}
		if len(entry.subs) == 0 {
			delete(c.topics, s.topic)
			last = c.state == Connected
		}
	}
	link := c.link
	m.mu.Unlock()

	if last {
		if err := link.Unsubscribe(s.topic); err != nil {
			m.logger.Warn("transport unsubscribe failed", "topic", s.topic, "error", err)
		}
	}
}
