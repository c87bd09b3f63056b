package session

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultReconnectDelay is the fixed wait between a drop and the next attempt.
const DefaultReconnectDelay = 3 * time.Second

// unknownHost is reported by Host when the endpoint has no usable host part.
const unknownHost = "Unknown"

// Option configures a Manager.
type Option func(*Manager)

// WithReconnectDelay overrides the fixed reconnect delay.
// Non-positive values are ignored.
func WithReconnectDelay(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.delay = d
		}
	}
}

// WithClock sets the clock used for the reconnect timer.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// Manager owns the session to one broker endpoint.
type Manager struct {
	dialer Dialer
	clock  clock.Clock
	delay  time.Duration
	logger Logger

	// mu guards everything below, including every Connection's state and
	// subscription registry.
	mu       sync.Mutex
	endpoint string
	current  *Connection
	retry    *clock.Timer
	// active is true between Open and Close/Shutdown; retries only run while set.
	active bool
	nextID uint64

	watchers  map[uint64]func(StateChange)
	nextWatch uint64

	// pending holds state changes not yet delivered to watchers.
	pending  []StateChange
	flushing bool
}

// NewManager creates a Manager that dials through dialer. Nothing connects
// until Open is called.
func NewManager(dialer Dialer, opts ...Option) *Manager {
	m := &Manager{
		dialer:   dialer,
		clock:    clock.New(),
		delay:    DefaultReconnectDelay,
		logger:   noopLogger{},
		watchers: make(map[uint64]func(StateChange)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open tears down the current Connection, if any, and starts connecting to
// endpoint. It returns immediately; progress is reported through Watch.
func (m *Manager) Open(endpoint string) *Connection {
	m.mu.Lock()
	old := m.teardownLocked(m.current, nil, true)
	m.stopRetryLocked()
	m.endpoint = endpoint
	m.active = true
	c, link := m.dialLocked()
	m.mu.Unlock()

	old.finish()
	m.flush()

	m.logger.Info("opening bridge session", "endpoint", endpoint, "connection", c.id)
	link.Start()
	return c
}

// Reconfigure points the session at a new endpoint. The previous Connection
// is torn down before the new one is created.
func (m *Manager) Reconfigure(endpoint string) *Connection {
	m.logger.Info("reconfiguring bridge endpoint", "endpoint", endpoint)
	return m.Open(endpoint)
}

// Close releases every Subscription bound to c, then terminates its
// transport. Closing the current Connection also cancels any pending
// reconnect. Closing an already-closed Connection is a no-op.
func (m *Manager) Close(c *Connection) {
	if c == nil || c.m != m {
		return
	}

	m.mu.Lock()
	if c == m.current {
		m.active = false
		m.stopRetryLocked()
	}
	if c.closed {
		m.mu.Unlock()
		return
	}
	td := m.teardownLocked(c, nil, true)
	m.mu.Unlock()

	td.finish()
	m.flush()
}

// Shutdown closes the current Connection and stops all retries.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	c := m.current
	m.active = false
	m.stopRetryLocked()
	m.mu.Unlock()

	if c != nil {
		m.Close(c)
	}
}

// Current returns the newest Connection, or nil before the first Open.
func (m *Manager) Current() *Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// State returns the state of the current Connection.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return Disconnected
	}
	return m.current.state
}

// IsConnected reports whether the current Connection is Connected.
func (m *Manager) IsConnected() bool {
	return m.State() == Connected
}

// Endpoint returns the configured broker endpoint.
func (m *Manager) Endpoint() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.endpoint
}

// Host returns the host part of the endpoint for display, or "Unknown".
func (m *Manager) Host() string {
	return hostOf(m.Endpoint())
}

// ReconnectDelay returns the fixed reconnect delay.
func (m *Manager) ReconnectDelay() time.Duration {
	return m.delay
}

// Watch registers fn for every state change of every Connection. Changes
// are delivered in order, outside the Manager's lock, so fn may subscribe
// or publish. The returned func removes the watcher.
func (m *Manager) Watch(fn func(StateChange)) (cancel func()) {
	if fn == nil {
		return func() {}
	}
	m.mu.Lock()
	id := m.nextWatch
	m.nextWatch++
	m.watchers[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.watchers, id)
			m.mu.Unlock()
		})
	}
}

// Publish sends payload on the current Connection. See Connection.Publish.
func (m *Manager) Publish(topic, schema string, payload any) bool {
	return m.Current().Publish(topic, schema, payload)
}

// dialLocked creates the next Connection and its Link, and moves it to
// Connecting. The caller must Start the returned link after unlocking.
func (m *Manager) dialLocked() (*Connection, Link) {
	m.nextID++
	c := &Connection{
		m:        m,
		id:       m.nextID,
		endpoint: m.endpoint,
		state:    Disconnected,
		topics:   make(map[string]*topicEntry),
	}
	c.link = m.dialer.Dial(c.endpoint, Events{
		OnOpen:    func() { m.handleOpen(c) },
		OnError:   func(err error) { m.handleDrop(c, "error", err) },
		OnClose:   func(err error) { m.handleDrop(c, "close", err) },
		OnMessage: func(topic string, payload []byte) { m.dispatch(c, topic, payload) },
	})
	m.current = c
	m.transitionLocked(c, Connecting, nil)
	return c, c.link
}

// handleOpen moves a Connecting connection to Connected. Opens from stale
// connections are ignored.
func (m *Manager) handleOpen(c *Connection) {
	m.mu.Lock()
	if c != m.current || c.closed || !m.transitionLocked(c, Connected, nil) {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.logger.Info("connected to bridge", "endpoint", c.endpoint, "connection", c.id)
	m.flush()
}

// handleDrop handles an error or close event from the transport. The first
// such event for a connection tears it down and schedules one reconnect;
// later ones are ignored.
func (m *Manager) handleDrop(c *Connection, kind string, err error) {
	m.mu.Lock()
	if c.state == Disconnected {
		m.mu.Unlock()
		return
	}
	td := m.teardownLocked(c, err, false)
	retrying := false
	if c == m.current && m.active {
		m.scheduleRetryLocked(c)
		retrying = true
	}
	m.mu.Unlock()

	m.logger.Warn("bridge connection lost",
		"event", kind,
		"endpoint", c.endpoint,
		"connection", c.id,
		"error", err,
		"retry_in", m.delay.String(),
		"retrying", retrying,
	)
	td.finish()
	m.flush()
}

// scheduleRetryLocked arms the single reconnect timer for dead connection c.
func (m *Manager) scheduleRetryLocked(c *Connection) {
	m.stopRetryLocked()
	m.retry = m.clock.AfterFunc(m.delay, func() { m.reconnect(c) })
}

// stopRetryLocked cancels a pending reconnect, if any.
func (m *Manager) stopRetryLocked() {
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
}

// reconnect replaces dead connection prev with a new attempt to the same
// endpoint. It does nothing when prev is no longer current or the session
// was closed in the meantime.
func (m *Manager) reconnect(prev *Connection) {
	m.mu.Lock()
	if !m.active || m.current != prev {
		m.mu.Unlock()
		return
	}
	m.retry = nil
	c, link := m.dialLocked()
	m.mu.Unlock()

	m.logger.Info("reconnecting to bridge", "endpoint", c.endpoint, "connection", c.id)
	m.flush()
	link.Start()
}

// transitionLocked moves c to state to, queueing a StateChange for watchers.
// It reports false when the move is not allowed.
func (m *Manager) transitionLocked(c *Connection, to State, err error) bool {
	if !canTransition(c.state, to) {
		return false
	}
	change := StateChange{
		Connection: c,
		From:       c.state,
		To:         to,
		Err:        err,
		At:         m.clock.Now(),
	}
	c.state = to
	m.pending = append(m.pending, change)
	return true
}

// teardown is the work left to do outside the lock after a connection was
// torn down.
type teardown struct {
	link   Link
	topics []string
}

// teardownLocked releases c's subscriptions and moves it to Disconnected.
// byCaller marks a Close/Open teardown, as opposed to a transport drop; only
// then are live topics unsubscribed before the link is closed. The link is
// returned for closing outside the lock.
func (m *Manager) teardownLocked(c *Connection, err error, byCaller bool) *teardown {
	if c == nil {
		return nil
	}
	wasConnected := c.state == Connected
	if byCaller {
		c.closed = true
	}

	var topics []string
	for topic, entry := range c.topics {
		for _, s := range entry.subs {
			s.active = false
		}
		if wasConnected && byCaller {
			topics = append(topics, topic)
		}
	}
	c.topics = make(map[string]*topicEntry)

	m.transitionLocked(c, Disconnected, err)
	return &teardown{link: c.link, topics: topics}
}

// finish unsubscribes released topics on a still-live transport, then
// closes it.
func (td *teardown) finish() {
	if td == nil || td.link == nil {
		return
	}
	for _, topic := range td.topics {
		_ = td.link.Unsubscribe(topic) //nolint:errcheck // link is closing
	}
	_ = td.link.Close() //nolint:errcheck // best-effort transport close
}

// flush delivers queued state changes to watchers in order. Only one
// goroutine flushes at a time; a nested or concurrent call leaves its
// changes for the active flusher.
func (m *Manager) flush() {
	m.mu.Lock()
	if m.flushing {
		m.mu.Unlock()
		return
	}
	m.flushing = true
	for len(m.pending) > 0 {
		batch := m.pending
		m.pending = nil
		watchers := make([]func(StateChange), 0, len(m.watchers))
		for _, w := range m.watchers {
			watchers = append(watchers, w)
		}
		m.mu.Unlock()

		for _, change := range batch {
			for _, w := range watchers {
				m.safeCall("state watcher", func() { w(change) })
			}
		}

		m.mu.Lock()
	}
	m.flushing = false
	m.mu.Unlock()
}

// safeCall runs fn, logging instead of propagating a panic.
func (m *Manager) safeCall(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("session callback panic recovered", "callback", what, "panic", fmt.Sprint(r))
		}
	}()
	fn()
}

// hostOf extracts the host from an endpoint URL.
func hostOf(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Hostname() == "" {
		return unknownHost
	}
	return u.Hostname()
}
