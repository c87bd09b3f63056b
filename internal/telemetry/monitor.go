package telemetry

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/nerrad567/trailobot-core/internal/messages"
	"github.com/nerrad567/trailobot-core/internal/session"
)

// ChatterWindow is the number of chatter samples kept.
const ChatterWindow = 10

// DefaultNavStatus is reported until the first /nav2_status message.
const DefaultNavStatus = "Idle"

// Broadcast channels.
const (
	ChannelChatter   = "telemetry.chatter"
	ChannelWeight    = "telemetry.weight"
	ChannelPose      = "telemetry.pose"
	ChannelNavStatus = "telemetry.nav_status"
)

// Recorder persists telemetry samples. influxdb.Client implements it.
type Recorder interface {
	RecordWeight(kg float64, at time.Time)
	RecordPose(x, y, heading float64, at time.Time)
	RecordNavStatus(status string, at time.Time)
	RecordChatterLength(length int, at time.Time)
}

// Broadcaster fans updates out to dashboard clients.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// Logger is the logging surface the Monitor needs.
type Logger interface {
	Debug(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}

// ChatterSample is one chatter message with its arrival time.
type ChatterSample struct {
	At     time.Time `json:"at"`
	Data   string    `json:"data"`
	Length int       `json:"length"`
}

// Snapshot is a copy of the current telemetry.
type Snapshot struct {
	Chatter   []ChatterSample `json:"chatter"`
	Weight    float32         `json:"weight"`
	Pose      messages.Pose2D `json:"pose"`
	NavStatus string          `json:"nav_status"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithRecorder records every update.
func WithRecorder(r Recorder) Option {
	return func(m *Monitor) { m.recorder = r }
}

// WithBroadcaster broadcasts every update.
func WithBroadcaster(b Broadcaster) Option {
	return func(m *Monitor) { m.broadcaster = b }
}

// WithClock sets the clock used to timestamp samples.
func WithClock(c clock.Clock) Option {
	return func(m *Monitor) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}

// Monitor holds the latest telemetry values.
type Monitor struct {
	recorder    Recorder
	broadcaster Broadcaster
	clock       clock.Clock
	logger      Logger

	mu        sync.RWMutex
	chatter   []ChatterSample
	weight    float32
	pose      messages.Pose2D
	navStatus string
	updatedAt time.Time

	subMu sync.Mutex
	subs  []*session.Subscription
}

// NewMonitor creates a Monitor with default values.
func NewMonitor(opts ...Option) *Monitor {
	m := &Monitor{
		clock:     clock.New(),
		logger:    noopLogger{},
		navStatus: DefaultNavStatus,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Bind subscribes the Monitor on every Connected transition of sm. The
// returned func stops watching and releases current subscriptions.
func (m *Monitor) Bind(sm *session.Manager) (unbind func()) {
	cancel := sm.Watch(func(sc session.StateChange) {
		if sc.To == session.Connected {
			m.Attach(sc.Connection)
		}
	})
	if c := sm.Current(); c != nil && c.State() == session.Connected {
		m.Attach(c)
	}
	return func() {
		cancel()
		m.Detach()
	}
}

// Attach subscribes to the telemetry topics on c, replacing any earlier
// subscriptions.
func (m *Monitor) Attach(c *session.Connection) {
	subs := []*session.Subscription{
		session.Subscribe(c, messages.ChatterTopic, m.handleChatter),
		session.Subscribe(c, messages.WeightTopic, m.handleWeight),
		session.Subscribe(c, messages.AMCLPoseTopic, m.handlePose),
		session.Subscribe(c, messages.NavStatusTopic, m.handleNavStatus),
	}

	m.subMu.Lock()
	old := m.subs
	m.subs = subs
	m.subMu.Unlock()

	for _, s := range old {
		s.Unsubscribe()
	}
	m.logger.Debug("telemetry subscribed", "connection", c.ID())
}

// Detach releases the current subscriptions.
func (m *Monitor) Detach() {
	m.subMu.Lock()
	old := m.subs
	m.subs = nil
	m.subMu.Unlock()

	for _, s := range old {
		s.Unsubscribe()
	}
}

func (m *Monitor) handleChatter(msg messages.String) {
	sample := ChatterSample{At: m.clock.Now(), Data: msg.Data, Length: len(msg.Data)}

	m.mu.Lock()
	m.chatter = append(m.chatter, sample)
	if len(m.chatter) > ChatterWindow {
		m.chatter = append([]ChatterSample(nil), m.chatter[len(m.chatter)-ChatterWindow:]...)
	}
	m.updatedAt = sample.At
	m.mu.Unlock()

	if m.recorder != nil {
		m.recorder.RecordChatterLength(sample.Length, sample.At)
	}
	m.broadcast(ChannelChatter, sample)
}

func (m *Monitor) handleWeight(msg messages.Float32) {
	now := m.clock.Now()

	m.mu.Lock()
	m.weight = msg.Data
	m.updatedAt = now
	m.mu.Unlock()

	if m.recorder != nil {
		m.recorder.RecordWeight(float64(msg.Data), now)
	}
	m.broadcast(ChannelWeight, map[string]any{"weight": msg.Data})
}

func (m *Monitor) handlePose(msg messages.PoseWithCovarianceStamped) {
	now := m.clock.Now()
	pose := messages.DecodePose(msg).Rounded()

	m.mu.Lock()
	m.pose = pose
	m.updatedAt = now
	m.mu.Unlock()

	if m.recorder != nil {
		m.recorder.RecordPose(pose.X, pose.Y, pose.Heading, now)
	}
	m.broadcast(ChannelPose, pose)
}

func (m *Monitor) handleNavStatus(msg messages.String) {
	now := m.clock.Now()

	m.mu.Lock()
	m.navStatus = msg.Data
	m.updatedAt = now
	m.mu.Unlock()

	if m.recorder != nil {
		m.recorder.RecordNavStatus(msg.Data, now)
	}
	m.broadcast(ChannelNavStatus, map[string]any{"status": msg.Data})
}

func (m *Monitor) broadcast(channel string, payload any) {
	if m.broadcaster != nil {
		m.broadcaster.Broadcast(channel, payload)
	}
}

// Snapshot returns a copy of the current telemetry.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		Chatter:   append([]ChatterSample{}, m.chatter...),
		Weight:    m.weight,
		Pose:      m.pose,
		NavStatus: m.navStatus,
		UpdatedAt: m.updatedAt,
	}
}
