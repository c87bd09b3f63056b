package teleop

import (
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/nerrad567/trailobot-core/internal/infrastructure/config"
	"github.com/nerrad567/trailobot-core/internal/messages"
	"github.com/nerrad567/trailobot-core/internal/session"
)

// Session supplies the connection velocity commands go out on.
type Session interface {
	Current() *session.Connection
}

// Logger is the logging surface the controller needs.
type Logger interface {
	Info(msg string, args ...any)
	Debug(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Debug(string, ...any) {}

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the clock driving the publish ticker.
func WithClock(c clock.Clock) Option {
	return func(ctl *Controller) {
		if c != nil {
			ctl.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(ctl *Controller) {
		if l != nil {
			ctl.logger = l
		}
	}
}

// Status describes the controller for the API.
type Status struct {
	Enabled    bool    `json:"enabled"`
	Linear     float64 `json:"linear"`
	Angular    float64 `json:"angular"`
	MaxLinear  float64 `json:"max_linear"`
	MaxAngular float64 `json:"max_angular"`
	RateHz     int     `json:"rate_hz"`
	// Ticks counts ticker firings, Sent the publishes that reached the bridge.
	Ticks uint64 `json:"ticks"`
	Sent  uint64 `json:"sent"`
}

// Controller publishes the current velocity once per tick while enabled.
type Controller struct {
	sess       Session
	clock      clock.Clock
	logger     Logger
	interval   time.Duration
	rateHz     int
	maxLinear  float64
	maxAngular float64

	// opMu serializes Enable and Disable.
	opMu sync.Mutex

	mu      sync.Mutex
	enabled bool
	linear  float64
	angular float64
	ticks   uint64
	sent    uint64
	stop    chan struct{}
	done    chan struct{}
}

// NewController creates a disabled Controller.
func NewController(sess Session, cfg config.TeleopConfig, opts ...Option) *Controller {
	ctl := &Controller{
		sess:       sess,
		clock:      clock.New(),
		logger:     noopLogger{},
		interval:   cfg.GetPublishInterval(),
		rateHz:     cfg.RateHz,
		maxLinear:  math.Abs(cfg.MaxLinear),
		maxAngular: math.Abs(cfg.MaxAngular),
	}
	for _, opt := range opts {
		opt(ctl)
	}
	return ctl
}

// SetVelocity sets the commanded velocity, clamped to the configured
// limits, and returns the values actually stored. It takes effect on the
// next tick.
func (ctl *Controller) SetVelocity(linear, angular float64) (float64, float64) {
	linear = clamp(linear, ctl.maxLinear)
	angular = clamp(angular, ctl.maxAngular)

	ctl.mu.Lock()
	ctl.linear, ctl.angular = linear, angular
	ctl.mu.Unlock()
	return linear, angular
}

// Enable starts the publish ticker. It is a no-op when already enabled.
func (ctl *Controller) Enable() {
	ctl.opMu.Lock()
	defer ctl.opMu.Unlock()

	ctl.mu.Lock()
	if ctl.enabled {
		ctl.mu.Unlock()
		return
	}
	ctl.enabled = true
	ctl.stop = make(chan struct{})
	ctl.done = make(chan struct{})
	ticker := ctl.clock.Ticker(ctl.interval)
	go ctl.loop(ticker, ctl.stop, ctl.done)
	ctl.mu.Unlock()

	ctl.logger.Info("manual control enabled", "interval", ctl.interval.String())
}

// Disable stops the ticker and sends one zero velocity so the robot halts.
// It is a no-op when already disabled.
func (ctl *Controller) Disable() {
	ctl.opMu.Lock()
	defer ctl.opMu.Unlock()

	ctl.mu.Lock()
	if !ctl.enabled {
		ctl.mu.Unlock()
		return
	}
	ctl.enabled = false
	stop, done := ctl.stop, ctl.done
	ctl.mu.Unlock()

	close(stop)
	<-done

	sent := session.Publish(ctl.sess.Current(), messages.CmdVelTopic, messages.NewTwist(0, 0))
	ctl.logger.Info("manual control disabled", "stop_sent", sent)
}

// Enabled reports whether manual mode is on.
func (ctl *Controller) Enabled() bool {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	return ctl.enabled
}

// Status returns a snapshot of the controller.
func (ctl *Controller) Status() Status {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	return Status{
		Enabled:    ctl.enabled,
		Linear:     ctl.linear,
		Angular:    ctl.angular,
		MaxLinear:  ctl.maxLinear,
		MaxAngular: ctl.maxAngular,
		RateHz:     ctl.rateHz,
		Ticks:      ctl.ticks,
		Sent:       ctl.sent,
	}
}

// Close disables the controller.
func (ctl *Controller) Close() {
	ctl.Disable()
}

func (ctl *Controller) loop(ticker *clock.Ticker, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			select {
			case <-stop:
				return
			default:
			}
			ctl.tick()
		}
	}
}

// tick publishes the current velocity once.
func (ctl *Controller) tick() {
	ctl.mu.Lock()
	twist := messages.NewTwist(ctl.linear, ctl.angular)
	ctl.ticks++
	ctl.mu.Unlock()

	sent := session.Publish(ctl.sess.Current(), messages.CmdVelTopic, twist)

	ctl.mu.Lock()
	if sent {
		ctl.sent++
	}
	ctl.mu.Unlock()
	if !sent {
		ctl.logger.Debug("velocity dropped, bridge not connected")
	}
}

func clamp(v, limit float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(-limit, math.Min(limit, v))
}
