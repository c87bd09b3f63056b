package commands

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"

	"github.com/nerrad567/trailobot-core/internal/messages"
	"github.com/nerrad567/trailobot-core/internal/session"
)

// greetingFormat is the chatter greeting; %s is the local wall time.
const greetingFormat = "Hello from Trailobot at %s"

// Session supplies the connection commands are published on.
type Session interface {
	Current() *session.Connection
}

// Logger is the logging surface the service needs.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Result reports the outcome of a command.
type Result struct {
	// Sent is false when the bridge was not connected and the command was
	// dropped.
	Sent    bool       `json:"sent"`
	Message string     `json:"message,omitempty"`
	Event   *GoalEvent `json:"event,omitempty"`
}

// Option configures a Service.
type Option func(*Service)

// WithRepository records goals and cancels in repo.
func WithRepository(repo Repository) Option {
	return func(s *Service) { s.repo = repo }
}

// WithClock sets the clock used for greetings and event timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// Service publishes operator commands.
type Service struct {
	sess   Session
	repo   Repository
	clock  clock.Clock
	logger Logger
}

// NewService creates a Service publishing through sess.
func NewService(sess Session, opts ...Option) *Service {
	s := &Service{sess: sess, clock: clock.New(), logger: noopLogger{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Greet publishes the greeting on /chatter.
func (s *Service) Greet(_ context.Context) Result {
	text := fmt.Sprintf(greetingFormat, s.clock.Now().Format("15:04:05"))
	sent := session.Publish(s.sess.Current(), messages.ChatterTopic, messages.String{Data: text})
	return Result{Sent: sent, Message: text}
}

// SendGoal validates pos and publishes it on /web_goal.
func (s *Service) SendGoal(ctx context.Context, pos Position, source string) (Result, error) {
	if err := pos.Validate(); err != nil {
		return Result{}, err
	}
	target := pos.String()
	sent := session.Publish(s.sess.Current(), messages.GoalTopic, messages.String{Data: target})
	if sent {
		s.logger.Info("goal sent", "position", target, "source", source)
	} else {
		s.logger.Warn("goal dropped, bridge not connected", "position", target, "source", source)
	}
	return Result{Sent: sent, Message: target, Event: s.record(ctx, KindGoal, target, sent, source)}, nil
}

// Cancel publishes an empty message on /nav2_cancel.
func (s *Service) Cancel(ctx context.Context, source string) Result {
	sent := session.Publish(s.sess.Current(), messages.NavCancelTopic, messages.Empty{})
	if sent {
		s.logger.Info("navigation cancel sent", "source", source)
	} else {
		s.logger.Warn("navigation cancel dropped, bridge not connected", "source", source)
	}
	return Result{Sent: sent, Event: s.record(ctx, KindCancel, "", sent, source)}
}

// History lists recorded goal events. Without a repository it returns an
// empty page.
func (s *Service) History(ctx context.Context, filter Filter) (*ListResult, error) {
	if s.repo == nil {
		return &ListResult{Events: []GoalEvent{}, Limit: filter.Limit, Offset: filter.Offset}, nil
	}
	return s.repo.List(ctx, filter)
}

// Event returns one recorded goal or cancel event.
func (s *Service) Event(ctx context.Context, id string) (*GoalEvent, error) {
	if s.repo == nil {
		return nil, ErrEventNotFound
	}
	return s.repo.Get(ctx, id)
}

// record persists the event. Storage failures are logged; the command has
// already gone out.
func (s *Service) record(ctx context.Context, kind, position string, sent bool, source string) *GoalEvent {
	if s.repo == nil {
		return nil
	}
	ev := &GoalEvent{
		Kind:      kind,
		Position:  position,
		Sent:      sent,
		Source:    source,
		CreatedAt: s.clock.Now().UTC(),
	}
	if err := s.repo.Create(ctx, ev); err != nil {
		s.logger.Warn("recording goal event failed", "kind", kind, "error", err)
		return nil
	}
	return ev
}
