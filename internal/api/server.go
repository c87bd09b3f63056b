package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/nerrad567/trailobot-core/internal/commands"
	"github.com/nerrad567/trailobot-core/internal/infrastructure/config"
	"github.com/nerrad567/trailobot-core/internal/infrastructure/database"
	"github.com/nerrad567/trailobot-core/internal/infrastructure/logging"
	"github.com/nerrad567/trailobot-core/internal/session"
	"github.com/nerrad567/trailobot-core/internal/telemetry"
	"github.com/nerrad567/trailobot-core/internal/teleop"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// ChannelSessionState carries session state changes to WebSocket clients.
const ChannelSessionState = "session.state"

// HealthChecker is an optional dependency reported by /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Security  config.SecurityConfig
	Transport string // bridge transport; defaults to rosbridge
	Logger    *logging.Logger
	Session   *session.Manager
	Telemetry *telemetry.Monitor
	Commands  *commands.Service
	Teleop    *teleop.Controller
	DB        *database.DB  // optional
	Influx    HealthChecker // optional
	Hub       *Hub          // if set, used instead of creating one
	Version   string
}

// Server is the HTTP API server for Trailobot Core.
type Server struct {
	cfg       config.APIConfig
	secCfg    config.SecurityConfig
	transport string
	logger    *logging.Logger
	session   *session.Manager
	telemetry *telemetry.Monitor
	commands  *commands.Service
	teleop    *teleop.Controller
	db        *database.DB
	influx    HealthChecker
	hub       *Hub
	tickets   *ticketStore
	version   string
	startTime time.Time

	mu          sync.Mutex
	server      *http.Server
	addr        string
	cancel      context.CancelFunc
	unwatch     func()
	externalHub bool
}

// New creates a new API server. It is not started until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Session == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if deps.Telemetry == nil {
		return nil, fmt.Errorf("telemetry monitor is required")
	}
	if deps.Commands == nil {
		return nil, fmt.Errorf("command service is required")
	}
	if deps.Teleop == nil {
		return nil, fmt.Errorf("teleop controller is required")
	}

	s := &Server{
		cfg:       deps.Config,
		secCfg:    deps.Security,
		transport: deps.Transport,
		logger:    deps.Logger,
		session:   deps.Session,
		telemetry: deps.Telemetry,
		commands:  deps.Commands,
		teleop:    deps.Teleop,
		db:        deps.DB,
		influx:    deps.Influx,
		tickets:   newTicketStore(),
		version:   deps.Version,
		startTime: time.Now(),
	}
	if s.transport == "" {
		s.transport = config.TransportROSBridge
	}
	if deps.Hub != nil {
		s.hub = deps.Hub
		s.externalHub = true
	} else {
		s.hub = NewHub(deps.WS, deps.Logger)
	}
	s.hub.SetReplay(s.replay)
	return s, nil
}

// Hub returns the server's WebSocket hub, so telemetry can broadcast on it.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the router. Start serves it; tests use it directly.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start binds the listener and serves in the background. Session state
// changes are relayed to WebSocket clients until Close.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return fmt.Errorf("api server already started")
	}

	srvCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	if !s.externalHub {
		go s.hub.Run(srvCtx)
	}
	go s.tickets.cleanLoop(srvCtx)
	s.unwatch = s.session.Watch(s.relayStateChange)

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.unwatch()
		cancel()
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.addr = ln.Addr().String()

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	srv := s.server
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server listening", "address", s.addr)
	return nil
}

// Addr returns the bound listen address once started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Close gracefully shuts down the API server, waiting up to 10 seconds for
// in-flight requests.
func (s *Server) Close() error {
	s.mu.Lock()
	srv, cancel, unwatch := s.server, s.cancel, s.unwatch
	s.server, s.cancel, s.unwatch = nil, nil, nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	if unwatch != nil {
		unwatch()
	}
	if cancel != nil {
		cancel()
	}

	ctx, done := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer done()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}

// stateEvent is the session.state broadcast payload.
type stateEvent struct {
	Connection uint64 `json:"connection"`
	From       string `json:"from,omitempty"`
	To         string `json:"to"`
	Endpoint   string `json:"endpoint"`
	Error      string `json:"error,omitempty"`
	At         string `json:"at"`
}

func (s *Server) relayStateChange(sc session.StateChange) {
	ev := stateEvent{
		Connection: sc.Connection.ID(),
		From:       sc.From.String(),
		To:         sc.To.String(),
		Endpoint:   sc.Connection.Endpoint(),
		At:         sc.At.UTC().Format(time.RFC3339),
	}
	if sc.Err != nil {
		ev.Error = sc.Err.Error()
	}
	s.hub.Broadcast(ChannelSessionState, ev)
}
