package rosbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/trailobot-core/internal/infrastructure/config"
	"github.com/nerrad567/trailobot-core/internal/session"
)

// Defaults applied when Options leaves a field zero.
const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultWriteTimeout     = 5 * time.Second
	defaultMaxMessageSize   = 1 << 20
)

// Logger is the logging surface a link needs.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Options tunes the WebSocket connection.
type Options struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	// MaxMessageSize caps inbound frames in bytes.
	MaxMessageSize int64
}

// OptionsFromConfig derives link options from the bridge configuration.
func OptionsFromConfig(cfg config.BridgeConfig) Options {
	return Options{MaxMessageSize: int64(cfg.MaxMessageSize)}
}

// Dialer creates rosbridge links. It implements session.Dialer.
type Dialer struct {
	opts   Options
	ws     *websocket.Dialer
	logger Logger
}

// NewDialer creates a Dialer. A nil logger discards output.
func NewDialer(opts Options, logger Logger) *Dialer {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = defaultHandshakeTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = defaultMaxMessageSize
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Dialer{
		opts: opts,
		ws: &websocket.Dialer{
			HandshakeTimeout: opts.HandshakeTimeout,
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
		},
		logger: logger,
	}
}

// Dial prepares a link to endpoint. Nothing happens on the network until
// Start.
func (d *Dialer) Dial(endpoint string, ev session.Events) session.Link {
	ctx, cancel := context.WithCancel(context.Background())
	return &link{
		d:          d,
		endpoint:   endpoint,
		ev:         ev,
		ctx:        ctx,
		cancel:     cancel,
		advertised: make(map[string]string),
	}
}

// link is one rosbridge WebSocket connection attempt.
type link struct {
	d        *Dialer
	endpoint string
	ev       session.Events
	ctx      context.Context
	cancel   context.CancelFunc

	mu         sync.Mutex
	conn       *websocket.Conn
	closed     bool
	advertised map[string]string

	// writeMu serialises frames; gorilla/websocket allows one writer.
	writeMu sync.Mutex

	// done ensures at most one of OnError/OnClose is reported.
	done sync.Once
}

// Start dials in the background.
func (l *link) Start() {
	go l.run()
}

func (l *link) run() {
	conn, resp, err := l.d.ws.DialContext(l.ctx, l.endpoint, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close() //nolint:errcheck // handshake response body
	}
	if err != nil {
		l.report(func() { l.emitError(fmt.Errorf("dialing %s: %w", l.endpoint, err)) })
		return
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		conn.Close() //nolint:errcheck // closed before the handshake finished
		return
	}
	conn.SetReadLimit(l.d.opts.MaxMessageSize)
	l.conn = conn
	l.mu.Unlock()

	l.d.logger.Debug("rosbridge socket open", "endpoint", l.endpoint)
	if l.ev.OnOpen != nil {
		l.ev.OnOpen()
	}
	l.readLoop(conn)
}

// readLoop delivers inbound frames until the socket fails.
func (l *link) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				l.report(func() { l.emitClose(nil) })
			} else {
				l.report(func() { l.emitClose(err) })
			}
			return
		}
		l.handleFrame(data)
	}
}

func (l *link) handleFrame(data []byte) {
	var op operation
	if err := json.Unmarshal(data, &op); err != nil {
		l.d.logger.Warn("rosbridge frame not JSON, dropped", "endpoint", l.endpoint, "error", err)
		return
	}

	switch op.Op {
	case opPublish:
		if op.Topic == "" || len(op.Msg) == 0 {
			l.d.logger.Warn("rosbridge publish without topic or msg, dropped", "endpoint", l.endpoint)
			return
		}
		if l.ev.OnMessage != nil {
			l.ev.OnMessage(op.Topic, op.Msg)
		}
	case opStatus:
		l.d.logger.Warn("rosbridge status",
			"level", op.Level,
			"id", op.ID,
			"msg", op.statusText(),
		)
	default:
		l.d.logger.Debug("rosbridge op ignored", "op", op.Op)
	}
}

// report emits a terminal event once, unless the link was closed by its
// owner.
func (l *link) report(emit func()) {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return
	}
	l.done.Do(emit)
}

func (l *link) emitError(err error) {
	if l.ev.OnError != nil {
		l.ev.OnError(err)
	}
}

func (l *link) emitClose(err error) {
	if l.ev.OnClose != nil {
		l.ev.OnClose(err)
	}
}

// Subscribe sends a subscribe operation.
func (l *link) Subscribe(topic, schema string) error {
	if topic == "" {
		return ErrEmptyTopic
	}
	return l.write(subscribeOp(topic, schema))
}

// Unsubscribe sends an unsubscribe operation.
func (l *link) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrEmptyTopic
	}
	return l.write(unsubscribeOp(topic))
}

// Publish advertises topic on first use, then sends one publish operation.
func (l *link) Publish(topic, schema string, payload []byte) error {
	if topic == "" {
		return ErrEmptyTopic
	}

	l.mu.Lock()
	_, advertised := l.advertised[topic]
	if !advertised {
		l.advertised[topic] = schema
	}
	l.mu.Unlock()

	if !advertised {
		if err := l.write(advertiseOp(topic, schema)); err != nil {
			l.mu.Lock()
			delete(l.advertised, topic)
			l.mu.Unlock()
			return fmt.Errorf("advertising %s: %w", topic, err)
		}
	}
	return l.write(publishOp(topic, payload))
}

// Close unadvertises published topics and closes the socket. Safe to call
// more than once.
func (l *link) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	conn := l.conn
	topics := make([]string, 0, len(l.advertised))
	for topic := range l.advertised {
		topics = append(topics, topic)
	}
	l.mu.Unlock()

	l.cancel()
	if conn == nil {
		return nil
	}

	for _, topic := range topics {
		_ = l.writeTo(conn, unadvertiseOp(topic)) //nolint:errcheck // best-effort on shutdown
	}
	l.writeMu.Lock()
	//nolint:errcheck // best-effort close frame
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(l.d.opts.WriteTimeout))
	l.writeMu.Unlock()

	if err := conn.Close(); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return fmt.Errorf("closing rosbridge socket: %w", err)
	}
	return nil
}

// write sends op on the open socket.
func (l *link) write(op operation) error {
	l.mu.Lock()
	conn, closed := l.conn, l.closed
	l.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if conn == nil {
		return ErrNotConnected
	}
	return l.writeTo(conn, op)
}

func (l *link) writeTo(conn *websocket.Conn, op operation) error {
	data, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("encoding %s op: %w", op.Op, err)
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	//nolint:errcheck // best-effort deadline; write error caught below
	conn.SetWriteDeadline(time.Now().Add(l.d.opts.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("writing %s op: %w", op.Op, err)
	}
	return nil
}
