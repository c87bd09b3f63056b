package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/trailobot-core/internal/infrastructure/config"
	"github.com/nerrad567/trailobot-core/internal/infrastructure/logging"
)

// Frame types exchanged with dashboard clients.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

const (
	// clientQueueSize bounds frames waiting for a slow dashboard.
	clientQueueSize = 256

	defaultPingInterval = 30 * time.Second
	defaultPongTimeout  = 10 * time.Second
	defaultMaxFrameSize = 8192
)

// WSMessage is a frame to or from a dashboard client. Events carry the
// channel name, e.g. telemetry.weight or session.state, in EventType.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload of subscribe and unsubscribe frames.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// inboundFrame is a client frame with its payload left undecoded.
type inboundFrame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// ReplayFunc returns the latest payload for a channel so a new subscriber
// is not blank until the next update.
type ReplayFunc func(channel string) (payload any, ok bool)

// Hub fans telemetry and session events out to dashboard clients.
type Hub struct {
	timings wsTimings
	logger  *logging.Logger

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	replay  ReplayFunc
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the CORS middleware.
	CheckOrigin: func(*http.Request) bool { return true },
}

// NewHub creates a hub with no clients.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		timings: timingsFrom(cfg),
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}
}

// SetReplay installs fn to seed new subscribers.
func (h *Hub) SetReplay(fn ReplayFunc) {
	h.mu.Lock()
	h.replay = fn
	h.mu.Unlock()
}

func (h *Hub) latest(channel string) (any, bool) {
	h.mu.RLock()
	fn := h.replay
	h.mu.RUnlock()
	if fn == nil {
		return nil, false
	}
	return fn(channel)
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*wsClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.shutdown()
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues an event frame for every client subscribed to channel.
// Clients whose queue is full miss the frame.
func (h *Hub) Broadcast(channel string, payload any) {
	h.mu.RLock()
	targets := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		if c.wants(channel) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return
	}
	frame, err := eventFrame(channel, payload)
	if err != nil {
		h.logger.Error("encoding websocket event failed", "channel", channel, "error", err)
		return
	}
	for _, c := range targets {
		c.enqueue(frame)
	}
}

func (h *Hub) add(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("dashboard client connected", "clients", n)
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	c.shutdown()
	h.logger.Debug("dashboard client disconnected", "clients", n)
}

func eventFrame(channel string, payload any) ([]byte, error) {
	return json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
}

// handleWebSocket upgrades a dashboard connection. With auth enabled a
// ticket from POST /auth/ws-ticket is required.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.authEnabled() {
		ticket := r.URL.Query().Get("ticket")
		if ticket == "" {
			writeUnauthorized(w, "ticket query parameter is required")
			return
		}
		if !s.tickets.consume(ticket) {
			writeUnauthorized(w, "invalid or expired ticket")
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &wsClient{
		hub:      s.hub,
		conn:     conn,
		queue:    make(chan []byte, clientQueueSize),
		channels: make(map[string]struct{}),
	}
	s.hub.add(c)

	go c.writeLoop(s.hub.timings)
	go c.readLoop(s.hub.timings)
}

// wsTimings holds keepalive settings for one hub.
type wsTimings struct {
	ping     time.Duration
	pong     time.Duration
	maxFrame int64
}

// timingsFrom applies defaults to unset WebSocket settings.
func timingsFrom(cfg config.WebSocketConfig) wsTimings {
	t := wsTimings{ping: defaultPingInterval, pong: defaultPongTimeout, maxFrame: defaultMaxFrameSize}
	if cfg.PingInterval > 0 {
		t.ping = time.Duration(cfg.PingInterval) * time.Second
	}
	if cfg.PongTimeout > 0 {
		t.pong = time.Duration(cfg.PongTimeout) * time.Second
	}
	if cfg.MaxMessageSize > 0 {
		t.maxFrame = int64(cfg.MaxMessageSize)
	}
	return t
}

// readDeadline is how long a client may stay silent.
func (t wsTimings) readDeadline() time.Time {
	return time.Now().Add(t.ping + t.pong)
}

// wsClient is one dashboard connection.
type wsClient struct {
	hub  *Hub
	conn *websocket.Conn

	mu       sync.Mutex
	queue    chan []byte
	closed   bool
	channels map[string]struct{}
}

// enqueue offers frame to the write loop without blocking.
func (c *wsClient) enqueue(frame []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.queue <- frame:
	default:
	}
}

// shutdown stops the write loop. Safe to call more than once.
func (c *wsClient) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.queue)
}

// wants reports whether channel matches a subscription, either exactly or
// through a trailing-star pattern such as "telemetry.*".
func (c *wsClient) wants(channel string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.channels[channel]; ok {
		return true
	}
	for pattern := range c.channels {
		if prefix, ok := strings.CutSuffix(pattern, "*"); ok && strings.HasPrefix(channel, prefix) {
			return true
		}
	}
	return false
}

func (c *wsClient) readLoop(t wsTimings) {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(t.maxFrame)
	_ = c.conn.SetReadDeadline(t.readDeadline()) //nolint:errcheck // read below fails instead
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(t.readDeadline())
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		// Browsers may not answer protocol pings; any frame counts as alive.
		_ = c.conn.SetReadDeadline(t.readDeadline()) //nolint:errcheck // read fails instead
		c.handle(data)
	}
}

func (c *wsClient) writeLoop(t wsTimings) {
	ticker := time.NewTicker(t.ping)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		_ = c.conn.SetWriteDeadline(time.Now().Add(t.pong)) //nolint:errcheck // write fails instead
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case frame, ok := <-c.queue:
			if !ok {
				_ = write(websocket.CloseMessage, nil) //nolint:errcheck // closing anyway
				return
			}
			if err := write(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handle processes one client frame.
func (c *wsClient) handle(data []byte) {
	var in inboundFrame
	if err := json.Unmarshal(data, &in); err != nil {
		c.reply("", WSTypeError, errorBody("invalid JSON message"))
		return
	}

	switch in.Type {
	case WSTypeSubscribe:
		channels, ok := decodeChannels(in.Payload)
		if !ok {
			c.reply(in.ID, WSTypeError, errorBody("invalid subscribe payload"))
			return
		}
		c.subscribe(in.ID, channels)
	case WSTypeUnsubscribe:
		channels, ok := decodeChannels(in.Payload)
		if !ok {
			c.reply(in.ID, WSTypeError, errorBody("invalid unsubscribe payload"))
			return
		}
		c.mu.Lock()
		for _, ch := range channels {
			delete(c.channels, ch)
		}
		c.mu.Unlock()
		c.reply(in.ID, WSTypeResponse, map[string]any{"unsubscribed": channels})
	case WSTypePing:
		c.reply(in.ID, WSTypePong, nil)
	default:
		c.reply(in.ID, WSTypeError, errorBody("unknown message type: "+in.Type))
	}
}

// subscribe records channels, acknowledges them, then replays the latest
// value of each.
func (c *wsClient) subscribe(id string, channels []string) {
	c.mu.Lock()
	for _, ch := range channels {
		c.channels[ch] = struct{}{}
	}
	c.mu.Unlock()
	c.hub.logger.Debug("dashboard client subscribed", "channels", channels)

	c.reply(id, WSTypeResponse, map[string]any{"subscribed": channels})

	for _, ch := range channels {
		payload, ok := c.hub.latest(ch)
		if !ok {
			continue
		}
		if frame, err := eventFrame(ch, payload); err == nil {
			c.enqueue(frame)
		}
	}
}

func (c *wsClient) reply(id, kind string, payload any) {
	frame, err := json.Marshal(WSMessage{
		Type:      kind,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.enqueue(frame)
}

func errorBody(message string) map[string]string {
	return map[string]string{"message": message}
}

// decodeChannels reads the channel list of a subscribe or unsubscribe frame.
func decodeChannels(raw json.RawMessage) ([]string, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var p WSSubscribePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, false
	}
	return p.Channels, true
}
