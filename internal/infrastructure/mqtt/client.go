package mqtt

import (
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/trailobot-core/internal/infrastructure/config"
	"github.com/nerrad567/trailobot-core/internal/session"
)

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Error(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Dialer creates MQTT links. It implements session.Dialer.
type Dialer struct {
	cfg    config.MQTTConfig
	topics Topics
	logger Logger

	// newClient builds the paho client; replaced in tests.
	newClient func(*pahomqtt.ClientOptions) pahomqtt.Client
}

// NewDialer creates a Dialer. A nil logger discards output.
func NewDialer(cfg config.MQTTConfig, logger Logger) *Dialer {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Dialer{
		cfg:       cfg,
		topics:    Topics{Prefix: cfg.TopicPrefix},
		logger:    logger,
		newClient: pahomqtt.NewClient,
	}
}

// Topics returns the dialer's topic mapping.
func (d *Dialer) Topics() Topics { return d.topics }

// Dial prepares a link with its own paho client. Nothing happens on the
// network until Start.
func (d *Dialer) Dial(endpoint string, ev session.Events) session.Link {
	id := clientID(d.cfg)
	l := &Client{
		d:        d,
		endpoint: endpoint,
		id:       id,
		ev:       ev,
		qos:      byte(d.cfg.QoS),
	}

	opts := buildClientOptions(d.cfg, endpoint, id)
	configureLWT(opts, d.topics, id)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		l.handleLost(err)
	})
	l.client = d.newClient(opts)
	return l
}

// Client is one MQTT connection attempt, owned by a session Connection.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Subscriptions are not restored; a lost connection ends the link.
type Client struct {
	d        *Dialer
	client   pahomqtt.Client
	endpoint string
	id       string
	ev       session.Events
	qos      byte

	mu        sync.Mutex
	connected bool
	closed    bool

	// done ensures at most one of OnError/OnClose is reported.
	done sync.Once
}

// Start connects in the background.
func (c *Client) Start() {
	go c.connect()
}

func (c *Client) connect() {
	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		c.report(func() {
			c.emitError(fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout))
		})
		return
	}
	if err := token.Error(); err != nil {
		c.report(func() { c.emitError(fmt.Errorf("%w: %w", ErrConnectionFailed, err)) })
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.client.Disconnect(defaultDisconnectQuiesce)
		return
	}
	c.connected = true
	c.mu.Unlock()

	c.publishStatus(buildOnlinePayload(c.id))
	if c.ev.OnOpen != nil {
		c.ev.OnOpen()
	}
}

// handleLost is paho's connection-lost callback.
func (c *Client) handleLost(err error) {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	c.report(func() {
		if c.ev.OnClose != nil {
			c.ev.OnClose(err)
		}
	})
}

// report emits a terminal event once, unless the link was closed by its
// owner.
func (c *Client) report(emit func()) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}
	c.done.Do(emit)
}

func (c *Client) emitError(err error) {
	if c.ev.OnError != nil {
		c.ev.OnError(err)
	}
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected && !c.closed && c.client.IsConnected()
}

// publishStatus publishes the retained core status, best effort.
func (c *Client) publishStatus(payload string) {
	token := c.client.Publish(c.d.topics.Status(), 1, true, payload)
	if !token.WaitTimeout(defaultOpTimeout) || token.Error() != nil {
		c.d.logger.Warn("mqtt status publish failed", "client_id", c.id, "error", token.Error())
	}
}

// Close publishes the graceful offline status and disconnects. Safe to
// call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	wasConnected := c.connected
	c.closed = true
	c.connected = false
	c.mu.Unlock()

	if wasConnected && c.client.IsConnected() {
		c.publishStatus(buildOfflinePayload(c.id))
	}
	c.client.Disconnect(defaultDisconnectQuiesce)
	return nil
}

// wrapHandler adapts inbound paho messages to session OnMessage calls,
// unwrapping the envelope and recovering from handler panics.
func (c *Client) wrapHandler() pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.d.logger.Error("MQTT handler panic recovered",
					"topic", msg.Topic(),
					"panic", r,
				)
			}
		}()

		rosTopic, ok := c.d.topics.FromMQTT(msg.Topic())
		if !ok {
			c.d.logger.Warn("MQTT message outside topic prefix dropped", "topic", msg.Topic())
			return
		}
		if c.ev.OnMessage != nil {
			c.ev.OnMessage(rosTopic, unwrap(msg.Payload()))
		}
	}
}
