package session

// Events are the callbacks a Link uses to report transport activity.
// A Link calls them from its own goroutine(s); OnMessage calls for a single
// topic must be made in delivery order.
type Events struct {
	OnOpen    func()
	OnError   func(err error)
	OnClose   func(err error)
	OnMessage func(topic string, payload []byte)
}

// Dialer creates transport links to a broker endpoint.
type Dialer interface {
	// Dial prepares a link to endpoint. It must neither block nor emit
	// events; the connection attempt begins when the Manager calls Start.
	Dial(endpoint string, ev Events) Link
}

// Link is one transport-level connection attempt.
type Link interface {
	// Start begins connecting in the background and returns immediately.
	Start()
	// Subscribe asks the broker for messages on topic with the given schema.
	Subscribe(topic, schema string) error
	// Unsubscribe stops delivery for topic.
	Unsubscribe(topic string) error
	// Publish sends one message. No acknowledgement is expected.
	Publish(topic, schema string, payload []byte) error
	// Close terminates the transport. It must be safe to call more than once.
	Close() error
}

// Logger is the logging surface the Manager needs.
// *logging.Logger and *slog.Logger both satisfy it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
