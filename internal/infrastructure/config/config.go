package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported bridge transports.
const (
	TransportROSBridge = "rosbridge"
	TransportMQTT      = "mqtt"
)

// defaultBridgePort is the rosbridge_server WebSocket port.
const defaultBridgePort = 9090

// Config is the root configuration structure for Trailobot Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Robot     RobotConfig     `yaml:"robot"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Teleop    TeleopConfig    `yaml:"teleop"`
	Database  DatabaseConfig  `yaml:"database"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// RobotConfig identifies the robot this service fronts.
type RobotConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// BridgeConfig describes the publish/subscribe bridge the session connects to.
type BridgeConfig struct {
	// Transport selects the wire protocol: "rosbridge" (default) or "mqtt".
	Transport string `yaml:"transport"`

	// URL is the full endpoint. When empty it is derived from Host and Port
	// as ws://<host>:<port>.
	URL string `yaml:"url"`

	// Host defaults to the machine hostname.
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// ReconnectDelay is the fixed delay between reconnect attempts (milliseconds).
	ReconnectDelay int `yaml:"reconnect_delay_ms"`

	// MaxMessageSize caps inbound rosbridge frames (bytes).
	MaxMessageSize int `yaml:"max_message_size"`
}

// MQTTConfig contains MQTT broker connection settings, used when
// bridge.transport is "mqtt".
type MQTTConfig struct {
	Broker      MQTTBrokerConfig `yaml:"broker"`
	Auth        MQTTAuthConfig   `yaml:"auth"`
	QoS         int              `yaml:"qos"`
	TopicPrefix string           `yaml:"topic_prefix"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// TeleopConfig contains manual-control settings.
type TeleopConfig struct {
	// RateHz is the velocity publish rate while manual mode is on.
	RateHz int `yaml:"rate_hz"`

	// MaxLinear is the absolute linear velocity limit (m/s).
	MaxLinear float64 `yaml:"max_linear"`

	// MaxAngular is the absolute angular velocity limit (rad/s).
	MaxAngular float64 `yaml:"max_angular"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
	PanelDir string           `yaml:"panel_dir"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains dashboard WebSocket settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains bearer token settings. When Secret is empty, command
// routes are open (bench and lab use).
type JWTConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: TRAILOBOT_SECTION_KEY
// For example: TRAILOBOT_BRIDGE_URL, TRAILOBOT_DATABASE_PATH
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration with environment overrides
// applied. Used when no config file is present.
func Default() (*Config, error) {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Robot: RobotConfig{
			ID:   "trailobot-01",
			Name: "Trailobot",
		},
		Bridge: BridgeConfig{
			Transport:      TransportROSBridge,
			Host:           defaultHost(),
			Port:           defaultBridgePort,
			ReconnectDelay: 3000,
			MaxMessageSize: 1 << 20,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "trailobot-core",
			},
			QoS:         0,
			TopicPrefix: "trailobot",
		},
		Teleop: TeleopConfig{
			RateHz:     10,
			MaxLinear:  1.0,
			MaxAngular: 1.5,
		},
		Database: DatabaseConfig{
			Path:        "./data/trailobot.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			Bucket:        "trailobot",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{Issuer: "trailobot"},
		},
	}
}

// defaultHost mirrors a browser dashboard deriving the bridge from the page's
// own host: the service assumes rosbridge runs on the same machine.
func defaultHost() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return "localhost"
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: TRAILOBOT_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Bridge
	if v := os.Getenv("TRAILOBOT_BRIDGE_URL"); v != "" {
		cfg.Bridge.URL = v
	}
	if v := os.Getenv("TRAILOBOT_BRIDGE_HOST"); v != "" {
		cfg.Bridge.Host = v
	}
	if v := os.Getenv("TRAILOBOT_BRIDGE_TRANSPORT"); v != "" {
		cfg.Bridge.Transport = v
	}
	if v := os.Getenv("TRAILOBOT_BRIDGE_RECONNECT_DELAY_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Bridge.ReconnectDelay = ms
		}
	}

	// MQTT
	if v := os.Getenv("TRAILOBOT_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("TRAILOBOT_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("TRAILOBOT_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Database
	if v := os.Getenv("TRAILOBOT_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// API
	if v := os.Getenv("TRAILOBOT_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("TRAILOBOT_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security
	if v := os.Getenv("TRAILOBOT_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Robot.ID == "" {
		errs = append(errs, "robot.id is required")
	}

	switch c.Bridge.Transport {
	case TransportROSBridge, TransportMQTT:
	default:
		errs = append(errs, fmt.Sprintf("bridge.transport must be %q or %q", TransportROSBridge, TransportMQTT))
	}
	if c.Bridge.URL == "" && c.Bridge.Host == "" {
		errs = append(errs, "bridge.url or bridge.host is required")
	}
	if c.Bridge.URL == "" && (c.Bridge.Port < 1 || c.Bridge.Port > 65535) {
		errs = append(errs, "bridge.port must be between 1 and 65535")
	}
	if c.Bridge.ReconnectDelay <= 0 {
		errs = append(errs, "bridge.reconnect_delay_ms must be positive")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.Teleop.RateHz < 1 {
		errs = append(errs, "teleop.rate_hz must be at least 1")
	}
	if c.Teleop.MaxLinear <= 0 || c.Teleop.MaxAngular <= 0 {
		errs = append(errs, "teleop.max_linear and teleop.max_angular must be positive")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	// An empty secret leaves command routes unauthenticated; a short one is a mistake.
	const minJWTSecretLength = 32
	if s := c.Security.JWT.Secret; s != "" && len(s) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Endpoint returns the bridge endpoint URL. An explicit URL wins; otherwise
// it is ws://<host>:<port>.
func (b BridgeConfig) Endpoint() string {
	if b.URL != "" {
		return b.URL
	}
	return "ws://" + net.JoinHostPort(b.Host, strconv.Itoa(b.Port))
}

// URL returns the broker URL: tcp://host:port, or ssl:// with TLS.
func (b MQTTBrokerConfig) URL() string {
	scheme := "tcp"
	if b.TLS {
		scheme = "ssl"
	}
	return scheme + "://" + net.JoinHostPort(b.Host, strconv.Itoa(b.Port))
}

// SessionEndpoint returns the endpoint the session opens for the
// configured transport. With bridge.transport "mqtt" an explicit bridge.url
// still wins over the broker settings.
func (c *Config) SessionEndpoint() string {
	if c.Bridge.Transport == TransportMQTT && c.Bridge.URL == "" {
		return c.MQTT.Broker.URL()
	}
	return c.Bridge.Endpoint()
}

// GetReconnectDelay returns the bridge reconnect delay as a Duration.
func (b BridgeConfig) GetReconnectDelay() time.Duration {
	return time.Duration(b.ReconnectDelay) * time.Millisecond
}

// GetPublishInterval returns the teleop publish period as a Duration.
func (t TeleopConfig) GetPublishInterval() time.Duration {
	if t.RateHz < 1 {
		return 100 * time.Millisecond
	}
	return time.Second / time.Duration(t.RateHz)
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
