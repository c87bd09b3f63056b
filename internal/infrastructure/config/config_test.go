package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
robot:
  id: "trailobot-test"
bridge:
  transport: "rosbridge"
  host: "10.0.0.7"
  port: 9090
  reconnect_delay_ms: 1500
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
api:
  host: "127.0.0.1"
  port: 8080
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Robot.ID != "trailobot-test" {
		t.Errorf("Robot.ID = %q, want %q", cfg.Robot.ID, "trailobot-test")
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if got := cfg.Bridge.Endpoint(); got != "ws://10.0.0.7:9090" {
		t.Errorf("Bridge.Endpoint() = %q, want %q", got, "ws://10.0.0.7:9090")
	}
	if got := cfg.Bridge.GetReconnectDelay(); got != 1500*time.Millisecond {
		t.Errorf("Bridge.GetReconnectDelay() = %v, want 1.5s", got)
	}
	// Untouched sections keep their defaults.
	if cfg.Teleop.RateHz != 10 {
		t.Errorf("Teleop.RateHz = %d, want 10", cfg.Teleop.RateHz)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
robot:
  id: ""
bridge:
  transport: "carrier-pigeon"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	// Validate reports every problem, not just the first.
	for _, want := range []string{"robot.id", "bridge.transport"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config { return defaultConfig() }

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "missing robot ID", mutate: func(c *Config) { c.Robot.ID = "" }, wantErr: true},
		{name: "unknown transport", mutate: func(c *Config) { c.Bridge.Transport = "zmq" }, wantErr: true},
		{name: "mqtt transport", mutate: func(c *Config) { c.Bridge.Transport = TransportMQTT }},
		{name: "no host and no url", mutate: func(c *Config) { c.Bridge.Host = "" }, wantErr: true},
		{name: "explicit url without host", mutate: func(c *Config) {
			c.Bridge.Host = ""
			c.Bridge.URL = "ws://robot:9090"
		}},
		{name: "bridge port out of range", mutate: func(c *Config) { c.Bridge.Port = 70000 }, wantErr: true},
		{name: "zero reconnect delay", mutate: func(c *Config) { c.Bridge.ReconnectDelay = 0 }, wantErr: true},
		{name: "invalid QoS", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: true},
		{name: "zero teleop rate", mutate: func(c *Config) { c.Teleop.RateHz = 0 }, wantErr: true},
		{name: "negative velocity limit", mutate: func(c *Config) { c.Teleop.MaxLinear = -1 }, wantErr: true},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "invalid api port", mutate: func(c *Config) { c.API.Port = 0 }, wantErr: true},
		{name: "influx enabled without url", mutate: func(c *Config) { c.InfluxDB.Enabled = true }, wantErr: true},
		{name: "JWT secret too short", mutate: func(c *Config) { c.Security.JWT.Secret = "short" }, wantErr: true},
		{name: "JWT secret long enough", mutate: func(c *Config) {
			c.Security.JWT.Secret = "test-secret-key-at-least-32-chars!"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBridgeConfig_Endpoint(t *testing.T) {
	tests := []struct {
		name string
		cfg  BridgeConfig
		want string
	}{
		{name: "derived from host", cfg: BridgeConfig{Host: "robot.local", Port: 9090}, want: "ws://robot.local:9090"},
		{name: "explicit url wins", cfg: BridgeConfig{URL: "wss://bridge:443", Host: "ignored", Port: 9090}, want: "wss://bridge:443"},
		{name: "ipv6 host", cfg: BridgeConfig{Host: "::1", Port: 9090}, want: "ws://[::1]:9090"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Endpoint(); got != tt.want {
				t.Errorf("Endpoint() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTeleopConfig_GetPublishInterval(t *testing.T) {
	if got := (TeleopConfig{RateHz: 10}).GetPublishInterval(); got != 100*time.Millisecond {
		t.Errorf("GetPublishInterval() = %v, want 100ms", got)
	}
	if got := (TeleopConfig{RateHz: 0}).GetPublishInterval(); got != 100*time.Millisecond {
		t.Errorf("GetPublishInterval() with zero rate = %v, want 100ms fallback", got)
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("TRAILOBOT_BRIDGE_URL", "ws://192.168.1.20:9090")
	t.Setenv("TRAILOBOT_BRIDGE_HOST", "robot.lan")
	t.Setenv("TRAILOBOT_BRIDGE_TRANSPORT", "mqtt")
	t.Setenv("TRAILOBOT_BRIDGE_RECONNECT_DELAY_MS", "500")
	t.Setenv("TRAILOBOT_MQTT_HOST", "mqtt.example.com")
	t.Setenv("TRAILOBOT_MQTT_USERNAME", "testuser")
	t.Setenv("TRAILOBOT_MQTT_PASSWORD", "testpass")
	t.Setenv("TRAILOBOT_DATABASE_PATH", "/custom/path.db")
	t.Setenv("TRAILOBOT_API_HOST", "192.168.1.1")
	t.Setenv("TRAILOBOT_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("TRAILOBOT_JWT_SECRET", "jwt-secret")

	applyEnvOverrides(cfg)

	checks := []struct {
		field, got, want string
	}{
		{"Bridge.URL", cfg.Bridge.URL, "ws://192.168.1.20:9090"},
		{"Bridge.Host", cfg.Bridge.Host, "robot.lan"},
		{"Bridge.Transport", cfg.Bridge.Transport, "mqtt"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"Database.Path", cfg.Database.Path, "/custom/path.db"},
		{"API.Host", cfg.API.Host, "192.168.1.1"},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
		{"Security.JWT.Secret", cfg.Security.JWT.Secret, "jwt-secret"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.field, c.got, c.want)
		}
	}
	if cfg.Bridge.ReconnectDelay != 500 {
		t.Errorf("Bridge.ReconnectDelay = %d, want 500", cfg.Bridge.ReconnectDelay)
	}
}

func TestApplyEnvOverrides_BadReconnectDelayIgnored(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("TRAILOBOT_BRIDGE_RECONNECT_DELAY_MS", "soon")

	applyEnvOverrides(cfg)

	if cfg.Bridge.ReconnectDelay != 3000 {
		t.Errorf("Bridge.ReconnectDelay = %d, want default 3000", cfg.Bridge.ReconnectDelay)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Robot.ID == "" {
		t.Error("defaultConfig should have non-empty Robot.ID")
	}
	if cfg.Bridge.Port != 9090 {
		t.Errorf("defaultConfig Bridge.Port = %d, want 9090", cfg.Bridge.Port)
	}
	if cfg.Bridge.ReconnectDelay != 3000 {
		t.Errorf("defaultConfig Bridge.ReconnectDelay = %d, want 3000", cfg.Bridge.ReconnectDelay)
	}
	if !strings.HasPrefix(cfg.Bridge.Endpoint(), "ws://") {
		t.Errorf("defaultConfig endpoint %q should use ws://", cfg.Bridge.Endpoint())
	}
	if cfg.API.Port != 8080 {
		t.Errorf("defaultConfig API.Port = %d, want 8080", cfg.API.Port)
	}
}

func TestConfig_SessionEndpoint(t *testing.T) {
	cfg := defaultConfig()
	cfg.Bridge.Host = "robot"
	if got := cfg.SessionEndpoint(); got != "ws://robot:9090" {
		t.Errorf("rosbridge SessionEndpoint() = %q", got)
	}

	cfg.Bridge.Transport = TransportMQTT
	cfg.MQTT.Broker.Host = "broker"
	if got := cfg.SessionEndpoint(); got != "tcp://broker:1883" {
		t.Errorf("mqtt SessionEndpoint() = %q", got)
	}

	cfg.MQTT.Broker.TLS = true
	cfg.MQTT.Broker.Port = 8883
	if got := cfg.SessionEndpoint(); got != "ssl://broker:8883" {
		t.Errorf("mqtt TLS SessionEndpoint() = %q", got)
	}

	cfg.Bridge.URL = "tcp://override:1883"
	if got := cfg.SessionEndpoint(); got != "tcp://override:1883" {
		t.Errorf("explicit url SessionEndpoint() = %q", got)
	}
}
