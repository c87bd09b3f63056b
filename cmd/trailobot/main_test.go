package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/trailobot-core/internal/api"
	"github.com/nerrad567/trailobot-core/internal/infrastructure/config"
)

const testSecret = "test-secret-for-development-only-0123456789"

// writeConfig writes a config file into a temp dir and points
// TRAILOBOT_CONFIG at it.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("TRAILOBOT_CONFIG", path)
	return path
}

// freePort returns a TCP port that was free a moment ago.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

// TestRun_InvalidConfig verifies run fails with an explicit config path that does not exist.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("TRAILOBOT_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_ValidationFailure verifies run reports config validation errors.
func TestRun_ValidationFailure(t *testing.T) {
	writeConfig(t, `
robot:
  id: test-robot
bridge:
  transport: carrier-pigeon
database:
  path: ""
`)

	err := run(context.Background())
	if err == nil {
		t.Fatal("run() should fail validation")
	}
	for _, want := range []string{"bridge.transport", "database.path"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

// TestRun_StartsAndStops runs the service against an unreachable bridge and
// checks it shuts down cleanly when the context is cancelled.
func TestRun_StartsAndStops(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, `
robot:
  id: test-robot
bridge:
  url: "ws://127.0.0.1:1"
  reconnect_delay_ms: 50
database:
  path: "`+filepath.Join(dir, "trailobot.db")+`"
api:
  host: "127.0.0.1"
  port: `+strconv.Itoa(freePort(t))+`
logging:
  level: error
  format: text
  output: stderr
`)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run() did not return after cancellation")
	}

	if _, err := os.Stat(filepath.Join(dir, "trailobot.db")); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestLoadConfig_DefaultsWhenMissing(t *testing.T) {
	t.Setenv("TRAILOBOT_CONFIG", "")
	t.Chdir(t.TempDir())

	cfg, path, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if path != "(defaults)" {
		t.Errorf("path = %q, want (defaults)", path)
	}
	if cfg.Bridge.Transport != config.TransportROSBridge {
		t.Errorf("transport = %q, want %q", cfg.Bridge.Transport, config.TransportROSBridge)
	}
}

func TestRunToken(t *testing.T) {
	writeConfig(t, `
robot:
  id: test-robot
bridge:
  host: localhost
security:
  jwt:
    secret: "`+testSecret+`"
    issuer: trailobot
`)

	var out bytes.Buffer
	if err := runToken([]string{"-subject", "alice", "-ttl", "1h"}, &out); err != nil {
		t.Fatalf("runToken() error = %v", err)
	}

	cfg := config.JWTConfig{Secret: testSecret, Issuer: "trailobot"}
	claims, err := api.ParseToken(strings.TrimSpace(out.String()), cfg)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != "alice" {
		t.Errorf("subject = %q, want alice", claims.Subject)
	}
}
