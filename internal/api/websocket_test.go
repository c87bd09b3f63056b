package api

import (
	"testing"
	"time"

	"github.com/nerrad567/trailobot-core/internal/infrastructure/config"
)

func newTestClient(channels ...string) *wsClient {
	c := &wsClient{queue: make(chan []byte, 1), channels: make(map[string]struct{})}
	for _, ch := range channels {
		c.channels[ch] = struct{}{}
	}
	return c
}

func TestClientWants(t *testing.T) {
	tests := []struct {
		name    string
		subs    []string
		channel string
		want    bool
	}{
		{"exact", []string{"telemetry.weight"}, "telemetry.weight", true},
		{"other channel", []string{"telemetry.weight"}, "telemetry.pose", false},
		{"prefix pattern", []string{"telemetry.*"}, "telemetry.nav_status", true},
		{"pattern other family", []string{"telemetry.*"}, "session.state", false},
		{"catch all", []string{"*"}, "session.state", true},
		{"none", nil, "session.state", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := newTestClient(tt.subs...).wants(tt.channel); got != tt.want {
				t.Errorf("wants(%q) = %v, want %v", tt.channel, got, tt.want)
			}
		})
	}
}

func TestClientEnqueueAfterShutdown(t *testing.T) {
	c := newTestClient()

	c.enqueue([]byte("one"))
	c.enqueue([]byte("dropped, queue full"))
	c.shutdown()
	c.shutdown()
	c.enqueue([]byte("after shutdown"))

	var got []string
	for frame := range c.queue {
		got = append(got, string(frame))
	}
	if len(got) != 1 || got[0] != "one" {
		t.Errorf("queued frames = %q, want [one]", got)
	}
}

func TestTimingsFrom(t *testing.T) {
	def := timingsFrom(config.WebSocketConfig{})
	if def.ping != defaultPingInterval || def.pong != defaultPongTimeout || def.maxFrame != defaultMaxFrameSize {
		t.Errorf("defaults = %+v", def)
	}

	got := timingsFrom(config.WebSocketConfig{PingInterval: 5, PongTimeout: 2, MaxMessageSize: 1024})
	if got.ping != 5*time.Second || got.pong != 2*time.Second || got.maxFrame != 1024 {
		t.Errorf("timings = %+v", got)
	}
}
