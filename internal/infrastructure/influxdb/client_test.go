package influxdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/trailobot-core/internal/infrastructure/config"
)

// fakeInflux answers pings and records line-protocol writes.
type fakeInflux struct {
	srv *httptest.Server

	mu     sync.Mutex
	writes []string
}

func newFakeInflux(t *testing.T) *fakeInflux {
	t.Helper()
	f := &fakeInflux{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/ping"):
			w.WriteHeader(http.StatusNoContent)
		case strings.HasSuffix(r.URL.Path, "/write"):
			body, _ := io.ReadAll(r.Body) //nolint:errcheck // test server
			f.mu.Lock()
			f.writes = append(f.writes, string(body))
			f.mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeInflux) body() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.writes, "")
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "trailobot-dev-token",
		Org:           "trailobot",
		Bucket:        "telemetry",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:8086")
	cfg.Enabled = false

	_, err := Connect(context.Background(), cfg, "bot")
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	f := newFakeInflux(t)
	url := f.srv.URL
	f.srv.Close()

	_, err := Connect(context.Background(), testConfig(url), "bot")
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestClient_RecordsTelemetry(t *testing.T) {
	f := newFakeInflux(t)

	c, err := Connect(context.Background(), testConfig(f.srv.URL), "trailobot-01")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c.Close()

	if err := c.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	at := time.Unix(1700000000, 0)
	c.RecordWeight(12.5, at)
	c.RecordPose(1.5, -2, 90, at)
	c.RecordNavStatus("Navigating", at)
	c.RecordChatterLength(27, at)
	c.Flush()

	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(f.body(), measurementChatter) {
		if time.Now().After(deadline) {
			t.Fatalf("points not written, server saw %q", f.body())
		}
		time.Sleep(10 * time.Millisecond)
	}

	body := f.body()
	for _, want := range []string{
		"robot_weight,robot_id=trailobot-01 kg=12.5",
		"robot_pose,robot_id=trailobot-01",
		`nav_status,robot_id=trailobot-01 status="Navigating"`,
		"chatter,robot_id=trailobot-01 length=27i",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("write body missing %q:\n%s", want, body)
		}
	}
}

func TestClient_CloseStopsWrites(t *testing.T) {
	f := newFakeInflux(t)

	c, err := Connect(context.Background(), testConfig(f.srv.URL), "bot")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() after Close error = %v, want ErrNotConnected", err)
	}

	// Must not panic on a closed write API.
	c.RecordWeight(1, time.Now())
	c.Flush()
}

func TestPosePoint(t *testing.T) {
	at := time.Unix(10, 0)
	p := posePoint(map[string]string{"robot_id": "bot"}, 1.25, -3.5, 45, at)

	if p.Name() != measurementPose {
		t.Errorf("Name() = %q, want %q", p.Name(), measurementPose)
	}
	if !p.Time().Equal(at) {
		t.Errorf("Time() = %v, want %v", p.Time(), at)
	}

	fields := make(map[string]string)
	for _, f := range p.FieldList() {
		fields[f.Key] = fmt.Sprint(f.Value)
	}
	want := map[string]string{"x": "1.25", "y": "-3.5", "heading_deg": "45"}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("field %s = %q, want %q", k, fields[k], v)
		}
	}

	tags := p.TagList()
	if len(tags) != 1 || tags[0].Key != "robot_id" || tags[0].Value != "bot" {
		t.Errorf("TagList() = %v", tags)
	}
}

