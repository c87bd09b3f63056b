package commands

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/nerrad567/trailobot-core/internal/infrastructure/config"
	"github.com/nerrad567/trailobot-core/internal/infrastructure/database"
	"github.com/nerrad567/trailobot-core/internal/session"
	_ "github.com/nerrad567/trailobot-core/migrations"
)

type published struct {
	topic   string
	schema  string
	payload string
}

// stubLink records publishes.
type stubLink struct {
	ev session.Events

	mu  sync.Mutex
	out []published
}

func (l *stubLink) Start()                      {}
func (l *stubLink) Subscribe(_, _ string) error { return nil }
func (l *stubLink) Unsubscribe(string) error    { return nil }
func (l *stubLink) Close() error                { return nil }
func (l *stubLink) Publish(topic, schema string, payload []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = append(l.out, published{topic, schema, string(payload)})
	return nil
}

func (l *stubLink) sent() []published {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]published(nil), l.out...)
}

type stubDialer struct{ link *stubLink }

func (d *stubDialer) Dial(_ string, ev session.Events) session.Link {
	d.link = &stubLink{ev: ev}
	return d.link
}

func newSession(t *testing.T, connect bool) (*session.Manager, *stubDialer) {
	t.Helper()
	d := &stubDialer{}
	m := session.NewManager(d, session.WithClock(clock.NewMock()))
	m.Open("ws://robot:9090")
	if connect {
		d.link.ev.OnOpen()
	}
	t.Cleanup(m.Shutdown)
	return m, d
}

func newRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "goals.db"), BusyTimeout: 5})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() }) //nolint:errcheck // test cleanup
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func TestParsePosition(t *testing.T) {
	tests := []struct {
		in      string
		want    Position
		wantErr bool
	}{
		{in: "A1", want: Position{Row: "A", Column: 1}},
		{in: "B50", want: Position{Row: "B", Column: 50}},
		{in: " b12 ", want: Position{Row: "B", Column: 12}},
		{in: "C3", wantErr: true},
		{in: "A0", wantErr: true},
		{in: "A51", wantErr: true},
		{in: "A", wantErr: true},
		{in: "Ax", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePosition(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPosition) {
					t.Fatalf("ParsePosition(%q) error = %v, want ErrInvalidPosition", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePosition(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParsePosition(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestGrid(t *testing.T) {
	g := Grid()
	if g.FrontLabel != "Front" || g.BackLabel != "Back" {
		t.Errorf("labels = %q/%q", g.FrontLabel, g.BackLabel)
	}
	if len(g.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(g.Rows))
	}
	for i, row := range g.Rows {
		if len(row) != GridColumns {
			t.Fatalf("row %d has %d cells", i, len(row))
		}
		var spacers []int
		for _, c := range row {
			if c.SpacerAfter {
				spacers = append(spacers, c.Position.Column)
			}
		}
		if len(spacers) != 3 || spacers[0] != 10 || spacers[1] != 30 || spacers[2] != 40 {
			t.Errorf("row %d spacers = %v, want [10 30 40]", i, spacers)
		}
	}
	if g.Rows[1][6].Label != "B7" {
		t.Errorf("label = %q, want B7", g.Rows[1][6].Label)
	}
}

func TestService_Greet(t *testing.T) {
	m, d := newSession(t, true)
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 3, 1, 14, 5, 9, 0, time.UTC))
	svc := NewService(m, WithClock(mock))

	res := svc.Greet(context.Background())
	if !res.Sent || res.Message != "Hello from Trailobot at 14:05:09" {
		t.Fatalf("Greet() = %+v", res)
	}
	out := d.link.sent()
	if len(out) != 1 || out[0].topic != "/chatter" || out[0].schema != "std_msgs/String" {
		t.Fatalf("published = %+v", out)
	}
	var msg struct{ Data string }
	if err := json.Unmarshal([]byte(out[0].payload), &msg); err != nil || msg.Data != res.Message {
		t.Errorf("payload = %s", out[0].payload)
	}
}

func TestService_SendGoal(t *testing.T) {
	m, d := newSession(t, true)
	repo := newRepo(t)
	svc := NewService(m, WithRepository(repo))
	ctx := context.Background()

	res, err := svc.SendGoal(ctx, Position{Row: "A", Column: 12}, "api")
	if err != nil {
		t.Fatalf("SendGoal() error = %v", err)
	}
	if !res.Sent || res.Event == nil || res.Event.Position != "A12" {
		t.Fatalf("SendGoal() = %+v", res)
	}
	out := d.link.sent()
	if len(out) != 1 || out[0].topic != "/web_goal" || out[0].payload != `{"data":"A12"}` {
		t.Fatalf("published = %+v", out)
	}

	got, err := svc.Event(ctx, res.Event.ID)
	if err != nil {
		t.Fatalf("Event() error = %v", err)
	}
	if got.Kind != KindGoal || !got.Sent || got.Source != "api" {
		t.Errorf("stored event = %+v", got)
	}

	if _, err := svc.SendGoal(ctx, Position{Row: "C", Column: 1}, "api"); !errors.Is(err, ErrInvalidPosition) {
		t.Errorf("invalid goal error = %v", err)
	}
	if len(d.link.sent()) != 1 {
		t.Error("invalid goal must not publish")
	}
}

func TestService_EventWithoutRepository(t *testing.T) {
	m, _ := newSession(t, true)
	svc := NewService(m)

	if _, err := svc.Event(context.Background(), "goal-1234abcd"); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("Event() error = %v, want ErrEventNotFound", err)
	}
}

func TestService_DroppedWhenDisconnected(t *testing.T) {
	m, d := newSession(t, false)
	repo := newRepo(t)
	svc := NewService(m, WithRepository(repo))
	ctx := context.Background()

	res, err := svc.SendGoal(ctx, Position{Row: "B", Column: 3}, "panel")
	if err != nil {
		t.Fatalf("SendGoal() error = %v", err)
	}
	if res.Sent {
		t.Error("goal reported sent while connecting")
	}
	if c := svc.Cancel(ctx, "panel"); c.Sent {
		t.Error("cancel reported sent while connecting")
	}
	if svc.Greet(ctx).Sent {
		t.Error("greeting reported sent while connecting")
	}
	if n := len(d.link.sent()); n != 0 {
		t.Errorf("transport publishes = %d, want 0", n)
	}

	page, err := svc.History(ctx, Filter{})
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if page.Total != 2 {
		t.Fatalf("Total = %d, want 2", page.Total)
	}
	for _, ev := range page.Events {
		if ev.Sent {
			t.Errorf("event %+v recorded as sent", ev)
		}
	}
}

func TestService_Cancel(t *testing.T) {
	m, d := newSession(t, true)
	svc := NewService(m)

	if res := svc.Cancel(context.Background(), "api"); !res.Sent || res.Event != nil {
		t.Fatalf("Cancel() = %+v", res)
	}
	out := d.link.sent()
	if len(out) != 1 || out[0].topic != "/nav2_cancel" || out[0].schema != "std_msgs/Empty" || out[0].payload != "{}" {
		t.Fatalf("published = %+v", out)
	}
}

func TestRepository_List(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, kind := range []string{KindGoal, KindCancel, KindGoal, KindGoal} {
		ev := &GoalEvent{Kind: kind, Position: "A1", Sent: true, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if kind == KindCancel {
			ev.Position = ""
		}
		if err := repo.Create(ctx, ev); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	tests := []struct {
		name      string
		filter    Filter
		wantTotal int
		wantLen   int
	}{
		{"all", Filter{}, 4, 4},
		{"goals only", Filter{Kind: KindGoal}, 3, 3},
		{"paged", Filter{Limit: 2, Offset: 1}, 4, 2},
		{"clamped limit", Filter{Limit: 1000}, 4, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if page.Total != tt.wantTotal || len(page.Events) != tt.wantLen {
				t.Errorf("Total=%d len=%d, want %d/%d", page.Total, len(page.Events), tt.wantTotal, tt.wantLen)
			}
			if page.Limit > maxListLimit {
				t.Errorf("Limit = %d not clamped", page.Limit)
			}
		})
	}

	page, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if !page.Events[0].CreatedAt.Equal(base.Add(3 * time.Minute)) {
		t.Errorf("newest first: got %v", page.Events[0].CreatedAt)
	}

	if _, err := repo.Get(ctx, "goal-missing"); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("Get(missing) error = %v", err)
	}
}
