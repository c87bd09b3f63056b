package session

import (
	"sync"
	"testing"
	"time"
)

// fakeDialer records every link it hands out.
type fakeDialer struct {
	mu    sync.Mutex
	links []*fakeLink
}

func (d *fakeDialer) Dial(endpoint string, ev Events) Link {
	d.mu.Lock()
	defer d.mu.Unlock()
	l := &fakeLink{endpoint: endpoint, ev: ev}
	d.links = append(d.links, l)
	return l
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.links)
}

func (d *fakeDialer) link(t *testing.T, i int) *fakeLink {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.links) {
		t.Fatalf("link %d not dialled (have %d)", i, len(d.links))
	}
	return d.links[i]
}

type published struct {
	topic, schema string
	payload       string
}

// fakeLink is a Link whose events are driven by the test.
type fakeLink struct {
	endpoint string
	ev       Events

	mu           sync.Mutex
	started      bool
	subscribed   []string
	unsubscribed []string
	published    []published
	closed       int
	publishErr   error

	// subscribeHook, if set, runs outside the lock and decides the result
	// of Subscribe.
	subscribeHook func(topic string) error
}

// linkSnapshot is a copy of a fakeLink's recorded calls.
type linkSnapshot struct {
	started      bool
	subscribed   []string
	unsubscribed []string
	published    []published
	closed       int
}

func (l *fakeLink) Start() {
	l.mu.Lock()
	l.started = true
	l.mu.Unlock()
}

func (l *fakeLink) Subscribe(topic, _ string) error {
	l.mu.Lock()
	l.subscribed = append(l.subscribed, topic)
	hook := l.subscribeHook
	l.mu.Unlock()
	if hook != nil {
		return hook(topic)
	}
	return nil
}

func (l *fakeLink) Unsubscribe(topic string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.unsubscribed = append(l.unsubscribed, topic)
	return nil
}

func (l *fakeLink) Publish(topic, schema string, payload []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.publishErr != nil {
		return l.publishErr
	}
	l.published = append(l.published, published{topic: topic, schema: schema, payload: string(payload)})
	return nil
}

func (l *fakeLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed++
	return nil
}

func (l *fakeLink) snapshot() linkSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return linkSnapshot{
		started:      l.started,
		subscribed:   append([]string(nil), l.subscribed...),
		unsubscribed: append([]string(nil), l.unsubscribed...),
		published:    append([]published(nil), l.published...),
		closed:       l.closed,
	}
}

// recorder collects state changes delivered to a watcher.
type recorder struct {
	mu      sync.Mutex
	changes []StateChange
}

func (r *recorder) watch(sc StateChange) {
	r.mu.Lock()
	r.changes = append(r.changes, sc)
	r.mu.Unlock()
}

func (r *recorder) all() []StateChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]StateChange(nil), r.changes...)
}

// waitFor polls cond until it holds or a second passes. Mock clock timers
// run their callbacks on separate goroutines.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
