package registry

import (
	"errors"
	"sync"
	"testing"
)

type fakeTransport struct {
	mu      sync.Mutex
	sent    []Envelope
	sendErr error
	closed  bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{}
}

func (f *fakeTransport) Send(envelope Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, envelope)
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeTransport) wasClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func TestConnectReplacesPriorConnection(t *testing.T) {
	reg := New()
	first := newFakeTransport()
	second := newFakeTransport()

	reg.Connect("user-1", first)
	reg.Connect("user-1", second)

	if !reg.Connected("user-1") {
		t.Fatal("expected user-1 connected")
	}
	if stats := reg.Stats(); stats.ActiveConnections != 1 {
		t.Fatalf("expected exactly one active connection, got %d", stats.ActiveConnections)
	}
	if !first.wasClosed() {
		t.Fatal("expected evicted transport to be closed")
	}
	if second.wasClosed() {
		t.Fatal("expected replacement transport to stay open")
	}

	// Sends addressed to the user must reach only the replacement.
	NewDispatcher(reg).SendTo("user-1", Envelope{Type: "ping"})
	if first.sentCount() != 0 {
		t.Fatalf("expected no sends to evicted transport, got %d", first.sentCount())
	}
	if second.sentCount() != 1 {
		t.Fatalf("expected one send to replacement transport, got %d", second.sentCount())
	}
}

func TestDisconnectPurgesSubscriptions(t *testing.T) {
	reg := New()
	reg.Connect("user-1", newFakeTransport())
	reg.Subscribe("user-1", []string{"p1", "p2"})

	reg.Disconnect("user-1")

	if reg.Connected("user-1") {
		t.Fatal("expected user-1 disconnected")
	}
	for _, projectID := range []string{"p1", "p2"} {
		for _, subscriber := range reg.SubscribersOf(projectID) {
			if subscriber == "user-1" {
				t.Fatalf("expected user-1 purged from %s subscribers", projectID)
			}
		}
	}
	if stats := reg.Stats(); stats.TotalSubscriptions != 0 || stats.SubscribedUsers != 0 {
		t.Fatalf("expected empty subscription index, got %+v", stats)
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	reg := New()
	reg.Disconnect("nobody")
	reg.Disconnect("nobody")
	if stats := reg.Stats(); stats.ActiveConnections != 0 {
		t.Fatalf("expected no connections, got %+v", stats)
	}
}

func TestSubscribeWithoutConnectionIsNoop(t *testing.T) {
	reg := New()
	reg.Subscribe("ghost", []string{"p1"})
	if subscribers := reg.SubscribersOf("p1"); len(subscribers) != 0 {
		t.Fatalf("expected no subscribers, got %v", subscribers)
	}
}

func TestSubscribersOfReturnsSnapshot(t *testing.T) {
	reg := New()
	reg.Connect("user-1", newFakeTransport())
	reg.Subscribe("user-1", []string{"p1"})

	snapshot := reg.SubscribersOf("p1")
	reg.Connect("user-2", newFakeTransport())
	reg.Subscribe("user-2", []string{"p1"})

	if len(snapshot) != 1 || snapshot[0] != "user-1" {
		t.Fatalf("expected stable snapshot, got %v", snapshot)
	}
	if now := reg.SubscribersOf("p1"); len(now) != 2 {
		t.Fatalf("expected 2 current subscribers, got %v", now)
	}
}

func TestSubscribersOfUnknownProjectIsEmpty(t *testing.T) {
	reg := New()
	if subscribers := reg.SubscribersOf("missing"); len(subscribers) != 0 {
		t.Fatalf("expected empty set, got %v", subscribers)
	}
}

func TestProjectsForTracksUserSubscriptions(t *testing.T) {
	reg := New()
	reg.Connect("user-1", newFakeTransport())
	reg.Subscribe("user-1", []string{"p2", "p1"})

	projects := reg.ProjectsFor("user-1")
	if len(projects) != 2 || projects[0] != "p1" || projects[1] != "p2" {
		t.Fatalf("expected sorted projects [p1 p2], got %v", projects)
	}
}

func TestReleaseTransportIgnoresStaleHandler(t *testing.T) {
	reg := New()
	stale := newFakeTransport()
	replacement := newFakeTransport()

	reg.Connect("user-1", stale)
	reg.Subscribe("user-1", []string{"p1"})
	reg.Connect("user-1", replacement)

	// The stale handler unwinds after eviction; the replacement must survive.
	reg.ReleaseTransport("user-1", stale)

	if !reg.Connected("user-1") {
		t.Fatal("expected replacement connection to remain registered")
	}
	if subscribers := reg.SubscribersOf("p1"); len(subscribers) != 1 {
		t.Fatalf("expected subscriptions kept, got %v", subscribers)
	}

	reg.ReleaseTransport("user-1", replacement)
	if reg.Connected("user-1") {
		t.Fatal("expected connection released")
	}
	if subscribers := reg.SubscribersOf("p1"); len(subscribers) != 0 {
		t.Fatalf("expected subscriptions purged, got %v", subscribers)
	}
}

func TestStatsCounters(t *testing.T) {
	reg := New()
	reg.Connect("user-1", newFakeTransport())
	reg.Connect("user-2", newFakeTransport())
	reg.Connect("user-3", newFakeTransport())
	reg.Subscribe("user-1", []string{"p1", "p2"})
	reg.Subscribe("user-2", []string{"p1"})

	stats := reg.Stats()
	if stats.ActiveConnections != 3 {
		t.Fatalf("expected 3 connections, got %d", stats.ActiveConnections)
	}
	if stats.SubscribedUsers != 2 {
		t.Fatalf("expected 2 subscribed users, got %d", stats.SubscribedUsers)
	}
	if stats.ProjectsWithSubscribers != 2 {
		t.Fatalf("expected 2 projects with subscribers, got %d", stats.ProjectsWithSubscribers)
	}
	if stats.TotalSubscriptions != 3 {
		t.Fatalf("expected 3 total subscriptions, got %d", stats.TotalSubscriptions)
	}
}

func TestConcurrentRegistryAccess(t *testing.T) {
	reg := New()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			userID := string(rune('a' + n))
			reg.Connect(userID, newFakeTransport())
			reg.Subscribe(userID, []string{"p1"})
			_ = reg.SubscribersOf("p1")
			_ = reg.Stats()
			reg.Disconnect(userID)
		}(i)
	}
	wg.Wait()

	if stats := reg.Stats(); stats.ActiveConnections != 0 || stats.TotalSubscriptions != 0 {
		t.Fatalf("expected empty registry after churn, got %+v", stats)
	}
}

var errSendFailed = errors.New("send failed")
