package broadcast

import (
	"sync"
	"testing"
	"time"

	"github.com/ingen-audio/ingen/internal/ingen/event"
)

type recordingClient struct {
	id string
	mu sync.Mutex
	got []event.Notification
}

func (c *recordingClient) ID() string { return c.id }
func (c *recordingClient) Deliver(n event.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, n)
}
func (c *recordingClient) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.got)
}

func TestNotifyDeliversToRegisteredClient(t *testing.T) {
	b := New(Config{BufferSize: 16, Workers: 1})
	defer b.Shutdown(time.Second)

	c := &recordingClient{id: "client-1"}
	if err := b.AddClient(c); err != nil {
		t.Fatalf("AddClient: %v", err)
	}

	b.Notify(event.Notification{Kind: event.KindConnect})

	deadline := time.Now().Add(time.Second)
	for c.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if c.count() != 1 {
		t.Fatalf("expected 1 delivered notification, got %d", c.count())
	}
}

func TestDuplicateClientIDRejected(t *testing.T) {
	b := New(Config{BufferSize: 4, Workers: 1})
	defer b.Shutdown(time.Second)

	c1 := &recordingClient{id: "dup"}
	c2 := &recordingClient{id: "dup"}
	if err := b.AddClient(c1); err != nil {
		t.Fatalf("AddClient c1: %v", err)
	}
	if err := b.AddClient(c2); err == nil {
		t.Fatal("expected duplicate client ID to be rejected")
	}
}

func TestNotifyDropsWhenQueueFull(t *testing.T) {
	b := New(Config{BufferSize: 1, Workers: 0})
	// Workers: 0 means start() launches no goroutines, so the queue never
	// drains and the second Notify must be dropped.
	c := &recordingClient{id: "slow"}
	b.AddClient(c)

	b.Notify(event.Notification{Kind: event.KindGet})
	b.Notify(event.Notification{Kind: event.KindGet})

	stats := b.GetStats()
	if stats.Dropped == 0 {
		t.Fatal("expected at least one dropped notification")
	}
}
