package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(string, string, map[string]interface{}) {}
func (nopLogger) Info(string, string, map[string]interface{})  {}
func (nopLogger) Warn(string, string, map[string]interface{})  {}
func (nopLogger) Error(string, string, map[string]interface{}) {}
func (nopLogger) Sync() error                                  { return nil }

func newTestHub() *Hub {
	h := NewHub(nil, nopLogger{})
	go h.Run()
	return h
}

func (h *Hub) hasUser(userId string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userId]
	return ok
}

func attachClient(t *testing.T, h *Hub, userId string, buffer int) *Client {
	t.Helper()
	c := &Client{Hub: h, Send: make(chan []byte, buffer)}
	c.Attach(userId)
	require.Eventually(t, func() bool { return h.hasUser(userId) }, time.Second, 5*time.Millisecond)
	return c
}

func TestDeliverRetiresSlowClient(t *testing.T) {
	h := newTestHub()
	c := attachClient(t, h, "u1", 1)

	// Fill the buffer; the consumer is not draining.
	c.Send <- []byte(`{"type":"info"}`)

	c.Deliver(map[string]string{"type": "info", "message": "overflow"})

	require.Eventually(t, func() bool { return !h.hasUser("u1") }, time.Second, 5*time.Millisecond)

	// A retired client ignores further deliveries instead of panicking on
	// the closed channel.
	c.Deliver(map[string]string{"type": "info", "message": "late"})
}

func TestDeliverKeepsHealthyClient(t *testing.T) {
	h := newTestHub()
	c := attachClient(t, h, "u1", 4)

	c.Deliver(map[string]string{"type": "info", "message": "hello"})

	select {
	case raw := <-c.Send:
		assert.Contains(t, string(raw), "hello")
	case <-time.After(time.Second):
		t.Fatal("frame was not queued")
	}
	assert.True(t, h.hasUser("u1"))
}

func TestBroadcastRetiresSlowClientsWithoutBlocking(t *testing.T) {
	h := newTestHub()
	c1 := attachClient(t, h, "u1", 1)
	c2 := attachClient(t, h, "u2", 1)
	c1.Send <- []byte("full")
	c2.Send <- []byte("full")

	done := make(chan struct{})
	go func() {
		h.Broadcast([]byte(`{"type":"info"}`))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked on slow clients")
	}

	require.Eventually(t, func() bool {
		return !h.hasUser("u1") && !h.hasUser("u2")
	}, time.Second, 5*time.Millisecond)
}

func TestReconnectRetiresPriorConnection(t *testing.T) {
	h := newTestHub()
	first := attachClient(t, h, "u1", 4)

	second := &Client{Hub: h, Send: make(chan []byte, 4)}
	second.Attach("u1")

	require.Eventually(t, func() bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		return h.clients["u1"] == second
	}, time.Second, 5*time.Millisecond)

	// The first connection's Send is closed by the retirement.
	select {
	case _, ok := <-first.Send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("prior connection was not retired")
	}
}
