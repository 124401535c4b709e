package hub

import (
	"context"
	"testing"
	"time"
)

func waitForCount(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for h.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("client count = %d, want %d", h.ClientCount(), want)
		}
		time.Sleep(time.Millisecond)
	}
}

// A client whose send buffer is full gets dropped on the next
// broadcast. ClientCount hammers the set from another goroutine while
// the drop happens.
func TestHub_DropsSlowClient(t *testing.T) {
	h := New("test")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	c := &Client{hub: h, send: make(chan []byte, 1)}
	c.send <- []byte("backlog") // buffer already full
	h.register <- c
	waitForCount(t, h, 1)

	counted := make(chan struct{})
	go func() {
		defer close(counted)
		for i := 0; i < 1000; i++ {
			h.ClientCount()
		}
	}()

	h.Broadcast([]byte(`{}`))
	waitForCount(t, h, 0)
	<-counted

	// The hub closed the send channel behind the backlog.
	<-c.send
	if _, ok := <-c.send; ok {
		t.Fatal("expected the send channel to be closed")
	}
}

func TestHub_RunClosesClientsOnCancel(t *testing.T) {
	h := New("test")
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	c := &Client{hub: h, send: make(chan []byte, 1)}
	h.register <- c
	waitForCount(t, h, 1)

	cancel()

	select {
	case _, ok := <-c.send:
		if ok {
			t.Fatal("expected the send channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("client was not closed on shutdown")
	}
	waitForCount(t, h, 0)
}
