package hub

import (
	"encoding/json"
	"testing"
	"time"
)

// newTestClient registers a bare client with a running hub, bypassing
// the websocket pumps so broadcasts can be read straight off send.
func newTestClient(t *testing.T, h *Hub, buffer int) *Client {
	t.Helper()
	c := &Client{hub: h, send: make(chan Message, buffer)}
	select {
	case h.register <- c:
	case <-time.After(time.Second):
		t.Fatal("register timed out")
	}
	return c
}

func recvMessage(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case msg, ok := <-c.send:
		if !ok {
			t.Fatal("send channel closed")
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
	return Message{}
}

func TestHubBroadcastReachesAllClients(t *testing.T) {
	h := New("lines")
	go h.Run()
	defer h.Stop()

	a := newTestClient(t, h, 4)
	b := newTestClient(t, h, 4)
	if got := h.ClientCount(); got != 2 {
		t.Fatalf("ClientCount() = %d, want 2", got)
	}

	h.BroadcastText("STATUS,0,none")

	for _, c := range []*Client{a, b} {
		msg := recvMessage(t, c)
		if msg.Type != TextMessage || string(msg.Data) != "STATUS,0,none" {
			t.Errorf("got message %v %q, want text STATUS,0,none", msg.Type, msg.Data)
		}
	}
}

func TestHubBroadcastJSON(t *testing.T) {
	h := New("status")
	go h.Run()
	defer h.Stop()

	c := newTestClient(t, h, 4)

	if err := h.BroadcastJSON(map[string]int{"clients": 1}); err != nil {
		t.Fatalf("BroadcastJSON() error = %v", err)
	}

	msg := recvMessage(t, c)
	if msg.Type != JSONMessage {
		t.Errorf("message type = %v, want JSONMessage", msg.Type)
	}
	var decoded map[string]int
	if err := json.Unmarshal(msg.Data, &decoded); err != nil {
		t.Fatalf("broadcast payload is not JSON: %v", err)
	}
	if decoded["clients"] != 1 {
		t.Errorf("payload = %v, want clients=1", decoded)
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	h := New("lines")
	go h.Run()
	defer h.Stop()

	slow := newTestClient(t, h, 1)
	fast := newTestClient(t, h, 16)

	// Two messages overflow the slow client's single-slot buffer.
	h.BroadcastText("one")
	h.BroadcastText("two")

	// The fast client sees both.
	if got := recvMessage(t, fast); string(got.Data) != "one" {
		t.Errorf("fast client got %q, want one", got.Data)
	}
	if got := recvMessage(t, fast); string(got.Data) != "two" {
		t.Errorf("fast client got %q, want two", got.Data)
	}

	// The slow client was dropped: its channel is closed after the
	// buffered message.
	<-slow.send
	select {
	case _, ok := <-slow.send:
		if ok {
			t.Error("slow client should have been disconnected")
		}
	case <-time.After(time.Second):
		t.Error("slow client send channel not closed")
	}

	deadline := time.Now().Add(time.Second)
	for h.ClientCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := h.ClientCount(); got != 1 {
		t.Errorf("ClientCount() = %d, want 1 after drop", got)
	}
}

func TestHubUnregister(t *testing.T) {
	h := New("lines")
	go h.Run()
	defer h.Stop()

	c := newTestClient(t, h, 4)
	h.unregister <- c

	deadline := time.Now().Add(time.Second)
	for h.ClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := h.ClientCount(); got != 0 {
		t.Errorf("ClientCount() = %d, want 0", got)
	}
	if _, ok := <-c.send; ok {
		t.Error("send channel should be closed after unregister")
	}
}

func TestHubStopDisconnectsClients(t *testing.T) {
	h := New("lines")
	go h.Run()

	c := newTestClient(t, h, 4)
	h.Stop()

	select {
	case _, ok := <-c.send:
		if ok {
			t.Error("expected closed send channel after Stop")
		}
	case <-time.After(time.Second):
		t.Error("send channel not closed after Stop")
	}

	// Broadcast after Stop must not block.
	done := make(chan struct{})
	go func() {
		h.BroadcastText("late")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("Broadcast blocked after Stop")
	}
}
