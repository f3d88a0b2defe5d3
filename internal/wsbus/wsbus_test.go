package wsbus

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/torrentstream/streamcore/internal/domain"
	"github.com/torrentstream/streamcore/internal/eventbus"
)

func TestBroadcastEventDropsWhenNoClients(t *testing.T) {
	h := New(nil)
	// no clients registered; must not panic or block.
	h.broadcastEvent(domain.Event{Kind: domain.EventStarted})
	select {
	case <-h.broadcast:
		t.Fatal("expected nothing enqueued with zero clients")
	default:
	}
}

func TestAttachForwardsPublishedEvents(t *testing.T) {
	h := New(nil)
	go h.Run()
	defer h.Close()

	bus := eventbus.New(nil)
	go bus.Run()
	defer bus.Close()

	detach := h.Attach(bus)
	defer detach()

	c := &client{hub: h, send: make(chan []byte, 4)}
	h.register <- c
	time.Sleep(10 * time.Millisecond) // let registration land before publishing

	bus.Publish(domain.Event{Kind: domain.EventStarted, ContentType: domain.ContentVideo})

	select {
	case payload := <-c.send:
		var msg message
		if err := json.Unmarshal(payload, &msg); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		if msg.Type != string(domain.EventStarted) {
			t.Errorf("msg.Type = %q, want %q", msg.Type, domain.EventStarted)
		}
		if msg.Data.ContentType != domain.ContentVideo {
			t.Errorf("msg.Data.ContentType = %v, want video", msg.Data.ContentType)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for forwarded event")
	}

	// Unregister before the deferred Close runs its disconnect sweep, since
	// this fake client has no real conn to write a close frame to.
	h.unregister <- c
	time.Sleep(10 * time.Millisecond)
}
