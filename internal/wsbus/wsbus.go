// Package wsbus fans Coordinator events out to websocket clients, the way
// the demo binary lets a developer watch a stream session without a
// browser media player. A register/unregister/broadcast channel-select hub
// plus per-client read/write pumps, forwarding domain.Event values pulled
// off an internal/eventbus.Bus.
package wsbus

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/torrentstream/streamcore/internal/domain"
	"github.com/torrentstream/streamcore/internal/eventbus"
)

type message struct {
	Type string      `json:"type"`
	Data domain.Event `json:"data"`
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub fans out Events to every currently connected websocket client.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	done       chan struct{}
	logger     *slog.Logger
}

// New returns a Hub; callers must call Run in its own goroutine before any
// client can connect.
func New(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run drives the hub's select loop until Close is called.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			for c := range h.clients {
				_ = c.conn.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(2*time.Second),
				)
				close(c.send)
				delete(h.clients, c)
			}
			h.logger.Debug("wsbus hub stopped, all clients disconnected")
			return
		case c := <-h.register:
			h.clients[c] = true
			h.logger.Debug("wsbus client connected", slog.Int("total", len(h.clients)))
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.logger.Debug("wsbus client disconnected", slog.Int("total", len(h.clients)))
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					close(c.send)
					delete(h.clients, c)
				}
			}
		}
	}
}

// Close signals Run to stop and disconnects every client.
func (h *Hub) Close() {
	close(h.done)
}

func (h *Hub) ClientCount() int {
	return len(h.clients)
}

// broadcastEvent marshals evt and enqueues it for every connected client,
// dropping it if the broadcast channel is already full rather than
// blocking the publisher.
func (h *Hub) broadcastEvent(evt domain.Event) {
	if len(h.clients) == 0 {
		return
	}
	payload, err := json.Marshal(message{Type: string(evt.Kind), Data: evt})
	if err != nil {
		h.logger.Error("wsbus marshal failed", slog.String("error", err.Error()))
		return
	}
	select {
	case h.broadcast <- payload:
	default:
	}
}

// everyEventKind lists every domain.EventKind the Coordinator's bus can
// publish; Attach subscribes to all of them.
var everyEventKind = []domain.EventKind{
	domain.EventAdaptation,
	domain.EventBuffering,
	domain.EventError,
	domain.EventStarted,
	domain.EventEnded,
	domain.EventManifestUpdated,
	domain.EventBandwidth,
	domain.EventTracksChanged,
}

// Attach subscribes the hub to every event kind on bus and forwards each
// one to connected clients until the returned detach func is called or bus
// is closed.
func (h *Hub) Attach(bus *eventbus.Bus) (detach func()) {
	var unsubs []func()
	for _, kind := range everyEventKind {
		ch, unsub := bus.Subscribe(kind)
		unsubs = append(unsubs, unsub)
		go func(ch <-chan domain.Event) {
			for evt := range ch {
				h.broadcastEvent(evt)
			}
		}(ch)
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeHTTP upgrades the request to a websocket and streams events to it
// until the client disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("wsbus upgrade failed", slog.String("error", err.Error()))
		return
	}
	c := &client{hub: h, conn: conn, send: make(chan []byte, 16)}
	h.register <- c
	go c.writePump()
	go c.readPump()
}

func (c *client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
