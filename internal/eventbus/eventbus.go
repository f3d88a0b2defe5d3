// Package eventbus implements the explicit EventBus collaborator called for
// in the Design Notes: any component publishes domain.Event values; any
// subscriber registers by domain.EventKind. Plain composition instead of
// event-target inheritance, using the same register/unregister/broadcast
// channel-select shape as a websocket fan-out hub, generalised from a single
// broadcast target to typed pub/sub.
package eventbus

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/torrentstream/streamcore/internal/domain"
)

type subscription struct {
	kind domain.EventKind
	ch   chan domain.Event
}

// Bus is safe for concurrent Publish/Subscribe/Close once started with Run.
type Bus struct {
	publish     chan domain.Event
	register    chan *subscription
	unregister  chan *subscription
	done        chan struct{}
	subscribers map[domain.EventKind][]*subscription
	logger      *slog.Logger
}

func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		publish:     make(chan domain.Event, 64),
		register:    make(chan *subscription),
		unregister:  make(chan *subscription),
		done:        make(chan struct{}),
		subscribers: make(map[domain.EventKind][]*subscription),
		logger:      logger,
	}
}

// Run drives the bus's select loop. Callers run it in its own goroutine and
// stop it by calling Close.
func (b *Bus) Run() {
	for {
		select {
		case <-b.done:
			for _, subs := range b.subscribers {
				for _, s := range subs {
					close(s.ch)
				}
			}
			b.logger.Debug("eventbus stopped")
			return
		case s := <-b.register:
			b.subscribers[s.kind] = append(b.subscribers[s.kind], s)
		case s := <-b.unregister:
			b.removeSub(s)
		case evt := <-b.publish:
			if evt.ID == "" {
				evt.ID = uuid.NewString()
			}
			for _, s := range b.subscribers[evt.Kind] {
				select {
				case s.ch <- evt:
				default:
					b.logger.Warn("eventbus subscriber slow, dropping event",
						slog.String("kind", string(evt.Kind)))
				}
			}
		}
	}
}

func (b *Bus) removeSub(target *subscription) {
	subs := b.subscribers[target.kind]
	for i, s := range subs {
		if s == target {
			b.subscribers[target.kind] = append(subs[:i], subs[i+1:]...)
			close(s.ch)
			return
		}
	}
}

// Publish enqueues evt for delivery to subscribers of evt.Kind. Non-blocking
// from the caller's perspective relative to slow subscribers.
func (b *Bus) Publish(evt domain.Event) {
	select {
	case b.publish <- evt:
	case <-b.done:
	}
}

// Subscribe returns a channel delivering every future event of kind, and an
// unsubscribe func to release it.
func (b *Bus) Subscribe(kind domain.EventKind) (<-chan domain.Event, func()) {
	s := &subscription{kind: kind, ch: make(chan domain.Event, 16)}
	select {
	case b.register <- s:
	case <-b.done:
		close(s.ch)
		return s.ch, func() {}
	}
	return s.ch, func() {
		select {
		case b.unregister <- s:
		case <-b.done:
		}
	}
}

// Close stops Run and releases every subscriber channel.
func (b *Bus) Close() {
	close(b.done)
}
