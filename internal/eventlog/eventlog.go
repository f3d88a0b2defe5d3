// Package eventlog is an optional analytics sink for the events
// internal/coordinator publishes on its bus (adaptation switches, errors,
// manifest updates, started/ended transitions). It is not authoritative
// playback state — losing it costs history, not correctness — so every
// Store implementation here treats write failures as non-fatal.
//
// Uses the usual collection-wrapper pattern for the Mongo side
// (NewMongoStore/Connect, one bson doc type per stored shape) and the
// optional-store-behind-an-interface idiom for configuration: a nil store
// is a valid, inert configuration, never a caller error.
package eventlog

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/torrentstream/streamcore/internal/domain"
)

// Store persists Events for later inspection. Implementations must not
// block the caller significantly; internal/coordinator calls LogEvent
// inline on its own goroutines and only logs a warning on error.
type Store interface {
	LogEvent(ctx context.Context, evt domain.Event) error
}

type eventDoc struct {
	Kind         string  `bson:"kind"`
	ContentType  string  `bson:"contentType,omitempty"`
	StreamID     int     `bson:"streamId,omitempty"`
	Err          string  `bson:"err,omitempty"`
	ManifestKind string  `bson:"manifestKind,omitempty"`
	PositionTime float64 `bson:"positionTime,omitempty"`
	LoggedAt     int64   `bson:"loggedAt"`
}

func toDoc(evt domain.Event, now time.Time) eventDoc {
	doc := eventDoc{
		Kind:         string(evt.Kind),
		ContentType:  string(evt.ContentType),
		StreamID:     evt.StreamID,
		ManifestKind: string(evt.ManifestKind),
		PositionTime: evt.PositionTime,
		LoggedAt:     now.UTC().Unix(),
	}
	if evt.Err != nil {
		doc.Err = evt.Err.Error()
	}
	return doc
}

// MongoStore persists events to a single Mongo collection, one document
// per event. No indexes beyond Mongo's default _id are created; this
// collection is append-only and queried by time range, which a
// loggedAt index would help, but nothing in this expansion queries it yet.
type MongoStore struct {
	collection *mongo.Collection
}

// NewMongoStore wraps an existing collection handle.
func NewMongoStore(client *mongo.Client, dbName, collectionName string) *MongoStore {
	return &MongoStore{collection: client.Database(dbName).Collection(collectionName)}
}

// Connect dials Mongo with the supplied URI plus any extra client options.
func Connect(ctx context.Context, uri string, extra ...*options.ClientOptions) (*mongo.Client, error) {
	opts := append([]*options.ClientOptions{options.Client().ApplyURI(uri)}, extra...)
	return mongo.Connect(ctx, opts...)
}

func (s *MongoStore) LogEvent(ctx context.Context, evt domain.Event) error {
	if s == nil || s.collection == nil {
		return nil
	}
	_, err := s.collection.InsertOne(ctx, toDoc(evt, time.Now()))
	return err
}

// MemoryStore keeps the most recent N events in a ring buffer, for the
// demo binary and tests where standing up Mongo is unnecessary overhead.
type MemoryStore struct {
	mu     sync.Mutex
	cap    int
	events []domain.Event
}

// NewMemoryStore returns a Store holding at most capacity events, oldest
// dropped first. capacity <= 0 means unbounded.
func NewMemoryStore(capacity int) *MemoryStore {
	return &MemoryStore{cap: capacity}
}

func (m *MemoryStore) LogEvent(_ context.Context, evt domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	if m.cap > 0 && len(m.events) > m.cap {
		m.events = m.events[len(m.events)-m.cap:]
	}
	return nil
}

// Events returns a snapshot of the currently retained events, oldest first.
func (m *MemoryStore) Events() []domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Event, len(m.events))
	copy(out, m.events)
	return out
}
