// Package faketest holds small in-memory fakes of the core's external
// collaborators (internal/ports), shared across every package's tests in
// place of a mocking framework: hand-written fakes rather than a mock
// library.
package faketest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/torrentstream/streamcore/internal/ports"
)

// Fetcher serves canned byte payloads keyed by URL, optionally with
// injected latency or a forced failure, to exercise Stream's retry and
// backpressure paths without real network I/O.
type Fetcher struct {
	mu       sync.Mutex
	Bodies   map[string][]byte
	Latency  time.Duration
	FailURLs map[string]int // remaining failures before success, per URL
	Calls    []string
}

func NewFetcher() *Fetcher {
	return &Fetcher{Bodies: make(map[string][]byte), FailURLs: make(map[string]int)}
}

func (f *Fetcher) Fetch(ctx context.Context, url string, r *ports.ByteRange) ([]byte, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, url)
	remaining := f.FailURLs[url]
	if remaining > 0 {
		f.FailURLs[url] = remaining - 1
	}
	latency := f.Latency
	body := f.Bodies[url]
	f.mu.Unlock()

	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if remaining > 0 {
		return nil, errors.New("faketest: injected fetch failure")
	}
	if body == nil {
		return nil, errors.New("faketest: no body registered for " + url)
	}
	if r != nil {
		hi := r.Hi
		if hi < 0 || int(hi) >= len(body) {
			hi = int64(len(body)) - 1
		}
		if r.Lo > hi {
			return nil, nil
		}
		return body[r.Lo : hi+1], nil
	}
	return body, nil
}

// MediaSink is an in-memory stand-in for the downstream append buffer.
type MediaSink struct {
	mu         sync.Mutex
	nextHandle ports.TrackHandle
	Appended   map[ports.TrackHandle][][]byte
	Offsets    map[ports.TrackHandle]float64
	Duration   float64
	SeekPos    float64
	Ended      bool
	ready      ports.SinkReadyState
	subs       map[string][]func()
}

func NewMediaSink() *MediaSink {
	return &MediaSink{
		Appended: make(map[ports.TrackHandle][][]byte),
		Offsets:  make(map[ports.TrackHandle]float64),
		ready:    ports.SinkOpen,
		subs:     make(map[string][]func()),
	}
}

func (s *MediaSink) AddTrack(mime string) (ports.TrackHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextHandle++
	h := s.nextHandle
	s.Appended[h] = nil
	return h, nil
}

func (s *MediaSink) Append(h ports.TrackHandle, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Appended[h] = append(s.Appended[h], data)
	return nil
}

func (s *MediaSink) Evict(h ports.TrackHandle, start, end float64) error {
	return nil
}

func (s *MediaSink) SetTimestampOffset(h ports.TrackHandle, delta float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Offsets[h] = delta
	return nil
}

func (s *MediaSink) SetDuration(d float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Duration = d
	return nil
}

func (s *MediaSink) Seek(t float64) error {
	s.mu.Lock()
	s.SeekPos = t
	fns := append([]func(){}, s.subs["seeking"]...)
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
	return nil
}

func (s *MediaSink) EndOfStream() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Ended = true
	return nil
}

func (s *MediaSink) ReadyState() ports.SinkReadyState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

func (s *MediaSink) Subscribe(event string, fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[event] = append(s.subs[event], fn)
	idx := len(s.subs[event]) - 1
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if idx < len(s.subs[event]) {
			s.subs[event][idx] = func() {}
		}
	}
}

// FireOpen simulates the sink becoming ready.
func (s *MediaSink) FireOpen() {
	s.mu.Lock()
	s.ready = ports.SinkOpen
	fns := append([]func(){}, s.subs["open"]...)
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Clock is a fully controllable fake of ports.Clock: Advance moves both the
// monotonic and wall clock forward and fires any timers whose deadline has
// passed.
type Clock struct {
	mu    sync.Mutex
	wall  time.Time
	mono  float64
	timers []*fakeTimer
}

type fakeTimer struct {
	deadline float64
	ch       chan time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{wall: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wall
}

func (c *Clock) Monotonic() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mono
}

func (c *Clock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{deadline: c.mono + d.Seconds(), ch: make(chan time.Time, 1)}
	c.timers = append(c.timers, t)
	return t.ch
}

// Advance moves the clock forward by d, firing any elapsed timers.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.wall = c.wall.Add(d)
	c.mono += d.Seconds()
	var remaining []*fakeTimer
	fired := c.wall
	for _, t := range c.timers {
		if t.deadline <= c.mono {
			t.ch <- fired
		} else {
			remaining = append(remaining, t)
		}
	}
	c.timers = remaining
	c.mu.Unlock()
}

// CredentialProvider returns a fixed token.
type CredentialProvider struct {
	Token string
	Err   error
}

func (c *CredentialProvider) Credential(ctx context.Context) (string, error) {
	return c.Token, c.Err
}

// TypeSupport accepts any mime type present in Accepted, or every mime type
// when Accepted is nil.
type TypeSupport struct {
	Accepted map[string]bool
}

func (t *TypeSupport) Supports(mime string) bool {
	if t.Accepted == nil {
		return true
	}
	return t.Accepted[mime]
}
