// Package stream implements the per-type Stream state machine (C5): fetches,
// appends, and evicts media for one content type, handling ABR switches,
// resync and end-of-stream. Structured as a classic FSM: mutex-guarded
// state, a transitionTo that logs every transition and counts those into
// StateBuffering, and a run loop that dispatches to one do<State> method
// per state.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"

	"github.com/torrentstream/streamcore/internal/bandwidth"
	"github.com/torrentstream/streamcore/internal/domain"
	"github.com/torrentstream/streamcore/internal/eventbus"
	"github.com/torrentstream/streamcore/internal/metrics"
	"github.com/torrentstream/streamcore/internal/ports"
)

// State is one of the FSM states named in spec §4.5.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateBuffering
	StatePlaying
	StateSwitching
	StateEnded
	StateDestroyed
)

var stateNames = [...]string{
	"idle", "starting", "buffering", "playing", "switching", "ended", "destroyed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// Window holds the backpressure defaults from spec §4.5: Stream maintains
// [playhead-Behind, playhead+Ahead] and refuses to fetch past Ahead.
type Window struct {
	Behind float64 // seconds
	Ahead  float64 // seconds
}

// DefaultWindow matches spec §4.5's stated defaults.
func DefaultWindow() Window {
	return Window{Behind: 30, Ahead: 30}
}

// idlePollInterval bounds how often doPlaying re-checks the playhead when it
// is nowhere near the buffer tail, so the run loop does not spin.
const idlePollInterval = 500 * time.Millisecond

// Callbacks is the capability subset the Coordinator exposes to a Stream —
// the "weak back-reference" the Design Notes call for in place of cyclic
// Coordinator<->Stream ownership (spec §9): a Stream can read the playhead
// and report started/ended, nothing more.
type Callbacks struct {
	Playhead func() float64
}

// Stream is one content type's fetch/append/evict state machine.
type Stream struct {
	mu    sync.Mutex
	state State
	err   error

	contentType domain.ContentType
	current     *domain.StreamInfo
	index       domain.SegmentIndex

	sink   ports.MediaSink
	handle ports.TrackHandle
	fetch  ports.Fetcher
	clock  ports.Clock

	estimator *bandwidth.Estimator
	bus       *eventbus.Bus
	cb        Callbacks
	window    Window
	limiter   *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc

	readyOnce sync.Once
	started   chan struct{}
	ended     chan struct{}

	timestampCorrection float64
	correctionMeasured  bool

	switchPending *pendingSwitch
	static        bool
	logger        *slog.Logger
}

type pendingSwitch struct {
	info      *domain.StreamInfo
	immediate bool
}

// New constructs a Stream for one content type. limiter caps how often
// doPlaying starts a segment fetch (golang.org/x/time/rate, one token per
// fetch, one token every 50ms with a burst of 4); it paces fetches and does
// not decide how far ahead of the playhead they reach.
func New(contentType domain.ContentType, static bool, sink ports.MediaSink, fetcher ports.Fetcher, clock ports.Clock, estimator *bandwidth.Estimator, bus *eventbus.Bus, cb Callbacks, logger *slog.Logger) *Stream {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Stream{
		state:       StateIdle,
		contentType: contentType,
		static:      static,
		sink:        sink,
		fetch:       fetcher,
		clock:       clock,
		estimator:   estimator,
		bus:         bus,
		cb:          cb,
		window:      DefaultWindow(),
		limiter:     rate.NewLimiter(rate.Every(50*time.Millisecond), 4),
		ctx:         ctx,
		cancel:      cancel,
		started:     make(chan struct{}),
		ended:       make(chan struct{}),
		logger:      logger.With(slog.String("contentType", string(contentType))),
	}
}

func (s *Stream) currentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Stream) transitionTo(to State) {
	s.mu.Lock()
	from := s.state
	s.state = to
	s.mu.Unlock()
	s.logger.Info("stream state transition", slog.String("from", from.String()), slog.String("to", to.String()))
	if to == StateBuffering {
		metrics.BufferingEventsTotal.WithLabelValues(string(s.contentType)).Inc()
	}
}

func (s *Stream) setError(err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	s.mu.Lock()
	s.err = err
	from := s.state
	s.state = StateEnded
	s.mu.Unlock()
	s.logger.Error("stream error", slog.String("state", from.String()), slog.String("error", err.Error()))
	if s.bus != nil {
		s.bus.Publish(domain.Event{Kind: domain.EventError, ContentType: s.contentType, Err: err})
	}
}

// Started returns a channel closed once the first segment has been
// appended and the timestamp correction measured, or once the Stream ends
// before that.
func (s *Stream) Started() <-chan struct{} { return s.started }

// Ended returns a channel closed once this Stream reaches StateEnded.
func (s *Stream) Ended() <-chan struct{} { return s.ended }

// TimestampCorrection returns δ = observed_start - reference_start measured
// from the first appended segment (spec §4.5).
func (s *Stream) TimestampCorrection() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timestampCorrection
}

// Err returns the error that caused StateEnded via a fetch failure, if any.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Switch requests a representation change: select info, abort/queue per
// immediate, append from the new representation (spec §4.5). From StateIdle
// this is the initial selection, transitioning Idle -> Starting.
func (s *Stream) Switch(info *domain.StreamInfo, immediate bool) error {
	idx, err := info.SegmentIndexSource.Create()
	if err != nil {
		return fmt.Errorf("stream: create segment index: %w", err)
	}

	state := s.currentState()
	switch state {
	case StateIdle:
		s.mu.Lock()
		s.current = info
		s.index = idx
		s.mu.Unlock()
		h, err := s.sink.AddTrack(info.FullMimeType)
		if err != nil {
			return fmt.Errorf("stream: add track: %w", err)
		}
		s.mu.Lock()
		s.handle = h
		s.mu.Unlock()
		s.transitionTo(StateStarting)
		go s.run()
		return nil
	case StateDestroyed:
		return domain.ErrClosed
	default:
		s.mu.Lock()
		s.switchPending = &pendingSwitch{info: info, immediate: immediate}
		s.mu.Unlock()
		if immediate {
			s.transitionTo(StateSwitching)
		}
		return nil
	}
}

// Resync moves the Stream to StateBuffering, whose next iteration fetches
// the reference containing the current playhead (spec §4.5's Playing ->
// resync() -> Buffering transition). A fetch already in flight is not
// aborted.
func (s *Stream) Resync() {
	if s.currentState() == StateDestroyed {
		return
	}
	s.transitionTo(StateBuffering)
}

// Destroy aborts fetches and detaches listeners. Idempotent.
func (s *Stream) Destroy() {
	s.mu.Lock()
	if s.state == StateDestroyed {
		s.mu.Unlock()
		return
	}
	s.state = StateDestroyed
	s.mu.Unlock()
	s.cancel()
}

func (s *Stream) run() {
	for {
		if s.ctx.Err() != nil {
			s.finishEnded()
			return
		}
		switch s.currentState() {
		case StateStarting:
			if err := s.doStarting(); err != nil {
				s.setError(err)
				s.finishEnded()
				return
			}
		case StateBuffering:
			if err := s.doBuffering(); err != nil {
				s.setError(err)
				s.finishEnded()
				return
			}
		case StatePlaying:
			if done := s.doPlaying(); done {
				s.finishEnded()
				return
			}
		case StateSwitching:
			s.doSwitching()
		case StateEnded, StateDestroyed:
			s.finishEnded()
			return
		}
	}
}

func (s *Stream) finishEnded() {
	s.readyOnce.Do(func() { close(s.started) })
	select {
	case <-s.ended:
	default:
		close(s.ended)
	}
}

func (s *Stream) doStarting() error {
	ref, ok := s.index.First()
	if !ok {
		return domain.ErrSegmentNotFound
	}
	data, err := s.fetchWithRetry(ref)
	if err != nil {
		return err
	}
	if err := s.appendAndMeasure(ref, data); err != nil {
		return err
	}
	s.readyOnce.Do(func() { close(s.started) })
	if s.bus != nil {
		s.bus.Publish(domain.Event{Kind: domain.EventBuffering, ContentType: s.contentType})
	}
	s.transitionTo(StateBuffering)
	return nil
}

func (s *Stream) doBuffering() error {
	playhead := s.playhead()
	ref, ok := s.index.Find(playhead)
	if !ok {
		if s.static {
			s.transitionTo(StateEnded)
			return nil
		}
		// Live: no segment indexed yet at this position. Wait for the
		// Coordinator's update loop to append more rather than ending.
		if s.clock != nil {
			select {
			case <-s.clock.After(time.Second):
			case <-s.ctx.Done():
			}
		}
		return nil
	}
	data, err := s.fetchWithRetry(ref)
	if err != nil {
		return err
	}
	if err := s.appendSegment(ref, data); err != nil {
		return err
	}
	s.evictOutsideWindow(playhead)
	s.transitionTo(StatePlaying)
	return nil
}

// doPlaying advances one segment per iteration, returning true when the
// Stream should terminate (last segment appended on a static manifest).
func (s *Stream) doPlaying() bool {
	s.mu.Lock()
	pending := s.switchPending
	s.switchPending = nil
	s.mu.Unlock()
	if pending != nil && !pending.immediate {
		s.applyQueuedSwitch(pending)
		return false
	}

	playhead := s.playhead()
	last, ok := s.index.Last()
	if ok && playhead >= last.EndTime-s.window.Ahead {
		// Approaching the buffer tail: fetch the next segment.
		next, ok := s.index.Find(playhead + s.window.Ahead/2)
		if !ok {
			if s.static {
				return true // last segment appended, manifest static -> Ended
			}
			s.transitionTo(StateBuffering)
			return false
		}
		if !s.limiter.Allow() {
			return false // rate limit reached: no fetch this iteration
		}
		data, err := s.fetchWithRetry(next)
		if err != nil {
			s.setError(err)
			return true
		}
		if err := s.appendSegment(next, data); err != nil {
			s.setError(err)
			return true
		}
		s.evictOutsideWindow(playhead)
		return false
	}

	// Playhead nowhere near the buffer tail: nothing to fetch this cycle.
	// Idle briefly rather than spinning on every run() iteration.
	if s.clock != nil {
		select {
		case <-s.clock.After(idlePollInterval):
		case <-s.ctx.Done():
		}
	}
	return false
}

func (s *Stream) applyQueuedSwitch(p *pendingSwitch) {
	idx, err := p.info.SegmentIndexSource.Create()
	if err != nil {
		s.setError(fmt.Errorf("stream: switch create index: %w", err))
		return
	}
	s.mu.Lock()
	s.current = p.info
	s.index = idx
	s.mu.Unlock()
	if s.bus != nil {
		s.bus.Publish(domain.Event{Kind: domain.EventAdaptation, ContentType: s.contentType, StreamID: p.info.UniqueID})
	}
}

func (s *Stream) doSwitching() {
	s.mu.Lock()
	pending := s.switchPending
	s.switchPending = nil
	s.mu.Unlock()
	if pending == nil {
		s.transitionTo(StatePlaying)
		return
	}
	// immediate=true: discard from now+ε and append the new representation
	// (spec §9 Open Question 1: never reuse trailing buffer on immediate).
	playhead := s.playhead()
	_ = s.sink.Evict(s.handle, playhead, playhead+s.window.Ahead)
	s.applyQueuedSwitch(pending)
	s.transitionTo(StateBuffering)
}

func (s *Stream) playhead() float64 {
	if s.cb.Playhead != nil {
		return s.cb.Playhead()
	}
	return 0
}

func (s *Stream) appendSegment(ref domain.SegmentReference, data []byte) error {
	if err := s.sink.Append(s.handle, data); err != nil {
		return fmt.Errorf("stream: append failed: %w", err)
	}
	return nil
}

// observedStartReporter is an optional MediaSink capability: a sink backed
// by a real demuxer can report the container's actual first PTS for a
// track. Sinks that don't implement it (faketest.MediaSink, most bare
// append buffers) leave the correction at 0.
type observedStartReporter interface {
	ObservedStart(h ports.TrackHandle) (float64, bool)
}

// appendAndMeasure appends the first segment and measures the timestamp
// correction δ = observed_start - reference_start (spec §4.5).
func (s *Stream) appendAndMeasure(ref domain.SegmentReference, data []byte) error {
	if err := s.appendSegment(ref, data); err != nil {
		return err
	}
	s.mu.Lock()
	if !s.correctionMeasured {
		delta := 0.0
		if reporter, ok := s.sink.(observedStartReporter); ok {
			if observed, ok := reporter.ObservedStart(s.handle); ok {
				delta = observed - ref.StartTime
			}
		}
		s.timestampCorrection = delta
		s.correctionMeasured = true
	}
	s.mu.Unlock()
	return nil
}

func (s *Stream) evictOutsideWindow(playhead float64) {
	_ = s.sink.Evict(s.handle, playhead-s.window.Behind*10, playhead-s.window.Behind)
}

// fetchWithRetry fetches one segment with exponential backoff and full
// jitter: 3 attempts, base 500ms, factor 2 (spec §4.5 Failure), using
// cenkalti/backoff/v5. Cancellation (Destroy) surfaces as a swallowed
// Aborted, never as StreamFetch.
func (s *Stream) fetchWithRetry(ref domain.SegmentReference) ([]byte, error) {
	var r *ports.ByteRange
	if ref.ByteRangeLo >= 0 {
		r = &ports.ByteRange{Lo: ref.ByteRangeLo, Hi: ref.ByteRangeHi}
	}

	op := func() ([]byte, error) {
		data, err := s.fetch.Fetch(s.ctx, ref.URL, r)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return data, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.Multiplier = 2
	bo.RandomizationFactor = 1 // full jitter

	start := time.Now()
	data, err := backoff.Retry(s.ctx, op,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(3),
	)
	elapsed := time.Since(start)
	if err != nil {
		metrics.SegmentFetchesTotal.WithLabelValues(string(s.contentType), "error").Inc()
		if errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("stream: %w", context.Canceled)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
	}
	metrics.SegmentFetchesTotal.WithLabelValues(string(s.contentType), "success").Inc()
	metrics.SegmentFetchDuration.WithLabelValues(string(s.contentType)).Observe(elapsed.Seconds())
	if s.estimator != nil {
		s.estimator.Observe(int64(len(data)), elapsed)
	}
	return data, nil
}
