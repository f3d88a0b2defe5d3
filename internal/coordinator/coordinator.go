// Package coordinator implements the Stream Coordinator (C7): owns the set
// of per-type Streams, selects representations from the processed
// manifest, computes the common play window, and drives start/seek/
// update; it does not signal end of stream to the sink. Structured the way a session manager tracking one state machine
// per active key usually is: a mutex-guarded map of per-key state machines
// plus health counters and a logger, here keyed by content type instead of
// by session ID.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/torrentstream/streamcore/internal/abr"
	"github.com/torrentstream/streamcore/internal/bandwidth"
	"github.com/torrentstream/streamcore/internal/domain"
	"github.com/torrentstream/streamcore/internal/eventbus"
	"github.com/torrentstream/streamcore/internal/langmatch"
	"github.com/torrentstream/streamcore/internal/manifestproc"
	"github.com/torrentstream/streamcore/internal/metrics"
	"github.com/torrentstream/streamcore/internal/ports"
	"github.com/torrentstream/streamcore/internal/stream"
)

// ManifestFetcher retrieves and parses a fresh manifest for a live update
// cycle. The core never parses manifests itself (spec §1); callers supply
// this, typically backed by internal/manifestadapter.
type ManifestFetcher interface {
	FetchManifest(ctx context.Context, url string) (*domain.Manifest, error)
}

// EventLogStore is the optional analytics sink the Coordinator publishes
// adaptation/error/started events to; see internal/eventlog. A nil store
// disables logging entirely.
type EventLogStore interface {
	LogEvent(ctx context.Context, evt domain.Event) error
}

// Config bundles the Coordinator's external collaborators (spec §6) plus
// the optional supplemented pieces (event log, manifest fetcher).
type Config struct {
	Fetcher         ports.Fetcher
	Clock           ports.Clock
	TypeSupport     ports.TypeSupport
	Bus             *eventbus.Bus
	ManifestFetcher ManifestFetcher
	EventLog        EventLogStore
	Logger          *slog.Logger
}

// Coordinator is the public API named in spec §4.7.
type Coordinator struct {
	mu sync.Mutex

	cfg Config

	manifest          *domain.Manifest
	preferredLanguage string
	loaded            bool
	destroyed         bool

	sink ports.MediaSink

	activePeriod int
	byType       map[domain.ContentType][]*domain.StreamSet
	streams      map[domain.ContentType]*stream.Stream
	current      map[domain.ContentType]*domain.StreamInfo
	estimator    *bandwidth.Estimator
	abrMgr       *abr.Manager

	restrictions      domain.Restrictions
	textEnabled       bool
	adaptationEnabled bool

	ignoredFirstSeek  bool
	needsInitialStart bool
	updateLimiter     *rate.Limiter
	updateCancel      context.CancelFunc

	logger *slog.Logger
}

// New constructs an un-loaded Coordinator. The Bandwidth Estimator's
// onSample hook is wired to publish a bandwidth event, update the gauge,
// and re-consult the ABR Manager for the active video representation.
func New(cfg Config) *Coordinator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	c := &Coordinator{
		cfg:               cfg,
		streams:           make(map[domain.ContentType]*stream.Stream),
		current:           make(map[domain.ContentType]*domain.StreamInfo),
		abrMgr:            abr.New(),
		textEnabled:       true,
		adaptationEnabled: true,
		updateLimiter:     rate.NewLimiter(rate.Every(time.Second), 1),
		logger:            cfg.Logger,
	}
	c.estimator = bandwidth.New(func(bitsPerSec float64) {
		metrics.BandwidthEstimateBps.Set(bitsPerSec)
		if c.cfg.Bus != nil {
			c.cfg.Bus.Publish(domain.Event{Kind: domain.EventBandwidth, BandwidthBps: bitsPerSec})
		}
		c.maybeAdaptVideo(bitsPerSec)
	})
	return c
}

// Load runs the Manifest Processor (C9) over raw and remembers
// preferredLanguage for later selection (spec §4.7).
func (c *Coordinator) Load(raw *domain.Manifest, preferredLanguage string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return domain.ErrClosed
	}
	if c.loaded {
		return fmt.Errorf("coordinator: %w", errAlreadyLoaded)
	}

	processed, err := manifestproc.Process(raw, c.cfg.TypeSupport)
	if err != nil {
		return err
	}
	c.manifest = processed
	c.preferredLanguage = preferredLanguage
	c.loaded = true
	metrics.ManifestLoadsTotal.WithLabelValues(string(processed.Kind)).Inc()
	return nil
}

// Attach binds to sink and runs start_streams, returning once the first
// bytes are appended for every content type (spec §4.7). For a live
// manifest, a disjoint or not-yet-available play window does not fail
// Attach: it arms the update loop so start_streams is retried once a fresh
// manifest provides a mutually available window (spec §4.7/§7, scenario of
// a live edge that hasn't produced segments yet).
func (c *Coordinator) Attach(ctx context.Context, sink ports.MediaSink) error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return domain.ErrClosed
	}
	if !c.loaded {
		c.mu.Unlock()
		return fmt.Errorf("coordinator: %w", errNotLoaded)
	}
	c.sink = sink
	live := c.isLiveLocked()
	c.mu.Unlock()

	if err := c.selectConfigurations(); err != nil {
		return err
	}
	c.publishTracksChanged()

	if err := c.startStreams(ctx); err != nil {
		if !live || !errors.Is(err, errStreamsNotAvailable) {
			return err
		}
		c.logger.Warn("no mutually available play window yet on live manifest, deferring start to the update loop",
			slog.String("error", err.Error()))
		c.mu.Lock()
		c.needsInitialStart = true
		c.mu.Unlock()
	}

	c.sink.Subscribe("seeking", func() { c.onSeek() })
	c.armUpdateTimer(ctx)
	return nil
}

func (c *Coordinator) publishTracksChanged() {
	if c.cfg.Bus != nil {
		c.cfg.Bus.Publish(domain.Event{Kind: domain.EventTracksChanged})
	}
}

// Configurations returns, per content type, the ordered eligible StreamSets
// computed by the most recent selectConfigurations call.
func (c *Coordinator) Configurations() map[domain.ContentType][]*domain.StreamSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[domain.ContentType][]*domain.StreamSet, len(c.byType))
	for k, v := range c.byType {
		out[k] = append([]*domain.StreamSet(nil), v...)
	}
	return out
}

// selectConfigurations implements spec §4.7's selection policy:
// video gets exactly one compatible StreamSet, audio all MIME-compatible
// sets, text all sets; audio/text are then ordered by C8's language match.
func (c *Coordinator) selectConfigurations() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	period := c.manifest.Periods[c.activePeriod]
	byType := make(map[domain.ContentType][]*domain.StreamSet)
	for _, set := range period.StreamSets {
		byType[set.Type] = append(byType[set.Type], set)
	}

	if video := byType[domain.ContentVideo]; len(video) > 1 {
		byType[domain.ContentVideo] = video[:1]
	}

	c.orderByLanguageLocked(byType[domain.ContentAudio])
	c.orderByLanguageLocked(byType[domain.ContentText])

	c.byType = byType
	return nil
}

func (c *Coordinator) orderByLanguageLocked(sets []*domain.StreamSet) {
	if len(sets) == 0 {
		return
	}
	langs := make([]string, len(sets))
	mainIdx := -1
	for i, s := range sets {
		langs[i] = s.Lang
		if s.Main {
			mainIdx = i
		}
	}
	best, level := langmatch.Best(c.preferredLanguage, langs, mainIdx)
	if level == langmatch.LevelNone || best <= 0 {
		return
	}
	sets[0], sets[best] = sets[best], sets[0]
}

// startStreams implements the start sequence of spec §4.7.
func (c *Coordinator) startStreams(ctx context.Context) error {
	c.mu.Lock()
	byType := make(map[domain.ContentType][]*domain.StreamSet, len(c.byType))
	for k, v := range c.byType {
		byType[k] = v
	}
	c.mu.Unlock()

	initial := make(map[domain.ContentType]*domain.StreamInfo)
	for ct, sets := range byType {
		if len(sets) == 0 || len(sets[0].Streams) == 0 {
			continue
		}
		set := sets[0]
		switch ct {
		case domain.ContentVideo:
			id, ok := c.abrMgr.InitialVideoID(candidatesOf(set), c.estimator.Estimate())
			if !ok {
				continue
			}
			initial[ct] = findByID(set, id)
		case domain.ContentAudio:
			initial[ct] = set.Streams[len(set.Streams)/2]
		case domain.ContentText:
			initial[ct] = set.Streams[0]
		}
	}

	results := make([]pickedStream, 0, len(initial))
	var resultsMu sync.Mutex
	var g errgroup.Group
	for ct, info := range initial {
		ct, info := ct, info
		g.Go(func() error {
			idx, err := info.SegmentIndexSource.Create()
			if err != nil {
				return fmt.Errorf("coordinator: create index for %s: %w", ct, err)
			}
			resultsMu.Lock()
			results = append(results, pickedStream{ct: ct, info: info, index: idx})
			resultsMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, p := range results {
		if p.index.Length() == 0 {
			return fmt.Errorf("coordinator: %w", errStreamsNotAvailable)
		}
	}

	c.mu.Lock()
	live := c.isLiveLocked()
	minBufferTime := c.manifest.MinBufferTime
	c.mu.Unlock()

	window, ok := computePlayWindow(results, live, minBufferTime)
	if !ok {
		return fmt.Errorf("coordinator: %w", errStreamsNotAvailable)
	}

	c.mu.Lock()
	_ = c.sink.SetDuration(window.End)
	seekTo := window.Start
	if live {
		seekTo = window.End
	}
	c.mu.Unlock()
	_ = c.sink.Seek(seekTo)

	startedChans := make(map[domain.ContentType]<-chan struct{}, len(results))
	for _, p := range results {
		p := p
		s := stream.New(p.ct, !live, c.sink, c.cfg.Fetcher, c.cfg.Clock, c.estimator, c.cfg.Bus,
			stream.Callbacks{Playhead: func() float64 { return seekTo }}, c.logger)

		c.mu.Lock()
		c.streams[p.ct] = s
		c.current[p.ct] = p.info
		c.mu.Unlock()
		metrics.ActiveStreams.WithLabelValues(string(p.ct)).Set(1)

		if err := s.Switch(p.info, false); err != nil {
			return fmt.Errorf("coordinator: start %s: %w", p.ct, err)
		}
		startedChans[p.ct] = s.Started()
	}

	for _, ch := range startedChans {
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if corr := c.applyGlobalCorrection(); corr != 0 {
		_ = c.sink.Seek(seekTo + corr)
	}
	if c.cfg.Bus != nil {
		c.cfg.Bus.Publish(domain.Event{Kind: domain.EventStarted})
	}
	c.logEvent(ctx, domain.Event{Kind: domain.EventStarted})
	return nil
}

// applyGlobalCorrection computes max/min timestamp correction across every
// started Stream, applies the max to every known SegmentIndex and returns
// it (0 when nothing was applied); startStreams then moves the sink
// playhead by +max_correction (spec §4.7 step 6).
func (c *Coordinator) applyGlobalCorrection() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var maxC, minC float64
	first := true
	for _, s := range c.streams {
		delta := s.TimestampCorrection()
		if first {
			maxC, minC = delta, delta
			first = false
			continue
		}
		if delta > maxC {
			maxC = delta
		}
		if delta < minC {
			minC = delta
		}
	}
	if first || maxC == 0 {
		return 0
	}
	if (maxC > 0) != (minC > 0) && minC != 0 {
		c.logger.Warn("timestamp corrections disagree in sign", slog.Float64("max", maxC), slog.Float64("min", minC))
	}
	for _, period := range c.manifest.Periods {
		for _, set := range period.StreamSets {
			for _, info := range set.Streams {
				if idx, err := info.SegmentIndexSource.Create(); err == nil {
					if corrector, ok := idx.(interface{ Correct(float64) }); ok {
						corrector.Correct(maxC)
					}
				}
			}
		}
	}
	return maxC
}

// VideoTracks, AudioTracks, TextTracks materialise track listings over
// byType filtered by Enabled, flagging the active representation.
func (c *Coordinator) VideoTracks() []domain.Track { return c.tracksFor(domain.ContentVideo) }
func (c *Coordinator) AudioTracks() []domain.Track { return c.tracksFor(domain.ContentAudio) }
func (c *Coordinator) TextTracks() []domain.Track  { return c.tracksFor(domain.ContentText) }

func (c *Coordinator) tracksFor(ct domain.ContentType) []domain.Track {
	c.mu.Lock()
	defer c.mu.Unlock()
	sets := c.byType[ct]
	active := c.current[ct]
	var out []domain.Track
	for _, set := range sets {
		for _, s := range set.Streams {
			if !s.Enabled {
				continue
			}
			out = append(out, domain.Track{
				ID:        s.UniqueID,
				Bandwidth: s.Bandwidth,
				Width:     s.Width,
				Height:    s.Height,
				Lang:      set.Lang,
				Enabled:   s.Enabled,
				Active:    active != nil && active.UniqueID == s.UniqueID,
			})
		}
	}
	return out
}

// SelectVideoTrack, SelectAudioTrack, SelectTextTrack forward to the
// relevant Stream's Switch. Returns false if not found or the type has no
// active Stream (spec §4.7).
func (c *Coordinator) SelectVideoTrack(id int, immediate bool) bool {
	return c.selectTrack(domain.ContentVideo, id, immediate)
}
func (c *Coordinator) SelectAudioTrack(id int, immediate bool) bool {
	return c.selectTrack(domain.ContentAudio, id, immediate)
}
func (c *Coordinator) SelectTextTrack(id int, immediate bool) bool {
	return c.selectTrack(domain.ContentText, id, immediate)
}

func (c *Coordinator) selectTrack(ct domain.ContentType, id int, immediate bool) bool {
	c.mu.Lock()
	s, hasStream := c.streams[ct]
	var target *domain.StreamInfo
	for _, set := range c.byType[ct] {
		if info := findByID(set, id); info != nil {
			target = info
			break
		}
	}
	c.mu.Unlock()

	if !hasStream || target == nil {
		return false
	}
	if err := s.Switch(target, immediate); err != nil {
		return false
	}
	c.mu.Lock()
	c.current[ct] = target
	c.mu.Unlock()
	return true
}

// EnableTextTrack toggles whether text tracks are considered at all.
func (c *Coordinator) EnableTextTrack(on bool) {
	c.mu.Lock()
	c.textEnabled = on
	c.mu.Unlock()
}

// EnableAdaptation toggles ABR; when disabled, ABR never proposes a switch.
func (c *Coordinator) EnableAdaptation(on bool) {
	c.mu.Lock()
	c.adaptationEnabled = on
	c.mu.Unlock()
	c.abrMgr.Enable(on)
}

// SetRestrictions re-evaluates every StreamInfo's Enabled flag (spec §4.7).
// Idempotent: applying the same value twice yields the same Enabled map
// (invariant 4).
func (c *Coordinator) SetRestrictions(r domain.Restrictions) error {
	c.mu.Lock()
	c.restrictions = r
	manifest := c.manifest
	c.mu.Unlock()

	for _, period := range manifest.Periods {
		for _, set := range period.StreamSets {
			for _, s := range set.Streams {
				s.Enabled = r.Allows(s)
			}
		}
	}

	err := c.reconcileCurrentAgainstRestrictions()
	c.publishTracksChanged()
	return err
}

// reconcileCurrentAgainstRestrictions switches away from any
// now-disabled currently-playing StreamInfo to the best enabled peer in
// its StreamSet, or another StreamSet of the same type; fails with
// NoPlayableStream if nothing remains.
func (c *Coordinator) reconcileCurrentAgainstRestrictions() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switched := false
	for ct, info := range c.current {
		if info.Enabled {
			continue
		}
		s, ok := c.streams[ct]
		if !ok {
			continue
		}
		replacement := c.findEnabledPeerLocked(ct, info)
		if replacement == nil {
			return fmt.Errorf("coordinator: %w", errNoPlayableStream)
		}
		if err := s.Switch(replacement, true); err != nil {
			return fmt.Errorf("coordinator: restriction switch: %w", err)
		}
		c.current[ct] = replacement
		switched = true
		metrics.AdaptationSwitchesTotal.WithLabelValues(string(ct), "restriction").Inc()
		if c.cfg.Bus != nil {
			c.cfg.Bus.Publish(domain.Event{Kind: domain.EventAdaptation, ContentType: ct, StreamID: replacement.UniqueID})
		}
	}
	if switched {
		metrics.RestrictionsAppliedTotal.Inc()
	}
	return nil
}

// reconcileRemoved switches away from any currently-playing StreamInfo that
// the most recent live manifest update dropped entirely, to the best
// enabled peer of the same content type (spec §4.7's live-update bullet).
// Unlike reconcileCurrentAgainstRestrictions, membership in removed is what
// decides a switch is needed, not the Enabled flag: a removed StreamInfo is
// never flipped to disabled, it simply disappears from the manifest.
func (c *Coordinator) reconcileRemoved(removed []*domain.StreamInfo) error {
	removedSet := make(map[*domain.StreamInfo]bool, len(removed))
	for _, r := range removed {
		removedSet[r] = true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for ct, info := range c.current {
		if !removedSet[info] {
			continue
		}
		s, ok := c.streams[ct]
		if !ok {
			continue
		}
		replacement := c.findEnabledPeerLocked(ct, info)
		if replacement == nil {
			return fmt.Errorf("coordinator: %w", errNoPlayableStream)
		}
		if err := s.Switch(replacement, true); err != nil {
			return fmt.Errorf("coordinator: removal switch: %w", err)
		}
		c.current[ct] = replacement
		metrics.AdaptationSwitchesTotal.WithLabelValues(string(ct), "removed").Inc()
		if c.cfg.Bus != nil {
			c.cfg.Bus.Publish(domain.Event{Kind: domain.EventAdaptation, ContentType: ct, StreamID: replacement.UniqueID})
		}
	}
	return nil
}

// maybeAdaptVideo re-consults the ABR Manager for the video content type
// whenever the Bandwidth Estimator produces a new sample (spec §4.4): if
// Choose proposes a different representation, Switch the Stream
// non-immediately (let the in-flight segment finish) and publish the
// adaptation/trackschanged events the switch implies.
func (c *Coordinator) maybeAdaptVideo(estimateBitsPerSec float64) {
	c.mu.Lock()
	if c.destroyed || !c.adaptationEnabled {
		c.mu.Unlock()
		return
	}
	s, hasStream := c.streams[domain.ContentVideo]
	current := c.current[domain.ContentVideo]
	sets := c.byType[domain.ContentVideo]
	c.mu.Unlock()

	if !hasStream || current == nil || len(sets) == 0 {
		return
	}

	candidates := candidatesOf(sets[0])
	currentCandidate := abr.Candidate{ID: current.UniqueID, Bandwidth: current.Bandwidth, Enabled: current.Enabled}
	id, switched := c.abrMgr.Choose(candidates, estimateBitsPerSec, currentCandidate)
	if !switched {
		return
	}
	replacement := findByID(sets[0], id)
	if replacement == nil {
		return
	}
	if err := s.Switch(replacement, false); err != nil {
		c.logger.Warn("abr switch failed", slog.String("error", err.Error()))
		return
	}

	direction := "down"
	if replacement.Bandwidth > current.Bandwidth {
		direction = "up"
	}
	metrics.AdaptationSwitchesTotal.WithLabelValues(string(domain.ContentVideo), direction).Inc()

	c.mu.Lock()
	c.current[domain.ContentVideo] = replacement
	c.mu.Unlock()

	if c.cfg.Bus != nil {
		c.cfg.Bus.Publish(domain.Event{Kind: domain.EventAdaptation, ContentType: domain.ContentVideo, StreamID: replacement.UniqueID})
		c.cfg.Bus.Publish(domain.Event{Kind: domain.EventTracksChanged})
	}
	c.logEvent(context.Background(), domain.Event{Kind: domain.EventAdaptation, ContentType: domain.ContentVideo, StreamID: replacement.UniqueID})
}

func (c *Coordinator) findEnabledPeerLocked(ct domain.ContentType, current *domain.StreamInfo) *domain.StreamInfo {
	for _, set := range c.byType[ct] {
		for _, s := range set.Streams {
			if s.Enabled && s.UniqueID != current.UniqueID {
				return s
			}
		}
	}
	return nil
}

// IsLive reports whether the active manifest is dynamic.
func (c *Coordinator) IsLive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isLiveLocked()
}

func (c *Coordinator) isLiveLocked() bool {
	return c.manifest != nil && c.manifest.Kind == domain.ManifestDynamic
}

// ResumeThreshold returns min_buffer_time (spec §4.7).
func (c *Coordinator) ResumeThreshold() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.manifest == nil {
		return 0
	}
	return c.manifest.MinBufferTime
}

// onSeek calls Resync on every Stream, ignoring the first seek event after
// start (the coordinator's own seek during start_streams), per spec §4.7.
func (c *Coordinator) onSeek() {
	c.mu.Lock()
	if !c.ignoredFirstSeek {
		c.ignoredFirstSeek = true
		c.mu.Unlock()
		return
	}
	streams := make([]*stream.Stream, 0, len(c.streams))
	for _, s := range c.streams {
		streams = append(streams, s)
	}
	c.mu.Unlock()

	for _, s := range streams {
		s.Resync()
	}
}

// Destroy cancels the update timer, destroys every Stream, and marks the
// Coordinator closed. Idempotent (invariant 5).
func (c *Coordinator) Destroy() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.destroyed = true
	streams := make([]*stream.Stream, 0, len(c.streams))
	contentTypes := make([]domain.ContentType, 0, len(c.streams))
	for ct, s := range c.streams {
		streams = append(streams, s)
		contentTypes = append(contentTypes, ct)
	}
	cancel := c.updateCancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, s := range streams {
		s.Destroy()
	}
	for _, ct := range contentTypes {
		metrics.ActiveStreams.WithLabelValues(string(ct)).Set(0)
	}
}

func candidatesOf(set *domain.StreamSet) []abr.Candidate {
	out := make([]abr.Candidate, len(set.Streams))
	for i, s := range set.Streams {
		out[i] = abr.Candidate{ID: s.UniqueID, Bandwidth: s.Bandwidth, Enabled: s.Enabled}
	}
	return out
}

func findByID(set *domain.StreamSet, id int) *domain.StreamInfo {
	for _, s := range set.Streams {
		if s.UniqueID == id {
			return s
		}
	}
	return nil
}

func (c *Coordinator) logEvent(ctx context.Context, evt domain.Event) {
	if c.cfg.EventLog == nil {
		return
	}
	if err := c.cfg.EventLog.LogEvent(ctx, evt); err != nil {
		c.logger.Warn("event log write failed", slog.String("error", err.Error()))
	}
}

// pickedStream is one content type's selected representation plus the
// SegmentIndex built for it during start_streams.
type pickedStream struct {
	ct    domain.ContentType
	info  *domain.StreamInfo
	index domain.SegmentIndex
}

// computePlayWindow implements spec §4.7's play window formula: the latest
// of the per-stream first-segment start times, to the earliest of the
// per-stream window ends. For a static manifest the end is the raw
// last-segment end time; for a live manifest it sits minBufferTime behind
// each stream's last-segment start, per spec §4.7 ("end = min over i of
// max(0, last().start_time - min_buffer_time)") so the live edge always
// leaves a buffer-sized cushion (invariant 6).
func computePlayWindow(picks []pickedStream, live bool, minBufferTime float64) (domain.PlayWindow, bool) {
	if len(picks) == 0 {
		return domain.PlayWindow{}, false
	}
	var start float64
	var ends []float64
	first := true
	for _, p := range picks {
		f, ok := p.index.First()
		if !ok {
			return domain.PlayWindow{}, false
		}
		if first || f.StartTime > start {
			start = f.StartTime
		}
		first = false

		l, ok := p.index.Last()
		if !ok {
			return domain.PlayWindow{}, false
		}
		end := l.EndTime
		if live {
			end = l.StartTime - minBufferTime
			if end < 0 {
				end = 0
			}
		}
		ends = append(ends, end)
	}
	sort.Float64s(ends)
	w := domain.PlayWindow{Start: start, End: ends[0]}
	if w.Disjoint() {
		return w, false
	}
	return w, true
}
