package segmentindex

import (
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/torrentstream/streamcore/internal/domain"
	"github.com/torrentstream/streamcore/internal/ports"
)

// Source implements domain.SegmentIndexSource as the three-variant tagged
// union spec §4.3 and §9's Design Notes call for (no inheritance: a kind
// tag plus the fields each kind needs). Create() is cached and idempotent
// via singleflight so concurrent callers (the Coordinator's parallel
// start_streams fan-out, §4.7 step 2) building the same representation's
// index share one construction.
type Source struct {
	Kind Kind

	// List variant.
	ListRefs []domain.SegmentReference

	// TemplateDuration variant.
	PeriodDuration  float64
	SegmentDuration float64
	Timescale       float64
	URLPattern      func(position int) string

	// TemplateTimeline / dynamic-live variant.
	Clock           ports.Clock
	AvailabilityRef time.Time // wall-clock time position 0 became available
	Timeline        []TimelineEntry // explicit segment durations, if known
	Live            bool

	group singleflight.Group
	cache *Index
}

// Kind tags which of the three manifest-described ways this Source was
// built from.
type Kind int

const (
	KindExplicitList Kind = iota
	KindTemplateDuration
	KindTemplateTimeline
)

// TimelineEntry is one <S t= d= r=> style entry: a run of r+1 segments each
// lasting d seconds.
type TimelineEntry struct {
	Duration float64
	Repeat   int
}

// Create produces this representation's SegmentIndex. The index is built on
// the first call and the same *Index is returned by every later call. Static
// sources (KindExplicitList, KindTemplateDuration) return that index frozen.
// KindTemplateTimeline with Live=true extends it, on every Create call, with
// the references wall-clock time has made available since the last one.
func (s *Source) Create() (domain.SegmentIndex, error) {
	_, err, _ := s.group.Do("create", func() (interface{}, error) {
		if s.cache != nil {
			return nil, nil
		}
		switch s.Kind {
		case KindExplicitList:
			s.cache = New(s.ListRefs)
		case KindTemplateDuration:
			s.cache = New(s.generateFromDuration())
		case KindTemplateTimeline:
			s.cache = New(s.generateFromTimeline())
		default:
			return nil, fmt.Errorf("segmentindex: unknown source kind %d", s.Kind)
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	if s.Live && s.Kind == KindTemplateTimeline {
		s.refreshLive()
	}
	return s.cache, nil
}

// generateFromDuration materialises ceil(periodDuration / segmentDuration)
// references at parse time, per spec §4.3.
func (s *Source) generateFromDuration() []domain.SegmentReference {
	segSeconds := s.SegmentDuration / s.Timescale
	if segSeconds <= 0 || s.PeriodDuration <= 0 {
		return nil
	}
	count := int(math.Ceil(s.PeriodDuration / segSeconds))
	refs := make([]domain.SegmentReference, 0, count)
	t := 0.0
	for i := 0; i < count; i++ {
		end := t + segSeconds
		if end > s.PeriodDuration {
			end = s.PeriodDuration
		}
		url := ""
		if s.URLPattern != nil {
			url = s.URLPattern(i)
		}
		refs = append(refs, domain.SegmentReference{
			Position:    i,
			StartTime:   t,
			EndTime:     end,
			URL:         url,
			ByteRangeLo: -1,
			ByteRangeHi: -1,
		})
		t = end
	}
	return refs
}

func (s *Source) generateFromTimeline() []domain.SegmentReference {
	refs := make([]domain.SegmentReference, 0, len(s.Timeline))
	t := 0.0
	pos := 0
	for _, entry := range s.Timeline {
		runs := entry.Repeat + 1
		for r := 0; r < runs; r++ {
			end := t + entry.Duration
			url := ""
			if s.URLPattern != nil {
				url = s.URLPattern(pos)
			}
			refs = append(refs, domain.SegmentReference{
				Position:    pos,
				StartTime:   t,
				EndTime:     end,
				URL:         url,
				ByteRangeLo: -1,
				ByteRangeHi: -1,
			})
			t = end
			pos++
		}
	}
	return refs
}

// MergeSegments folds a freshly-fetched Source's references into this
// Source's cached Index and evicts everything ending before prunedBefore,
// implementing the Manifest Updater's (C6) per-stream segment reconciliation
// (spec §4.6 step 3: "append new segment references, prune those before
// new.availability_start"). fresh's index is built through its own Create()
// if that has not happened yet; if this Source's own index was never
// created, this is a no-op.
func (s *Source) MergeSegments(fresh domain.SegmentIndexSource, prunedBefore float64) error {
	other, ok := fresh.(*Source)
	if !ok || s.cache == nil {
		return nil
	}
	if other.cache == nil {
		if _, err := other.Create(); err != nil {
			return err
		}
	}
	s.cache.Merge(other.cache.All())
	s.cache.Evict(prunedBefore)
	return nil
}

// refreshLive appends a new reference every time wall-clock availability
// would have produced one since the last known tail, for a dynamic
// manifest's continuously-advancing timeline (spec §4.3: "continuous
// re-evaluation against a wall clock").
func (s *Source) refreshLive() {
	if s.Clock == nil || len(s.Timeline) == 0 {
		return
	}
	segSeconds := s.Timeline[0].Duration
	if segSeconds <= 0 {
		return
	}
	elapsed := s.Clock.Now().Sub(s.AvailabilityRef).Seconds()
	if elapsed <= 0 {
		return
	}
	wantCount := int(elapsed/segSeconds) + 1
	haveCount := s.cache.Length()
	if wantCount <= haveCount {
		return
	}
	var newRefs []domain.SegmentReference
	for pos := haveCount; pos < wantCount; pos++ {
		start := float64(pos) * segSeconds
		url := ""
		if s.URLPattern != nil {
			url = s.URLPattern(pos)
		}
		newRefs = append(newRefs, domain.SegmentReference{
			Position:    pos,
			StartTime:   start,
			EndTime:     start + segSeconds,
			URL:         url,
			ByteRangeLo: -1,
			ByteRangeHi: -1,
		})
	}
	s.cache.Merge(newRefs)
}
