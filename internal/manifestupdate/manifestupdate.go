// Package manifestupdate implements the Manifest Updater (C6): merges a
// freshly fetched manifest into the live one for a dynamic (live) stream,
// returning the StreamInfos that disappeared so the Coordinator can switch
// away from and destroy them.
package manifestupdate

import (
	"fmt"

	"github.com/torrentstream/streamcore/internal/domain"
	"github.com/torrentstream/streamcore/internal/metrics"
)

// Update reconciles old (the manifest currently in use) with fresh (a
// just-fetched manifest of the same kind), mutating old's segment indices
// in place via their SegmentIndexSource where matched, and returns every
// StreamInfo present in old but absent in fresh (spec §4.6).
//
// Fails with domain.ErrManifestIncompatible if kind differs or period
// alignment is impossible.
func Update(old, fresh *domain.Manifest, availabilityStart float64) (removed []*domain.StreamInfo, err error) {
	if old.Kind != domain.ManifestDynamic || fresh.Kind != domain.ManifestDynamic {
		return nil, fmt.Errorf("%w: kind mismatch (old=%s fresh=%s)", domain.ErrManifestIncompatible, old.Kind, fresh.Kind)
	}
	if len(old.Periods) != len(fresh.Periods) {
		return nil, fmt.Errorf("%w: period count changed (old=%d fresh=%d)", domain.ErrManifestIncompatible, len(old.Periods), len(fresh.Periods))
	}

	for i, oldPeriod := range old.Periods {
		freshPeriod := fresh.Periods[i]
		if oldPeriod.Start != freshPeriod.Start {
			return nil, fmt.Errorf("%w: period %d start changed (old=%v fresh=%v)", domain.ErrManifestIncompatible, i, oldPeriod.Start, freshPeriod.Start)
		}

		freshByKey := indexStreamSets(freshPeriod)
		matchedFresh := make(map[*domain.StreamSet]bool, len(freshPeriod.StreamSets))

		for _, oldSet := range oldPeriod.StreamSets {
			freshSet, ok := freshByKey[setKey(oldSet)]
			if !ok {
				// Entire set vanished: every stream in it is removed.
				removed = append(removed, oldSet.Streams...)
				continue
			}
			matchedFresh[freshSet] = true
			setRemoved := mergeStreamSet(oldSet, freshSet, availabilityStart)
			removed = append(removed, setRemoved...)
		}

		// Fresh sets with no old counterpart are new additions; append them.
		for _, freshSet := range freshPeriod.StreamSets {
			if !matchedFresh[freshSet] {
				oldPeriod.StreamSets = append(oldPeriod.StreamSets, freshSet)
			}
		}
	}

	old.UpdatePeriod = fresh.UpdatePeriod
	old.UpdateURL = fresh.UpdateURL
	return removed, nil
}

func setKey(s *domain.StreamSet) string {
	return fmt.Sprintf("%d", s.UniqueID)
}

func indexStreamSets(p *domain.Period) map[string]*domain.StreamSet {
	out := make(map[string]*domain.StreamSet, len(p.StreamSets))
	for _, s := range p.StreamSets {
		out[setKey(s)] = s
	}
	return out
}

// mergeStreamSet reconciles oldSet's StreamInfos against freshSet's by
// UniqueID, updating survivors' segment indices and reporting the ones
// that disappeared.
func mergeStreamSet(oldSet, freshSet *domain.StreamSet, availabilityStart float64) (removed []*domain.StreamInfo) {
	freshByID := make(map[int]*domain.StreamInfo, len(freshSet.Streams))
	for _, s := range freshSet.Streams {
		freshByID[s.UniqueID] = s
	}

	var kept []*domain.StreamInfo
	matchedFreshIDs := make(map[int]bool)
	for _, oldStream := range oldSet.Streams {
		freshStream, ok := freshByID[oldStream.UniqueID]
		if !ok {
			removed = append(removed, oldStream)
			continue
		}
		matchedFreshIDs[oldStream.UniqueID] = true
		mergeSegments(oldStream, freshStream, availabilityStart)
		kept = append(kept, oldStream)
	}
	for _, freshStream := range freshSet.Streams {
		if !matchedFreshIDs[freshStream.UniqueID] {
			kept = append(kept, freshStream)
		}
	}
	oldSet.Streams = kept
	return removed
}

// segmentSource is the narrow surface mergeSegments needs from a live
// SegmentIndexSource: appending fresh references and pruning stale ones.
// internal/segmentindex.Source satisfies this via its Merge-backed Index.
type segmentSource interface {
	MergeSegments(fresh domain.SegmentIndexSource, prunedBefore float64) error
}

// mergeSegments updates oldStream's durations from freshStream and, when
// oldStream's index source supports it, appends new segment references and
// prunes those before availabilityStart (spec §4.6 step 3). Sources that do
// not implement segmentSource (e.g. a static explicit list) are left
// untouched — only live sources need re-merging.
func mergeSegments(oldStream, freshStream *domain.StreamInfo, availabilityStart float64) {
	oldStream.Bandwidth = freshStream.Bandwidth
	oldStream.FullMimeType = freshStream.FullMimeType

	if merger, ok := oldStream.SegmentIndexSource.(segmentSource); ok {
		if err := merger.MergeSegments(freshStream.SegmentIndexSource, availabilityStart); err != nil {
			metrics.SegmentIndexMergeErrorsTotal.Inc()
		}
	}
}
