// Package segmentindex implements the Segment Index (C2) and Segment Index
// Source (C3): an ordered, mutable sequence of domain.SegmentReference for
// one representation, and the three ways manifests describe how to build
// one (explicit list, template+duration, template+timeline/dynamic live).
package segmentindex

import (
	"sort"
	"sync"

	"github.com/torrentstream/streamcore/internal/domain"
)

// Index is a concrete domain.SegmentIndex: sorted, non-overlapping
// SegmentReferences with correct/merge/evict for live updates (spec §4.2).
// Safe for concurrent use: the Coordinator reads it for track listing and
// window computation while a live source mutates it from the update loop.
type Index struct {
	mu   sync.RWMutex
	refs []domain.SegmentReference
}

// New builds an Index from refs, which must already be sorted by
// StartTime; New does not sort defensively so callers that violate
// invariant 1 (spec §3) fail loudly in tests rather than silently.
func New(refs []domain.SegmentReference) *Index {
	cp := make([]domain.SegmentReference, len(refs))
	copy(cp, refs)
	return &Index{refs: cp}
}

func (idx *Index) First() (domain.SegmentReference, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if len(idx.refs) == 0 {
		return domain.SegmentReference{}, false
	}
	return idx.refs[0], true
}

func (idx *Index) Last() (domain.SegmentReference, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if len(idx.refs) == 0 {
		return domain.SegmentReference{}, false
	}
	return idx.refs[len(idx.refs)-1], true
}

func (idx *Index) Length() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.refs)
}

// Find returns the reference containing t, or the nearest following
// reference if t falls in a gap; ok is false if t is beyond the tail or the
// index is empty (spec §4.2: "never throws").
func (idx *Index) Find(t float64) (domain.SegmentReference, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if len(idx.refs) == 0 {
		return domain.SegmentReference{}, false
	}
	i := sort.Search(len(idx.refs), func(i int) bool {
		return idx.refs[i].EndTime > t
	})
	if i == len(idx.refs) {
		return domain.SegmentReference{}, false
	}
	return idx.refs[i], true
}

// Correct shifts every reference by delta seconds. Callers must apply this
// exactly once per index (spec §4.2: "idempotent only for δ=0").
func (idx *Index) Correct(delta float64) {
	if delta == 0 {
		return
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for i := range idx.refs {
		idx.refs[i].StartTime += delta
		idx.refs[i].EndTime += delta
	}
}

// Merge replaces the tail of this index with other, starting at the first
// position where other's StartTime <= an existing reference's StartTime;
// used by live manifest updates (spec §4.2).
func (idx *Index) Merge(other []domain.SegmentReference) {
	if len(other) == 0 {
		return
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	cut := len(idx.refs)
	for i, r := range idx.refs {
		if r.StartTime >= other[0].StartTime {
			cut = i
			break
		}
	}
	merged := make([]domain.SegmentReference, 0, cut+len(other))
	merged = append(merged, idx.refs[:cut]...)
	merged = append(merged, other...)
	idx.refs = merged
}

// Evict removes references whose EndTime <= threshold, preserving
// contiguity (invariant 3).
func (idx *Index) Evict(threshold float64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	cut := 0
	for cut < len(idx.refs) && idx.refs[cut].EndTime <= threshold {
		cut++
	}
	if cut == 0 {
		return
	}
	idx.refs = idx.refs[cut:]
}

// All returns a defensive copy of the current references, for window
// computation and track-listing snapshots.
func (idx *Index) All() []domain.SegmentReference {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]domain.SegmentReference, len(idx.refs))
	copy(out, idx.refs)
	return out
}
