package segmentindex

import (
	"testing"

	"github.com/torrentstream/streamcore/internal/domain"
)

func refs(pairs ...[2]float64) []domain.SegmentReference {
	out := make([]domain.SegmentReference, len(pairs))
	for i, p := range pairs {
		out[i] = domain.SegmentReference{Position: i, StartTime: p[0], EndTime: p[1]}
	}
	return out
}

func TestFirstLastLength(t *testing.T) {
	idx := New(refs([2]float64{0, 6}, [2]float64{6, 12}, [2]float64{12, 18}))
	first, ok := idx.First()
	if !ok || first.StartTime != 0 {
		t.Fatalf("First() = %v, %v", first, ok)
	}
	last, ok := idx.Last()
	if !ok || last.EndTime != 18 {
		t.Fatalf("Last() = %v, %v", last, ok)
	}
	if idx.Length() != 3 {
		t.Fatalf("Length() = %d, want 3", idx.Length())
	}
}

func TestFindContainingAndGap(t *testing.T) {
	idx := New(refs([2]float64{0, 6}, [2]float64{8, 14}))
	got, ok := idx.Find(3)
	if !ok || got.StartTime != 0 {
		t.Fatalf("Find(3) = %v, %v; want first ref", got, ok)
	}
	got, ok = idx.Find(7) // gap between 6 and 8
	if !ok || got.StartTime != 8 {
		t.Fatalf("Find(7) = %v, %v; want nearest following ref", got, ok)
	}
	_, ok = idx.Find(100)
	if ok {
		t.Fatalf("Find(100) beyond tail should report not found")
	}
}

func TestFindOnEmptyIndexReturnsFalse(t *testing.T) {
	idx := New(nil)
	_, ok := idx.Find(0)
	if ok {
		t.Fatal("Find on empty index must return ok=false, never panic or throw")
	}
}

func TestCorrectShiftsEveryReference(t *testing.T) {
	idx := New(refs([2]float64{1.0, 7.0}, [2]float64{7.0, 13.0}))
	idx.Correct(0.02)
	all := idx.All()
	if all[0].StartTime != 1.02 || all[0].EndTime != 7.02 {
		t.Fatalf("first ref not shifted correctly: %+v", all[0])
	}
	if all[1].StartTime != 7.02 || all[1].EndTime != 13.02 {
		t.Fatalf("second ref not shifted correctly: %+v", all[1])
	}
}

func TestCorrectZeroIsNoop(t *testing.T) {
	idx := New(refs([2]float64{1, 2}))
	idx.Correct(0)
	all := idx.All()
	if all[0].StartTime != 1 {
		t.Fatalf("Correct(0) mutated the index: %+v", all[0])
	}
}

func TestMergeReplacesTail(t *testing.T) {
	idx := New(refs([2]float64{0, 6}, [2]float64{6, 12}, [2]float64{12, 18}))
	idx.Merge(refs([2]float64{12, 18}, [2]float64{18, 24}))
	all := idx.All()
	if len(all) != 4 {
		t.Fatalf("Merge() left %d refs, want 4", len(all))
	}
	if all[len(all)-1].EndTime != 24 {
		t.Fatalf("Merge() did not append new tail: %+v", all)
	}
}

func TestEvictRemovesExpiredHead(t *testing.T) {
	idx := New(refs([2]float64{0, 6}, [2]float64{6, 12}, [2]float64{12, 18}))
	idx.Evict(12)
	all := idx.All()
	if len(all) != 1 || all[0].StartTime != 12 {
		t.Fatalf("Evict(12) left %+v, want only the [12,18) ref", all)
	}
}
