package manifestupdate

import (
	"errors"
	"testing"

	"github.com/torrentstream/streamcore/internal/domain"
)

func dynManifest(periodStart float64, setID int, streams ...*domain.StreamInfo) *domain.Manifest {
	return &domain.Manifest{
		Kind: domain.ManifestDynamic,
		Periods: []*domain.Period{{
			Start: periodStart,
			StreamSets: []*domain.StreamSet{
				{UniqueID: setID, Type: domain.ContentVideo, Streams: streams},
			},
		}},
	}
}

func TestUpdateRejectsKindMismatch(t *testing.T) {
	old := dynManifest(0, 1, &domain.StreamInfo{UniqueID: 1})
	fresh := &domain.Manifest{Kind: domain.ManifestStatic, Periods: old.Periods}
	_, err := Update(old, fresh, 0)
	if !errors.Is(err, domain.ErrManifestIncompatible) {
		t.Fatalf("Update() error = %v, want ErrManifestIncompatible", err)
	}
}

func TestUpdateRejectsPeriodCountChange(t *testing.T) {
	old := dynManifest(0, 1, &domain.StreamInfo{UniqueID: 1})
	fresh := &domain.Manifest{Kind: domain.ManifestDynamic, Periods: append(old.Periods, old.Periods[0])}
	_, err := Update(old, fresh, 0)
	if !errors.Is(err, domain.ErrManifestIncompatible) {
		t.Fatalf("Update() error = %v, want ErrManifestIncompatible", err)
	}
}

func TestUpdateReportsRemovedStreamInfo(t *testing.T) {
	s1 := &domain.StreamInfo{UniqueID: 1, Bandwidth: 1_000_000}
	s2 := &domain.StreamInfo{UniqueID: 2, Bandwidth: 3_000_000}
	old := dynManifest(0, 1, s1, s2)

	// Fresh manifest only has s1: s2 was removed upstream.
	fresh := dynManifest(0, 1, &domain.StreamInfo{UniqueID: 1, Bandwidth: 1_200_000})

	removed, err := Update(old, fresh, 0)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if len(removed) != 1 || removed[0].UniqueID != 2 {
		t.Fatalf("removed = %+v, want [StreamInfo{UniqueID:2}]", removed)
	}

	// Surviving stream's bandwidth should be updated from fresh.
	survivors := old.Periods[0].StreamSets[0].Streams
	if len(survivors) != 1 || survivors[0].Bandwidth != 1_200_000 {
		t.Fatalf("surviving stream = %+v, want Bandwidth 1200000", survivors)
	}
}

func TestUpdateAddsNewStreamInfo(t *testing.T) {
	old := dynManifest(0, 1, &domain.StreamInfo{UniqueID: 1})
	fresh := dynManifest(0, 1,
		&domain.StreamInfo{UniqueID: 1},
		&domain.StreamInfo{UniqueID: 3}, // newly appeared representation
	)
	removed, err := Update(old, fresh, 0)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if len(removed) != 0 {
		t.Fatalf("removed = %+v, want none", removed)
	}
	if len(old.Periods[0].StreamSets[0].Streams) != 2 {
		t.Fatalf("expected new representation to be appended")
	}
}
