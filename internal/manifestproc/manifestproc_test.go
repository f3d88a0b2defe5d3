package manifestproc

import (
	"errors"
	"testing"

	"github.com/torrentstream/streamcore/internal/domain"
	"github.com/torrentstream/streamcore/internal/faketest"
)

func buildManifest() *domain.Manifest {
	return &domain.Manifest{
		Kind: domain.ManifestStatic,
		Periods: []*domain.Period{{
			Duration: 60,
			StreamSets: []*domain.StreamSet{
				{
					Type: domain.ContentVideo,
					Streams: []*domain.StreamInfo{
						{FullMimeType: `video/mp4;codecs="avc1.64001f"`, Bandwidth: 1_000_000},
						{FullMimeType: `video/mp4;codecs="avc1.64001f"`, Bandwidth: 3_000_000},
						{FullMimeType: `video/unsupported`, Bandwidth: 500_000},
					},
				},
				{
					Type: domain.ContentAudio,
					Streams: []*domain.StreamInfo{
						{FullMimeType: `audio/mp4;codecs="mp4a.40.2"`, Bandwidth: 128_000},
					},
				},
				{
					// Entirely unsupported set: should be dropped for emptiness.
					Type: domain.ContentText,
					Streams: []*domain.StreamInfo{
						{FullMimeType: `text/unsupported`},
					},
				},
			},
		}},
	}
}

func TestProcessAssignsUniqueIDsAndDropsUnsupported(t *testing.T) {
	m := buildManifest()
	support := &faketest.TypeSupport{Accepted: map[string]bool{
		`video/mp4;codecs="avc1.64001f"`: true,
		`audio/mp4;codecs="mp4a.40.2"`:   true,
	}}

	out, err := Process(m, support)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	period := out.Periods[0]
	if len(period.StreamSets) != 2 { // text set dropped as empty
		t.Fatalf("StreamSets = %d, want 2 (video + audio)", len(period.StreamSets))
	}

	seenSets := map[int]bool{}
	seenStreams := map[int]bool{}
	for _, set := range period.StreamSets {
		if seenSets[set.UniqueID] {
			t.Fatalf("duplicate StreamSet.UniqueID %d", set.UniqueID)
		}
		seenSets[set.UniqueID] = true
		for _, s := range set.Streams {
			if seenStreams[s.UniqueID] {
				t.Fatalf("duplicate StreamInfo.UniqueID %d", s.UniqueID)
			}
			seenStreams[s.UniqueID] = true
			if !s.Enabled {
				t.Fatalf("stream %d should default Enabled=true", s.UniqueID)
			}
		}
	}
}

func TestProcessFailsWhenEverythingFiltered(t *testing.T) {
	m := buildManifest()
	support := &faketest.TypeSupport{Accepted: map[string]bool{}} // nothing supported
	_, err := Process(m, support)
	if !errors.Is(err, domain.ErrManifestEmpty) {
		t.Fatalf("Process() error = %v, want ErrManifestEmpty", err)
	}
}

func TestProcessVideoCompatibilityGroupKeepsOnlyOneSet(t *testing.T) {
	m := &domain.Manifest{Periods: []*domain.Period{{
		StreamSets: []*domain.StreamSet{
			{Type: domain.ContentVideo, Streams: []*domain.StreamInfo{{FullMimeType: "video/mp4;codecs=\"avc1\""}}},
			{Type: domain.ContentVideo, Streams: []*domain.StreamInfo{{FullMimeType: "video/webm;codecs=\"vp9\""}}},
		},
	}}}
	out, err := Process(m, nil) // nil TypeSupport accepts everything
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(out.Periods[0].StreamSets) != 1 {
		t.Fatalf("video StreamSets = %d, want exactly 1", len(out.Periods[0].StreamSets))
	}
}

func TestProcessAudioKeepsAllMimeCompatibleSets(t *testing.T) {
	m := &domain.Manifest{Periods: []*domain.Period{{
		StreamSets: []*domain.StreamSet{
			{Type: domain.ContentAudio, Streams: []*domain.StreamInfo{{FullMimeType: "audio/mp4;codecs=\"mp4a.40.2\""}}},
			{Type: domain.ContentAudio, Streams: []*domain.StreamInfo{{FullMimeType: "audio/mp4;codecs=\"mp4a.40.5\""}}},
			{Type: domain.ContentAudio, Streams: []*domain.StreamInfo{{FullMimeType: "audio/webm;codecs=\"opus\""}}},
		},
	}}}
	out, err := Process(m, nil)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(out.Periods[0].StreamSets) != 2 {
		t.Fatalf("audio StreamSets = %d, want 2 (both mp4/mp4a families)", len(out.Periods[0].StreamSets))
	}
}
