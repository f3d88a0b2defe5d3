package stream

import (
	"testing"
	"time"

	"github.com/torrentstream/streamcore/internal/bandwidth"
	"github.com/torrentstream/streamcore/internal/domain"
	"github.com/torrentstream/streamcore/internal/eventbus"
	"github.com/torrentstream/streamcore/internal/faketest"
	"github.com/torrentstream/streamcore/internal/segmentindex"
)

func staticStreamInfo(t *testing.T, urls ...string) *domain.StreamInfo {
	t.Helper()
	refs := make([]domain.SegmentReference, len(urls))
	for i, u := range urls {
		refs[i] = domain.SegmentReference{Position: i, StartTime: float64(i * 6), EndTime: float64((i + 1) * 6), URL: u, ByteRangeLo: -1, ByteRangeHi: -1}
	}
	return &domain.StreamInfo{
		UniqueID:           1,
		FullMimeType:       "video/mp4",
		SegmentIndexSource: &segmentindex.Source{Kind: segmentindex.KindExplicitList, ListRefs: refs},
	}
}

func TestStreamStartsAndBuffersFirstSegment(t *testing.T) {
	info := staticStreamInfo(t, "seg0.m4s")
	fetcher := faketest.NewFetcher()
	fetcher.Bodies["seg0.m4s"] = []byte("data0")
	sink := faketest.NewMediaSink()

	playhead := 0.0
	s := New(domain.ContentVideo, true, sink, fetcher, faketest.NewClock(time.Now()), bandwidth.New(nil), nil, Callbacks{Playhead: func() float64 { return playhead }}, nil)

	if err := s.Switch(info, false); err != nil {
		t.Fatalf("Switch() error = %v", err)
	}

	select {
	case <-s.Started():
	case <-time.After(2 * time.Second):
		t.Fatal("Stream did not reach Started within timeout")
	}
}

func TestStreamEndsAfterLastStaticSegment(t *testing.T) {
	info := staticStreamInfo(t, "seg0.m4s")
	fetcher := faketest.NewFetcher()
	fetcher.Bodies["seg0.m4s"] = []byte("data0")
	sink := faketest.NewMediaSink()

	playhead := 100.0 // past window.Ahead beyond the only segment
	s := New(domain.ContentVideo, true, sink, fetcher, faketest.NewClock(time.Now()), bandwidth.New(nil), nil, Callbacks{Playhead: func() float64 { return playhead }}, nil)

	if err := s.Switch(info, false); err != nil {
		t.Fatalf("Switch() error = %v", err)
	}

	select {
	case <-s.Ended():
	case <-time.After(2 * time.Second):
		t.Fatal("Stream did not reach Ended within timeout")
	}
}

func TestStreamPublishesErrorOnPersistentFetchFailure(t *testing.T) {
	info := staticStreamInfo(t, "seg0.m4s")
	fetcher := faketest.NewFetcher()
	fetcher.FailURLs["seg0.m4s"] = 10 // exhaust all retries

	sink := faketest.NewMediaSink()
	bus := eventbus.New(nil)
	go bus.Run()
	defer bus.Close()
	ch, unsub := bus.Subscribe(domain.EventError)
	defer unsub()

	s := New(domain.ContentVideo, true, sink, fetcher, faketest.NewClock(time.Now()), bandwidth.New(nil), bus, Callbacks{Playhead: func() float64 { return 0 }}, nil)
	if err := s.Switch(info, false); err != nil {
		t.Fatalf("Switch() error = %v", err)
	}

	select {
	case evt := <-ch:
		if evt.Kind != domain.EventError {
			t.Fatalf("got event kind %v, want EventError", evt.Kind)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("expected an error event after retry exhaustion")
	}
}

func TestDestroyIsIdempotent(t *testing.T) {
	fetcher := faketest.NewFetcher()
	fetcher.Bodies["seg0.m4s"] = []byte("data0")
	sink := faketest.NewMediaSink()

	s := New(domain.ContentVideo, true, sink, fetcher, faketest.NewClock(time.Now()), bandwidth.New(nil), nil, Callbacks{Playhead: func() float64 { return 0 }}, nil)
	s.Destroy()
	s.Destroy() // must not panic
	if s.currentState() != StateDestroyed {
		t.Fatalf("state = %v, want StateDestroyed", s.currentState())
	}
}
