// Package ports declares the external collaborators the adaptive streaming
// core consumes (spec §6): fetcher, media sink, clock, type support and
// credential provider. The core never imports a concrete transport,
// decoder, or DRM package; it only depends on these narrow interfaces,
// isolating it from any specific transport implementation.
package ports

import (
	"context"
	"time"
)

// ByteRange is an inclusive byte range; Hi == -1 means "to end of resource".
type ByteRange struct {
	Lo int64
	Hi int64
}

// Fetcher performs an async byte fetch for a manifest or segment URL.
// Implementations must honour ctx cancellation and return an error
// satisfying errors.Is(err, context.Canceled) in that case so Stream can
// distinguish an abort from a network failure.
type Fetcher interface {
	Fetch(ctx context.Context, url string, r *ByteRange) ([]byte, error)
}

// TrackHandle identifies one media-sink track previously created by
// AddTrack.
type TrackHandle int

// MediaSink is the append-only downstream buffer the core feeds (spec §6).
// One handle per content type; Stream owns exactly one handle for its
// lifetime.
type MediaSink interface {
	AddTrack(mime string) (TrackHandle, error)
	Append(h TrackHandle, data []byte) error
	Evict(h TrackHandle, start, end float64) error
	SetTimestampOffset(h TrackHandle, delta float64) error
	SetDuration(d float64) error
	Seek(t float64) error
	EndOfStream() error
	ReadyState() SinkReadyState

	// Subscribe registers fn to be called whenever the sink emits one of
	// "open", "seeking", "time_update". Returns an unsubscribe func.
	Subscribe(event string, fn func()) (unsubscribe func())
}

// SinkReadyState mirrors the media sink's readiness.
type SinkReadyState int

const (
	SinkClosed SinkReadyState = iota
	SinkOpening
	SinkOpen
)

// Clock supplies monotonic and wall-clock time, injected so Stream and the
// Coordinator's live-update timer are deterministically testable.
type Clock interface {
	Now() time.Time      // wall clock, for live availability windows
	Monotonic() float64  // seconds, for playhead/backoff arithmetic
	After(d time.Duration) <-chan time.Time
}

// TypeSupport is the platform's codec-acceptance predicate, consulted by
// the Manifest Processor (C9) to drop StreamInfos the sink cannot decode.
type TypeSupport interface {
	Supports(mime string) bool
}

// CredentialProvider supplies auth material to the Fetcher at construction
// time, re-expressing the source's module-level global auth token (spec
// §9 Design Notes) as an explicit, injected collaborator the core never
// reads directly.
type CredentialProvider interface {
	Credential(ctx context.Context) (string, error)
}
