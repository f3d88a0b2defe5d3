// Package domain holds the data model shared by every component of the
// adaptive streaming core: manifests, stream sets, representations, segment
// references, and the event/error vocabulary components communicate with.
package domain

// ManifestKind distinguishes an on-demand manifest from one expected to be
// refetched periodically.
type ManifestKind string

const (
	ManifestStatic  ManifestKind = "static"
	ManifestDynamic ManifestKind = "dynamic"
)

// ContentType is one of the three media types the core drives independently.
type ContentType string

const (
	ContentVideo ContentType = "video"
	ContentAudio ContentType = "audio"
	ContentText  ContentType = "text"
)

// Manifest is the root of a parsed streaming manifest. The core never parses
// XML/JSON itself (see internal/manifestadapter for that boundary); it only
// consumes this structure.
type Manifest struct {
	Kind          ManifestKind
	MinBufferTime float64 // seconds, >= 0
	UpdateURL     string  // present only when Kind == ManifestDynamic
	UpdatePeriod  float64 // seconds, > 0; present only when Kind == ManifestDynamic
	Periods       []*Period
}

// Period is a contiguous span of the presentation.
type Period struct {
	Start      float64 // seconds, >= 0
	Duration   float64 // seconds, > 0; required when Manifest.Kind == ManifestStatic
	StreamSets []*StreamSet
}

// StreamSet groups interchangeable representations of one media component
// (DASH calls this an AdaptationSet).
type StreamSet struct {
	UniqueID   int // dense, unique within the manifest's lifetime
	Type       ContentType
	Lang       string // BCP-47, optional
	Main       bool
	DRMSchemes []string // opaque DRM descriptors
	Streams    []*StreamInfo
}

// StreamInfo is one representation within a StreamSet.
type StreamInfo struct {
	UniqueID           int // dense, stable across the manifest's lifetime
	FullMimeType       string
	Bandwidth          int64 // bits/sec
	Width              int   // video only
	Height             int   // video only
	TimestampOffset    float64
	SegmentIndexSource SegmentIndexSource
	SegmentInitSource  SegmentInitSource // optional
	Enabled            bool
}

// SegmentIndexSource is implemented by internal/segmentindex; declared here
// to avoid a domain -> segmentindex import cycle while letting StreamInfo
// hold a handle to one.
type SegmentIndexSource interface {
	Create() (SegmentIndex, error)
}

// SegmentIndex is the subset of internal/segmentindex.Index the domain model
// needs to reference without importing that package's concrete type.
type SegmentIndex interface {
	First() (SegmentReference, bool)
	Last() (SegmentReference, bool)
	Length() int
	Find(t float64) (SegmentReference, bool)
}

// SegmentInitSource produces the initialisation bytes for a representation,
// if any (fetched once before the first media segment).
type SegmentInitSource interface {
	CreateInit() ([]byte, error)
}

// BasicMimeType returns the container + top-level codec family used by
// Manifest Processor (C9) to compute compatibility groups, stripping codec
// profile/level detail (e.g. "video/mp4;codecs=\"avc1.64001f\"" ->
// "video/mp4;avc1").
func (s *StreamInfo) BasicMimeType() string {
	return basicMimeType(s.FullMimeType)
}

func basicMimeType(full string) string {
	container, codecs, ok := splitMimeCodecs(full)
	if !ok {
		return full
	}
	family := codecs
	if idx := indexOf(codecs, '.'); idx >= 0 {
		family = codecs[:idx]
	}
	return container + ";" + family
}

func splitMimeCodecs(full string) (container, codecs string, ok bool) {
	const marker = ";codecs=\""
	idx := indexOfSub(full, marker)
	if idx < 0 {
		return full, "", false
	}
	container = full[:idx]
	rest := full[idx+len(marker):]
	if end := indexOf(rest, '"'); end >= 0 {
		rest = rest[:end]
	}
	return container, rest, true
}

func indexOf(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

func indexOfSub(s, sub string) int {
	n, m := len(s), len(sub)
	if m == 0 || m > n {
		return -1
	}
	for i := 0; i+m <= n; i++ {
		if s[i:i+m] == sub {
			return i
		}
	}
	return -1
}
