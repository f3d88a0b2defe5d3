package domain

// SegmentReference describes one fetchable media segment's position on the
// presentation timeline and, optionally, its byte range within a larger
// resource.
type SegmentReference struct {
	Position    int     // monotonically increasing within a SegmentIndex
	StartTime   float64 // seconds, presentation timeline
	EndTime     float64 // seconds, presentation timeline; > StartTime
	URL         string
	ByteRangeLo int64 // -1 when the URL is a whole resource
	ByteRangeHi int64 // -1 when the URL is a whole resource
}

// Duration returns EndTime - StartTime.
func (s SegmentReference) Duration() float64 {
	return s.EndTime - s.StartTime
}

// Contains reports whether t falls within [StartTime, EndTime).
func (s SegmentReference) Contains(t float64) bool {
	return t >= s.StartTime && t < s.EndTime
}
