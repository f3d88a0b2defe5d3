package domain

// Restrictions bounds which StreamInfos the Coordinator will consider
// playable. A zero value field means "no bound" on that axis.
type Restrictions struct {
	MaxWidth     int
	MaxHeight    int
	MaxBandwidth int64
	MinBandwidth int64
}

// Allows reports whether s satisfies r. Used by the Coordinator to recompute
// each StreamInfo's Enabled flag.
func (r Restrictions) Allows(s *StreamInfo) bool {
	if r.MaxWidth > 0 && s.Width > r.MaxWidth {
		return false
	}
	if r.MaxHeight > 0 && s.Height > r.MaxHeight {
		return false
	}
	if r.MaxBandwidth > 0 && s.Bandwidth > r.MaxBandwidth {
		return false
	}
	if r.MinBandwidth > 0 && s.Bandwidth < r.MinBandwidth {
		return false
	}
	return true
}

// PlayWindow is the mutually available time range across the currently
// selected indices (spec §4.7).
type PlayWindow struct {
	Start float64
	End   float64
}

// Disjoint reports whether the window is inverted (Start > End); a
// zero-length window is not disjoint.
func (w PlayWindow) Disjoint() bool {
	return w.Start > w.End
}

// Track is a materialised, read-only view of one StreamInfo for the track
// listing API (video_tracks/audio_tracks/text_tracks).
type Track struct {
	ID        int
	Bandwidth int64
	Width     int
	Height    int
	Lang      string
	Active    bool
	Enabled   bool
}
