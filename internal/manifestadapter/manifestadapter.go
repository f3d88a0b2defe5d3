// Package manifestadapter converts a parsed github.com/zencoder/go-dash/v3
// manifest into the core's domain.Manifest. The core itself never parses
// XML (internal/domain's doc comment calls this out explicitly); this
// package is the one place that boundary is crossed, so a demo or host
// application can hand the Coordinator a real DASH manifest fixture
// instead of a hand-built domain.Manifest.
//
// Grounded on other_examples/GintGld-fizteh-radio__dash.go's
// mpd.ReadFromFile/mpd.NewDynamicMPD usage for which library and call
// shapes this corpus reaches for, and on
// _examples/Cawb07-go-dash/mpd/duration.go's xsd-duration parsing
// approach (a regex splitting P[nD]T[nH][nM][nS] into fields) for
// parseISODuration below, since go-dash represents every duration as a
// plain xsd:duration string rather than a pre-parsed value.
package manifestadapter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/zencoder/go-dash/v3/mpd"

	"github.com/torrentstream/streamcore/internal/domain"
	"github.com/torrentstream/streamcore/internal/ports"
	"github.com/torrentstream/streamcore/internal/segmentindex"
)

// FromMPD converts a parsed *mpd.MPD into a domain.Manifest. clock is only
// consulted for dynamic manifests, to anchor each representation's
// template-timeline Source at the moment of conversion; pass nil for a
// static manifest.
func FromMPD(m *mpd.MPD, clock ports.Clock) (*domain.Manifest, error) {
	if m == nil {
		return nil, fmt.Errorf("manifestadapter: nil MPD")
	}

	kind := domain.ManifestStatic
	if m.Type != nil && *m.Type == "dynamic" {
		kind = domain.ManifestDynamic
	}

	out := &domain.Manifest{
		Kind:          kind,
		MinBufferTime: seconds(m.MinBufferTime),
	}
	if kind == domain.ManifestDynamic {
		out.UpdatePeriod = seconds(m.MinimumUpdatePeriod)
		if out.UpdatePeriod <= 0 {
			out.UpdatePeriod = 5
		}
	}

	start := 0.0
	for _, p := range m.Periods {
		period, err := convertPeriod(p, start, kind, clock)
		if err != nil {
			return nil, err
		}
		out.Periods = append(out.Periods, period)
		start += period.Duration
	}
	if len(out.Periods) == 0 {
		return nil, fmt.Errorf("manifestadapter: manifest has no periods")
	}
	return out, nil
}

func convertPeriod(p *mpd.Period, defaultStart float64, kind domain.ManifestKind, clock ports.Clock) (*domain.Period, error) {
	period := &domain.Period{Start: defaultStart}
	if strings.TrimSpace(p.Start) != "" {
		period.Start = parseISODurationOrZero(p.Start)
	}
	if p.Duration != "" {
		period.Duration = parseISODurationOrZero(p.Duration)
	}

	for _, as := range p.AdaptationSets {
		set, err := convertAdaptationSet(as, kind, clock)
		if err != nil {
			return nil, err
		}
		if set == nil {
			continue
		}
		period.StreamSets = append(period.StreamSets, set)
	}
	for _, set := range period.StreamSets {
		for _, info := range set.Streams {
			if src, ok := info.SegmentIndexSource.(*segmentindex.Source); ok && src.Kind == segmentindex.KindTemplateDuration {
				src.PeriodDuration = period.Duration
			}
		}
	}
	return period, nil
}

func convertAdaptationSet(as *mpd.AdaptationSet, kind domain.ManifestKind, clock ports.Clock) (*domain.StreamSet, error) {
	if as == nil || len(as.Representations) == 0 {
		return nil, nil
	}

	mimeHint := derefStr(as.MimeType)
	set := &domain.StreamSet{
		Type: contentTypeOf(mimeHint, derefStr(as.ContentType)),
		Lang: derefStr(as.Lang),
	}

	for _, r := range as.Representations {
		info, err := convertRepresentation(r, as, kind, clock)
		if err != nil {
			return nil, err
		}
		set.Streams = append(set.Streams, info)
	}
	if len(set.Streams) == 0 {
		return nil, nil
	}
	return set, nil
}

func convertRepresentation(r *mpd.Representation, as *mpd.AdaptationSet, kind domain.ManifestKind, clock ports.Clock) (*domain.StreamInfo, error) {
	mime := derefStr(r.MimeType)
	if mime == "" {
		mime = derefStr(as.MimeType)
	}
	if r.Codecs != nil && *r.Codecs != "" {
		mime = fmt.Sprintf("%s;codecs=\"%s\"", mime, *r.Codecs)
	}

	info := &domain.StreamInfo{
		FullMimeType: mime,
		Bandwidth:    int64(derefU64(r.Bandwidth)),
		Width:        int(derefInt64(r.Width)),
		Height:       int(derefInt64(r.Height)),
		Enabled:      true,
	}

	tmpl := r.SegmentTemplate
	if tmpl == nil {
		tmpl = as.SegmentTemplate
	}
	source, err := buildSource(tmpl, derefStr(r.ID), kind, clock)
	if err != nil {
		return nil, err
	}
	info.SegmentIndexSource = source
	return info, nil
}

func buildSource(tmpl *mpd.SegmentTemplate, repID string, kind domain.ManifestKind, clock ports.Clock) (domain.SegmentIndexSource, error) {
	if tmpl == nil {
		return &segmentindex.Source{Kind: segmentindex.KindExplicitList}, nil
	}

	media := derefStr(tmpl.Media)
	urlPattern := func(position int) string {
		return expandTemplate(media, repID, position, derefInt64(tmpl.StartNumber))
	}

	if tmpl.SegmentTimeline != nil && len(tmpl.SegmentTimeline.Segments) > 0 {
		timescale := derefInt64(tmpl.Timescale)
		if timescale <= 0 {
			timescale = 1
		}
		entries := make([]segmentindex.TimelineEntry, 0, len(tmpl.SegmentTimeline.Segments))
		for _, s := range tmpl.SegmentTimeline.Segments {
			entries = append(entries, segmentindex.TimelineEntry{
				Duration: float64(s.Duration) / float64(timescale),
				Repeat:   int(derefInt(s.RepeatCount)),
			})
		}
		src := &segmentindex.Source{
			Kind:       segmentindex.KindTemplateTimeline,
			Timeline:   entries,
			URLPattern: urlPattern,
			Clock:      clock,
			Live:       kind == domain.ManifestDynamic,
		}
		if clock != nil {
			src.AvailabilityRef = clock.Now()
		}
		return src, nil
	}

	timescale := derefInt64(tmpl.Timescale)
	if timescale <= 0 {
		timescale = 1
	}
	return &segmentindex.Source{
		Kind:            segmentindex.KindTemplateDuration,
		SegmentDuration: float64(derefInt64(tmpl.Duration)),
		Timescale:       float64(timescale),
		URLPattern:      urlPattern,
	}, nil
}

// expandTemplate substitutes the $Number$/$RepresentationID$ identifiers
// DASH segment templates use (ISO/IEC 23009-1 §5.3.9.4.4); $Time$ and
// width-formatted identifiers ($Number%05d$) are not needed by anything in
// this core's scope and are left unexpanded.
func expandTemplate(media, repID string, position int, startNumber int64) string {
	if startNumber <= 0 {
		startNumber = 1
	}
	out := strings.ReplaceAll(media, "$RepresentationID$", repID)
	out = strings.ReplaceAll(out, "$Number$", strconv.FormatInt(startNumber+int64(position), 10))
	return out
}

func contentTypeOf(mimeType, contentTypeAttr string) domain.ContentType {
	switch {
	case strings.HasPrefix(mimeType, "video/") || contentTypeAttr == "video":
		return domain.ContentVideo
	case strings.HasPrefix(mimeType, "audio/") || contentTypeAttr == "audio":
		return domain.ContentAudio
	default:
		return domain.ContentText
	}
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt64(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func derefU64(p *uint64) uint64 {
	if p == nil {
		return 0
	}
	return *p
}

var isoDurationRe = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?([\d.]+)?S?)?$`)

// parseISODuration parses an xsd:duration string of the restricted form
// go-dash emits: P[nD][T[nH][nM][nS]]. Months and years are not produced
// by any manifest this core consumes and are rejected.
func parseISODuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("manifestadapter: empty duration")
	}
	m := isoDurationRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("manifestadapter: unrecognised duration %q", s)
	}
	var total time.Duration
	if m[1] != "" {
		days, _ := strconv.Atoi(m[1])
		total += time.Duration(days) * 24 * time.Hour
	}
	if m[2] != "" {
		hours, _ := strconv.Atoi(m[2])
		total += time.Duration(hours) * time.Hour
	}
	if m[3] != "" {
		mins, _ := strconv.Atoi(m[3])
		total += time.Duration(mins) * time.Minute
	}
	if m[4] != "" {
		secs, err := strconv.ParseFloat(m[4], 64)
		if err != nil {
			return 0, fmt.Errorf("manifestadapter: bad seconds field in %q: %w", s, err)
		}
		total += time.Duration(secs * float64(time.Second))
	}
	return total, nil
}

func parseISODurationOrZero(s string) float64 {
	d, err := parseISODuration(s)
	if err != nil {
		return 0
	}
	return d.Seconds()
}

func seconds(s *string) float64 {
	if s == nil {
		return 0
	}
	d, err := parseISODuration(*s)
	if err != nil {
		return 0
	}
	return d.Seconds()
}
