// Package manifestproc implements the Manifest Processor (C9): normalises a
// raw parsed domain.Manifest by assigning dense unique IDs, dropping
// unsupported or empty stream sets, and computing per-period compatibility
// groups.
package manifestproc

import (
	"github.com/torrentstream/streamcore/internal/domain"
	"github.com/torrentstream/streamcore/internal/ports"
)

// Process mutates m in place (assigning unique IDs and dropping entries) and
// returns it, or domain.ErrManifestEmpty if no period has any playable
// stream set left afterward (spec §4.1).
func Process(m *domain.Manifest, support ports.TypeSupport) (*domain.Manifest, error) {
	nextSetID := 0
	nextStreamID := 0

	for _, period := range m.Periods {
		var kept []*domain.StreamSet
		for _, set := range period.StreamSets {
			set.UniqueID = nextSetID
			nextSetID++

			var keptStreams []*domain.StreamInfo
			for _, s := range set.Streams {
				if support != nil && !support.Supports(s.FullMimeType) {
					continue
				}
				s.UniqueID = nextStreamID
				nextStreamID++
				s.Enabled = true
				keptStreams = append(keptStreams, s)
			}
			set.Streams = keptStreams
			if len(set.Streams) == 0 {
				continue // drop empty sets (step 3)
			}
			kept = append(kept, set)
		}
		period.StreamSets = kept
	}

	if !hasPlayableStreamSet(m) {
		return nil, domain.ErrManifestEmpty
	}

	for _, period := range m.Periods {
		computeCompatibilityGroups(period)
	}

	return m, nil
}

func hasPlayableStreamSet(m *domain.Manifest) bool {
	for _, period := range m.Periods {
		if len(period.StreamSets) > 0 {
			return true
		}
	}
	return false
}

// computeCompatibilityGroups retains, per content type, the maximal set of
// StreamSets sharing a basic MIME type with a chosen reference set: for
// video exactly one StreamSet survives, for audio all MIME-compatible sets
// survive, for text every set survives untouched (spec §4.1 step 4).
func computeCompatibilityGroups(period *domain.Period) {
	byType := make(map[domain.ContentType][]*domain.StreamSet)
	for _, set := range period.StreamSets {
		byType[set.Type] = append(byType[set.Type], set)
	}

	var kept []*domain.StreamSet
	for _, set := range byType[domain.ContentText] {
		kept = append(kept, set)
	}

	if video := byType[domain.ContentVideo]; len(video) > 0 {
		kept = append(kept, video[0])
	}

	if audio := byType[domain.ContentAudio]; len(audio) > 0 {
		ref := basicMimeOf(audio[0])
		for _, set := range audio {
			if basicMimeOf(set) == ref {
				kept = append(kept, set)
			}
		}
	}

	period.StreamSets = kept
}

func basicMimeOf(set *domain.StreamSet) string {
	if len(set.Streams) == 0 {
		return ""
	}
	return set.Streams[0].BasicMimeType()
}
