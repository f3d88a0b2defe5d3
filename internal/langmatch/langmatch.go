// Package langmatch implements the Language Matcher (C8): a deterministic
// fuzzy BCP-47 match used by the Coordinator to order audio/text sets by
// preferred language. Built on golang.org/x/text/language for tag parsing
// rather than hand-rolled BCP-47 splitting.
package langmatch

import (
	"golang.org/x/text/language"
)

// Level names which rung of the fuzz ladder produced a match.
type Level int

const (
	// LevelNone means nothing matched; the caller should fall back to the
	// set flagged "main" (spec §4.7).
	LevelNone Level = iota
	LevelMain
	LevelPrimary
	LevelPrimaryRegion
	LevelExact
)

// Best returns the index into candidates whose language tag best matches
// preferred, and the fuzz level at which it matched, following the ladder
// exact -> primary+region -> primary -> main (spec §4.8). mainIdx is the
// index of the StreamSet flagged main, or -1 if none; it is returned when
// no candidate matches at any rung above LevelNone.
//
// Deterministic: ties are broken by candidate order, matching the first
// candidate at the lowest (best) fuzz level reached.
func Best(preferred string, candidates []string, mainIdx int) (index int, level Level) {
	pref, err := language.Parse(preferred)
	if err != nil {
		if mainIdx >= 0 {
			return mainIdx, LevelMain
		}
		return -1, LevelNone
	}
	prefBase, _ := pref.Base()
	prefRegion, prefRegionConf := pref.Region()

	for i, c := range candidates {
		if c == preferred {
			return i, LevelExact
		}
	}

	if prefRegionConf == language.Exact {
		for i, c := range candidates {
			tag, err := language.Parse(c)
			if err != nil {
				continue
			}
			base, _ := tag.Base()
			region, conf := tag.Region()
			if conf == language.Exact && base == prefBase && region == prefRegion {
				return i, LevelPrimaryRegion
			}
		}
	}

	for i, c := range candidates {
		tag, err := language.Parse(c)
		if err != nil {
			continue
		}
		base, _ := tag.Base()
		if base == prefBase {
			return i, LevelPrimary
		}
	}

	if mainIdx >= 0 {
		return mainIdx, LevelMain
	}
	return -1, LevelNone
}
