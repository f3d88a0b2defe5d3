package langmatch

import "testing"

func TestBestExactMatch(t *testing.T) {
	idx, level := Best("fr", []string{"en", "fr", "de"}, -1)
	if idx != 1 || level != LevelExact {
		t.Fatalf("Best() = %d, %v; want 1, LevelExact", idx, level)
	}
}

func TestBestPrimaryRegionFuzzesDownToPrimary(t *testing.T) {
	// spec S2: preferred "fr-CA" against candidates {en, fr, de} matches
	// "fr" at the primary-subtag rung since no "fr-CA" candidate exists.
	idx, level := Best("fr-CA", []string{"en", "fr", "de"}, -1)
	if idx != 1 || level != LevelPrimary {
		t.Fatalf("Best() = %d, %v; want 1, LevelPrimary", idx, level)
	}
}

func TestBestPrimaryRegionExactRegion(t *testing.T) {
	idx, level := Best("fr-CA", []string{"fr-FR", "fr-CA", "en"}, -1)
	if idx != 1 || level != LevelExact {
		t.Fatalf("Best() = %d, %v; want 1, LevelExact (exact tag equality wins first)", idx, level)
	}
}

func TestBestFallsBackToMain(t *testing.T) {
	idx, level := Best("ja", []string{"en", "fr", "de"}, 0)
	if idx != 0 || level != LevelMain {
		t.Fatalf("Best() = %d, %v; want 0, LevelMain", idx, level)
	}
}

func TestBestNoMatchNoMain(t *testing.T) {
	idx, level := Best("ja", []string{"en", "fr"}, -1)
	if idx != -1 || level != LevelNone {
		t.Fatalf("Best() = %d, %v; want -1, LevelNone", idx, level)
	}
}
