package domain

import "errors"

// Sentinel errors shared across the core's components. Component-specific
// context is added by wrapping these with fmt.Errorf("%w: ...") at the call
// site rather than minting new error types.
var (
	// ErrManifestEmpty is returned by the Manifest Processor when a parsed
	// manifest has no usable StreamSets left after dropping unsupported
	// mime types and empty sets.
	ErrManifestEmpty = errors.New("domain: manifest has no playable stream sets")

	// ErrManifestIncompatible is returned by the Manifest Updater when a
	// refreshed manifest's structure cannot be reconciled with the one
	// currently in use (period/stream-set shape changed incompatibly).
	ErrManifestIncompatible = errors.New("domain: updated manifest is incompatible with current manifest")

	// ErrNoStreamSets is returned when a requested content type has no
	// corresponding StreamSet in the active period.
	ErrNoStreamSets = errors.New("domain: no stream sets for requested content type")

	// ErrStreamNotFound is returned when a StreamInfo UniqueID does not
	// resolve within the current configuration.
	ErrStreamNotFound = errors.New("domain: stream not found")

	// ErrSegmentNotFound is returned by a SegmentIndex lookup that falls
	// outside the indexed range.
	ErrSegmentNotFound = errors.New("domain: segment not found")

	// ErrRestricted is returned when every candidate stream in a StreamSet
	// is excluded by the active Restrictions.
	ErrRestricted = errors.New("domain: all streams restricted")

	// ErrClosed is returned by operations attempted after Destroy.
	ErrClosed = errors.New("domain: coordinator already destroyed")

	// ErrFetchFailed wraps a transport-level failure from a Fetcher, after
	// retry exhaustion.
	ErrFetchFailed = errors.New("domain: fetch failed")

	// ErrTypeUnsupported is returned when TypeSupport rejects a mime type
	// the platform cannot decode.
	ErrTypeUnsupported = errors.New("domain: mime type unsupported by platform")

	// ErrBadTimestamp is returned when a Stream's timestamp-correction pass
	// detects a segment whose media timestamps do not overlap its index
	// entry closely enough to trust.
	ErrBadTimestamp = errors.New("domain: segment timestamp correction failed")

	// ErrNotFound is a general not-found sentinel for lookups that do not
	// warrant their own error (event log queries, cache misses).
	ErrNotFound = errors.New("domain: not found")
)
