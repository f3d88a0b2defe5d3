package domain

// EventKind names the events the core emits on its EventBus (see
// internal/eventbus). Observers — the demo's websocket hub, the event-log
// analytics sink — subscribe by kind.
type EventKind string

const (
	// EventAdaptation fires whenever the ABR Manager switches the active
	// stream for a content type, whether automatic or explicit.
	EventAdaptation EventKind = "adaptation"

	// EventBuffering fires once per Stream, when its first segment has been
	// appended and it enters StateBuffering; later transitions into or out
	// of StateBuffering do not publish it.
	EventBuffering EventKind = "buffering"

	// EventError fires when a Stream stops on an error it could not
	// recover from (a segment fetch that failed every retry, a rejected
	// append) and when a live manifest refresh fails; Err carries the cause.
	EventError EventKind = "error"

	// EventStarted fires once start_streams completes and the first
	// segment has been handed to every attached MediaSink.
	EventStarted EventKind = "started"

	// EventEnded names the end-of-presentation event; no component in this
	// module publishes it.
	EventEnded EventKind = "ended"

	// EventManifestUpdated fires after a live manifest refresh is merged
	// in by the Manifest Updater.
	EventManifestUpdated EventKind = "manifest_updated"

	// EventBandwidth fires whenever the Bandwidth Estimator's running
	// estimate changes.
	EventBandwidth EventKind = "bandwidth"

	// EventTracksChanged fires after track selection or a restriction
	// re-evaluation changes which representations are eligible.
	EventTracksChanged EventKind = "trackschanged"
)

// Event is the payload published on the EventBus. Fields beyond Kind are
// optional and interpreted per Kind; Data carries kind-specific detail
// without forcing every observer to understand every kind's own struct.
type Event struct {
	ID           string
	Kind         EventKind
	ContentType  ContentType
	StreamID     int
	Err          error
	ManifestKind ManifestKind
	PositionTime float64
	BandwidthBps float64 // set on EventBandwidth
}
