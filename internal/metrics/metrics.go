// Package metrics declares the streaming core's Prometheus collectors,
// registered under the "streamcore" namespace: package-level collector vars
// plus a single Register(reg) entry point.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ManifestLoadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streamcore",
		Name:      "manifest_loads_total",
		Help:      "Total manifests successfully processed by the Manifest Processor, by kind.",
	}, []string{"kind"})

	ManifestUpdatesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streamcore",
		Name:      "manifest_updates_total",
		Help:      "Total live manifest refresh cycles, by outcome.",
	}, []string{"outcome"})

	ActiveStreams = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "streamcore",
		Name:      "active_streams",
		Help:      "Number of Streams currently attached, by content type.",
	}, []string{"content_type"})

	SegmentFetchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streamcore",
		Name:      "segment_fetches_total",
		Help:      "Total segment fetch attempts, by content type and outcome.",
	}, []string{"content_type", "outcome"})

	SegmentFetchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "streamcore",
		Name:      "segment_fetch_duration_seconds",
		Help:      "Segment fetch latency in seconds, by content type.",
		Buckets:   []float64{0.02, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"content_type"})

	BandwidthEstimateBps = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "streamcore",
		Name:      "bandwidth_estimate_bits_per_second",
		Help:      "Current EWMA bandwidth estimate in bits per second.",
	})

	AdaptationSwitchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streamcore",
		Name:      "adaptation_switches_total",
		Help:      "Total representation switches, by content type and direction.",
	}, []string{"content_type", "direction"})

	BufferingEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streamcore",
		Name:      "buffering_events_total",
		Help:      "Total transitions into the buffering state, by content type.",
	}, []string{"content_type"})

	RestrictionsAppliedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "streamcore",
		Name:      "restrictions_applied_total",
		Help:      "Total SetRestrictions calls that forced a stream switch.",
	})

	SegmentIndexMergeErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "streamcore",
		Name:      "segment_index_merge_errors_total",
		Help:      "Total Manifest Updater segment-merge failures.",
	})
)

// Register registers every collector against reg. Safe to call once per
// process; a second call against the same Registerer panics, matching the
// teacher's MustRegister-at-startup convention.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		ManifestLoadsTotal,
		ManifestUpdatesTotal,
		ActiveStreams,
		SegmentFetchesTotal,
		SegmentFetchDuration,
		BandwidthEstimateBps,
		AdaptationSwitchesTotal,
		BufferingEventsTotal,
		RestrictionsAppliedTotal,
		SegmentIndexMergeErrorsTotal,
	)
}
