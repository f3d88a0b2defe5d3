package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/torrentstream/streamcore/internal/domain"
	"github.com/torrentstream/streamcore/internal/manifestproc"
	"github.com/torrentstream/streamcore/internal/manifestupdate"
	"github.com/torrentstream/streamcore/internal/metrics"
)

// armUpdateTimer starts the live-manifest refresh loop (spec §4.6). It is a
// no-op for static manifests or when no ManifestFetcher was configured.
// Rescheduling uses max(update_period - elapsed, 3s), matching the
// teacher's coalescing timer idiom in streaming_manager.go (a dirty-flag
// save timer) generalised to a refetch-and-merge cycle.
func (c *Coordinator) armUpdateTimer(ctx context.Context) {
	c.mu.Lock()
	if !c.isLiveLocked() || c.cfg.ManifestFetcher == nil || c.manifest.UpdateURL == "" {
		c.mu.Unlock()
		return
	}
	period := c.manifest.UpdatePeriod
	updateURL := c.manifest.UpdateURL
	c.mu.Unlock()

	loopCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.updateCancel = cancel
	c.mu.Unlock()

	go c.updateLoop(loopCtx, updateURL, period)
}

const minUpdateInterval = 3 * time.Second

func (c *Coordinator) updateLoop(ctx context.Context, updateURL string, period float64) {
	base := time.Duration(period * float64(time.Second))
	interval := base
	if interval < minUpdateInterval {
		interval = minUpdateInterval
	}

	for {
		var timer <-chan time.Time
		if c.cfg.Clock != nil {
			timer = c.cfg.Clock.After(interval)
		} else {
			t := time.NewTimer(interval)
			defer t.Stop()
			timer = t.C
		}
		select {
		case <-ctx.Done():
			return
		case <-timer:
		}

		start := time.Now()
		if !c.updateLimiter.Allow() {
			continue
		}
		if err := c.refreshManifest(ctx, updateURL); err != nil {
			c.logger.Warn("live manifest refresh failed", slog.String("error", err.Error()))
			metrics.ManifestUpdatesTotal.WithLabelValues("error").Inc()
			if !errors.Is(err, context.Canceled) {
				evt := domain.Event{Kind: domain.EventError, Err: err}
				if c.cfg.Bus != nil {
					c.cfg.Bus.Publish(evt)
				}
				c.logEvent(ctx, evt)
			}
		} else {
			metrics.ManifestUpdatesTotal.WithLabelValues("success").Inc()
		}

		elapsed := time.Since(start)
		next := base - elapsed
		if next < minUpdateInterval {
			next = minUpdateInterval
		}
		interval = next
	}
}

// refreshManifest fetches the latest manifest, reconciles it against the
// active one via the Manifest Updater (C6), and re-runs selection so newly
// added representations become visible to SelectVideoTrack and friends
// (spec §4.6 / §4.7). A representation that disappeared and was the
// currently playing one for its type is switched away from immediately,
// based on removed's membership rather than the Enabled flag (Update never
// flips Enabled for a removed StreamInfo, it just drops it from the
// manifest). If start_streams never succeeded yet (a live manifest that
// began with no mutually available window), this retries it once the
// merged manifest has enough segments.
func (c *Coordinator) refreshManifest(ctx context.Context, updateURL string) error {
	fresh, err := c.cfg.ManifestFetcher.FetchManifest(ctx, updateURL)
	if err != nil {
		return err
	}
	processed, err := manifestproc.Process(fresh, c.cfg.TypeSupport)
	if err != nil {
		return err
	}

	c.mu.Lock()
	old := c.manifest
	c.mu.Unlock()

	removed, err := manifestupdate.Update(old, processed, availabilityStart(processed))
	if err != nil {
		return err
	}

	if err := c.selectConfigurations(); err != nil {
		return err
	}

	if len(removed) > 0 {
		if err := c.reconcileRemoved(removed); err != nil {
			c.logger.Warn("no playable stream remains after manifest update", slog.String("error", err.Error()))
		}
	}

	if c.cfg.Bus != nil {
		c.cfg.Bus.Publish(domain.Event{Kind: domain.EventManifestUpdated, ManifestKind: processed.Kind})
	}
	c.publishTracksChanged()

	c.mu.Lock()
	pending := c.needsInitialStart
	c.mu.Unlock()
	if !pending {
		return nil
	}
	if err := c.startStreams(ctx); err != nil {
		if errors.Is(err, errStreamsNotAvailable) {
			return nil // still not ready; try again next update cycle
		}
		return err
	}
	c.mu.Lock()
	c.needsInitialStart = false
	c.mu.Unlock()
	return nil
}

func availabilityStart(m *domain.Manifest) float64 {
	if len(m.Periods) == 0 {
		return 0
	}
	return m.Periods[0].Start
}
