// Command demo runs a standalone streaming-core process: it loads a DASH
// manifest, attaches a Coordinator to an in-memory media sink, and exposes
// health, metrics, and a websocket event feed over HTTP. It has no video
// element to actually render into; it exists to exercise the core against a
// real or fake manifest URL as a runnable process.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zencoder/go-dash/v3/mpd"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"

	"github.com/torrentstream/streamcore/internal/config"
	"github.com/torrentstream/streamcore/internal/coordinator"
	"github.com/torrentstream/streamcore/internal/domain"
	"github.com/torrentstream/streamcore/internal/eventbus"
	"github.com/torrentstream/streamcore/internal/eventlog"
	"github.com/torrentstream/streamcore/internal/faketest"
	"github.com/torrentstream/streamcore/internal/httpfetch"
	"github.com/torrentstream/streamcore/internal/manifestadapter"
	"github.com/torrentstream/streamcore/internal/metrics"
	"github.com/torrentstream/streamcore/internal/ports"
	"github.com/torrentstream/streamcore/internal/telemetry"
	"github.com/torrentstream/streamcore/internal/wsbus"
)

func main() {
	_ = godotenv.Load()

	cfg := config.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), cfg.OTelServiceName)
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", cfg.OTelServiceName),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("manifestUrl", cfg.ManifestURL),
		slog.String("preferredLanguage", cfg.PreferredLanguage),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := eventbus.New(logger)
	go bus.Run()
	defer bus.Close()

	hub := wsbus.New(logger)
	go hub.Run()
	defer hub.Close()
	detachHub := hub.Attach(bus)
	defer detachHub()

	eventStore := openEventStore(rootCtx, cfg, logger)

	clock := faketest.NewClock(time.Now())

	var (
		fetcher         ports.Fetcher
		manifestFetcher coordinator.ManifestFetcher
		manifest        *domain.Manifest
	)

	if strings.TrimSpace(cfg.ManifestURL) != "" {
		httpFetcher, ferr := httpfetch.New(http.DefaultClient, cfg.ManifestURL)
		if ferr != nil {
			logger.Error("httpfetch init failed", slog.String("error", ferr.Error()))
			os.Exit(1)
		}
		mf := httpfetch.NewManifestFetcher(http.DefaultClient, clock)

		loadCtx, cancel := context.WithTimeout(rootCtx, 10*time.Second)
		manifest, err = mf.FetchManifest(loadCtx, cfg.ManifestURL)
		cancel()
		if err != nil {
			logger.Error("initial manifest load failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		fetcher = httpFetcher
		manifestFetcher = mf
	} else {
		manifest, fetcher = builtinDemo()
	}

	coord := coordinator.New(coordinator.Config{
		Fetcher:         fetcher,
		Clock:           clock,
		TypeSupport:     &faketest.TypeSupport{},
		Bus:             bus,
		ManifestFetcher: manifestFetcher,
		EventLog:        eventStore,
		Logger:          logger,
	})

	if err := coord.Load(manifest, cfg.PreferredLanguage); err != nil {
		logger.Error("manifest load failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	sink := faketest.NewMediaSink()
	sink.FireOpen()
	attachCtx, attachCancel := context.WithTimeout(rootCtx, 10*time.Second)
	attachErr := coord.Attach(attachCtx, sink)
	attachCancel()
	if attachErr != nil {
		logger.Error("coordinator attach failed", slog.String("error", attachErr.Error()))
		os.Exit(1)
	}
	logger.Info("coordinator attached", slog.Bool("live", coord.IsLive()))

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/events", hub.ServeHTTP)
	router.Get("/tracks/video", tracksHandler(coord.VideoTracks))
	router.Get("/tracks/audio", tracksHandler(coord.AudioTracks))
	router.Get("/tracks/text", tracksHandler(coord.TextTracks))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.Info("demo server started", slog.String("addr", cfg.HTTPAddr))

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	coord.Destroy()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", slog.String("error", err.Error()))
	}
	logger.Info("demo server stopped")
}

// openEventStore connects to Mongo when MONGO_URI is reachable, falling back
// to an in-memory ring buffer otherwise; either way the demo never blocks
// startup on event logging being available.
func openEventStore(ctx context.Context, cfg config.Config, logger *slog.Logger) eventlog.Store {
	mem := eventlog.NewMemoryStore(500)
	if strings.TrimSpace(cfg.MongoURI) == "" {
		return mem
	}
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	client, err := eventlog.Connect(dialCtx, cfg.MongoURI, options.Client().SetMonitor(otelmongo.NewMonitor()))
	if err != nil {
		logger.Warn("mongo connect failed, falling back to in-memory event log", slog.String("error", err.Error()))
		return mem
	}
	return eventlog.NewMongoStore(client, cfg.MongoDatabase, cfg.MongoCollection)
}

func tracksHandler(list func() []domain.Track) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(list())
	}
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	handlerOpts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(strings.TrimSpace(formatRaw)) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, handlerOpts))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// builtinDemo builds a small static single-representation manifest plus a
// faketest.Fetcher preloaded with every segment body it references, so the
// binary is runnable with zero configuration; both are discarded entirely
// once MANIFEST_URL is set.
func builtinDemo() (*domain.Manifest, *faketest.Fetcher) {
	tmpl := &mpd.SegmentTemplate{}
	media := "$RepresentationID$-$Number$.m4s"
	tmpl.Media = &media
	startNumber := int64(1)
	tmpl.StartNumber = &startNumber
	timescale := int64(1)
	tmpl.Timescale = &timescale
	segDuration := int64(4)
	tmpl.Duration = &segDuration

	mime := "video/mp4"
	as := &mpd.AdaptationSet{}
	as.MimeType = &mime

	rep := &mpd.Representation{}
	rep.MimeType = &mime
	id := "v1"
	rep.ID = &id
	bw := uint64(1_000_000)
	rep.Bandwidth = &bw
	rep.SegmentTemplate = tmpl
	as.Representations = []*mpd.Representation{rep}

	manifestType := "static"
	minBuf := "PT1.5S"
	periodDuration := "PT20S"
	m := &mpd.MPD{
		Type:          &manifestType,
		MinBufferTime: &minBuf,
		Periods: []*mpd.Period{
			{Duration: periodDuration, AdaptationSets: []*mpd.AdaptationSet{as}},
		},
	}

	manifest, err := manifestadapter.FromMPD(m, nil)
	if err != nil {
		panic("demo: built-in manifest is invalid: " + err.Error())
	}

	fetcher := faketest.NewFetcher()
	const segments = 5 // 20s period / 4s segments
	for i := 1; i <= segments; i++ {
		url := fmt.Sprintf("v1-%d.m4s", i)
		fetcher.Bodies[url] = []byte(fmt.Sprintf("demo-segment-%d", i))
	}
	return manifest, fetcher
}
