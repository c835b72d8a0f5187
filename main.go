package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"media-streamer/internal/audio"
	"media-streamer/internal/database"
	"media-streamer/internal/handlers"
	"media-streamer/internal/hls"
	"media-streamer/internal/logging"
	"media-streamer/internal/metrics"
	"media-streamer/internal/middleware"
	"media-streamer/internal/probe"
	"media-streamer/internal/startup"
	"media-streamer/internal/workers"
)

func main() {
	startTime := time.Now()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	metrics.InitializeMetrics()

	// Initialize probe cache
	dbStart := time.Now()
	db, err := database.New(context.Background(), config.ProbeDBPath)
	if err != nil {
		startup.LogFatal("Failed to initialize probe cache: %v", err)
	}
	defer db.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	// Initialize transcode registry
	segmentWorkers := workers.ForEncoding()
	startup.LogTranscoderInit(config, segmentWorkers)
	registry := hls.NewRegistry(hls.Config{
		CacheDir:   config.HLSDir,
		FFmpeg:     config.FFmpegPath,
		HWAccel:    config.HWAccelEnabled,
		Workers:    segmentWorkers,
		Prober:     probe.New(config.FFprobePath),
		ProbeCache: db,
	})

	// Initialize audio proxy
	proxy := audio.New(config.FFmpegPath)

	// Initialize handlers
	h := handlers.New(registry, proxy, db, config)

	// Setup router
	router := setupRouter(h)

	// Log routes dynamically
	startup.LogHTTPRoutes(router, config.LogSegmentRequests, config.LogHealthChecks)

	// Apply metrics middleware
	meteredHandler := middleware.Metrics(middleware.DefaultMetricsConfig())(router)

	// Apply logging middleware
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogSegmentRequests = config.LogSegmentRequests
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	loggedHandler := middleware.Logger(loggingConfig)(meteredHandler)

	// Apply compression middleware
	handler := middleware.Compression(middleware.DefaultCompressionConfig())(loggedHandler)

	// Create server. WriteTimeout is zero because segment delivery and
	// audio streams are long-lived; the streaming writer enforces its own
	// write and idle deadlines.
	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// Start metrics server and cache size collector
	var metricsSrv *http.Server
	var collector *metrics.CacheCollector
	if config.MetricsEnabled {
		collector = metrics.NewCacheCollector("hls", registry, 30*time.Second)
		collector.Start()

		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:        ":" + config.MetricsPort,
			Handler:     metricsMux,
			ReadTimeout: 15 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != http.ErrServerClosed {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	// Start graceful shutdown handler
	go handleShutdown(srv, metricsSrv, registry, proxy, collector)

	// Start server
	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	// Streaming API
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/stream/init", h.InitStream).Methods("POST")
	api.HandleFunc("/cache/clear", h.ClearCache).Methods("POST")

	// HLS delivery
	r.HandleFunc("/manifest/{id:[0-9a-f]+}.m3u8", h.GetManifest).Methods("GET")
	r.HandleFunc("/manifest/{id:[0-9a-f]+}/segment-{n:[0-9]+}.ts", h.GetSegment).Methods("GET")

	// Constant-bitrate audio
	r.HandleFunc("/audio-cbr", h.StreamAudio).Methods("GET")

	// Prometheus metrics (also served on the dedicated metrics port)
	r.Handle("/metrics", h.MetricsHandler()).Methods("GET")

	return r
}

func handleShutdown(srv, metricsSrv *http.Server, registry *hls.Registry, proxy *audio.Proxy, collector *metrics.CacheCollector) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Stopping encoder processes")
	registry.Cleanup()
	proxy.Cleanup()
	startup.LogShutdownStepComplete("Encoder processes stopped")

	if collector != nil {
		startup.LogShutdownStep("Stopping cache collector")
		collector.Stop()
		startup.LogShutdownStepComplete("Cache collector stopped")
	}

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownComplete()
}
