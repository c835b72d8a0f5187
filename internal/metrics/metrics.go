package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_streamer_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_streamer_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_streamer_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Probe metrics
var (
	ProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_streamer_probes_total",
			Help: "Total number of probe tool invocations",
		},
		[]string{"status"},
	)

	ProbeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_streamer_probe_duration_seconds",
			Help:    "Probe tool invocation duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	ProbeCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_streamer_probe_cache_hits_total",
			Help: "Total number of probe results served from the probe cache",
		},
	)

	ProbeCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_streamer_probe_cache_misses_total",
			Help: "Total number of probe cache misses",
		},
	)
)

// Transcode metrics
var (
	SegmentTranscodesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_streamer_segment_transcodes_total",
			Help: "Total number of segment encoder invocations",
		},
		[]string{"encoder", "status"},
	)

	SegmentTranscodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_streamer_segment_transcode_duration_seconds",
			Help:    "Segment transcode duration in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"encoder"},
	)

	SegmentCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_streamer_segment_cache_hits_total",
			Help: "Total number of segment requests served from cache or an in-flight encode",
		},
	)

	SegmentCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_streamer_segment_cache_misses_total",
			Help: "Total number of segment requests that started a new encode",
		},
	)

	EncoderProcessesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_streamer_encoder_processes_active",
			Help: "Number of encoder processes currently running",
		},
	)

	EncodeQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_streamer_encode_queue_depth",
			Help: "Number of segment encodes waiting for an encoder slot",
		},
	)

	TranscodeTasksActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_streamer_transcode_tasks_active",
			Help: "Number of registered transcode tasks",
		},
	)
)

// Audio proxy metrics
var (
	AudioStreamsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_streamer_audio_streams_total",
			Help: "Total number of constant-bitrate audio streams started",
		},
	)

	AudioStreamsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_streamer_audio_streams_active",
			Help: "Number of constant-bitrate audio streams currently running",
		},
	)
)

// Cache metrics
var (
	CacheSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_streamer_cache_size_bytes",
			Help: "On-disk size of cache scopes in bytes",
		},
		[]string{"scope"},
	)

	CacheClearsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_streamer_cache_clears_total",
			Help: "Total number of cache clear operations",
		},
		[]string{"scope"},
	)

	CacheClearedBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_streamer_cache_cleared_bytes_total",
			Help: "Total bytes freed by cache clear operations",
		},
		[]string{"scope"},
	)
)
