package metrics

// InitializeMetrics pre-populates expected label combinations so every
// metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, status := range []string{"success", "error"} {
		ProbesTotal.WithLabelValues(status)
	}

	for _, encoder := range []string{"h264_nvenc", "libx264"} {
		for _, status := range []string{"success", "error"} {
			SegmentTranscodesTotal.WithLabelValues(encoder, status)
		}
		SegmentTranscodeDuration.WithLabelValues(encoder)
	}

	for _, scope := range []string{"hls", "all"} {
		CacheSizeBytes.WithLabelValues(scope)
		CacheClearsTotal.WithLabelValues(scope)
		CacheClearedBytes.WithLabelValues(scope)
	}
}
