// Package metrics defines the Prometheus metrics exported by the media
// streamer.
//
// All metrics are registered with the default registry using promauto. To
// expose them, mount promhttp.Handler() on a router:
//
//	import "github.com/prometheus/client_golang/prometheus/promhttp"
//
//	mux.Handle("/metrics", promhttp.Handler())
//
// Metric families cover the HTTP surface, probe tool invocations and the
// probe cache, segment transcodes per encoder backend, the segment cache,
// the constant-bitrate audio proxy, and on-disk cache size.
package metrics
