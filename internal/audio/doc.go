// Package audio implements the constant-bitrate audio proxy: a per-client,
// whole-stream transcode with seek support.
//
// Unlike the HLS segment cache, the proxy produces an unbounded stream with
// no caching value, so its encoder process is tied 1:1 to one logical
// client stream: starting a new stream for a client terminates the previous
// one, and any disconnect, response error, or process exit kills the
// encoder immediately.
package audio
