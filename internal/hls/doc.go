// Package hls implements the on-demand adaptive-quality transcoding cache.
//
// A Registry holds every active transcode task, keyed by source
// fingerprint and selected quality profile. Tasks are created on the first
// init request, reused for identical requests, and removed only by an
// explicit cache clear. Each task lazily transcodes 10-second transport
// stream segments on first access, coalescing concurrent requests for the
// same segment into a single encoder invocation and falling back from the
// hardware encoder to software automatically.
package hls
