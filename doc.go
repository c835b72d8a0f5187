// Package main provides the entry point for the Media Streamer application.
//
// Media Streamer is a self-hosted media server whose core is an on-demand
// HLS transcoding cache: video sources are probed once, offered at a
// quality ladder capped by the source resolution, and transcoded one
// 10-second segment at a time as the player requests them. Audio files are
// streamed through a constant-bitrate MP3 proxy so seek positions map
// linearly to byte offsets.
//
// # Application Lifecycle
//
//  1. Configuration Loading: Reads environment variables and validates directories
//  2. Probe Cache Initialization: Opens the SQLite probe-result cache
//  3. Component Initialization:
//     - Transcode Registry: Task directory, segment cache, encoder pool
//     - Audio Proxy: Per-client constant-bitrate MP3 streams
//     - Cache Collector: Periodically samples on-disk cache size
//  4. HTTP Server Setup: Routes, middleware, main and metrics listeners
//  5. Graceful Shutdown: SIGINT/SIGTERM kills encoder processes and drains
//     the HTTP servers
//
// # HTTP Servers
//
// The application runs two HTTP servers:
//
//  1. Main Server (default port 8080):
//     - Stream initialization and quality selection
//     - HLS manifest and segment delivery
//     - Constant-bitrate audio streaming
//     - Cache management, health checks, version info
//
//  2. Metrics Server (default port 9090, optional):
//     - Prometheus metrics endpoint (/metrics)
//
// # Build Requirements
//
// CGO is required for SQLite, and FFmpeg/FFprobe must be present at
// runtime for transcoding and probing.
package main
