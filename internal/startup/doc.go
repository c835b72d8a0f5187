// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// This package centralizes all application configuration and provides consistent
// logging throughout the application lifecycle.
//
// # Configuration
//
// All configuration is loaded from environment variables via [LoadConfig].
// The following environment variables are supported:
//
//   - MEDIA_DIR: Path to media directory (default: /media)
//   - CACHE_DIR: Path to cache directory for segments and the probe database (default: /cache)
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - FFMPEG: Encoder binary name or path (default: ffmpeg)
//   - FFPROBE: Probe binary name or path (default: ffprobe)
//   - HWACCEL_ENABLED: Try the hardware encoder before software (default: true)
//   - SEGMENT_WORKERS: Override concurrent encoder process limit
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_SEGMENT_REQUESTS: Log individual segment requests (default: false)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//
// # Directory Setup
//
// The package validates and creates required directories:
//   - Cache directory: Required, must be writable (probe database lives here)
//   - HLS directory: Optional, transcoding is disabled if not writable
//   - Media directory: Checked but not created (should be mounted)
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo]:
//   - Version: Application version
//   - Commit: Git commit hash
//   - BuildTime: Build timestamp
//   - GoVersion: Go compiler version
//
// # Lifecycle Logging
//
// The package provides structured logging functions for consistent output:
//   - [LogDatabaseInit]: Probe cache initialization timing
//   - [LogTranscoderInit]: Registry setup and encoder availability
//   - [LogHTTPRoutes]: Registered HTTP routes (debug level)
//   - [LogServerStarted]: Server endpoints and startup duration
//   - [LogShutdownInitiated]: Graceful shutdown start
//   - [LogShutdownComplete]: Shutdown completion
package startup
