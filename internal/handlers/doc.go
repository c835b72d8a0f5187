// Package handlers provides HTTP request handlers for the media streamer API.
//
// It includes handlers for:
//   - Stream initialization and quality selection
//   - HLS manifest and segment delivery
//   - Constant-bitrate audio streaming
//   - Cache management
//   - Health checks and version information
package handlers
