// Package middleware provides HTTP middleware for the media streamer.
//
// It includes:
//   - Request logging in W3C Extended Log Format
//   - Prometheus request metrics with bounded path cardinality
//   - Response compression (gzip) that leaves media streams untouched
package middleware
