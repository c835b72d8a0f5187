// Package workers sizes the encoder process pool from the available CPU
// count, respecting container CPU limits via GOMAXPROCS and honoring the
// SEGMENT_WORKERS environment override.
package workers
