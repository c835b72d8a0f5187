// Package database provides the SQLite-backed probe cache. Probe
// results are keyed by a source fingerprint (path, size, mtime) so
// unchanged files skip ffprobe across restarts, and the whole cache
// can be purged when transcoded output is cleared.
package database
