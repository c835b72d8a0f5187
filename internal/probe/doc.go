// Package probe extracts media metadata from source files by invoking
// ffprobe and parsing its JSON report.
//
// A Probe call spawns exactly one short-lived ffprobe process. Probe
// failures are terminal for the requesting call; there are no retries.
// The package also computes source fingerprints (path + size + mtime)
// used to key the transcode cache.
package probe
