package workers

import (
	"os"
	"runtime"
	"strconv"
)

// Count returns the number of workers for a task type, respecting
// container CPU limits via GOMAXPROCS.
//
// The multiplier adjusts for task characteristics (1.0 CPU-bound, 2.0
// I/O-bound). The limit parameter caps the count; 0 means no cap. The
// SEGMENT_WORKERS environment variable overrides the computed value.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv("SEGMENT_WORKERS"); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			if limit > 0 && count > limit {
				return limit
			}
			return count
		}
	}

	available := runtime.GOMAXPROCS(0)
	workers := int(float64(available) * multiplier)

	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}
	return workers
}

// ForEncoding returns the worker count for concurrent encoder processes.
// ffmpeg is itself multi-threaded, so one process per CPU is already
// generous; the cap keeps large hosts from thrashing. Encodes beyond the
// bound queue, they are never rejected.
func ForEncoding() int {
	return Count(1.0, 8)
}
