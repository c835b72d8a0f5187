package metrics

import (
	"os"
	"path/filepath"
	"time"

	"media-streamer/internal/logging"
)

// CacheSizer reports the on-disk size of a cache scope.
type CacheSizer interface {
	CacheSize() int64
}

// CacheCollector periodically refreshes the cache size gauges. It owns one
// background goroutine started by Start and stopped via Stop.
type CacheCollector struct {
	scope    string
	sizer    CacheSizer
	interval time.Duration
	stop     chan struct{}
}

// NewCacheCollector creates a collector for one cache scope.
func NewCacheCollector(scope string, sizer CacheSizer, interval time.Duration) *CacheCollector {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &CacheCollector{
		scope:    scope,
		sizer:    sizer,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start begins periodic collection, with an immediate first sample.
func (c *CacheCollector) Start() {
	go func() {
		c.collect()

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stop:
				return
			}
		}
	}()
}

// Stop halts collection. Safe to call once.
func (c *CacheCollector) Stop() {
	close(c.stop)
}

func (c *CacheCollector) collect() {
	size := c.sizer.CacheSize()
	CacheSizeBytes.WithLabelValues(c.scope).Set(float64(size))
	logging.Debug("Cache size for scope %s: %d bytes", c.scope, size)
}

// DirSizer sizes a directory tree; it satisfies CacheSizer for scopes that
// are plain directories.
type DirSizer string

// CacheSize walks the directory and sums regular file sizes.
func (d DirSizer) CacheSize() int64 {
	var size int64
	_ = filepath.Walk(string(d), func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size
}
