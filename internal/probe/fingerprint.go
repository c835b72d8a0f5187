package probe

import (
	"fmt"
	"os"
	"path/filepath"
)

// Fingerprint identifies the exact content of a source file without
// hashing it: absolute path, byte size, and modification time at
// millisecond granularity. Any change to the file yields a different
// fingerprint, invalidating cached state derived from the old bytes.
type Fingerprint struct {
	Path    string
	Size    int64
	ModTime int64 // unix milliseconds
}

// FingerprintFile stats path and computes its fingerprint.
func FingerprintFile(path string) (Fingerprint, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	st, err := os.Stat(abs)
	if err != nil {
		return Fingerprint{}, err
	}

	return Fingerprint{
		Path:    abs,
		Size:    st.Size(),
		ModTime: st.ModTime().UnixMilli(),
	}, nil
}

// Key returns the string identity of the fingerprint, used as a cache key.
func (f Fingerprint) Key() string {
	return fmt.Sprintf("%s|%d|%d", f.Path, f.Size, f.ModTime)
}

// Token returns a short cache-busting token derived from the modification
// time, appended to segment URIs so a reused alias never serves stale bytes.
func (f Fingerprint) Token() string {
	return fmt.Sprintf("%x", f.ModTime)
}
