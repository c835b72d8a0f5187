package hls

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
)

func TestSegmentCount(t *testing.T) {
	tests := []struct {
		name     string
		duration float64
		want     int
	}{
		{"Exact multiple", 120, 12},
		{"With remainder", 125, 13},
		{"Under one segment", 4.5, 1},
		{"Zero", 0, 0},
		{"Negative", -1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SegmentCount(tt.duration); got != tt.want {
				t.Errorf("SegmentCount(%f) = %d, want %d", tt.duration, got, tt.want)
			}
		})
	}
}

func TestWriteManifest125Seconds(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteManifest(&buf, "abc123def456", "18f", 125); err != nil {
		t.Fatalf("WriteManifest() error: %v", err)
	}

	out := buf.String()

	for _, header := range []string{
		"#EXTM3U",
		"#EXT-X-VERSION:3",
		"#EXT-X-TARGETDURATION:10",
		"#EXT-X-MEDIA-SEQUENCE:0",
		"#EXT-X-PLAYLIST-TYPE:VOD",
		"#EXT-X-ENDLIST",
	} {
		if !strings.Contains(out, header) {
			t.Errorf("manifest missing %q", header)
		}
	}

	if got := strings.Count(out, "#EXTINF:"); got != 13 {
		t.Errorf("manifest has %d segments, want 13", got)
	}
	if got := strings.Count(out, "#EXTINF:10.000,"); got != 12 {
		t.Errorf("manifest has %d full-length segments, want 12", got)
	}
	if !strings.Contains(out, "#EXTINF:5.000,") {
		t.Error("manifest missing 5.000s final segment")
	}

	// Segment URIs carry the alias, a monotonically increasing index, and
	// the cache-busting token.
	for i := 0; i < 13; i++ {
		uri := fmt.Sprintf("abc123def456/segment-%d.ts?v=18f", i)
		if !strings.Contains(out, uri+"\n") {
			t.Errorf("manifest missing URI %q", uri)
		}
	}

	// VOD manifests end with the endlist marker.
	if !strings.HasSuffix(out, "#EXT-X-ENDLIST\n") {
		t.Error("manifest does not end with #EXT-X-ENDLIST")
	}
}

func TestWriteManifestShortVideo(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteManifest(&buf, "a", "1", 7.5); err != nil {
		t.Fatalf("WriteManifest() error: %v", err)
	}

	out := buf.String()
	if got := strings.Count(out, "#EXTINF:"); got != 1 {
		t.Errorf("manifest has %d segments, want 1", got)
	}
	if !strings.Contains(out, "#EXTINF:7.500,") {
		t.Error("manifest missing 7.500s only segment")
	}
}
