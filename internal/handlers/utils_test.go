package handlers

import (
	"path/filepath"
	"testing"
)

func TestIsSubPath(t *testing.T) {
	tests := []struct {
		name   string
		parent string
		child  string
		want   bool
	}{
		{"direct child", "/media", "/media/movie.mkv", true},
		{"nested child", "/media", "/media/shows/s01/e01.mkv", true},
		{"same path", "/media", "/media", true},
		{"sibling", "/media", "/cache/file", false},
		{"sibling sharing name prefix", "/media", "/media-extra/file", false},
		{"parent dir", "/media", "/", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isSubPath(tt.parent, tt.child); got != tt.want {
				t.Errorf("isSubPath(%q, %q) = %v, want %v", tt.parent, tt.child, got, tt.want)
			}
		})
	}
}

func TestResolveMediaPath(t *testing.T) {
	h := &Handlers{mediaDir: "/media"}

	tests := []struct {
		name     string
		relative string
		wantOK   bool
		want     string
	}{
		{"simple", "movie.mkv", true, "/media/movie.mkv"},
		{"nested", "shows/s01/e01.mkv", true, "/media/shows/s01/e01.mkv"},
		{"dot segments collapse inside root", "shows/../movie.mkv", true, "/media/movie.mkv"},
		{"escape", "../etc/passwd", false, ""},
		{"deep escape", "a/../../../etc/passwd", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := h.resolveMediaPath(tt.relative)
			if ok != tt.wantOK {
				t.Fatalf("resolveMediaPath(%q) ok = %v, want %v", tt.relative, ok, tt.wantOK)
			}
			if ok && got != filepath.Clean(tt.want) {
				t.Errorf("resolveMediaPath(%q) = %q, want %q", tt.relative, got, tt.want)
			}
		})
	}
}
