package handlers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"

	"media-streamer/internal/audio"
	"media-streamer/internal/hls"
	"media-streamer/internal/probe"
	"media-streamer/internal/startup"
)

// fakeProber returns a fixed probe result without running ffprobe.
type fakeProber struct {
	info probe.MediaProbe
	err  error
}

func (p *fakeProber) Probe(_ context.Context, path string) (*probe.MediaProbe, error) {
	if p.err != nil {
		return nil, &probe.ProbeError{Path: path, Err: p.err}
	}
	info := p.info
	return &info, nil
}

func testProbe() probe.MediaProbe {
	return probe.MediaProbe{
		Duration:     25.0,
		Width:        1920,
		Height:       1080,
		Codec:        "h264",
		FPS:          30,
		VideoBitRate: 4_500_000,
		AudioBitRate: 128_000,
		HasAudio:     true,
	}
}

// writeScript writes an executable stand-in for the encoder binary.
func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return path
}

// segmentScript emits fixed bytes to its final argument (the output path),
// mimicking a successful encode.
func segmentScript(t *testing.T) string {
	t.Helper()
	return writeScript(t, "fake-ffmpeg-segment", `for last; do :; done
printf 'tsdata' > "$last"`)
}

// audioScript emits fixed bytes to stdout and exits, mimicking an encode
// that reaches the end of the source.
func audioScript(t *testing.T) string {
	t.Helper()
	return writeScript(t, "fake-ffmpeg-audio", `printf 'mp3data'`)
}

type testEnv struct {
	handlers *Handlers
	registry *hls.Registry
	mediaDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mediaDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(mediaDir, "video.mkv"), []byte("source"), 0o644); err != nil {
		t.Fatalf("failed to create media file: %v", err)
	}

	registry := hls.NewRegistry(hls.Config{
		CacheDir: filepath.Join(t.TempDir(), "hls"),
		FFmpeg:   segmentScript(t),
		Workers:  2,
		Prober:   &fakeProber{info: testProbe()},
	})

	config := &startup.Config{
		MediaDir:           mediaDir,
		TranscodingEnabled: true,
	}

	return &testEnv{
		handlers: New(registry, audio.New(audioScript(t)), nil, config),
		registry: registry,
		mediaDir: mediaDir,
	}
}

// newBrokenProbeEnv builds handlers whose prober always fails.
func newBrokenProbeEnv(t *testing.T) *testEnv {
	t.Helper()

	mediaDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(mediaDir, "video.mkv"), []byte("source"), 0o644); err != nil {
		t.Fatalf("failed to create media file: %v", err)
	}

	registry := hls.NewRegistry(hls.Config{
		CacheDir: filepath.Join(t.TempDir(), "hls"),
		FFmpeg:   segmentScript(t),
		Workers:  2,
		Prober:   &fakeProber{err: errProbeBroken},
	})

	config := &startup.Config{MediaDir: mediaDir, TranscodingEnabled: true}
	return &testEnv{
		handlers: New(registry, audio.New(audioScript(t)), nil, config),
		registry: registry,
		mediaDir: mediaDir,
	}
}

// newBrokenEncoderEnv builds handlers whose encoder always exits nonzero.
func newBrokenEncoderEnv(t *testing.T) *testEnv {
	t.Helper()

	mediaDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(mediaDir, "video.mkv"), []byte("source"), 0o644); err != nil {
		t.Fatalf("failed to create media file: %v", err)
	}

	registry := hls.NewRegistry(hls.Config{
		CacheDir: filepath.Join(t.TempDir(), "hls"),
		FFmpeg:   writeScript(t, "fake-ffmpeg-broken", `echo "encode failed" >&2
exit 1`),
		Workers:  2,
		Prober:   &fakeProber{info: testProbe()},
	})

	config := &startup.Config{MediaDir: mediaDir, TranscodingEnabled: true}
	return &testEnv{
		handlers: New(registry, audio.New(audioScript(t)), nil, config),
		registry: registry,
		mediaDir: mediaDir,
	}
}

// newTestRouter registers the API routes the way main does, so tests
// exercise real URL matching.
func newTestRouter(h *Handlers) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/api/stream/init", h.InitStream).Methods("POST")
	router.HandleFunc("/manifest/{id:[0-9a-f]+}.m3u8", h.GetManifest).Methods("GET")
	router.HandleFunc("/manifest/{id:[0-9a-f]+}/segment-{n:[0-9]+}.ts", h.GetSegment).Methods("GET")
	router.HandleFunc("/audio-cbr", h.StreamAudio).Methods("GET")
	router.HandleFunc("/api/cache/clear", h.ClearCache).Methods("POST")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.HandleFunc("/version", h.GetVersion).Methods("GET")
	return router
}
