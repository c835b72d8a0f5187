package hls

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"media-streamer/internal/probe"
)

// countingProber returns a fixed probe result and counts invocations.
type countingProber struct {
	calls int32
	info  probe.MediaProbe
	err   error
}

func (p *countingProber) Probe(_ context.Context, _ string) (*probe.MediaProbe, error) {
	atomic.AddInt32(&p.calls, 1)
	if p.err != nil {
		return nil, p.err
	}
	info := p.info
	return &info, nil
}

func (p *countingProber) count() int32 {
	return atomic.LoadInt32(&p.calls)
}

func testProbe() probe.MediaProbe {
	return probe.MediaProbe{
		Duration:     125,
		Width:        1920,
		Height:       1080,
		Codec:        "h264",
		FPS:          29.97,
		VideoBitRate: 4500000,
		AudioBitRate: 192000,
		HasAudio:     true,
	}
}

func testSource(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "movie.mkv")
	if err := os.WriteFile(path, []byte("not really a video"), 0o644); err != nil {
		t.Fatalf("failed to create source file: %v", err)
	}
	return path
}

func newTestRegistry(t *testing.T, prober Prober) *Registry {
	t.Helper()
	r := NewRegistry(Config{
		CacheDir: filepath.Join(t.TempDir(), "hls"),
		Workers:  2,
		Prober:   prober,
	})
	// Default fake encoder: produce a small transport stream stand-in.
	r.runner = func(_ context.Context, _ []string, outPath string) error {
		return os.WriteFile(outPath, []byte("ts-bytes"), 0o644)
	}
	return r
}

func TestGetOrCreateTaskIdempotent(t *testing.T) {
	src := testSource(t)
	prober := &countingProber{info: testProbe()}
	r := newTestRegistry(t, prober)

	t1, err := r.GetOrCreateTask(context.Background(), src, "720p")
	if err != nil {
		t.Fatalf("GetOrCreateTask() error: %v", err)
	}
	t2, err := r.GetOrCreateTask(context.Background(), src, "720p")
	if err != nil {
		t.Fatalf("GetOrCreateTask() second call error: %v", err)
	}

	if t1 != t2 {
		t.Error("second init returned a different task object")
	}
	if t1.ID != t2.ID {
		t.Errorf("task IDs differ: %s vs %s", t1.ID, t2.ID)
	}
	if got := prober.count(); got != 1 {
		t.Errorf("probe tool invoked %d times, want 1", got)
	}
}

func TestGetOrCreateTaskFilteredPresetFallsBack(t *testing.T) {
	src := testSource(t)
	prober := &countingProber{info: testProbe()} // 1080p source
	r := newTestRegistry(t, prober)

	task, err := r.GetOrCreateTask(context.Background(), src, "4k")
	if err != nil {
		t.Fatalf("GetOrCreateTask() error: %v", err)
	}

	if task.Profile.Key != "original" {
		t.Errorf("selected profile = %q, want original fallback", task.Profile.Key)
	}

	keys := make([]string, len(task.Profiles))
	for i, p := range task.Profiles {
		keys[i] = p.Key
	}
	joined := strings.Join(keys, ",")
	if joined != "original,1080p,720p,480p" {
		t.Errorf("available profiles = %s, want original,1080p,720p,480p", joined)
	}

	// An explicit "original" init collapses onto the same task.
	same, err := r.GetOrCreateTask(context.Background(), src, "original")
	if err != nil {
		t.Fatalf("GetOrCreateTask(original) error: %v", err)
	}
	if same != task {
		t.Error("original init did not reuse the 4k-fallback task")
	}

	// And the 4k request is now memoized.
	again, err := r.GetOrCreateTask(context.Background(), src, "4k")
	if err != nil {
		t.Fatalf("GetOrCreateTask(4k) again error: %v", err)
	}
	if again != task {
		t.Error("repeated 4k init did not reuse the task")
	}
}

func TestGetOrCreateTaskConcurrent(t *testing.T) {
	src := testSource(t)
	prober := &countingProber{info: testProbe()}
	r := newTestRegistry(t, prober)

	const n = 8
	tasks := make([]*Task, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			task, err := r.GetOrCreateTask(context.Background(), src, "")
			if err != nil {
				t.Errorf("concurrent init error: %v", err)
				return
			}
			tasks[i] = task
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if tasks[i] != tasks[0] {
			t.Fatalf("concurrent inits produced distinct tasks")
		}
	}
	if got := prober.count(); got != 1 {
		t.Errorf("probe tool invoked %d times for one identity, want 1", got)
	}
}

func TestGetOrCreateTaskWritesManifestOnce(t *testing.T) {
	src := testSource(t)
	r := newTestRegistry(t, &countingProber{info: testProbe()})

	task, err := r.GetOrCreateTask(context.Background(), src, "")
	if err != nil {
		t.Fatalf("GetOrCreateTask() error: %v", err)
	}

	data, err := os.ReadFile(task.ManifestPath)
	if err != nil {
		t.Fatalf("manifest not written: %v", err)
	}
	manifest := string(data)

	if got := strings.Count(manifest, "#EXTINF:"); got != 13 {
		t.Errorf("manifest segment count = %d, want 13 for 125s", got)
	}
	if !strings.Contains(manifest, task.ID+"/segment-0.ts?v=") {
		t.Error("manifest URIs not addressed by task alias")
	}
	if len(task.ID) != aliasLength {
		t.Errorf("alias length = %d, want %d", len(task.ID), aliasLength)
	}
}

func TestGetOrCreateTaskProbeFailure(t *testing.T) {
	src := testSource(t)
	probeErr := &probe.ProbeError{Path: src, Err: errors.New("exit status 1")}
	r := newTestRegistry(t, &countingProber{err: probeErr})

	_, err := r.GetOrCreateTask(context.Background(), src, "")
	var pe *probe.ProbeError
	if !errors.As(err, &pe) {
		t.Errorf("error = %v, want *probe.ProbeError", err)
	}
	if r.TaskCount() != 0 {
		t.Error("failed init left a task registered")
	}
}

func TestGetOrCreateTaskMissingSource(t *testing.T) {
	r := newTestRegistry(t, &countingProber{info: testProbe()})

	_, err := r.GetOrCreateTask(context.Background(), filepath.Join(t.TempDir(), "missing.mkv"), "")
	if !os.IsNotExist(err) {
		t.Errorf("error = %v, want os.IsNotExist", err)
	}
}

func TestSegmentSingleFlight(t *testing.T) {
	src := testSource(t)
	r := newTestRegistry(t, &countingProber{info: testProbe()})

	var encodes int32
	r.runner = func(_ context.Context, _ []string, outPath string) error {
		atomic.AddInt32(&encodes, 1)
		time.Sleep(50 * time.Millisecond) // hold the encode open so waiters pile up
		return os.WriteFile(outPath, []byte("segment-3-bytes"), 0o644)
	}

	task, err := r.GetOrCreateTask(context.Background(), src, "")
	if err != nil {
		t.Fatalf("GetOrCreateTask() error: %v", err)
	}

	const n = 10
	results := make([][]byte, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			st, err := task.Segment(context.Background(), 3)
			if err != nil {
				t.Errorf("Segment(3) error: %v", err)
				return
			}
			data, err := os.ReadFile(st.Path)
			if err != nil {
				t.Errorf("failed to read segment file: %v", err)
				return
			}
			results[i] = data
		}(i)
	}
	wg.Wait()

	if got := atomic.LoadInt32(&encodes); got != 1 {
		t.Errorf("encoder invoked %d times for one segment, want 1", got)
	}
	for i := 1; i < n; i++ {
		if string(results[i]) != string(results[0]) {
			t.Fatal("concurrent callers received differing segment bytes")
		}
	}
}

func TestSegmentHardwareFallback(t *testing.T) {
	src := testSource(t)
	r := NewRegistry(Config{
		CacheDir: filepath.Join(t.TempDir(), "hls"),
		Workers:  1,
		HWAccel:  true,
		Prober:   &countingProber{info: testProbe()},
	})

	var attempts []string
	var mu sync.Mutex
	r.runner = func(_ context.Context, args []string, outPath string) error {
		joined := strings.Join(args, " ")
		mu.Lock()
		defer mu.Unlock()
		if strings.Contains(joined, "h264_nvenc") {
			attempts = append(attempts, "h264_nvenc")
			return errors.New("exit status 1")
		}
		attempts = append(attempts, "libx264")
		return os.WriteFile(outPath, []byte("sw-bytes"), 0o644)
	}

	task, err := r.GetOrCreateTask(context.Background(), src, "")
	if err != nil {
		t.Fatalf("GetOrCreateTask() error: %v", err)
	}

	st, err := task.Segment(context.Background(), 0)
	if err != nil {
		t.Fatalf("Segment(0) error after fallback: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(attempts) != 2 || attempts[0] != "h264_nvenc" || attempts[1] != "libx264" {
		t.Errorf("backend attempts = %v, want hardware then software", attempts)
	}
	if data, _ := os.ReadFile(st.Path); string(data) != "sw-bytes" {
		t.Error("segment file does not hold the software encoder output")
	}
}

func TestSegmentFailureIsPermanent(t *testing.T) {
	src := testSource(t)
	r := newTestRegistry(t, &countingProber{info: testProbe()})

	var encodes int32
	r.runner = func(_ context.Context, _ []string, _ string) error {
		atomic.AddInt32(&encodes, 1)
		return errors.New("exit status 1")
	}

	task, err := r.GetOrCreateTask(context.Background(), src, "")
	if err != nil {
		t.Fatalf("GetOrCreateTask() error: %v", err)
	}

	_, err = task.Segment(context.Background(), 2)
	var ee *EncodeError
	if !errors.As(err, &ee) {
		t.Fatalf("error = %v, want *EncodeError", err)
	}

	// The failed state is replayed; no new encoder process is spawned.
	_, err2 := task.Segment(context.Background(), 2)
	if !errors.As(err2, &ee) {
		t.Errorf("second request error = %v, want replayed *EncodeError", err2)
	}
	if got := atomic.LoadInt32(&encodes); got != 1 {
		t.Errorf("encoder invoked %d times for a failed segment, want 1", got)
	}

	// Other segments remain independently servable.
	r.runner = func(_ context.Context, _ []string, outPath string) error {
		return os.WriteFile(outPath, []byte("ok"), 0o644)
	}
	if _, err := task.Segment(context.Background(), 3); err != nil {
		t.Errorf("Segment(3) error after unrelated failure: %v", err)
	}
}

func TestSegmentPartialOutputNotServed(t *testing.T) {
	src := testSource(t)
	r := newTestRegistry(t, &countingProber{info: testProbe()})

	r.runner = func(_ context.Context, _ []string, outPath string) error {
		// Simulate an encoder dying after writing partial output.
		_ = os.WriteFile(outPath, []byte("partial"), 0o644)
		return errors.New("signal: killed")
	}

	task, err := r.GetOrCreateTask(context.Background(), src, "")
	if err != nil {
		t.Fatalf("GetOrCreateTask() error: %v", err)
	}

	st, err := task.Segment(context.Background(), 0)
	if err == nil {
		t.Fatal("Segment(0) succeeded despite encoder failure")
	}
	if _, statErr := os.Stat(st.Path); !os.IsNotExist(statErr) {
		t.Error("partial output file left at the servable path")
	}
}

func TestSegmentOutOfRange(t *testing.T) {
	src := testSource(t)
	r := newTestRegistry(t, &countingProber{info: testProbe()})

	task, err := r.GetOrCreateTask(context.Background(), src, "")
	if err != nil {
		t.Fatalf("GetOrCreateTask() error: %v", err)
	}

	for _, index := range []int{-1, 13, 100} {
		if _, err := task.Segment(context.Background(), index); !errors.Is(err, ErrSegmentOutOfRange) {
			t.Errorf("Segment(%d) error = %v, want ErrSegmentOutOfRange", index, err)
		}
	}
}

func TestSegmentWaitCancellation(t *testing.T) {
	src := testSource(t)
	r := newTestRegistry(t, &countingProber{info: testProbe()})

	release := make(chan struct{})
	r.runner = func(_ context.Context, _ []string, outPath string) error {
		<-release
		return os.WriteFile(outPath, []byte("late"), 0o644)
	}

	task, err := r.GetOrCreateTask(context.Background(), src, "")
	if err != nil {
		t.Fatalf("GetOrCreateTask() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := task.Segment(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("Segment() error = %v, want context.Canceled", err)
	}

	// The abandoned encode still completes for later callers.
	close(release)
	if _, err := task.Segment(context.Background(), 0); err != nil {
		t.Errorf("Segment() after cancelled wait error: %v", err)
	}
}

func TestClear(t *testing.T) {
	src := testSource(t)
	prober := &countingProber{info: testProbe()}
	r := newTestRegistry(t, prober)

	task, err := r.GetOrCreateTask(context.Background(), src, "")
	if err != nil {
		t.Fatalf("GetOrCreateTask() error: %v", err)
	}
	if _, err := task.Segment(context.Background(), 0); err != nil {
		t.Fatalf("Segment(0) error: %v", err)
	}

	freed, err := r.Clear(context.Background())
	if err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	if freed <= 0 {
		t.Errorf("Clear() freed %d bytes, want > 0", freed)
	}

	if _, err := r.Task(task.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Error("task still registered after clear")
	}
	if _, err := os.Stat(task.ManifestPath); !os.IsNotExist(err) {
		t.Error("manifest file survived clear")
	}

	// Re-init behaves as first-time initialization: fresh probe, new task.
	before := prober.count()
	again, err := r.GetOrCreateTask(context.Background(), src, "")
	if err != nil {
		t.Fatalf("GetOrCreateTask() after clear error: %v", err)
	}
	if again == task {
		t.Error("re-init after clear reused the stale task object")
	}
	if prober.count() != before+1 {
		t.Error("re-init after clear did not re-probe")
	}
	if _, err := os.Stat(again.ManifestPath); err != nil {
		t.Errorf("manifest not rewritten after clear: %v", err)
	}
}

func TestTaskAliasDeterministic(t *testing.T) {
	fp := probe.Fingerprint{Path: "/media/a.mkv", Size: 100, ModTime: 1700000000000}

	a1 := taskAlias(fp, "original")
	a2 := taskAlias(fp, "original")
	if a1 != a2 {
		t.Error("alias not deterministic for identical identity")
	}
	if len(a1) != aliasLength {
		t.Errorf("alias length = %d, want %d", len(a1), aliasLength)
	}
	if a1 == taskAlias(fp, "720p") {
		t.Error("alias collision across quality profiles")
	}

	fp2 := fp
	fp2.ModTime++
	if a1 == taskAlias(fp2, "original") {
		t.Error("alias collision across fingerprints")
	}
}
