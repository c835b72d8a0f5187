package hls

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"media-streamer/internal/logging"
	"media-streamer/internal/metrics"
	"media-streamer/internal/probe"
	"media-streamer/internal/quality"
)

const aliasLength = 12

// ErrTaskNotFound is returned when a manifest or segment request names an
// alias that no registered task owns.
var ErrTaskNotFound = errors.New("unknown transcode task")

// ErrSegmentOutOfRange is returned for segment indexes outside the manifest.
var ErrSegmentOutOfRange = errors.New("segment index out of range")

// Prober is the probe collaborator consumed by the registry.
type Prober interface {
	Probe(ctx context.Context, path string) (*probe.MediaProbe, error)
}

// ProbeCache persists probe results across restarts. Lookup returns
// (nil, nil) on a miss.
type ProbeCache interface {
	Lookup(ctx context.Context, key string) (*probe.MediaProbe, error)
	Store(ctx context.Context, key string, info *probe.MediaProbe) error
	Purge(ctx context.Context) error
}

// SegmentStatus is the lifecycle state of one cached segment.
type SegmentStatus int

const (
	// SegmentPending means the encode is queued or running.
	SegmentPending SegmentStatus = iota
	// SegmentReady means the transport stream file is complete on disk.
	SegmentReady
	// SegmentFailed means every encoder backend failed. Failed states are
	// permanent until the cache is cleared; see DESIGN.md.
	SegmentFailed
)

// SegmentState is the shared handle for one (task, index) pair. It is
// installed in the task map before the encode starts, so concurrent
// requests for the same segment await the same work.
type SegmentState struct {
	Index int
	Path  string

	done   chan struct{}
	status SegmentStatus
	err    error
}

// Wait blocks until the encode finishes or ctx is cancelled. Cancellation
// abandons only the wait; the encode itself continues for other waiters and
// for the durable cache.
func (s *SegmentState) Wait(ctx context.Context) (SegmentStatus, error) {
	select {
	case <-s.done:
		return s.status, s.err
	case <-ctx.Done():
		return SegmentPending, ctx.Err()
	}
}

// Task is one active (source fingerprint, quality profile) transcode.
type Task struct {
	ID          string
	SourcePath  string
	Fingerprint probe.Fingerprint
	Probe       *probe.MediaProbe
	Profile     quality.Profile
	Profiles    []quality.Profile
	ManifestPath string

	dir      string
	reg      *Registry
	mu       sync.Mutex
	segments map[int]*SegmentState
}

// SegmentCount returns the number of segments in the task's manifest.
func (t *Task) SegmentCount() int {
	return SegmentCount(t.Probe.Duration)
}

// Config wires a Registry's collaborators and limits.
type Config struct {
	// CacheDir is the HLS cache root; each task gets a subdirectory.
	CacheDir string
	// FFmpeg overrides the encoder binary (default DefaultFFmpeg).
	FFmpeg string
	// HWAccel enables the hardware encoder backend ahead of software.
	HWAccel bool
	// Workers bounds concurrent encoder processes. Excess encodes queue,
	// they are never rejected.
	Workers int
	// Prober probes sources on task creation.
	Prober Prober
	// ProbeCache is optional probe persistence (may be nil).
	ProbeCache ProbeCache
}

// Registry is the directory of active transcode tasks and the single point
// of concurrency control for the segment cache.
type Registry struct {
	cacheDir   string
	ffmpeg     string
	backends   []Backend
	prober     Prober
	probeCache ProbeCache
	sem        chan struct{}

	// runner executes one encoder attempt; replaced in tests.
	runner func(ctx context.Context, args []string, outPath string) error

	mu       sync.Mutex
	tasks    map[string]*Task // identity: fingerprint key + selected profile key
	requests map[string]*Task // fingerprint key + requested quality key
	byID     map[string]*Task

	procMu    sync.Mutex
	processes map[string]*exec.Cmd
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config) *Registry {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	ffmpeg := cfg.FFmpeg
	if ffmpeg == "" {
		ffmpeg = DefaultFFmpeg
	}

	r := &Registry{
		cacheDir:   cfg.CacheDir,
		ffmpeg:     ffmpeg,
		backends:   encoderBackends(cfg.HWAccel),
		prober:     cfg.Prober,
		probeCache: cfg.ProbeCache,
		sem:        make(chan struct{}, workers),
		tasks:      make(map[string]*Task),
		requests:   make(map[string]*Task),
		byID:       make(map[string]*Task),
		processes:  make(map[string]*exec.Cmd),
	}
	r.runner = r.runFFmpeg
	return r
}

// GetOrCreateTask returns the task for (source file, quality), creating and
// registering it on first use. Idempotent: an existing task for the same
// fingerprint and quality is returned unchanged, without re-probing.
//
// Creation runs under the registry lock, so concurrent inits for one
// identity probe and write the manifest exactly once; losers observe the
// installed task.
func (r *Registry) GetOrCreateTask(ctx context.Context, path, qualityKey string) (*Task, error) {
	fp, err := probe.FingerprintFile(path)
	if err != nil {
		return nil, err
	}

	reqKey := qualityKey
	if reqKey == "" {
		reqKey = quality.OriginalKey
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.requests[fp.Key()+"|"+reqKey]; ok {
		return t, nil
	}

	info, err := r.probeSource(ctx, fp)
	if err != nil {
		return nil, err
	}

	profiles := quality.BuildProfiles(info)
	selected := quality.Select(profiles, reqKey)

	idKey := fp.Key() + "|" + selected.Key
	if t, ok := r.tasks[idKey]; ok {
		// Requested a preset that selection collapsed onto an existing
		// task (e.g. "4k" on a 1080p source already registered as
		// original). Remember the mapping for next time.
		r.requests[fp.Key()+"|"+reqKey] = t
		return t, nil
	}

	task, err := r.createTask(fp, info, profiles, selected)
	if err != nil {
		return nil, err
	}

	r.tasks[idKey] = task
	r.requests[fp.Key()+"|"+reqKey] = task
	r.byID[task.ID] = task
	metrics.TranscodeTasksActive.Set(float64(len(r.tasks)))

	logging.Info("Registered transcode task %s: %s @ %s (%d segments)",
		task.ID, fp.Path, selected.Key, task.SegmentCount())
	return task, nil
}

// probeSource consults the probe cache before spawning the probe tool.
func (r *Registry) probeSource(ctx context.Context, fp probe.Fingerprint) (*probe.MediaProbe, error) {
	if r.probeCache != nil {
		if info, err := r.probeCache.Lookup(ctx, fp.Key()); err != nil {
			logging.Warn("Probe cache lookup failed for %s: %v", fp.Path, err)
		} else if info != nil {
			metrics.ProbeCacheHits.Inc()
			return info, nil
		}
	}
	metrics.ProbeCacheMisses.Inc()

	start := time.Now()
	info, err := r.prober.Probe(ctx, fp.Path)
	if err != nil {
		metrics.ProbesTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.ProbesTotal.WithLabelValues("success").Inc()
	metrics.ProbeDuration.Observe(time.Since(start).Seconds())

	if r.probeCache != nil {
		if err := r.probeCache.Store(ctx, fp.Key(), info); err != nil {
			logging.Warn("Probe cache store failed for %s: %v", fp.Path, err)
		}
	}
	return info, nil
}

// createTask allocates the task directory and writes its manifest once.
func (r *Registry) createTask(fp probe.Fingerprint, info *probe.MediaProbe, profiles []quality.Profile, selected quality.Profile) (*Task, error) {
	id := taskAlias(fp, selected.Key)
	dir := filepath.Join(r.cacheDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create task directory: %w", err)
	}

	task := &Task{
		ID:           id,
		SourcePath:   fp.Path,
		Fingerprint:  fp,
		Probe:        info,
		Profile:      selected,
		Profiles:     profiles,
		ManifestPath: filepath.Join(dir, "index.m3u8"),
		dir:          dir,
		reg:          r,
		segments:     make(map[int]*SegmentState),
	}

	f, err := os.Create(task.ManifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create manifest: %w", err)
	}
	defer f.Close()

	if err := WriteManifest(f, id, fp.Token(), info.Duration); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}
	return task, nil
}

// Task looks up a registered task by its short alias.
func (r *Registry) Task(id string) (*Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.byID[id]; ok {
		return t, nil
	}
	return nil, ErrTaskNotFound
}

// TaskCount returns the number of registered tasks.
func (r *Registry) TaskCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// Segment returns the state for a segment index, starting its transcode on
// first access and waiting for the shared in-flight encode otherwise. The
// returned state is Ready or Failed; a cancelled ctx aborts only the wait.
func (t *Task) Segment(ctx context.Context, index int) (*SegmentState, error) {
	if index < 0 || index >= t.SegmentCount() {
		return nil, ErrSegmentOutOfRange
	}

	t.mu.Lock()
	st, ok := t.segments[index]
	if ok {
		t.mu.Unlock()
		metrics.SegmentCacheHits.Inc()
	} else {
		// Install the pending state before the encode starts so a
		// concurrent lookup observes it instead of spawning a duplicate.
		st = &SegmentState{
			Index: index,
			Path:  filepath.Join(t.dir, fmt.Sprintf("segment-%d.ts", index)),
			done:  make(chan struct{}),
		}
		t.segments[index] = st
		t.mu.Unlock()
		metrics.SegmentCacheMisses.Inc()

		// Detached from the request context: the result is durable cache
		// and other waiters may still need it after this caller leaves.
		go t.encodeSegment(context.Background(), st)
	}

	if status, err := st.Wait(ctx); err != nil {
		return nil, err
	} else if status == SegmentFailed {
		return st, st.err
	}
	return st, nil
}

// encodeSegment produces one segment, trying each backend in order. The
// encoder writes to a temp file that is renamed into place on success, so a
// partial file from a failed attempt is never served.
func (t *Task) encodeSegment(ctx context.Context, st *SegmentState) {
	r := t.reg

	metrics.EncodeQueueDepth.Inc()
	r.sem <- struct{}{}
	metrics.EncodeQueueDepth.Dec()
	defer func() { <-r.sem }()

	metrics.EncoderProcessesActive.Inc()
	defer metrics.EncoderProcessesActive.Dec()

	tmpPath := st.Path + ".tmp"
	var lastErr error
	for _, b := range r.backends {
		start := time.Now()
		args := segmentArgs(b, t.SourcePath, st.Index, t.Probe, t.Profile, tmpPath)
		logging.Debug("Encoding %s segment %d with %s: %s %s",
			t.ID, st.Index, b.Name, r.ffmpeg, strings.Join(args, " "))

		err := r.runner(ctx, args, tmpPath)
		if err == nil {
			if err = os.Rename(tmpPath, st.Path); err == nil {
				metrics.SegmentTranscodesTotal.WithLabelValues(b.Name, "success").Inc()
				metrics.SegmentTranscodeDuration.WithLabelValues(b.Name).Observe(time.Since(start).Seconds())
				t.finishSegment(st, SegmentReady, nil)
				return
			}
		}

		metrics.SegmentTranscodesTotal.WithLabelValues(b.Name, "error").Inc()
		logging.Warn("Encoder %s failed for %s segment %d: %v", b.Name, t.ID, st.Index, err)
		lastErr = err
		os.Remove(tmpPath)
	}

	t.finishSegment(st, SegmentFailed, &EncodeError{
		Source:  t.SourcePath,
		Segment: st.Index,
		Err:     lastErr,
	})
}

func (t *Task) finishSegment(st *SegmentState, status SegmentStatus, err error) {
	t.mu.Lock()
	st.status = status
	st.err = err
	t.mu.Unlock()
	close(st.done)
}

// Clear removes all on-disk HLS cache content, drops every in-memory task,
// and purges persisted probe results, so the next init behaves as
// first-time initialization. Returns the number of bytes freed.
func (r *Registry) Clear(ctx context.Context) (int64, error) {
	r.mu.Lock()
	r.tasks = make(map[string]*Task)
	r.requests = make(map[string]*Task)
	r.byID = make(map[string]*Task)
	metrics.TranscodeTasksActive.Set(0)
	r.mu.Unlock()

	if r.probeCache != nil {
		if err := r.probeCache.Purge(ctx); err != nil {
			logging.Warn("Failed to purge probe cache: %v", err)
		}
	}

	var freed int64
	entries, err := os.ReadDir(r.cacheDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read HLS cache directory: %w", err)
	}

	for _, entry := range entries {
		path := filepath.Join(r.cacheDir, entry.Name())
		freed += dirSize(path)
		if err := os.RemoveAll(path); err != nil {
			logging.Warn("Failed to remove %s: %v", path, err)
		}
	}

	logging.Info("Cleared HLS cache: freed %d bytes", freed)
	return freed, nil
}

// CacheSize returns the total on-disk size of the HLS cache.
func (r *Registry) CacheSize() int64 {
	return dirSize(r.cacheDir)
}

// Cleanup kills any encoder processes still running. Called on shutdown.
func (r *Registry) Cleanup() {
	r.procMu.Lock()
	defer r.procMu.Unlock()

	for path, cmd := range r.processes {
		if cmd.Process != nil {
			logging.Info("Killing encoder process for: %s", path)
			if err := cmd.Process.Kill(); err != nil {
				logging.Warn("Failed to kill encoder process for %s: %v", path, err)
			}
		}
	}
}

func (r *Registry) trackProcess(key string, cmd *exec.Cmd) {
	r.procMu.Lock()
	r.processes[key] = cmd
	r.procMu.Unlock()
}

func (r *Registry) untrackProcess(key string) {
	r.procMu.Lock()
	delete(r.processes, key)
	r.procMu.Unlock()
}

// taskAlias derives the short collision-resistant alias keeping generated
// file names short. Deterministic, so re-inits reuse the same alias.
func taskAlias(fp probe.Fingerprint, profileKey string) string {
	sum := sha1.Sum([]byte(fp.Key() + "|" + profileKey))
	return hex.EncodeToString(sum[:])[:aliasLength]
}

func dirSize(path string) int64 {
	var size int64
	_ = filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
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
