package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/gorilla/mux"

	"media-streamer/internal/hls"
	"media-streamer/internal/logging"
	"media-streamer/internal/probe"
	"media-streamer/internal/quality"
)

// InitStreamRequest is the body of POST /api/stream/init.
type InitStreamRequest struct {
	// MediaDir optionally names a library subdirectory under the media root.
	MediaDir     string `json:"mediaDir"`
	RelativePath string `json:"relativePath"`
	// Quality is the requested profile key; empty or unknown selects the
	// original-quality profile.
	Quality string `json:"quality"`
}

// InitStreamResponse describes a prepared stream.
type InitStreamResponse struct {
	VideoID            string            `json:"videoId"`
	ManifestURL        string            `json:"manifestUrl"`
	VideoInfo          *probe.MediaProbe `json:"videoInfo"`
	SelectedQuality    string            `json:"selectedQuality"`
	AvailableQualities []quality.Profile `json:"availableQualities"`
	SegmentCount       int               `json:"segmentCount"`
}

// InitStream prepares (or re-uses) a transcode task for a source file and
// returns the manifest URL the player should load. Initializing the same
// file at the same quality again returns the existing task without
// re-probing the source.
func (h *Handlers) InitStream(w http.ResponseWriter, r *http.Request) {
	if !h.transcodingEnabled {
		writeJSONError(w, "Transcoding is disabled", http.StatusServiceUnavailable)
		return
	}

	var req InitStreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.RelativePath == "" {
		writeJSONError(w, "relativePath is required", http.StatusBadRequest)
		return
	}

	relative := req.RelativePath
	if req.MediaDir != "" {
		relative = req.MediaDir + "/" + relative
	}

	sourcePath, ok := h.resolveMediaPath(relative)
	if !ok {
		writeJSONError(w, "Invalid path", http.StatusBadRequest)
		return
	}

	task, err := h.registry.GetOrCreateTask(r.Context(), sourcePath, req.Quality)
	if err != nil {
		if os.IsNotExist(err) {
			writeJSONError(w, "Media file not found", http.StatusNotFound)
			return
		}
		var probeErr *probe.ProbeError
		if errors.As(err, &probeErr) {
			logging.Error("probe failed for %s: %v", sourcePath, err)
			writeJSONError(w, "Failed to analyze media file", http.StatusInternalServerError)
			return
		}
		logging.Error("failed to initialize stream for %s: %v", sourcePath, err)
		writeJSONError(w, "Failed to initialize stream", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, InitStreamResponse{
		VideoID:            task.ID,
		ManifestURL:        fmt.Sprintf("/manifest/%s.m3u8", task.ID),
		VideoInfo:          task.Probe,
		SelectedQuality:    task.Profile.Key,
		AvailableQualities: task.Profiles,
		SegmentCount:       task.SegmentCount(),
	})
}

// GetManifest serves the static VOD playlist for a task.
func (h *Handlers) GetManifest(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	task, err := h.registry.Task(vars["id"])
	if err != nil {
		http.Error(w, "Unknown stream", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	http.ServeFile(w, r, task.ManifestPath)
}

// GetSegment serves one transport stream segment, transcoding it on first
// access and replaying the cached file afterwards. Concurrent requests for
// a segment that is still encoding share the same in-flight work.
func (h *Handlers) GetSegment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	task, err := h.registry.Task(vars["id"])
	if err != nil {
		http.Error(w, "Unknown stream", http.StatusNotFound)
		return
	}

	index, err := strconv.Atoi(vars["n"])
	if err != nil {
		http.Error(w, "Invalid segment index", http.StatusBadRequest)
		return
	}

	state, err := task.Segment(r.Context(), index)
	if err != nil {
		switch {
		case errors.Is(err, hls.ErrSegmentOutOfRange):
			http.Error(w, "Segment out of range", http.StatusNotFound)
		case errors.Is(err, context.Canceled):
			// Client went away while waiting; nothing to send
			logging.Debug("segment wait abandoned: %s segment %d", task.ID, index)
		default:
			logging.Error("segment %d of %s failed: %v", index, task.ID, err)
			http.Error(w, "Transcoding failed", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "video/mp2t")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	http.ServeFile(w, r, state.Path)
}
