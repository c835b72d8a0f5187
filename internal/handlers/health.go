package handlers

import (
	"net/http"
	"runtime"

	"media-streamer/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status             string `json:"status"`
	Ready              bool   `json:"ready"`
	Version            string `json:"version"`
	TranscodingEnabled bool   `json:"transcodingEnabled"`

	// Activity summary
	ActiveTasks        int   `json:"activeTasks"`
	ActiveAudioStreams int   `json:"activeAudioStreams"`
	CacheSizeBytes     int64 `json:"cacheSizeBytes"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	response := HealthResponse{
		Ready:              true,
		Version:            startup.Version,
		TranscodingEnabled: h.transcodingEnabled,
		ActiveTasks:        h.registry.TaskCount(),
		ActiveAudioStreams: h.proxy.ActiveStreams(),
		CacheSizeBytes:     h.registry.CacheSize(),
		GoVersion:          runtime.Version(),
		NumCPU:             runtime.NumCPU(),
		NumGoroutine:       runtime.NumGoroutine(),
	}

	if h.transcodingEnabled {
		response.Status = statusHealthy
	} else {
		// Server is up but cannot serve video; surface it for operators
		response.Status = statusDegraded
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	writeJSON(w, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 once the server can accept traffic. The
// audio proxy has no startup phase and the transcode registry is ready
// as soon as its cache directory is writable.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	writeJSON(w, map[string]string{
		"status": "ready",
	})
}
