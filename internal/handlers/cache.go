package handlers

import (
	"net/http"

	"media-streamer/internal/logging"
	"media-streamer/internal/metrics"
)

// ClearCacheResponse reports the result of a cache clear.
type ClearCacheResponse struct {
	Status     string `json:"status"`
	Scope      string `json:"scope"`
	FreedBytes int64  `json:"freedBytes"`
}

// ClearCache drops transcoded output and cached probe results. Active
// tasks are forgotten; the next stream init re-probes the source and
// transcodes fresh segments.
//
// Scope "hls" (the default) and "all" currently cover the same data; the
// distinction exists so additional caches can be scoped later.
func (h *Handlers) ClearCache(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("scope")
	if scope == "" {
		scope = "hls"
	}
	if scope != "hls" && scope != "all" {
		writeJSONError(w, "Unknown scope", http.StatusBadRequest)
		return
	}

	freed, err := h.registry.Clear(r.Context())
	if err != nil {
		logging.Error("cache clear failed: %v", err)
		writeJSONError(w, "Failed to clear cache", http.StatusInternalServerError)
		return
	}

	metrics.CacheClearsTotal.WithLabelValues(scope).Inc()
	metrics.CacheClearedBytes.WithLabelValues(scope).Add(float64(freed))
	logging.Info("Cache cleared (scope=%s): %d bytes freed", scope, freed)

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, ClearCacheResponse{
		Status:     "cleared",
		Scope:      scope,
		FreedBytes: freed,
	})
}
