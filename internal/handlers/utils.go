package handlers

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"

	"media-streamer/internal/logging"
)

// writeJSON encodes v as JSON and writes it to the response writer.
// Any encoding or write errors are logged since we typically cannot
// recover from them in an HTTP handler context.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONError writes an error response as JSON with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, map[string]string{"error": message})
}

// resolveMediaPath joins a client-supplied relative path onto the media
// root and rejects anything that escapes it.
func (h *Handlers) resolveMediaPath(relativePath string) (string, bool) {
	fullPath := filepath.Join(h.mediaDir, relativePath)

	absPath, err := filepath.Abs(fullPath)
	if err != nil || !isSubPath(h.mediaDir, absPath) {
		return "", false
	}
	return absPath, true
}

func isSubPath(parent, child string) bool {
	parent, _ = filepath.Abs(parent)
	child, _ = filepath.Abs(child)
	if child == parent {
		return true
	}
	// Compare on a separator boundary so a sibling directory sharing a
	// name prefix is not mistaken for a child.
	return strings.HasPrefix(child, parent+string(filepath.Separator))
}
