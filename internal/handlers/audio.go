package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"media-streamer/internal/audio"
	"media-streamer/internal/logging"
)

// StreamAudio transcodes an audio file to constant-bitrate MP3 and streams
// it to the client. Query parameters:
//
//	path - source path relative to the media root (required)
//	t    - start offset in seconds (default 0)
//	cid  - client identifier; a new stream for the same cid supersedes the
//	       previous one (required)
//	br   - target bitrate in kbps (default 192)
func (h *Handlers) StreamAudio(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	relativePath := query.Get("path")
	if relativePath == "" {
		http.Error(w, "path is required", http.StatusBadRequest)
		return
	}

	clientID := query.Get("cid")
	if clientID == "" {
		http.Error(w, "cid is required", http.StatusBadRequest)
		return
	}

	sourcePath, ok := h.resolveMediaPath(relativePath)
	if !ok {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	start := 0.0
	if t := query.Get("t"); t != "" {
		parsed, err := strconv.ParseFloat(t, 64)
		if err != nil || parsed < 0 {
			http.Error(w, "Invalid start time", http.StatusBadRequest)
			return
		}
		start = parsed
	}

	bitrate := 0
	if br := query.Get("br"); br != "" {
		parsed, err := strconv.Atoi(br)
		if err != nil || parsed <= 0 {
			http.Error(w, "Invalid bitrate", http.StatusBadRequest)
			return
		}
		bitrate = parsed
	}

	err := h.proxy.Stream(r.Context(), w, audio.StreamRequest{
		Path:        sourcePath,
		Start:       start,
		BitrateKbps: bitrate,
		ClientID:    clientID,
	})
	if err != nil {
		if errors.Is(err, audio.ErrEncoderStart) {
			// Nothing has been written yet when the encoder fails to
			// start, so a real status can still reach the client.
			writeJSONError(w, "Failed to start audio stream", http.StatusInternalServerError)
			return
		}
		// Headers are already sent once streaming begins, so all we can
		// do is log and drop the connection
		logging.Error("audio stream for %s failed: %v", clientID, err)
	}
}
