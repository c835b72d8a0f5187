package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"media-streamer/internal/logging"
	"media-streamer/internal/metrics"
	"media-streamer/internal/streaming"
)

// DefaultBitrateKbps is used when the caller does not request a bitrate.
const DefaultBitrateKbps = 192

// ErrEncoderStart reports that the encoder process could not be started.
// No response bytes have been written when Stream returns this error.
var ErrEncoderStart = errors.New("failed to start audio encoder")

// StreamRequest describes one constant-bitrate audio stream.
type StreamRequest struct {
	// Path is the resolved source file.
	Path string
	// Start is the playback offset in seconds.
	Start float64
	// BitrateKbps is the target constant bitrate (0 selects the default).
	BitrateKbps int
	// ClientID is the opaque client identity; at most one live encoder
	// exists per ClientID.
	ClientID string
}

// encoder is one running audio encoder process. Kill is idempotent so the
// several cleanup paths (disconnect, response error, supersession,
// shutdown) can all invoke it safely.
type encoder struct {
	stdout   io.ReadCloser
	kill     func()
	wait     func() error
	killOnce sync.Once
}

func (e *encoder) Kill() {
	e.killOnce.Do(e.kill)
}

// Proxy owns the per-client registry of running audio encoders.
type Proxy struct {
	ffmpeg string
	config streaming.WriterConfig

	// spawn starts an encoder for the given argument list; replaced in
	// tests.
	spawn func(args []string) (*encoder, error)

	mu     sync.Mutex
	active map[string]*encoder
}

// New creates an audio proxy using the given ffmpeg binary (empty selects
// "ffmpeg").
func New(ffmpeg string) *Proxy {
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	p := &Proxy{
		ffmpeg: ffmpeg,
		config: streaming.DefaultWriterConfig(),
		active: make(map[string]*encoder),
	}
	p.spawn = p.spawnFFmpeg
	return p
}

// Stream transcodes req.Path to constant-bitrate MP3 starting at req.Start
// and writes it to w until the source ends or either side disconnects. A
// previously registered stream for the same client is terminated first.
func (p *Proxy) Stream(ctx context.Context, w http.ResponseWriter, req StreamRequest) error {
	args := cbrArgs(p.ffmpeg, req)
	logging.Debug("Audio stream for client %s: %s", req.ClientID, strings.Join(args, " "))

	// Latest stream wins: terminate any previous encoder for this client
	// before its replacement starts, so at most one encoder process is
	// live per client. The lock is held across spawn to keep concurrent
	// requests for the same client from interleaving.
	p.mu.Lock()
	if prev := p.active[req.ClientID]; prev != nil {
		logging.Info("Superseding audio stream for client %s", req.ClientID)
		prev.Kill()
		delete(p.active, req.ClientID)
	}
	enc, err := p.spawn(args[1:])
	if err != nil {
		p.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrEncoderStart, err)
	}
	p.active[req.ClientID] = enc
	p.mu.Unlock()

	metrics.AudioStreamsTotal.Inc()
	metrics.AudioStreamsActive.Inc()

	defer func() {
		enc.Kill()
		_ = enc.wait()

		// Deregister only if this encoder is still the current one for the
		// client: cleanup of a superseded stream must not remove its
		// replacement.
		p.mu.Lock()
		if p.active[req.ClientID] == enc {
			delete(p.active, req.ClientID)
		}
		p.mu.Unlock()

		metrics.AudioStreamsActive.Dec()
	}()

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "no-cache")

	streamErr := streaming.Stream(ctx, w, enc.stdout, p.config)
	if streamErr != nil {
		if errors.Is(streamErr, streaming.ErrClientGone) || errors.Is(streamErr, streaming.ErrWriteTimeout) {
			logging.Debug("Audio stream ended for client %s: %v", req.ClientID, streamErr)
			return nil
		}
		return streamErr
	}
	return nil
}

// ActiveStreams returns the number of registered client streams.
func (p *Proxy) ActiveStreams() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

// Cleanup kills every registered encoder. Called on shutdown.
func (p *Proxy) Cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for cid, enc := range p.active {
		logging.Info("Killing audio encoder for client: %s", cid)
		enc.Kill()
	}
}

// cbrArgs builds the full encoder command line, binary included.
func cbrArgs(ffmpeg string, req StreamRequest) []string {
	kbps := req.BitrateKbps
	if kbps <= 0 {
		kbps = DefaultBitrateKbps
	}

	args := []string{ffmpeg, "-loglevel", "error"}
	if req.Start > 0 {
		args = append(args, "-ss", strconv.FormatFloat(req.Start, 'f', 6, 64))
	}
	args = append(args,
		"-i", req.Path,
		"-vn",
		"-c:a", "libmp3lame",
		"-b:a", strconv.Itoa(kbps)+"k",
		"-ar", "44100",
		"-ac", "2",
		"-f", "mp3",
		"pipe:1",
	)
	return args
}

// spawnFFmpeg is the default encoder launcher.
func (p *Proxy) spawnFFmpeg(args []string) (*encoder, error) {
	cmd := exec.Command(p.ffmpeg, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	return &encoder{
		stdout: stdout,
		kill: func() {
			if cmd.Process != nil {
				_ = cmd.Process.Kill()
			}
		},
		wait: func() error {
			err := cmd.Wait()
			if err != nil && stderr.Len() > 0 {
				logging.Debug("Audio encoder stderr: %s", strings.TrimSpace(stderr.String()))
			}
			return err
		},
	}, nil
}
