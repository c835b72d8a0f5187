package hls

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"media-streamer/internal/probe"
	"media-streamer/internal/quality"
)

// DefaultFFmpeg is the encoder binary used when no override is configured.
const DefaultFFmpeg = "ffmpeg"

// keyframeSeekWindow is how far before the segment start the encoder input
// is seeked, in seconds. Seeking early lands on or before a keyframe; the
// output-side seek then trims precisely to the segment boundary.
const keyframeSeekWindow = 5.0

// EncodeError indicates that a segment or stream transcode failed after all
// encoder backends were exhausted.
type EncodeError struct {
	Source  string
	Segment int
	Err     error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("transcode failed for %s segment %d: %v", e.Source, e.Segment, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// Backend describes one encoder configuration. Backends are tried in order;
// the first success short-circuits.
type Backend struct {
	Name      string   // metrics label
	Codec     string   // value for -c:v
	InputArgs []string // inserted before the input, e.g. hwaccel flags
	CodecArgs []string // inserted after -c:v, e.g. preset and scene-cut control
}

var (
	backendNVENC = Backend{
		Name:      "h264_nvenc",
		Codec:     "h264_nvenc",
		InputArgs: []string{"-hwaccel", "cuda"},
		CodecArgs: []string{"-preset", "fast", "-no-scenecut", "1"},
	}
	backendX264 = Backend{
		Name:      "libx264",
		Codec:     "libx264",
		CodecArgs: []string{"-preset", "fast", "-sc_threshold", "0"},
	}
)

// encoderBackends returns the ordered backend list: hardware first when
// enabled, software always last as the terminal fallback.
func encoderBackends(hwaccel bool) []Backend {
	if hwaccel {
		return []Backend{backendNVENC, backendX264}
	}
	return []Backend{backendX264}
}

// segmentArgs builds the full ffmpeg argument list producing one
// self-contained transport stream segment at outPath.
//
// The input is seeked up to keyframeSeekWindow seconds before the segment
// start, then the output side trims to the exact boundary. The container
// timestamp offset equals the segment start so consecutive segments carry
// continuously increasing timestamps despite being independent encoder
// invocations.
func segmentArgs(b Backend, src string, index int, info *probe.MediaProbe, prof quality.Profile, outPath string) []string {
	start := float64(index) * SegmentDuration
	inputSeek := start - keyframeSeekWindow
	if inputSeek < 0 {
		inputSeek = 0
	}
	outputSeek := start - inputSeek

	args := []string{"-loglevel", "error", "-y"}
	args = append(args, b.InputArgs...)
	if inputSeek > 0 {
		args = append(args, "-ss", formatSeconds(inputSeek))
	}
	args = append(args, "-i", src)
	if outputSeek > 0 {
		args = append(args, "-ss", formatSeconds(outputSeek))
	}
	args = append(args,
		"-t", formatSeconds(SegmentDuration),
		"-map", "0:v:0",
		"-map", "0:a:0?",
	)

	if !prof.Original {
		args = append(args, "-vf", scaleFilter(info, prof.ShortEdge))
	}

	args = append(args, "-c:v", b.Codec, "-b:v", kbps(prof.VideoBitRate))
	args = append(args, "-g", strconv.Itoa(gopSize(info.FPS)))
	args = append(args, b.CodecArgs...)
	args = append(args,
		"-c:a", "aac",
		"-b:a", kbps(prof.AudioBitRate),
		"-ar", "44100",
		"-ac", "2",
	)
	args = append(args,
		"-output_ts_offset", formatSeconds(start),
		"-muxdelay", "0",
		"-f", "mpegts",
		outPath,
	)

	return args
}

// scaleFilter sizes the output to the profile's short-edge, preserving
// aspect ratio. The scaled dimension follows the larger source dimension:
// landscape scales height to the short-edge, portrait scales width.
func scaleFilter(info *probe.MediaProbe, shortEdge int) string {
	if info.Width >= info.Height {
		return fmt.Sprintf("scale=-2:%d", shortEdge)
	}
	return fmt.Sprintf("scale=%d:-2", shortEdge)
}

// gopSize returns the keyframe interval: two seconds of frames, minimum 24.
// An unknown frame rate is assumed to be 30.
func gopSize(fps float64) int {
	if fps == 0 {
		fps = 30
	}
	g := int(math.Round(fps * 2))
	if g < 24 {
		g = 24
	}
	return g
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 6, 64)
}

func kbps(k int) string {
	return strconv.Itoa(k) + "k"
}

// runFFmpeg executes one encoder attempt. It is the default runner; tests
// substitute their own.
func (r *Registry) runFFmpeg(ctx context.Context, args []string, outPath string) error {
	cmd := exec.CommandContext(ctx, r.ffmpeg, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	r.trackProcess(outPath, cmd)
	defer r.untrackProcess(outPath)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", r.ffmpeg, err)
	}
	if err := cmd.Wait(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}
