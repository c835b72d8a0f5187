package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// DefaultFFprobe is the probe binary used when no override is configured.
const DefaultFFprobe = "ffprobe"

// MediaProbe holds the metadata extracted from a source file. It is
// computed once per fingerprint and never mutated.
type MediaProbe struct {
	Duration      float64 `json:"duration"`
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	Codec         string  `json:"codec"`
	FPS           float64 `json:"fps"`
	VideoBitRate  int     `json:"videoBitRate"`
	AudioBitRate  int     `json:"audioBitRate"`
	FormatBitRate int     `json:"formatBitRate"`
	HasAudio      bool    `json:"hasAudio"`
}

// ProbeError indicates that the probe tool failed or produced output that
// could not be parsed.
type ProbeError struct {
	Path string
	Err  error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe failed for %s: %v", e.Path, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// ffprobeReport mirrors the subset of ffprobe -print_format json output
// this server consumes.
type ffprobeReport struct {
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		BitRate      string `json:"bit_rate"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
	} `json:"streams"`
}

// Prober invokes an external probe binary.
type Prober struct {
	binary string
}

// New creates a Prober using the given binary. An empty binary selects
// DefaultFFprobe.
func New(binary string) *Prober {
	if binary == "" {
		binary = DefaultFFprobe
	}
	return &Prober{binary: binary}
}

// Probe runs the probe tool once against path and parses the report.
func (p *Prober) Probe(ctx context.Context, path string) (*MediaProbe, error) {
	cmd := exec.CommandContext(ctx, p.binary,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, &ProbeError{Path: path, Err: fmt.Errorf("%w - %s", err, strings.TrimSpace(stderr.String()))}
	}

	info, err := ParseReport(stdout.Bytes())
	if err != nil {
		return nil, &ProbeError{Path: path, Err: err}
	}
	return info, nil
}

// ParseReport converts a raw ffprobe JSON report into a MediaProbe.
func ParseReport(report []byte) (*MediaProbe, error) {
	var raw ffprobeReport
	if err := json.Unmarshal(report, &raw); err != nil {
		return nil, fmt.Errorf("unparsable probe output: %w", err)
	}

	info := &MediaProbe{}
	info.Duration, _ = strconv.ParseFloat(raw.Format.Duration, 64)
	info.FormatBitRate = atoiLoose(raw.Format.BitRate)

	for _, s := range raw.Streams {
		switch s.CodecType {
		case "video":
			if info.Codec != "" {
				continue // first video stream only
			}
			info.Codec = s.CodecName
			info.Width = s.Width
			info.Height = s.Height
			info.VideoBitRate = atoiLoose(s.BitRate)
			info.FPS = ParseFrameRate(s.RFrameRate)
			if info.FPS == 0 {
				info.FPS = ParseFrameRate(s.AvgFrameRate)
			}
		case "audio":
			if info.HasAudio {
				continue
			}
			info.HasAudio = true
			info.AudioBitRate = atoiLoose(s.BitRate)
		}
	}

	if info.Duration == 0 && info.Codec == "" {
		return nil, fmt.Errorf("probe report contains no usable format or stream data")
	}
	return info, nil
}

// ParseFrameRate resolves a frame rate expressed as "num/den" or as a plain
// number. A zero or unparsable denominator yields 0, which callers treat as
// "unknown, assume 30".
func ParseFrameRate(rate string) float64 {
	rate = strings.TrimSpace(rate)
	if rate == "" {
		return 0
	}

	if num, den, ok := strings.Cut(rate, "/"); ok {
		n, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0
		}
		d, err := strconv.ParseFloat(den, 64)
		if err != nil || d == 0 {
			return 0
		}
		return n / d
	}

	f, err := strconv.ParseFloat(rate, 64)
	if err != nil {
		return 0
	}
	return f
}

// atoiLoose parses ffprobe's stringly-typed integers, returning 0 for
// missing or "N/A" values.
func atoiLoose(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
