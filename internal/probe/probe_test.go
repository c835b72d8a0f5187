package probe

import (
	"math"
	"testing"
)

func TestParseFrameRate(t *testing.T) {
	tests := []struct {
		name string
		rate string
		want float64
	}{
		{"NTSC rational", "30000/1001", 29.97},
		{"Plain integer", "25", 25},
		{"Plain float", "23.976", 23.976},
		{"Whole rational", "24/1", 24},
		{"Zero denominator", "0/0", 0},
		{"Empty", "", 0},
		{"Garbage", "abc", 0},
		{"Garbage denominator", "30/x", 0},
		{"Whitespace", "  50/2  ", 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseFrameRate(tt.rate)
			if math.Abs(got-tt.want) > 0.01 {
				t.Errorf("ParseFrameRate(%q) = %f, want %f", tt.rate, got, tt.want)
			}
		})
	}
}

func TestParseReport(t *testing.T) {
	report := []byte(`{
		"streams": [
			{
				"codec_type": "video",
				"codec_name": "h264",
				"width": 1920,
				"height": 1080,
				"bit_rate": "4500000",
				"r_frame_rate": "30000/1001"
			},
			{
				"codec_type": "audio",
				"codec_name": "aac",
				"bit_rate": "192000"
			}
		],
		"format": {
			"duration": "125.000000",
			"bit_rate": "4800000"
		}
	}`)

	info, err := ParseReport(report)
	if err != nil {
		t.Fatalf("ParseReport() error: %v", err)
	}

	if info.Duration != 125 {
		t.Errorf("Duration = %f, want 125", info.Duration)
	}
	if info.Width != 1920 || info.Height != 1080 {
		t.Errorf("Dimensions = %dx%d, want 1920x1080", info.Width, info.Height)
	}
	if info.Codec != "h264" {
		t.Errorf("Codec = %q, want h264", info.Codec)
	}
	if math.Abs(info.FPS-29.97) > 0.01 {
		t.Errorf("FPS = %f, want ~29.97", info.FPS)
	}
	if info.VideoBitRate != 4500000 {
		t.Errorf("VideoBitRate = %d, want 4500000", info.VideoBitRate)
	}
	if !info.HasAudio || info.AudioBitRate != 192000 {
		t.Errorf("Audio = (%v, %d), want (true, 192000)", info.HasAudio, info.AudioBitRate)
	}
	if info.FormatBitRate != 4800000 {
		t.Errorf("FormatBitRate = %d, want 4800000", info.FormatBitRate)
	}
}

func TestParseReportFirstStreamsOnly(t *testing.T) {
	report := []byte(`{
		"streams": [
			{"codec_type": "video", "codec_name": "h264", "width": 1280, "height": 720, "r_frame_rate": "25/1"},
			{"codec_type": "video", "codec_name": "mjpeg", "width": 300, "height": 300, "r_frame_rate": "90000/1"},
			{"codec_type": "audio", "bit_rate": "128000"},
			{"codec_type": "audio", "bit_rate": "640000"}
		],
		"format": {"duration": "10.0"}
	}`)

	info, err := ParseReport(report)
	if err != nil {
		t.Fatalf("ParseReport() error: %v", err)
	}

	if info.Codec != "h264" || info.Width != 1280 {
		t.Errorf("picked wrong video stream: codec=%q width=%d", info.Codec, info.Width)
	}
	if info.AudioBitRate != 128000 {
		t.Errorf("picked wrong audio stream: bitrate=%d", info.AudioBitRate)
	}
}

func TestParseReportAvgFrameRateFallback(t *testing.T) {
	report := []byte(`{
		"streams": [
			{"codec_type": "video", "codec_name": "h264", "width": 640, "height": 480,
			 "r_frame_rate": "0/0", "avg_frame_rate": "24/1"}
		],
		"format": {"duration": "5.0"}
	}`)

	info, err := ParseReport(report)
	if err != nil {
		t.Fatalf("ParseReport() error: %v", err)
	}
	if info.FPS != 24 {
		t.Errorf("FPS = %f, want 24 from avg_frame_rate fallback", info.FPS)
	}
}

func TestParseReportErrors(t *testing.T) {
	tests := []struct {
		name   string
		report string
	}{
		{"Invalid JSON", `{not json`},
		{"Empty report", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseReport([]byte(tt.report)); err == nil {
				t.Error("ParseReport() expected error, got nil")
			}
		})
	}
}

func TestNewDefaultBinary(t *testing.T) {
	p := New("")
	if p.binary != DefaultFFprobe {
		t.Errorf("binary = %q, want %q", p.binary, DefaultFFprobe)
	}

	p = New("/opt/ffprobe")
	if p.binary != "/opt/ffprobe" {
		t.Errorf("binary = %q, want /opt/ffprobe", p.binary)
	}
}
