package quality

import (
	"media-streamer/internal/probe"
)

// OriginalKey is the key of the always-present source-resolution profile.
const OriginalKey = "original"

// Bitrate guard rails for the "original" profile, in kbps. Sources with
// missing or absurd bitrate metadata are clamped into a playable range.
const (
	minOriginalVideoKbps = 1200
	minAudioKbps         = 96
	maxAudioKbps         = 320
	defaultAudioKbps     = 128
)

// Profile is a named transcode target: a short-edge pixel count plus video
// and audio bitrates in kbps.
type Profile struct {
	Key          string `json:"key"`
	Label        string `json:"label"`
	Original     bool   `json:"isOriginal"`
	ShortEdge    int    `json:"shortEdge"`
	VideoBitRate int    `json:"videoBitRate"`
	AudioBitRate int    `json:"audioBitRate"`
}

// preset profiles ordered from largest to smallest short-edge.
var presets = []Profile{
	{Key: "8k", Label: "8K", ShortEdge: 4320, VideoBitRate: 45000, AudioBitRate: 192},
	{Key: "4k", Label: "4K", ShortEdge: 2160, VideoBitRate: 18000, AudioBitRate: 192},
	{Key: "2k", Label: "2K", ShortEdge: 1440, VideoBitRate: 10000, AudioBitRate: 192},
	{Key: "1080p", Label: "1080p", ShortEdge: 1080, VideoBitRate: 6000, AudioBitRate: 160},
	{Key: "720p", Label: "720p", ShortEdge: 720, VideoBitRate: 3500, AudioBitRate: 128},
	{Key: "480p", Label: "480p", ShortEdge: 480, VideoBitRate: 1500, AudioBitRate: 96},
}

// BuildProfiles returns the ordered list of viable profiles for the probed
// source, always beginning with "original". Presets whose short-edge would
// upscale the source are excluded.
func BuildProfiles(info *probe.MediaProbe) []Profile {
	shortEdge := sourceShortEdge(info)

	profiles := []Profile{{
		Key:          OriginalKey,
		Label:        "Original",
		Original:     true,
		ShortEdge:    shortEdge,
		VideoBitRate: originalVideoKbps(info),
		AudioBitRate: clampAudioKbps(info.AudioBitRate / 1000),
	}}

	for _, p := range presets {
		if p.ShortEdge <= shortEdge {
			profiles = append(profiles, p)
		}
	}

	return profiles
}

// Select resolves a requested quality key against the filtered profile
// list. Unknown or missing keys, and presets filtered out because the
// source is too small, fall back to the first profile (original).
func Select(profiles []Profile, key string) Profile {
	if key == "" {
		key = OriginalKey
	}
	for _, p := range profiles {
		if p.Key == key {
			return p
		}
	}
	return profiles[0]
}

// Keys returns the profile keys in order, for init responses.
func Keys(profiles []Profile) []string {
	keys := make([]string, len(profiles))
	for i, p := range profiles {
		keys[i] = p.Key
	}
	return keys
}

// sourceShortEdge returns min(width, height), substituting 1 for unknown
// dimensions so later arithmetic never divides by zero.
func sourceShortEdge(info *probe.MediaProbe) int {
	w, h := info.Width, info.Height
	if w <= 0 {
		w = 1
	}
	if h <= 0 {
		h = 1
	}
	if w < h {
		return w
	}
	return h
}

// originalVideoKbps normalizes the source video bitrate, falling back to
// the container bitrate when the stream carries none, with a floor to guard
// against missing metadata.
func originalVideoKbps(info *probe.MediaProbe) int {
	kbps := info.VideoBitRate / 1000
	if kbps == 0 {
		kbps = info.FormatBitRate / 1000
	}
	if kbps < minOriginalVideoKbps {
		kbps = minOriginalVideoKbps
	}
	return kbps
}

func clampAudioKbps(kbps int) int {
	if kbps == 0 {
		kbps = defaultAudioKbps
	}
	if kbps < minAudioKbps {
		return minAudioKbps
	}
	if kbps > maxAudioKbps {
		return maxAudioKbps
	}
	return kbps
}
