package hls

import (
	"fmt"
	"io"
	"math"
)

// SegmentDuration is the fixed target length of every segment except the
// last, in seconds.
const SegmentDuration = 10.0

// SegmentCount returns the number of segments covering duration seconds.
func SegmentCount(duration float64) int {
	if duration <= 0 {
		return 0
	}
	return int(math.Ceil(duration / SegmentDuration))
}

// segmentLength returns the duration of segment index within a stream of
// the given total duration: SegmentDuration for all but the final segment,
// which gets the remainder.
func segmentLength(duration float64, index int) float64 {
	remaining := duration - float64(index)*SegmentDuration
	if remaining > SegmentDuration {
		return SegmentDuration
	}
	return remaining
}

// WriteManifest emits the static VOD manifest for a task. Segment URIs are
// relative to the manifest location (/manifest/<id>.m3u8), addressed by the
// task's short alias, a monotonically increasing index, and a cache-busting
// token derived from the source's modification time.
func WriteManifest(w io.Writer, alias, token string, duration float64) error {
	count := SegmentCount(duration)

	if _, err := fmt.Fprintf(w, "#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:%d\n#EXT-X-MEDIA-SEQUENCE:0\n#EXT-X-PLAYLIST-TYPE:VOD\n", int(SegmentDuration)); err != nil {
		return err
	}

	for i := 0; i < count; i++ {
		if _, err := fmt.Fprintf(w, "#EXTINF:%.3f,\n%s/segment-%d.ts?v=%s\n", segmentLength(duration, i), alias, i, token); err != nil {
			return err
		}
	}

	_, err := io.WriteString(w, "#EXT-X-ENDLIST\n")
	return err
}
