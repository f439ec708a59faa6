// Package format renders transcript segments into the textual subtitle and
// tabular formats exposed by the API. All functions are pure: the same
// segments always produce byte-identical output.
package format

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/stagezero-42/whisper-api-service/internal/jobs"
)

const (
	FormatJSON = "json"
	FormatText = "txt"
	FormatSRT  = "srt"
	FormatVTT  = "vtt"
	FormatTSV  = "tsv"
)

// Known reports whether name is a supported output format.
func Known(name string) bool {
	switch name {
	case FormatJSON, FormatText, FormatSRT, FormatVTT, FormatTSV:
		return true
	default:
		return false
	}
}

// Timestamp renders seconds as HH:MM:SS<marker>mmm, rounded to the nearest
// millisecond. Negative input is clamped to zero.
func Timestamp(seconds float64, decimalMarker string) string {
	if seconds < 0 {
		seconds = 0
	}
	ms := int64(math.Round(seconds * 1000.0))
	hours := ms / 3_600_000
	ms %= 3_600_000
	minutes := ms / 60_000
	ms %= 60_000
	secs := ms / 1_000
	ms %= 1_000
	return fmt.Sprintf("%02d:%02d:%02d%s%03d", hours, minutes, secs, decimalMarker, ms)
}

// SRT renders segments as a SubRip document: 1-based cue index, comma-decimal
// timestamps, trimmed text, blank line after each cue. Empty input yields an
// empty document.
func SRT(segments []jobs.Segment) string {
	var b strings.Builder
	for i, seg := range segments {
		fmt.Fprintf(&b, "%d\n", i+1)
		fmt.Fprintf(&b, "%s --> %s\n", Timestamp(seg.Start, ","), Timestamp(seg.End, ","))
		fmt.Fprintf(&b, "%s\n\n", strings.TrimSpace(seg.Text))
	}
	return b.String()
}

// VTT renders segments as a WebVTT document with dot-decimal timestamps.
// Empty input yields just the header.
func VTT(segments []jobs.Segment) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for _, seg := range segments {
		fmt.Fprintf(&b, "%s --> %s\n", Timestamp(seg.Start, "."), Timestamp(seg.End, "."))
		fmt.Fprintf(&b, "%s\n\n", strings.TrimSpace(seg.Text))
	}
	return b.String()
}

// TSV renders start/end in integer milliseconds (truncated) plus the trimmed
// text, one row per segment under a fixed header.
func TSV(segments []jobs.Segment) string {
	var b strings.Builder
	b.WriteString("start\tend\ttext\n")
	for _, seg := range segments {
		fmt.Fprintf(&b, "%d\t%d\t%s\n",
			int64(seg.Start*1000),
			int64(seg.End*1000),
			strings.TrimSpace(seg.Text))
	}
	return b.String()
}

// SRTMap is the machine-readable SRT variant: cue number (as a string) mapped
// to the timestamp line and the trimmed text.
func SRTMap(segments []jobs.Segment) map[string][]string {
	ret := make(map[string][]string, len(segments))
	for i, seg := range segments {
		line := fmt.Sprintf("%s --> %s", Timestamp(seg.Start, ","), Timestamp(seg.End, ","))
		ret[strconv.Itoa(i+1)] = []string{line, strings.TrimSpace(seg.Text)}
	}
	return ret
}

// VTTMap mirrors SRTMap with dot-decimal timestamps. The WEBVTT header only
// applies to the flat document form, not the map.
func VTTMap(segments []jobs.Segment) map[string][]string {
	ret := make(map[string][]string, len(segments))
	for i, seg := range segments {
		line := fmt.Sprintf("%s --> %s", Timestamp(seg.Start, "."), Timestamp(seg.End, "."))
		ret[strconv.Itoa(i+1)] = []string{line, strings.TrimSpace(seg.Text)}
	}
	return ret
}
