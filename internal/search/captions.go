package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/gazehq/gaze-engine/internal/catalog"
)

const (
	CaptionFormatSRT = "srt"
	CaptionFormatVTT = "vtt"
)

// ExportCaptions renders an item's transcript as SRT or WebVTT. An
// item without a transcript yields an empty document.
func ExportCaptions(ctx context.Context, store *catalog.Store, videoID, format string) (string, error) {
	segments, err := store.TranscriptForVideo(ctx, videoID)
	if err != nil {
		return "", err
	}

	switch format {
	case CaptionFormatSRT:
		return renderSRT(segments), nil
	case CaptionFormatVTT:
		return renderVTT(segments), nil
	default:
		return "", fmt.Errorf("unknown caption format %q", format)
	}
}

func renderSRT(segments []catalog.TranscriptSegment) string {
	if len(segments) == 0 {
		return ""
	}
	var b strings.Builder
	for i, seg := range segments {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			i+1, formatTimestampSRT(seg.StartMs), formatTimestampSRT(seg.EndMs),
			strings.TrimSpace(seg.Text))
	}
	return b.String()
}

func renderVTT(segments []catalog.TranscriptSegment) string {
	if len(segments) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for _, seg := range segments {
		fmt.Fprintf(&b, "%s --> %s\n%s\n\n",
			formatTimestampVTT(seg.StartMs), formatTimestampVTT(seg.EndMs),
			strings.TrimSpace(seg.Text))
	}
	return b.String()
}

// formatTimestampSRT renders HH:MM:SS,mmm.
func formatTimestampSRT(ms int64) string {
	h, m, s, frac := splitTimestamp(ms)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, frac)
}

// formatTimestampVTT renders HH:MM:SS.mmm.
func formatTimestampVTT(ms int64) string {
	h, m, s, frac := splitTimestamp(ms)
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, frac)
}

func splitTimestamp(ms int64) (h, m, s, frac int64) {
	if ms < 0 {
		ms = 0
	}
	return ms / 3600000, ms / 60000 % 60, ms / 1000 % 60, ms % 1000
}
