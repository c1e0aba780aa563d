package search

import (
	"context"
	"testing"

	"github.com/gazehq/gaze-engine/internal/catalog"
)

func TestExportCaptions(t *testing.T) {
	_, store, _ := newPlannerFixture(t, nil)
	ctx := context.Background()
	seedDoneMedia(t, store, "m-1")

	segs := []catalog.TranscriptSegment{
		{VideoID: "m-1", StartMs: 0, EndMs: 1500, Text: "Hello there"},
		{VideoID: "m-1", StartMs: 3661250, EndMs: 3662000, Text: "An hour later"},
	}
	if err := store.ReplaceTranscript(ctx, "m-1", segs); err != nil {
		t.Fatalf("seeding transcript: %v", err)
	}

	srt, err := ExportCaptions(ctx, store, "m-1", CaptionFormatSRT)
	if err != nil {
		t.Fatalf("exporting srt: %v", err)
	}
	wantSRT := "1\n00:00:00,000 --> 00:00:01,500\nHello there\n\n" +
		"2\n01:01:01,250 --> 01:01:02,000\nAn hour later\n\n"
	if srt != wantSRT {
		t.Errorf("srt mismatch:\ngot  %q\nwant %q", srt, wantSRT)
	}

	vtt, err := ExportCaptions(ctx, store, "m-1", CaptionFormatVTT)
	if err != nil {
		t.Fatalf("exporting vtt: %v", err)
	}
	wantVTT := "WEBVTT\n\n" +
		"00:00:00.000 --> 00:00:01.500\nHello there\n\n" +
		"01:01:01.250 --> 01:01:02.000\nAn hour later\n\n"
	if vtt != wantVTT {
		t.Errorf("vtt mismatch:\ngot  %q\nwant %q", vtt, wantVTT)
	}
}

func TestExportCaptions_EmptyTranscript(t *testing.T) {
	_, store, _ := newPlannerFixture(t, nil)
	ctx := context.Background()
	seedDoneMedia(t, store, "m-1")

	for _, format := range []string{CaptionFormatSRT, CaptionFormatVTT} {
		out, err := ExportCaptions(ctx, store, "m-1", format)
		if err != nil {
			t.Fatalf("exporting %s: %v", format, err)
		}
		if out != "" {
			t.Errorf("expected an empty %s document, got %q", format, out)
		}
	}
}

func TestExportCaptions_UnknownFormat(t *testing.T) {
	_, store, _ := newPlannerFixture(t, nil)
	if _, err := ExportCaptions(context.Background(), store, "m-1", "ass"); err == nil {
		t.Error("expected an error for an unsupported format")
	}
}
