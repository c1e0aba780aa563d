package ml

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const transcriptionModel = openai.AudioModelWhisper1

// OpenAITranscriber transcribes audio through the OpenAI API. It is
// only used when offline mode is off and a key is configured.
type OpenAITranscriber struct {
	client *openai.Client
}

func NewOpenAITranscriber(apiKey string) *OpenAITranscriber {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAITranscriber{client: &client}
}

func (t *OpenAITranscriber) Transcribe(ctx context.Context, audioPath string, offsetMs int64) ([]TranscriptChunk, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("opening audio file: %w", err)
	}
	defer f.Close()

	resp, err := t.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		Model:                  transcriptionModel,
		File:                   f,
		ResponseFormat:         openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []string{"segment"},
	})
	if err != nil {
		return nil, fmt.Errorf("openai transcription: %w", err)
	}

	// The typed response carries the plain text; segment timing comes
	// back in the raw JSON when verbose_json is requested.
	var verbose struct {
		Segments []struct {
			Start float64 `json:"start"`
			End   float64 `json:"end"`
			Text  string  `json:"text"`
		} `json:"segments"`
	}
	if err := json.Unmarshal([]byte(resp.RawJSON()), &verbose); err != nil || len(verbose.Segments) == 0 {
		// Fall back to one chunk spanning the whole file.
		if resp.Text == "" {
			return nil, nil
		}
		return []TranscriptChunk{{StartMs: offsetMs, EndMs: offsetMs, Text: resp.Text}}, nil
	}

	chunks := make([]TranscriptChunk, 0, len(verbose.Segments))
	for _, seg := range verbose.Segments {
		if seg.Text == "" {
			continue
		}
		chunks = append(chunks, TranscriptChunk{
			StartMs: offsetMs + int64(seg.Start*1000),
			EndMs:   offsetMs + int64(seg.End*1000),
			Text:    seg.Text,
		})
	}
	return chunks, nil
}
