package ml

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const geminiModel = "gemini-2.5-flash"

// GeminiLabeler detects objects through the Gemini API. Used as a
// remote alternative to the local detector when offline mode is off.
// Gemini returns labels without boxes, so Box is always nil.
type GeminiLabeler struct {
	client *genai.Client
	labels []string
}

func NewGeminiLabeler(ctx context.Context, apiKey string, labels []string) (*GeminiLabeler, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &GeminiLabeler{client: client, labels: labels}, nil
}

func (g *GeminiLabeler) DetectObjects(ctx context.Context, imageData []byte) ([]Detection, error) {
	prompt := "List the objects visible in this image. Respond with a JSON array of " +
		`{"label": string, "confidence": number between 0 and 1}. ` +
		"Only use labels from this set: " + strings.Join(g.labels, ", ")

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: prompt},
				{InlineData: &genai.Blob{Data: imageData, MIMEType: "image/jpeg"}},
			},
		},
	}
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}

	result, err := g.client.Models.GenerateContent(ctx, geminiModel, contents, config)
	if err != nil {
		return nil, fmt.Errorf("gemini API error: %w", err)
	}
	content := result.Text()
	if content == "" {
		return nil, errors.New("no response from gemini")
	}

	var detections []Detection
	if err := json.Unmarshal([]byte(content), &detections); err != nil {
		return nil, fmt.Errorf("parsing gemini response: %w", err)
	}

	// Keep only labels from the requested set, lowercased.
	allowed := make(map[string]struct{}, len(g.labels))
	for _, l := range g.labels {
		allowed[l] = struct{}{}
	}
	out := detections[:0]
	for _, d := range detections {
		d.Label = strings.ToLower(strings.TrimSpace(d.Label))
		if _, ok := allowed[d.Label]; !ok {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}
