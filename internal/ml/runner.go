package ml

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const defaultRunnerURL = "http://localhost:8971"

// Runner is the HTTP client for the local model-runner process, which
// hosts the embedding, detection, face and transcription models behind
// a small JSON API.
type Runner struct {
	baseURL string
	client  *http.Client
}

func NewRunner(baseURL string, timeout time.Duration) *Runner {
	if baseURL == "" {
		baseURL = defaultRunnerURL
	}
	return &Runner{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Healthy reports whether the runner responds on its health endpoint.
func (r *Runner) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

type embedImageRequest struct {
	Image string `json:"image"` // base64 encoded JPEG
}

type embedTextRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (r *Runner) EmbedImage(ctx context.Context, imageData []byte) ([]float32, error) {
	var resp embedResponse
	req := embedImageRequest{Image: base64.StdEncoding.EncodeToString(imageData)}
	if err := r.post(ctx, "/embed/image", req, &resp); err != nil {
		return nil, err
	}
	return resp.Embedding, nil
}

func (r *Runner) EmbedText(ctx context.Context, text string) ([]float32, error) {
	var resp embedResponse
	if err := r.post(ctx, "/embed/text", embedTextRequest{Text: text}, &resp); err != nil {
		return nil, err
	}
	return resp.Embedding, nil
}

type detectResponse struct {
	Detections []Detection `json:"detections"`
}

func (r *Runner) DetectObjects(ctx context.Context, imageData []byte) ([]Detection, error) {
	var resp detectResponse
	req := embedImageRequest{Image: base64.StdEncoding.EncodeToString(imageData)}
	if err := r.post(ctx, "/detect", req, &resp); err != nil {
		return nil, err
	}
	return resp.Detections, nil
}

type facesResponse struct {
	Faces []FaceDetection `json:"faces"`
}

func (r *Runner) DetectFaces(ctx context.Context, imageData []byte) ([]FaceDetection, error) {
	var resp facesResponse
	req := embedImageRequest{Image: base64.StdEncoding.EncodeToString(imageData)}
	if err := r.post(ctx, "/faces", req, &resp); err != nil {
		return nil, err
	}
	return resp.Faces, nil
}

type transcribeRequest struct {
	Audio    string `json:"audio"` // base64 encoded WAV
	OffsetMs int64  `json:"offset_ms"`
}

type transcribeResponse struct {
	Chunks []TranscriptChunk `json:"chunks"`
}

func (r *Runner) Transcribe(ctx context.Context, audioPath string, offsetMs int64) ([]TranscriptChunk, error) {
	data, err := os.ReadFile(audioPath)
	if err != nil {
		return nil, fmt.Errorf("reading audio file: %w", err)
	}
	var resp transcribeResponse
	req := transcribeRequest{
		Audio:    base64.StdEncoding.EncodeToString(data),
		OffsetMs: offsetMs,
	}
	if err := r.post(ctx, "/transcribe", req, &resp); err != nil {
		return nil, err
	}
	return resp.Chunks, nil
}

func (r *Runner) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding runner request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating runner request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling model runner %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("model runner %s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding runner response: %w", err)
	}
	return nil
}
