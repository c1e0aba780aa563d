// Package ml abstracts the model backends the pipeline calls into:
// embeddings, object detection, face detection and transcription. The
// default backend is a local model-runner process; remote backends can
// substitute for transcription and labeling when offline mode is off.
package ml

import "context"

// Box is a bounding box in pixel coordinates.
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Detection is one detected object in a frame.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        *Box    `json:"box,omitempty"`
}

// FaceDetection is one detected face with its recognition embedding.
type FaceDetection struct {
	Box        Box       `json:"box"`
	Confidence float64   `json:"confidence"`
	Embedding  []float32 `json:"embedding"`
	Age        *int      `json:"age,omitempty"`
	Gender     *string   `json:"gender,omitempty"`
}

// TranscriptChunk is one transcribed span of speech.
type TranscriptChunk struct {
	StartMs    int64    `json:"start_ms"`
	EndMs      int64    `json:"end_ms"`
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Embedder produces CLIP-style vectors for images and text in the same
// space.
type Embedder interface {
	EmbedImage(ctx context.Context, imageData []byte) ([]float32, error)
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Detector finds objects in a frame.
type Detector interface {
	DetectObjects(ctx context.Context, imageData []byte) ([]Detection, error)
}

// FaceDetector finds faces and their embeddings in a frame.
type FaceDetector interface {
	DetectFaces(ctx context.Context, imageData []byte) ([]FaceDetection, error)
}

// Transcriber converts an audio file to timed text. offsetMs shifts the
// returned timestamps so chunked audio lands on the item's timeline.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string, offsetMs int64) ([]TranscriptChunk, error)
}
