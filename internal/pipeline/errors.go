package pipeline

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/gazehq/gaze-engine/internal/catalog"
)

// Error codes shared by media rows, job rows and emitted events.
const (
	ErrCodeFileNotFound  = "FILE_NOT_FOUND"
	ErrCodeFFmpeg        = "FFMPEG_ERROR"
	ErrCodeTranscription = "TRANSCRIPTION_ERROR"
	ErrCodeEmbedding     = "EMBEDDING_ERROR"
	ErrCodeDetection     = "DETECTION_ERROR"
	ErrCodeFaceDetection = "FACE_DETECTION_ERROR"
	ErrCodeCancelled     = "CANCELLED"
	ErrCodeUnknown       = "UNKNOWN_ERROR"
)

// classifyError maps a stage failure to the closed error-code set. The
// mapping is stage-aware; a missing source file wins over the stage
// default.
func classifyError(stage string, err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, fs.ErrNotExist) {
		return ErrCodeFileNotFound
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "no such file") {
		return ErrCodeFileNotFound
	}
	if strings.Contains(msg, "ffmpeg") || strings.Contains(msg, "ffprobe") {
		return ErrCodeFFmpeg
	}

	switch stage {
	case catalog.StatusExtractingAudio, catalog.StatusExtractingFrames:
		return ErrCodeFFmpeg
	case catalog.StatusTranscribing:
		return ErrCodeTranscription
	case catalog.StatusEmbedding:
		return ErrCodeEmbedding
	case catalog.StatusDetecting:
		return ErrCodeDetection
	case catalog.StatusDetectingFaces:
		return ErrCodeFaceDetection
	}
	return ErrCodeUnknown
}
