// Package pipeline advances media items through the staged indexing
// state machine: frame extraction, embedding, object detection, face
// detection, and the enhanced audio stages for deep-preset videos. It
// also owns the scheduler that admits queued items.
package pipeline

import "github.com/gazehq/gaze-engine/internal/catalog"

// Indexing presets.
const (
	PresetQuick = "quick"
	PresetDeep  = "deep"
)

// Stages returns the ordered primary stage list for a media item. The
// face stage only runs when face recognition is enabled.
func Stages(mediaType, preset string, faceRecognition bool) []string {
	stages := []string{catalog.StatusExtractingFrames, catalog.StatusEmbedding}
	if preset == PresetDeep {
		stages = append(stages, catalog.StatusDetecting)
		if faceRecognition {
			stages = append(stages, catalog.StatusDetectingFaces)
		}
	}
	return stages
}

// EnhancedStages returns the post-DONE audio stages, or nil when the
// item does not get them. Only deep-preset videos are transcribed.
func EnhancedStages(mediaType, preset string) []string {
	if mediaType != catalog.MediaTypeVideo || preset != PresetDeep {
		return nil
	}
	return []string{catalog.StatusExtractingAudio, catalog.StatusTranscribing}
}

// stageIndex returns the position of stage in stages, or -1.
func stageIndex(stages []string, stage string) int {
	for i, s := range stages {
		if s == stage {
			return i
		}
	}
	return -1
}
