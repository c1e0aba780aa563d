// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Fingerprint constants
const (
	// FingerprintChunkSize is the number of bytes hashed from each end of a file
	FingerprintChunkSize = 64 * 1024

	// FingerprintLength is the number of hex characters kept from the hash
	FingerprintLength = 16
)

// Scanner constants
const (
	// LivePhotoMaxDurationMs is the longest a .mov sibling may be to count
	// as the motion half of a live photo
	LivePhotoMaxDurationMs = 5000

	// ScanProgressInterval is how many files are processed between
	// scan_progress events
	ScanProgressInterval = 10
)

// Pipeline constants
const (
	// DetectionMinConfidence is the floor for keeping object detections
	DetectionMinConfidence = 0.25

	// FaceDetThreshold is the face detector confidence threshold
	FaceDetThreshold = 0.5

	// FaceMinSidePx is the minimum face side in pixels worth keeping
	FaceMinSidePx = 40

	// EmbeddingDim is the dimensionality of visual and face embeddings
	EmbeddingDim = 512

	// TranscriptionMinChunkSeconds is the shortest audio chunk worth
	// sending to the transcriber
	TranscriptionMinChunkSeconds = 0.5

	// BusyRetryAttempts bounds the database-busy retry loop
	BusyRetryAttempts = 5

	// BusyRetryBaseDelayMs is multiplied by (attempt+1) for additive backoff
	BusyRetryBaseDelayMs = 100
)

// Face recognition constants
const (
	// RecognitionBaseThreshold is the minimum similarity for auto-assignment
	// when no pair-specific threshold applies
	RecognitionBaseThreshold = 0.65

	// PairThresholdInit is the starting threshold for a newly confused pair
	PairThresholdInit = 0.70

	// PairThresholdStep is added per correction
	PairThresholdStep = 0.02

	// PairThresholdCap is the upper bound for learned pair thresholds
	PairThresholdCap = 0.85

	// WeightReference, WeightManual, WeightAuto weigh face embeddings into
	// the per-person centroid by assignment provenance
	WeightReference = 3.0
	WeightManual    = 2.0
	WeightAuto      = 1.0

	// ReviewConfidenceCutoff is the default ceiling for the review queue
	ReviewConfidenceCutoff = 0.75

	// SuggestionThreshold gates the unassigned-face suggestions produced
	// after a reassignment
	SuggestionThreshold = 0.65
)

// Search constants
const (
	// VisualSimilarityThreshold is the floor for free-text CLIP hits
	VisualSimilarityThreshold = 0.18

	// ObjectQuerySimilarityThreshold is the stricter floor for object queries
	ObjectQuerySimilarityThreshold = 0.22

	// ColorBoost is added when a frame's palette contains the query color
	ColorBoost = 0.15

	// ColorPenalty multiplies hits whose palette misses the query color
	ColorPenalty = 0.7

	// NonDetectionPenalty multiplies CLIP hits lacking a matching detection
	// during an object query
	NonDetectionPenalty = 0.6

	// PersonWindowMs is the bucketing window for person appearances
	PersonWindowMs = 5000

	// LabelFilterWindowMs is the detection lookup window around a result
	LabelFilterWindowMs = 3000

	// ShardTopK caps per-shard nearest-neighbor hits
	ShardTopK = 20

	// DefaultShardCacheSize is the default number of open vector shards
	DefaultShardCacheSize = 8
)

// Thumbnail constants
const (
	// FullThumbMaxDim and FullThumbQuality are the lightbox preset
	FullThumbMaxDim  = 1280
	FullThumbQuality = 85

	// GridThumbMaxDim and GridThumbQuality are the grid preset
	GridThumbMaxDim  = 256
	GridThumbQuality = 50
)

// Scheduler constants
const (
	// SchedulerTickSeconds is the period of the queue-drain timer
	SchedulerTickSeconds = 5

	// SchedulerDrainBatch is the limit passed by self-driving drain calls
	SchedulerDrainBatch = 10
)

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for websocket send channels
	EventChannelBuffer = 100
)
