package catalog

// Media statuses. QUEUED through the stage names are a single pipeline
// run's append-only progression; DONE, FAILED and CANCELLED are terminal.
const (
	StatusQueued           = "QUEUED"
	StatusExtractingAudio  = "EXTRACTING_AUDIO"
	StatusTranscribing     = "TRANSCRIBING"
	StatusExtractingFrames = "EXTRACTING_FRAMES"
	StatusEmbedding        = "EMBEDDING"
	StatusDetecting        = "DETECTING"
	StatusDetectingFaces   = "DETECTING_FACES"
	StatusDone             = "DONE"
	StatusFailed           = "FAILED"
	StatusCancelled        = "CANCELLED"
)

// InProgressStatuses are the intermediate pipeline stages. Items in one of
// these are owned by a live (or crashed) pipeline run.
var InProgressStatuses = []string{
	StatusExtractingAudio,
	StatusTranscribing,
	StatusExtractingFrames,
	StatusEmbedding,
	StatusDetecting,
	StatusDetectingFaces,
}

// Media types.
const (
	MediaTypePhoto = "photo"
	MediaTypeVideo = "video"
)

// Face assignment provenance.
const (
	SourceLegacy    = "legacy"
	SourceAuto      = "auto"
	SourceManual    = "manual"
	SourceReference = "reference"
)

// Person recognition modes.
const (
	ModeAverage       = "average"
	ModeReferenceOnly = "reference_only"
	ModeWeighted      = "weighted"
)

type Library struct {
	LibraryID   string `json:"library_id"`
	FolderPath  string `json:"folder_path"`
	Name        string `json:"name,omitempty"`
	Recursive   bool   `json:"recursive"`
	CreatedAtMs int64  `json:"created_at_ms"`
}

// Media is the unified record for one discovered file.
type Media struct {
	MediaID              string   `json:"media_id"`
	LibraryID            string   `json:"library_id"`
	Path                 string   `json:"path"`
	Filename             string   `json:"filename"`
	FileExt              string   `json:"file_ext"`
	MediaType            string   `json:"media_type"`
	FileSize             int64    `json:"file_size"`
	MtimeMs              int64    `json:"mtime_ms"`
	Fingerprint          string   `json:"fingerprint"`
	DurationMs           *int64   `json:"duration_ms,omitempty"`
	Width                *int     `json:"width,omitempty"`
	Height               *int     `json:"height,omitempty"`
	FPS                  *float64 `json:"fps,omitempty"`
	VideoCodec           *string  `json:"video_codec,omitempty"`
	VideoBitrate         *int64   `json:"video_bitrate,omitempty"`
	AudioCodec           *string  `json:"audio_codec,omitempty"`
	AudioChannels        *int     `json:"audio_channels,omitempty"`
	AudioSampleRate      *int     `json:"audio_sample_rate,omitempty"`
	ContainerFormat      *string  `json:"container_format,omitempty"`
	Rotation             int      `json:"rotation"`
	CreationTime         *string  `json:"creation_time,omitempty"`
	CameraMake           *string  `json:"camera_make,omitempty"`
	CameraModel          *string  `json:"camera_model,omitempty"`
	GPSLat               *float64 `json:"gps_lat,omitempty"`
	GPSLng               *float64 `json:"gps_lng,omitempty"`
	IsLivePhotoComponent bool     `json:"is_live_photo_component"`
	LivePhotoPairID      *string  `json:"live_photo_pair_id,omitempty"`
	Status               string   `json:"status"`
	Progress             float64  `json:"progress"`
	ErrorCode            *string  `json:"error_code,omitempty"`
	ErrorMessage         *string  `json:"error_message,omitempty"`
	LastCompletedStage   *string  `json:"last_completed_stage,omitempty"`
	IndexedAtMs          *int64   `json:"indexed_at_ms,omitempty"`
	CreatedAtMs          int64    `json:"created_at_ms"`
}

type Frame struct {
	FrameID       string  `json:"frame_id"`
	VideoID       string  `json:"video_id"`
	FrameIndex    int     `json:"frame_index"`
	TimestampMs   int64   `json:"timestamp_ms"`
	ThumbnailPath string  `json:"thumbnail_path"`
	Colors        *string `json:"colors,omitempty"`
}

type Detection struct {
	ID          int64    `json:"id"`
	VideoID     string   `json:"video_id"`
	FrameID     string   `json:"frame_id,omitempty"`
	TimestampMs int64    `json:"timestamp_ms"`
	Label       string   `json:"label"`
	Confidence  float64  `json:"confidence"`
	BboxX       *float64 `json:"bbox_x,omitempty"`
	BboxY       *float64 `json:"bbox_y,omitempty"`
	BboxW       *float64 `json:"bbox_w,omitempty"`
	BboxH       *float64 `json:"bbox_h,omitempty"`
}

type TranscriptSegment struct {
	ID         int64    `json:"id"`
	VideoID    string   `json:"video_id"`
	StartMs    int64    `json:"start_ms"`
	EndMs      int64    `json:"end_ms"`
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence,omitempty"`
}

type Face struct {
	FaceID               string   `json:"face_id"`
	VideoID              string   `json:"video_id"`
	FrameID              string   `json:"frame_id,omitempty"`
	TimestampMs          int64    `json:"timestamp_ms"`
	BboxX                float64  `json:"bbox_x"`
	BboxY                float64  `json:"bbox_y"`
	BboxW                float64  `json:"bbox_w"`
	BboxH                float64  `json:"bbox_h"`
	Confidence           float64  `json:"confidence"`
	Embedding            []byte   `json:"-"`
	CropPath             *string  `json:"crop_path,omitempty"`
	Age                  *int     `json:"age,omitempty"`
	Gender               *string  `json:"gender,omitempty"`
	PersonID             *string  `json:"person_id,omitempty"`
	ClusterID            *string  `json:"cluster_id,omitempty"`
	AssignmentSource     *string  `json:"assignment_source,omitempty"`
	AssignmentConfidence *float64 `json:"assignment_confidence,omitempty"`
	AssignedAtMs         *int64   `json:"assigned_at_ms,omitempty"`
	CreatedAtMs          int64    `json:"created_at_ms"`
}

type Person struct {
	PersonID        string  `json:"person_id"`
	Name            string  `json:"name"`
	ThumbnailFaceID *string `json:"thumbnail_face_id,omitempty"`
	FaceCount       int     `json:"face_count"`
	RecognitionMode string  `json:"recognition_mode"`
	CreatedAtMs     int64   `json:"created_at_ms"`
	UpdatedAtMs     int64   `json:"updated_at_ms"`
}

type FaceReference struct {
	FaceID      string  `json:"face_id"`
	PersonID    string  `json:"person_id"`
	Weight      float64 `json:"weight"`
	CreatedAtMs int64   `json:"created_at_ms"`
}

type FaceNegative struct {
	FaceID      string `json:"face_id"`
	PersonID    string `json:"person_id"`
	CreatedAtMs int64  `json:"created_at_ms"`
}

// PairThreshold is a learned minimum similarity between two frequently
// confused persons. The pair is stored in sorted order.
type PairThreshold struct {
	PersonAID       string  `json:"person_a_id"`
	PersonBID       string  `json:"person_b_id"`
	Threshold       float64 `json:"threshold"`
	CorrectionCount int     `json:"correction_count"`
	CreatedAtMs     int64   `json:"created_at_ms"`
	UpdatedAtMs     int64   `json:"updated_at_ms"`
}

type Job struct {
	JobID        string  `json:"job_id"`
	VideoID      string  `json:"video_id"`
	Status       string  `json:"status"`
	CurrentStage *string `json:"current_stage,omitempty"`
	Progress     float64 `json:"progress"`
	Message      *string `json:"message,omitempty"`
	ErrorCode    *string `json:"error_code,omitempty"`
	ErrorMessage *string `json:"error_message,omitempty"`
	CreatedAtMs  int64   `json:"created_at_ms"`
	UpdatedAtMs  int64   `json:"updated_at_ms"`
}
