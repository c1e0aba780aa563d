package ws

// Event types carried in the "type" field of every frame.
const (
	TypeScanProgress          = "scan_progress"
	TypeScanComplete          = "scan_complete"
	TypeJobProgress           = "job_progress"
	TypeJobComplete           = "job_complete"
	TypeJobFailed             = "job_failed"
	TypeModelDownloadProgress = "model_download_progress"
	TypeModelDownloadComplete = "model_download_complete"
	TypeModelDownloadError    = "model_download_error"
	TypePing                  = "ping"
	TypePong                  = "pong"
	TypeHeartbeat             = "heartbeat"
	TypeAuthSuccess           = "auth_success"
)

type ScanProgress struct {
	Type      string `json:"type"`
	LibraryID string `json:"library_id"`
	Scanned   int    `json:"files_scanned"`
	Total     int    `json:"files_total"`
}

func NewScanProgress(libraryID string, scanned, total int) ScanProgress {
	return ScanProgress{Type: TypeScanProgress, LibraryID: libraryID, Scanned: scanned, Total: total}
}

type ScanComplete struct {
	Type      string `json:"type"`
	LibraryID string `json:"library_id"`
	Found     int    `json:"files_found"`
	New       int    `json:"files_new"`
	Changed   int    `json:"files_changed"`
	Deleted   int    `json:"files_deleted"`
}

func NewScanComplete(libraryID string, found, added, changed, deleted int) ScanComplete {
	return ScanComplete{
		Type:      TypeScanComplete,
		LibraryID: libraryID,
		Found:     found,
		New:       added,
		Changed:   changed,
		Deleted:   deleted,
	}
}

type JobProgress struct {
	Type     string  `json:"type"`
	JobID    string  `json:"job_id"`
	VideoID  string  `json:"video_id"`
	Stage    string  `json:"stage,omitempty"`
	Progress float64 `json:"progress"`
	Message  string  `json:"message,omitempty"`
}

func NewJobProgress(jobID, videoID, stage string, progress float64, message string) JobProgress {
	return JobProgress{
		Type:     TypeJobProgress,
		JobID:    jobID,
		VideoID:  videoID,
		Stage:    stage,
		Progress: progress,
		Message:  message,
	}
}

type JobComplete struct {
	Type    string `json:"type"`
	JobID   string `json:"job_id"`
	VideoID string `json:"video_id"`
	Status  string `json:"status"`
}

func NewJobComplete(jobID, videoID, status string) JobComplete {
	return JobComplete{Type: TypeJobComplete, JobID: jobID, VideoID: videoID, Status: status}
}

type JobFailed struct {
	Type         string `json:"type"`
	JobID        string `json:"job_id"`
	VideoID      string `json:"video_id"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

func NewJobFailed(jobID, videoID, errorCode, errorMessage string) JobFailed {
	return JobFailed{
		Type:         TypeJobFailed,
		JobID:        jobID,
		VideoID:      videoID,
		ErrorCode:    errorCode,
		ErrorMessage: errorMessage,
	}
}

type ModelDownload struct {
	Type    string  `json:"type"`
	Model   string  `json:"model"`
	Percent float64 `json:"percent,omitempty"`
	Error   string  `json:"error,omitempty"`
}

func NewModelDownloadProgress(model string, percent float64) ModelDownload {
	return ModelDownload{Type: TypeModelDownloadProgress, Model: model, Percent: percent}
}

func NewModelDownloadComplete(model string) ModelDownload {
	return ModelDownload{Type: TypeModelDownloadComplete, Model: model, Percent: 100}
}

func NewModelDownloadError(model, message string) ModelDownload {
	return ModelDownload{Type: TypeModelDownloadError, Model: model, Error: message}
}

type control struct {
	Type string `json:"type"`
}
