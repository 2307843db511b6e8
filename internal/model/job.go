package model

import (
	"encoding/json"
	"time"
)

// JobStatus is the persisted lifecycle state of a background job. The exact
// strings are part of the API contract; clients match on them.
type JobStatus string

const (
	JobStatusQueued   JobStatus = "QUEUED"
	JobStatusRunning  JobStatus = "RUNNING"
	JobStatusDone     JobStatus = "DONE"
	JobStatusError    JobStatus = "ERROR"
	JobStatusCanceled JobStatus = "CANCELED"
)

// Terminal reports whether no further transition may change the status.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusDone, JobStatusError, JobStatusCanceled:
		return true
	}
	return false
}

// Job kinds as exposed through the API.
const (
	JobTypeVideoInfo         = "video-info"
	JobTypeShotDetection     = "shotboundary-detection"
	JobTypeScreenshot        = "screenshot-generation"
	JobTypeScreenshots       = "screenshots-generation"
	JobTypeExportScreenshots = "export-screenshots"
	JobTypeExportProject     = "export-project"
	JobTypeImportProject     = "import-project"
)

// Job represents one tracked unit of asynchronous work. WorkerHandle is the
// opaque dispatch reference; it is set once at dispatch and never cleared.
type Job struct {
	ID           int64     `json:"id"`
	AccountID    int64     `json:"-"`
	ProjectID    string    `json:"project_id"`
	Type         string    `json:"type"`
	Status       JobStatus `json:"status"`
	WorkerHandle string    `json:"-"`
	CreatedAt    time.Time `json:"creation"`
}

// Result is the single output payload recorded when a job reaches DONE.
type Result struct {
	ID      int64           `json:"id"`
	JobID   int64           `json:"job_id"`
	Payload json.RawMessage `json:"data"`
}

// VideoInfoResult is the payload of a completed video-info job.
type VideoInfoResult struct {
	FPS float64 `json:"fps"`
}

// Screenshot locates one extracted frame and its thumbnail. Paths are
// deterministic: a zero-padded 8-digit frame number under the project's
// screenshot directory, with a distinct "_mini" thumbnail.
type Screenshot struct {
	Frame     int    `json:"frame"`
	Thumbnail string `json:"thumbnail"`
	Image     string `json:"image"`
}

// ImportResult identifies the project reconstructed from an archive.
type ImportResult struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
