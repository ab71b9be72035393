package entity

import (
	"time"

	"github.com/joseph-ayodele/doccapture/constants"
)

// PendingUpload is a queued, not-yet-uploaded capture. One per LocalID;
// deleted on successful upload.
type PendingUpload struct {
	LocalID    string    `json:"local_id"`
	ImageURI   string    `json:"image_uri"`
	PipelineID string    `json:"pipeline_id"`
	CreatedAt  time.Time `json:"created_at"`
	RetryCount int       `json:"retry_count"`
}

// ScanHistoryItem is one entry in the bounded local scan history. ID is
// the server id and may be empty while the upload is pending.
type ScanHistoryItem struct {
	ID              string                 `json:"id"`
	LocalID         string                 `json:"local_id"`
	Status          constants.UploadStatus `json:"status"`
	ConfidenceScore *float64               `json:"confidence_score"`
	CreatedAt       time.Time              `json:"created_at"`
	Error           string                 `json:"error,omitempty"`
	LocallyModified bool                   `json:"locally_modified,omitempty"`
}

// MergeStats reports a server-history reconciliation: Merged counts
// applied items, Conflicts counts items suppressed by a local
// modification flag.
type MergeStats struct {
	Merged    int `json:"merged"`
	Conflicts int `json:"conflicts"`
}
