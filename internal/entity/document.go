package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/doccapture/internal/quality"
)

// Dimensions are the pixel dimensions of a captured or prepared image.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ScannedDocument represents one physical capture. Created exactly once
// per shot and immutable thereafter, except ProcessedURI which is set
// after image preparation runs.
type ScannedDocument struct {
	LocalID      string              `json:"local_id"`
	OriginalURI  string              `json:"original_uri"`
	ProcessedURI string              `json:"processed_uri,omitempty"`
	Edges        *quality.EdgePoints `json:"edges,omitempty"`
	Quality      quality.Metrics     `json:"quality"`
	Dimensions   Dimensions          `json:"dimensions"`
	CapturedAt   time.Time           `json:"captured_at"`
	PageNumber   int                 `json:"page_number"`
}

// NewScannedDocument allocates a document with a fresh client-side id.
func NewScannedDocument(originalURI string, q quality.Metrics, dims Dimensions, page int) *ScannedDocument {
	return &ScannedDocument{
		LocalID:     uuid.New().String(),
		OriginalURI: originalURI,
		Quality:     q,
		Dimensions:  dims,
		CapturedAt:  time.Now().UTC(),
		PageNumber:  page,
	}
}
