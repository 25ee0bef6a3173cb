package models

import "time"

// Report is a persisted analysis row. UserID is nullable: anonymous
// analyses are never persisted, but the column mirrors the schema.
type Report struct {
	ID              string
	UserID          *string
	FileName        string
	FilePath        string
	FakeScore       float64
	ConfidenceScore *float64
	IsDeepfake      bool
	ModelType       string
	DetectionResult []byte // normalized result, stored as JSON
	HeatmapPath     *string
	HeatmapURL      *string
	UploadedAt      time.Time
}
