package models

import "time"

// AnalysisResult is one completed analysis persisted for a user.
// The four image payloads are opaque base64-encoded blobs produced by the
// analysis subprocess; any of them may be empty.
type AnalysisResult struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Prediction string    `json:"prediction"`
	Confidence float64   `json:"confidence"`
	Timestamp  int64     `json:"timestamp"`
	Original   string    `json:"original,omitempty"`
	Binary     string    `json:"binary,omitempty"`
	Contours   string    `json:"contours,omitempty"`
	Overlay    string    `json:"overlay,omitempty"`
	IsNormal   bool      `json:"is_normal"`
	CreatedAt  time.Time `json:"created_at"`
}
