package api

import "github.com/AV-Sohan-Aiyappa/TumourScope/internal/models"

// ErrorResponse is a generic JSON error wrapper.
type ErrorResponse struct {
	Error     string `json:"error"`
	Details   string `json:"details,omitempty"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// ProcessImageResponse is returned by POST /api/process-image.
type ProcessImageResponse struct {
	ProcessedImageURL string `json:"processedImageUrl"`
	Timestamp         int64  `json:"timestamp"`
}

// ProcessedImage is one artifact listing entry.
type ProcessedImage struct {
	URL       string `json:"url"`
	Timestamp int64  `json:"timestamp"`
}

// ProcessedImagesResponse wraps the artifact listing.
type ProcessedImagesResponse struct {
	Images []ProcessedImage `json:"images"`
}

// SaveResultRequest is the machine-to-machine result ingest payload.
// Confidence and Timestamp are pointers so absent fields can be told apart
// from legitimate zero values.
type SaveResultRequest struct {
	UserID     int64    `json:"user_id"`
	Prediction string   `json:"prediction"`
	Confidence *float64 `json:"confidence"`
	Timestamp  *int64   `json:"timestamp"`
	Original   string   `json:"original,omitempty"`
	Binary     string   `json:"binary,omitempty"`
	Contours   string   `json:"contours,omitempty"`
	Overlay    string   `json:"overlay,omitempty"`
	IsNormal   bool     `json:"is_normal"`
}

// SaveResultResponse acknowledges a stored result.
type SaveResultResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	ResultID int64  `json:"result_id"`
}

// ResultsResponse wraps the authenticated user's stored results.
type ResultsResponse struct {
	Results []models.AnalysisResult `json:"results"`
}

// DeleteResultResponse acknowledges a deleted result.
type DeleteResultResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// RegisterRequest creates a new identity.
type RegisterRequest struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	Name           string `json:"name,omitempty"`
	Specialization string `json:"specialization,omitempty"`
	Hospital       string `json:"hospital,omitempty"`
}

// LoginRequest authenticates an existing identity.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse carries a bearer token and the authenticated user.
type AuthResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// UpdateProfileRequest changes the editable profile fields. Fields left
// empty keep their stored values.
type UpdateProfileRequest struct {
	Name           string `json:"name,omitempty"`
	Specialization string `json:"specialization,omitempty"`
	Hospital       string `json:"hospital,omitempty"`
}

// ChangePasswordRequest rotates the account password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangePasswordResponse acknowledges a password change.
type ChangePasswordResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
