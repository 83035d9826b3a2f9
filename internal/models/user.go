package models

import "time"

// User is a provisioned identity that owns analysis results.
type User struct {
	ID             int64     `json:"id"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	Name           string    `json:"name,omitempty"`
	Specialization string    `json:"specialization,omitempty"`
	Hospital       string    `json:"hospital,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
