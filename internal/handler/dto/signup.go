// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"time"

	"github.com/modelforge/waitlist/internal/model"
)

// SubmitSignupRequest represents the request body for POST /signups.
type SubmitSignupRequest struct {
	Email string `json:"email"`
}

// SubmitSignupResponse is returned for an accepted signup.
type SubmitSignupResponse struct {
	Success bool  `json:"success"`
	Count   int64 `json:"count"`
}

// CountResponse represents GET /count.
type CountResponse struct {
	Count int64 `json:"count"`
}

// SignupEntry is one row of the admin listing.
type SignupEntry struct {
	Email       string    `json:"email"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// SignupListResponse represents GET /signups.
type SignupListResponse struct {
	Count   int64         `json:"count"`
	Entries []SignupEntry `json:"entries"`
}

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ToSignupListResponse converts records to the admin listing, keeping order.
func ToSignupListResponse(count int64, records []model.SignupRecord) SignupListResponse {
	entries := make([]SignupEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, SignupEntry{
			Email:       rec.Email,
			SubmittedAt: rec.SubmittedAt.UTC(),
		})
	}
	return SignupListResponse{Count: count, Entries: entries}
}
