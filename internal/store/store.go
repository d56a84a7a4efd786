// Package store defines the Signup Store contract shared by every backend.
//
// A Store exclusively owns the signup records and the running counter. All
// mutation goes through TryAddSignup, which performs the dedupe-and-increment
// step as a single serialized operation.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/modelforge/waitlist/internal/model"
)

// Store errors.
var (
	// ErrDuplicateSignup is returned when the email is already on file.
	// The accompanying AddResult carries the unchanged count.
	ErrDuplicateSignup = errors.New("email already registered")

	// ErrStorageUnavailable wraps any persistence failure. Callers must not
	// assume the write happened.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Backend names accepted by STORE_BACKEND.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// AddResult is the outcome of TryAddSignup.
type AddResult struct {
	Accepted bool
	Count    int64
}

// Store is the durable, race-safe record of signups and the counter.
type Store interface {
	// TryAddSignup appends email and increments the count by one, atomically.
	// A duplicate returns Accepted=false, the current count and ErrDuplicateSignup.
	TryAddSignup(ctx context.Context, email string) (AddResult, error)

	// GetCount returns the current count, initializing to the seed if needed.
	GetCount(ctx context.Context) (int64, error)

	// ListSignups returns all records, most recent first.
	ListSignups(ctx context.Context) ([]model.SignupRecord, error)

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// NewRecord builds a SignupRecord stamped at acceptance time.
func NewRecord(email string, now time.Time) model.SignupRecord {
	now = now.UTC()
	return model.SignupRecord{
		ID:          ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		Email:       email,
		SubmittedAt: now,
	}
}
