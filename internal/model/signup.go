// Package model defines domain entities for the application.
package model

import (
	"errors"
	"fmt"
	"time"
)

// DefaultSeedCount is the baseline count shown before any real signup.
const DefaultSeedCount int64 = 1247

// Snapshot invariant errors.
var (
	ErrCountMismatch  = errors.New("total count does not match seed plus entries")
	ErrDuplicateEmail = errors.New("snapshot contains duplicate email")
)

// SignupRecord is a single accepted waitlist signup.
// Email is the unique key; it is stored exactly as submitted.
type SignupRecord struct {
	ID          string    `json:"id,omitempty"` // ULID (time-sortable)
	Email       string    `json:"email"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// CounterState is the running waitlist total.
type CounterState struct {
	Count       int64     `json:"count"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// NewCounterState returns the state a store starts from.
func NewCounterState(seed int64, now time.Time) CounterState {
	return CounterState{
		Count:       seed,
		LastUpdated: now.UTC(),
	}
}

// Snapshot is the persisted layout shared by all backends.
// Emails are kept in acceptance order (oldest first).
type Snapshot struct {
	Emails     []SignupRecord `json:"emails"`
	TotalCount int64          `json:"totalCount"`
}

// NewSnapshot returns an empty snapshot at the seed count.
func NewSnapshot(seed int64) *Snapshot {
	return &Snapshot{
		Emails:     []SignupRecord{},
		TotalCount: seed,
	}
}

// Verify checks the standing invariants of the snapshot:
// totalCount == seed + len(emails), and no email appears twice.
func (s *Snapshot) Verify(seed int64) error {
	if want := seed + int64(len(s.Emails)); s.TotalCount != want {
		return fmt.Errorf("%w: got %d, want %d", ErrCountMismatch, s.TotalCount, want)
	}

	seen := make(map[string]struct{}, len(s.Emails))
	for _, entry := range s.Emails {
		if _, ok := seen[entry.Email]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateEmail, MaskEmail(entry.Email))
		}
		seen[entry.Email] = struct{}{}
	}

	return nil
}

// NewestFirst returns the entries ordered most recent first.
func (s *Snapshot) NewestFirst() []SignupRecord {
	out := make([]SignupRecord, len(s.Emails))
	for i, entry := range s.Emails {
		out[len(s.Emails)-1-i] = entry
	}
	return out
}

// MaskEmail hides most of the local part so addresses can be logged.
// "alice@example.com" becomes "a***@example.com".
func MaskEmail(email string) string {
	at := -1
	for i := len(email) - 1; i >= 0; i-- {
		if email[i] == '@' {
			at = i
			break
		}
	}
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}
