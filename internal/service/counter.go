// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mcnijman/go-emailaddress"

	"github.com/modelforge/waitlist/internal/metrics"
	"github.com/modelforge/waitlist/internal/model"
	"github.com/modelforge/waitlist/internal/store"
)

// Service errors.
var (
	ErrInvalidEmail       = errors.New("invalid email")
	ErrDuplicateSignup    = errors.New("already registered")
	ErrServiceUnavailable = errors.New("service unavailable")
)

// maxEmailLength is the RFC 5321 path limit.
const maxEmailLength = 254

// Notifier receives the new count after each accepted signup.
// Notify must not block.
type Notifier interface {
	Notify(count int64)
}

// SubmitResult is the outcome of an accepted submission.
type SubmitResult struct {
	Count int64
}

// SignupList is the administrative view of the waitlist.
type SignupList struct {
	Count   int64
	Entries []model.SignupRecord
}

// CounterService handles signup business logic.
type CounterService struct {
	store    store.Store
	notifier Notifier
	logger   *slog.Logger
	metrics  metrics.Recorder
	now      func() time.Time
}

// NewCounterService creates a new CounterService.
func NewCounterService(st store.Store, notifier Notifier, logger *slog.Logger, recorder metrics.Recorder) *CounterService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &CounterService{
		store:    st,
		notifier: notifier,
		logger:   logger.With("component", "service.counter"),
		metrics:  recorder,
		now:      time.Now,
	}
}

// SubmitEmail records email once and broadcasts the new count.
// A duplicate returns the unchanged count with ErrDuplicateSignup.
func (s *CounterService) SubmitEmail(ctx context.Context, email string) (SubmitResult, error) {
	start := s.now()
	defer func() {
		s.metrics.ObserveSignupDuration(time.Since(start))
	}()

	if err := ValidateEmail(email); err != nil {
		s.metrics.IncSignup(metrics.OutcomeInvalid)
		return SubmitResult{}, err
	}

	res, err := s.store.TryAddSignup(ctx, email)
	switch {
	case errors.Is(err, store.ErrDuplicateSignup):
		s.metrics.IncSignup(metrics.OutcomeDuplicate)
		s.logger.Debug("duplicate signup", "email", model.MaskEmail(email), "count", res.Count)
		return SubmitResult{Count: res.Count}, ErrDuplicateSignup
	case err != nil:
		s.metrics.IncSignup(metrics.OutcomeUnavailable)
		s.logger.Error("signup store failed",
			"email", model.MaskEmail(email),
			"error", err,
		)
		return SubmitResult{}, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	case !res.Accepted:
		// A backend must report duplicates through the sentinel.
		s.metrics.IncSignup(metrics.OutcomeDuplicate)
		return SubmitResult{Count: res.Count}, ErrDuplicateSignup
	}

	s.metrics.IncSignup(metrics.OutcomeAccepted)
	s.logger.Info("signup accepted", "email", model.MaskEmail(email), "count", res.Count)

	if s.notifier != nil {
		s.notifier.Notify(res.Count)
	}

	return SubmitResult{Count: res.Count}, nil
}

// GetCurrentCount returns the authoritative count.
func (s *CounterService) GetCurrentCount(ctx context.Context) (int64, error) {
	count, err := s.store.GetCount(ctx)
	if err != nil {
		s.logger.Error("count lookup failed", "error", err)
		return 0, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	return count, nil
}

// ListSignups returns the count and every signup, most recent first.
func (s *CounterService) ListSignups(ctx context.Context) (SignupList, error) {
	count, err := s.GetCurrentCount(ctx)
	if err != nil {
		return SignupList{}, err
	}

	entries, err := s.store.ListSignups(ctx)
	if err != nil {
		s.logger.Error("signup listing failed", "error", err)
		return SignupList{}, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	return SignupList{Count: count, Entries: entries}, nil
}

// ValidateEmail checks the shape of an address without normalizing it:
// surrounding whitespace, a missing @ or a dotless domain all fail.
func ValidateEmail(email string) error {
	if email == "" || len(email) > maxEmailLength {
		return ErrInvalidEmail
	}
	if strings.TrimSpace(email) != email {
		return ErrInvalidEmail
	}

	at := strings.LastIndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return ErrInvalidEmail
	}
	domain := email[at+1:]
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return ErrInvalidEmail
	}

	if _, err := emailaddress.Parse(email); err != nil {
		return ErrInvalidEmail
	}
	return nil
}
