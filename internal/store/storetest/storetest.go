// Package storetest provides a conformance suite run against every Store backend.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/modelforge/waitlist/internal/store"
)

// Factory returns a fresh, empty store seeded with seed.
type Factory func(t *testing.T, seed int64) store.Store

// Run executes the conformance suite.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("GetCountInitializesToSeed", func(t *testing.T) {
		s := newStore(t, 1247)
		count, err := s.GetCount(context.Background())
		if err != nil {
			t.Fatalf("GetCount failed: %v", err)
		}
		if count != 1247 {
			t.Errorf("expected seed count 1247, got %d", count)
		}
	})

	t.Run("AddThenDuplicate", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t, 1247)

		res, err := s.TryAddSignup(ctx, "a@x.com")
		if err != nil {
			t.Fatalf("first add failed: %v", err)
		}
		if !res.Accepted || res.Count != 1248 {
			t.Fatalf("expected accepted count 1248, got %+v", res)
		}

		res, err = s.TryAddSignup(ctx, "a@x.com")
		if !errors.Is(err, store.ErrDuplicateSignup) {
			t.Fatalf("expected ErrDuplicateSignup, got %v", err)
		}
		if res.Accepted {
			t.Error("duplicate must not be accepted")
		}
		if res.Count != 1248 {
			t.Errorf("duplicate must report unchanged count 1248, got %d", res.Count)
		}

		res, err = s.TryAddSignup(ctx, "b@x.com")
		if err != nil {
			t.Fatalf("second add failed: %v", err)
		}
		if res.Count != 1249 {
			t.Errorf("expected count 1249, got %d", res.Count)
		}

		count, err := s.GetCount(ctx)
		if err != nil {
			t.Fatalf("GetCount failed: %v", err)
		}
		if count != 1249 {
			t.Errorf("expected count 1249, got %d", count)
		}
	})

	t.Run("CaseIsNotNormalized", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t, 0)

		if _, err := s.TryAddSignup(ctx, "Case@x.com"); err != nil {
			t.Fatalf("add failed: %v", err)
		}
		res, err := s.TryAddSignup(ctx, "case@x.com")
		if err != nil {
			t.Fatalf("differently cased address should be accepted, got %v", err)
		}
		if res.Count != 2 {
			t.Errorf("expected count 2, got %d", res.Count)
		}
	})

	t.Run("ListSignupsNewestFirst", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t, 10)

		for _, email := range []string{"one@x.com", "two@x.com", "three@x.com"} {
			if _, err := s.TryAddSignup(ctx, email); err != nil {
				t.Fatalf("add %s failed: %v", email, err)
			}
		}

		entries, err := s.ListSignups(ctx)
		if err != nil {
			t.Fatalf("ListSignups failed: %v", err)
		}
		if len(entries) != 3 {
			t.Fatalf("expected 3 entries, got %d", len(entries))
		}
		if entries[0].Email != "three@x.com" || entries[2].Email != "one@x.com" {
			t.Errorf("expected newest first, got %s..%s", entries[0].Email, entries[2].Email)
		}
		for _, entry := range entries {
			if entry.SubmittedAt.IsZero() {
				t.Errorf("entry %s has zero SubmittedAt", entry.Email)
			}
		}
	})

	t.Run("ConcurrentDistinctEmails", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t, 1247)
		const n = 40

		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if _, err := s.TryAddSignup(ctx, fmt.Sprintf("user%d@x.com", i)); err != nil {
					errs <- err
				}
			}(i)
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			t.Errorf("concurrent add failed: %v", err)
		}

		count, err := s.GetCount(ctx)
		if err != nil {
			t.Fatalf("GetCount failed: %v", err)
		}
		if count != 1247+n {
			t.Errorf("expected count %d, got %d", 1247+n, count)
		}
	})

	t.Run("ConcurrentSameEmailCountedOnce", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t, 1247)
		const n = 20

		var wg sync.WaitGroup
		var mu sync.Mutex
		accepted := 0
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := s.TryAddSignup(ctx, "race@x.com")
				if err != nil && !errors.Is(err, store.ErrDuplicateSignup) {
					t.Errorf("unexpected error: %v", err)
					return
				}
				if res.Accepted {
					mu.Lock()
					accepted++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		if accepted != 1 {
			t.Errorf("expected exactly one acceptance, got %d", accepted)
		}

		count, err := s.GetCount(ctx)
		if err != nil {
			t.Fatalf("GetCount failed: %v", err)
		}
		if count != 1248 {
			t.Errorf("expected count 1248, got %d", count)
		}
	})
}
