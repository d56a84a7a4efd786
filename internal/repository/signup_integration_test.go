//go:build integration

package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/modelforge/waitlist/internal/store"
	"github.com/modelforge/waitlist/internal/store/storetest"
	"github.com/modelforge/waitlist/internal/testutil"
)

// ============================================================================
// Signup Repository Integration Tests
// ============================================================================

func TestIntegrationSignupRepository_Conformance(t *testing.T) {
	ctx, pool, dbURL := newSignupTestEnv(t)

	storetest.Run(t, func(t *testing.T, seed int64) store.Store {
		if err := testutil.ResetSignupsSchema(ctx, pool); err != nil {
			t.Fatalf("reset schema: %v", err)
		}
		repo, err := New(ctx, dbURL, seed)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		t.Cleanup(func() { _ = repo.Close() })
		return repo
	})
}

func TestIntegrationSignupRepository_CounterStateTracksLastUpdate(t *testing.T) {
	ctx, pool, dbURL := newSignupTestEnv(t)
	if err := testutil.ResetSignupsSchema(ctx, pool); err != nil {
		t.Fatalf("reset schema: %v", err)
	}

	repo, err := New(ctx, dbURL, 1247)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer repo.Close()

	before, err := repo.GetCounterState(ctx)
	if err != nil {
		t.Fatalf("GetCounterState failed: %v", err)
	}

	if _, err := repo.TryAddSignup(ctx, testutil.UniqueEmail("state")); err != nil {
		t.Fatalf("TryAddSignup failed: %v", err)
	}

	after, err := repo.GetCounterState(ctx)
	if err != nil {
		t.Fatalf("GetCounterState failed: %v", err)
	}
	if after.Count != before.Count+1 {
		t.Errorf("expected count %d, got %d", before.Count+1, after.Count)
	}
	if after.LastUpdated.Before(before.LastUpdated) {
		t.Error("lastUpdated must not move backwards")
	}
}

func TestIntegrationSignupRepository_CounterRecreatedLazily(t *testing.T) {
	ctx, pool, dbURL := newSignupTestEnv(t)
	if err := testutil.ResetSignupsSchema(ctx, pool); err != nil {
		t.Fatalf("reset schema: %v", err)
	}

	repo, err := New(ctx, dbURL, 42)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer repo.Close()

	if _, err := pool.Exec(ctx, "DELETE FROM signup_counter"); err != nil {
		t.Fatalf("delete counter: %v", err)
	}

	count, err := repo.GetCount(ctx)
	if err != nil {
		t.Fatalf("GetCount failed: %v", err)
	}
	if count != 42 {
		t.Errorf("expected lazily seeded count 42, got %d", count)
	}
}

func TestIntegrationSignupRepository_ClosedPoolIsUnavailable(t *testing.T) {
	ctx, pool, dbURL := newSignupTestEnv(t)
	if err := testutil.ResetSignupsSchema(ctx, pool); err != nil {
		t.Fatalf("reset schema: %v", err)
	}

	repo, err := New(ctx, dbURL, 1247)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	_ = repo.Close()

	_, err = repo.TryAddSignup(ctx, "closed@example.com")
	if !errors.Is(err, store.ErrStorageUnavailable) {
		t.Errorf("expected ErrStorageUnavailable, got %v", err)
	}
}

// ============================================================================
// Test Environment Setup
// ============================================================================

func newSignupTestEnv(t *testing.T) (context.Context, *pgxpool.Pool, string) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	dbURL := testutil.RequireEnv(t, "DATABASE_URL")

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(pool.Close)

	unlock, err := testutil.AcquireDBLock(ctx, pool)
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	if err := testutil.ResetSignupsSchema(ctx, pool); err != nil {
		t.Fatalf("reset schema: %v", err)
	}

	return ctx, pool, dbURL
}
