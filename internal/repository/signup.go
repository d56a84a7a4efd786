package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/modelforge/waitlist/internal/model"
	"github.com/modelforge/waitlist/internal/store"
)

var _ store.Store = (*Repository)(nil)

// TryAddSignup inserts the signup and bumps the counter in one transaction.
// The counter row is locked FOR UPDATE first, so concurrent submissions are
// applied one at a time; the UNIQUE(email) constraint backs the dedupe.
func (r *Repository) TryAddSignup(ctx context.Context, email string) (store.AddResult, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return store.AddResult{}, unavailable("begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	current, err := r.lockCounter(ctx, tx)
	if err != nil {
		return store.AddResult{}, err
	}

	record := store.NewRecord(email, r.now())
	tag, err := tx.Exec(ctx, `
		INSERT INTO signups (id, email, submitted_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO NOTHING
	`, record.ID, record.Email, record.SubmittedAt)
	if err != nil {
		return store.AddResult{}, unavailable("insert signup", err)
	}

	if tag.RowsAffected() == 0 {
		return store.AddResult{Accepted: false, Count: current}, store.ErrDuplicateSignup
	}

	var count int64
	err = tx.QueryRow(ctx, `
		UPDATE signup_counter
		SET count = count + 1, last_updated = $1
		WHERE id = 1
		RETURNING count
	`, record.SubmittedAt).Scan(&count)
	if err != nil {
		return store.AddResult{}, unavailable("increment counter", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return store.AddResult{}, unavailable("commit", err)
	}

	return store.AddResult{Accepted: true, Count: count}, nil
}

// GetCount returns the current counter value.
func (r *Repository) GetCount(ctx context.Context) (int64, error) {
	state, err := r.GetCounterState(ctx)
	if err != nil {
		return 0, err
	}
	return state.Count, nil
}

// GetCounterState returns the counter row, creating it at the seed if absent.
func (r *Repository) GetCounterState(ctx context.Context) (*model.CounterState, error) {
	query := `
		SELECT count, last_updated
		FROM signup_counter
		WHERE id = 1
	`

	var state model.CounterState
	err := r.pool.QueryRow(ctx, query).Scan(&state.Count, &state.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		if err := r.ensureCounter(ctx); err != nil {
			return nil, err
		}
		err = r.pool.QueryRow(ctx, query).Scan(&state.Count, &state.LastUpdated)
	}
	if err != nil {
		return nil, unavailable("get counter", err)
	}

	return &state, nil
}

// ListSignups returns every signup, most recent first.
func (r *Repository) ListSignups(ctx context.Context) ([]model.SignupRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, email, submitted_at
		FROM signups
		ORDER BY submitted_at DESC, id DESC
	`)
	if err != nil {
		return nil, unavailable("list signups", err)
	}
	defer rows.Close()

	records := make([]model.SignupRecord, 0)
	for rows.Next() {
		var rec model.SignupRecord
		if err := rows.Scan(&rec.ID, &rec.Email, &rec.SubmittedAt); err != nil {
			return nil, unavailable("scan signup", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate signups", err)
	}

	return records, nil
}

const insertCounterSQL = `
	INSERT INTO signup_counter (id, count, last_updated)
	VALUES (1, $1, $2)
	ON CONFLICT (id) DO NOTHING
`

// ensureCounter creates the counter row at the seed value if it is missing.
func (r *Repository) ensureCounter(ctx context.Context) error {
	initial := model.NewCounterState(r.seed, r.now())
	if _, err := r.pool.Exec(ctx, insertCounterSQL, initial.Count, initial.LastUpdated); err != nil {
		return unavailable("initialize counter", err)
	}
	return nil
}

// lockCounter reads the counter row with a row lock held until the
// transaction ends.
func (r *Repository) lockCounter(ctx context.Context, tx pgx.Tx) (int64, error) {
	query := `SELECT count FROM signup_counter WHERE id = 1 FOR UPDATE`

	var count int64
	err := tx.QueryRow(ctx, query).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		initial := model.NewCounterState(r.seed, r.now())
		if _, err := tx.Exec(ctx, insertCounterSQL, initial.Count, initial.LastUpdated); err != nil {
			return 0, unavailable("initialize counter", err)
		}
		err = tx.QueryRow(ctx, query).Scan(&count)
	}
	if err != nil {
		return 0, unavailable("lock counter", err)
	}

	return count, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", store.ErrStorageUnavailable, op, err)
}
