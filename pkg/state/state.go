// SPDX-License-Identifier: Apache-2.0

// Package state persists the per-branch Migration State row in the
// head-office store and implements a two-layer lease lock: an intra-process
// mutex serializing the read-modify-write on the lock columns, plus an
// inter-process lease recorded in those columns.
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MaxRetries bounds retry_count; reaching it latches Status to
// RequiresManualIntervention.
const MaxRetries = 3

// Lease is the inter-process lock duration.
const Lease = 10 * time.Minute

// ErrBusy is returned by Acquire when another owner holds an unexpired
// lease.
var ErrBusy = errors.New("state: branch is locked by another owner")

// Record is one branch's Migration State row. LastAppliedID is "" for a
// fresh branch. LockOwnerToken and LockExpiresAt are either both set or
// both nil.
type Record struct {
	BranchID       string
	LastAppliedID  string
	Status         Status
	LastAttemptAt  time.Time
	RetryCount     int
	ErrorDetails   *string
	LockOwnerToken *string
	LockExpiresAt  *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Store is the persistence boundary the Manager uses for Migration State.
// The default implementation is backed by the head-office PostgreSQL
// database; FakeStore backs tests.
type Store interface {
	// Acquire loads (creating if absent) the state row for branchID and
	// claims the lease, or returns ErrBusy if another owner holds an
	// unexpired lease. The returned Record reflects the post-acquire row.
	Acquire(ctx context.Context, branchID string) (Record, error)
	// Release clears the lease fields unconditionally.
	Release(ctx context.Context, branchID string) error
	// Get reads the current row without acquiring or releasing anything,
	// creating it if absent.
	Get(ctx context.Context, branchID string) (Record, error)
	// CommitSuccess writes a Completed row: retry_count reset to 0,
	// error_details cleared, last_applied_id updated.
	CommitSuccess(ctx context.Context, branchID, lastAppliedID string) error
	// CommitFailure writes a Failed (or RequiresManualIntervention once
	// retry_count reaches MaxRetries) row with the given error text.
	CommitFailure(ctx context.Context, branchID, errDetails string) error
	// SetInProgress marks the row InProgress without touching retry
	// accounting.
	SetInProgress(ctx context.Context, branchID string) error
}

// PostgresStore is the default Store. It uses *sql.DB directly for the
// small, latency-insensitive state table, as opposed to the RetryableConn
// wrapper used for branch DDL.
type PostgresStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewPostgresStore wraps db, assuming the table from sqlInit already exists
// (created by EnsureSchema).
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const sqlInit = `
CREATE TABLE IF NOT EXISTS branchroll_migration_state (
	id                     BIGSERIAL PRIMARY KEY,
	branch_id              TEXT NOT NULL UNIQUE,
	last_migration_applied TEXT NOT NULL DEFAULT '',
	status                 SMALLINT NOT NULL DEFAULT 0,
	last_attempt_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	retry_count            INT NOT NULL DEFAULT 0,
	error_details          TEXT,
	lock_owner_id          TEXT,
	lock_expires_at        TIMESTAMPTZ,
	created_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at             TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS branchroll_migration_state_status_idx ON branchroll_migration_state (status);
CREATE INDEX IF NOT EXISTS branchroll_migration_state_last_attempt_idx ON branchroll_migration_state (last_attempt_at);
CREATE INDEX IF NOT EXISTS branchroll_migration_state_lock_expires_idx ON branchroll_migration_state (lock_expires_at);
`

// EnsureSchema creates the state table if it does not already exist. Called
// once at process startup.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqlInit)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, branchID string) (Record, error) {
	return s.loadOrCreate(ctx, branchID)
}

func (s *PostgresStore) loadOrCreate(ctx context.Context, branchID string) (Record, error) {
	row, err := s.scanRow(ctx, branchID)
	if err == nil {
		return row, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Record{}, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO branchroll_migration_state (branch_id, status)
		VALUES ($1, $2)
		ON CONFLICT (branch_id) DO NOTHING
	`, branchID, Pending)
	if err != nil {
		return Record{}, fmt.Errorf("state: create row for %s: %w", branchID, err)
	}
	return s.scanRow(ctx, branchID)
}

func (s *PostgresStore) scanRow(ctx context.Context, branchID string) (Record, error) {
	var r Record
	var status int
	err := s.db.QueryRowContext(ctx, `
		SELECT branch_id, last_migration_applied, status, last_attempt_at, retry_count,
			error_details, lock_owner_id, lock_expires_at, created_at, updated_at
		FROM branchroll_migration_state WHERE branch_id = $1
	`, branchID).Scan(&r.BranchID, &r.LastAppliedID, &status, &r.LastAttemptAt, &r.RetryCount,
		&r.ErrorDetails, &r.LockOwnerToken, &r.LockExpiresAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return Record{}, err
	}
	r.Status = Status(status)
	return r, nil
}

// Acquire runs inside the intra-process mutex: load-or-create, clear an
// expired lease, refuse a live one, else claim a fresh token with a new
// expiry.
func (s *PostgresStore) Acquire(ctx context.Context, branchID string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.loadOrCreate(ctx, branchID)
	if err != nil {
		return Record{}, err
	}

	if r.LockExpiresAt != nil && r.LockExpiresAt.Before(time.Now()) {
		if err := s.clearLock(ctx, branchID); err != nil {
			return Record{}, err
		}
		r.LockOwnerToken = nil
		r.LockExpiresAt = nil
	}

	if r.LockOwnerToken != nil {
		return Record{}, ErrBusy
	}

	token := uuid.NewString()
	expiry := time.Now().Add(Lease)
	_, err = s.db.ExecContext(ctx, `
		UPDATE branchroll_migration_state
		SET lock_owner_id = $1, lock_expires_at = $2, updated_at = now()
		WHERE branch_id = $3
	`, token, expiry, branchID)
	if err != nil {
		return Record{}, fmt.Errorf("state: acquire lease for %s: %w", branchID, err)
	}

	r.LockOwnerToken = &token
	r.LockExpiresAt = &expiry
	return r, nil
}

// Release clears the lease fields unconditionally, inside the same
// intra-process critical section Acquire uses.
func (s *PostgresStore) Release(ctx context.Context, branchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearLock(ctx, branchID)
}

func (s *PostgresStore) clearLock(ctx context.Context, branchID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE branchroll_migration_state
		SET lock_owner_id = NULL, lock_expires_at = NULL, updated_at = now()
		WHERE branch_id = $1
	`, branchID)
	if err != nil {
		return fmt.Errorf("state: release lease for %s: %w", branchID, err)
	}
	return nil
}

func (s *PostgresStore) SetInProgress(ctx context.Context, branchID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE branchroll_migration_state
		SET status = $1, last_attempt_at = now(), updated_at = now()
		WHERE branch_id = $2
	`, InProgress, branchID)
	return err
}

// CommitSuccess implements the Completed terminal transition: retry_count
// resets to 0 and error_details clears.
func (s *PostgresStore) CommitSuccess(ctx context.Context, branchID, lastAppliedID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE branchroll_migration_state
		SET status = $1, last_migration_applied = $2, retry_count = 0, error_details = NULL,
			last_attempt_at = now(), updated_at = now()
		WHERE branch_id = $3
	`, Completed, lastAppliedID, branchID)
	return err
}

// CommitFailure increments retry_count and latches RequiresManualIntervention
// once it reaches MaxRetries.
func (s *PostgresStore) CommitFailure(ctx context.Context, branchID, errDetails string) error {
	r, err := s.scanRow(ctx, branchID)
	if err != nil {
		return fmt.Errorf("state: load before commit failure for %s: %w", branchID, err)
	}

	newRetry := r.RetryCount + 1
	if newRetry > MaxRetries {
		newRetry = MaxRetries
	}
	status := Failed
	if newRetry >= MaxRetries {
		status = RequiresManualIntervention
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE branchroll_migration_state
		SET status = $1, retry_count = $2, error_details = $3, last_attempt_at = now(), updated_at = now()
		WHERE branch_id = $4
	`, status, newRetry, errDetails, branchID)
	return err
}
