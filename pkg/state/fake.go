// SPDX-License-Identifier: Apache-2.0

package state

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FakeStore is an in-memory Store for tests that do not need a real
// PostgreSQL head-office database.
type FakeStore struct {
	mu      sync.Mutex
	records map[string]Record
}

func NewFakeStore() *FakeStore {
	return &FakeStore{records: make(map[string]Record)}
}

func (f *FakeStore) loadOrCreate(branchID string) Record {
	r, ok := f.records[branchID]
	if !ok {
		now := time.Now()
		r = Record{BranchID: branchID, Status: Pending, CreatedAt: now, UpdatedAt: now}
		f.records[branchID] = r
	}
	return r
}

func (f *FakeStore) Get(ctx context.Context, branchID string) (Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loadOrCreate(branchID), nil
}

func (f *FakeStore) Acquire(ctx context.Context, branchID string) (Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	r := f.loadOrCreate(branchID)
	if r.LockExpiresAt != nil && r.LockExpiresAt.Before(time.Now()) {
		r.LockOwnerToken = nil
		r.LockExpiresAt = nil
	}
	if r.LockOwnerToken != nil {
		return Record{}, ErrBusy
	}

	token := uuid.NewString()
	expiry := time.Now().Add(Lease)
	r.LockOwnerToken = &token
	r.LockExpiresAt = &expiry
	r.UpdatedAt = time.Now()
	f.records[branchID] = r
	return r, nil
}

func (f *FakeStore) Release(ctx context.Context, branchID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.loadOrCreate(branchID)
	r.LockOwnerToken = nil
	r.LockExpiresAt = nil
	r.UpdatedAt = time.Now()
	f.records[branchID] = r
	return nil
}

func (f *FakeStore) SetInProgress(ctx context.Context, branchID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.loadOrCreate(branchID)
	r.Status = InProgress
	r.LastAttemptAt = time.Now()
	r.UpdatedAt = time.Now()
	f.records[branchID] = r
	return nil
}

func (f *FakeStore) CommitSuccess(ctx context.Context, branchID, lastAppliedID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.loadOrCreate(branchID)
	r.Status = Completed
	r.LastAppliedID = lastAppliedID
	r.RetryCount = 0
	r.ErrorDetails = nil
	r.LastAttemptAt = time.Now()
	r.UpdatedAt = time.Now()
	f.records[branchID] = r
	return nil
}

func (f *FakeStore) CommitFailure(ctx context.Context, branchID, errDetails string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.loadOrCreate(branchID)
	if r.RetryCount < MaxRetries {
		r.RetryCount++
	}
	if r.RetryCount >= MaxRetries {
		r.Status = RequiresManualIntervention
	} else {
		r.Status = Failed
	}
	details := errDetails
	r.ErrorDetails = &details
	r.LastAttemptAt = time.Now()
	r.UpdatedAt = time.Now()
	f.records[branchID] = r
	return nil
}
