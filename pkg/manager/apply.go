// SPDX-License-Identifier: Apache-2.0

package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimbusdata/branchroll/internal/registry"
	"github.com/nimbusdata/branchroll/pkg/provider"
	"github.com/nimbusdata/branchroll/pkg/state"
)

// ApplyOne runs the apply_one state machine for one branch:
// Start → LockCheck → ConnectCheck → BootstrapOrIncrement → Validate →
// CommitState → LockRelease → End, with every edge's failure branch going
// to CommitFailure → LockRelease → End.
func (m *Manager) ApplyOne(ctx context.Context, branchID string, targetID string) Result {
	start := time.Now()
	res := Result{BranchID: branchID}

	branch, err := m.registry.Get(ctx, branchID)
	if err != nil {
		if errors.Is(err, registry.ErrBranchNotFound) {
			res.Error = "branch not found"
			return res
		}
		res.Error = err.Error()
		return res
	}

	rec, err := m.store.Acquire(ctx, branchID)
	if err != nil {
		if errors.Is(err, state.ErrBusy) {
			m.log.LogLockBusy(branch.Code)
			res.Error = "already in progress"
			return res
		}
		res.Error = err.Error()
		return res
	}
	defer m.store.Release(ctx, branchID) //nolint:errcheck

	m.log.LogApplyStart(branch.Code, string(branch.ProviderTag))

	if targetID != "" && targetPrecedesLastApplied(m.catalog.AllIDs(), rec.LastAppliedID, targetID) {
		res.Error = "target precedes last applied id; use rollback"
		res.Duration = time.Since(start)
		return res
	}

	strategy, err := m.select_(branch.ProviderTag)
	if err != nil {
		if errors.Is(err, provider.ErrUnsupportedProvider) {
			res.Error = err.Error()
			res.Duration = time.Since(start)
			return res
		}
		return m.commitFailure(ctx, branch, res, start, err)
	}

	conn, err := strategy.Open(ctx, branch.ConnectionDescriptor)
	if err != nil {
		return m.commitFailure(ctx, branch, res, start, fmt.Errorf("connectivity failure: %w", err))
	}
	defer conn.Close() //nolint:errcheck

	if !strategy.CanConnect(ctx, branch.ConnectionDescriptor) {
		return m.commitFailure(ctx, branch, res, start, errors.New("connectivity failure: can_connect returned false"))
	}

	exists, err := strategy.DatabaseExists(ctx, branch.ConnectionDescriptor)
	if err != nil {
		return m.commitFailure(ctx, branch, res, start, fmt.Errorf("database_exists: %w", err))
	}
	if !exists {
		if err := strategy.EnsureDatabase(ctx, branch.ConnectionDescriptor); err != nil {
			return m.commitFailure(ctx, branch, res, start, fmt.Errorf("ensure_database: %w", err))
		}
	}

	pending, err := strategy.PendingIDs(ctx, conn, m.catalog)
	if err != nil {
		return m.commitFailure(ctx, branch, res, start, fmt.Errorf("pending_ids: %w", err))
	}
	if len(pending) == 0 {
		if err := m.store.CommitSuccess(ctx, branchID, rec.LastAppliedID); err != nil {
			res.Error = err.Error()
			return res
		}
		res.Success = true
		res.Error = "no pending migrations"
		res.Duration = time.Since(start)
		return res
	}

	if err := m.store.SetInProgress(ctx, branchID); err != nil {
		res.Error = err.Error()
		return res
	}

	if err := strategy.ApplyForward(ctx, conn, targetID, m.catalog); err != nil {
		return m.commitFailure(ctx, branch, res, start, fmt.Errorf("ddl failure: %w", err))
	}

	if !strategy.ValidateSchema(ctx, conn, m.catalog.CoreTables()) {
		return m.commitFailure(ctx, branch, res, start, errors.New("integrity validation failed"))
	}

	applied, err := strategy.AppliedIDs(ctx, conn)
	if err != nil {
		return m.commitFailure(ctx, branch, res, start, fmt.Errorf("read back applied_ids: %w", err))
	}
	lastApplied := greatest(m.catalog.AllIDs(), applied)

	if err := m.store.CommitSuccess(ctx, branchID, lastApplied); err != nil {
		res.Error = err.Error()
		return res
	}

	m.log.LogApplyComplete(branch.Code, applied)
	res.Success = true
	res.AppliedIDs = applied
	res.Duration = time.Since(start)
	return res
}

// commitFailure implements the escalation rule: retry_count increments;
// status latches to RequiresManualIntervention once it reaches
// state.MaxRetries, else Failed. The lock release is the caller's deferred
// call, so this always runs before ApplyOne returns.
func (m *Manager) commitFailure(ctx context.Context, branch registry.Branch, res Result, start time.Time, cause error) Result {
	m.log.LogFailure(branch.Code, "apply", cause)
	if err := m.store.CommitFailure(ctx, branch.ID, cause.Error()); err != nil {
		res.Error = err.Error()
		res.Duration = time.Since(start)
		return res
	}
	res.Error = cause.Error()
	res.Duration = time.Since(start)
	return res
}

// targetPrecedesLastApplied reports whether target sits earlier in allIDs'
// catalog order than lastApplied. An unknown target or a branch with nothing
// applied yet never precedes anything.
func targetPrecedesLastApplied(allIDs []string, lastApplied, target string) bool {
	if lastApplied == "" {
		return false
	}
	targetIdx, lastIdx := -1, -1
	for i, id := range allIDs {
		if id == target {
			targetIdx = i
		}
		if id == lastApplied {
			lastIdx = i
		}
	}
	return targetIdx >= 0 && targetIdx < lastIdx
}

// greatest returns the member of applied that appears latest in allIDs'
// catalog order, or "" if applied is empty.
func greatest(allIDs, applied []string) string {
	if len(applied) == 0 {
		return ""
	}
	inApplied := make(map[string]struct{}, len(applied))
	for _, id := range applied {
		inApplied[id] = struct{}{}
	}
	last := ""
	for _, id := range allIDs {
		if _, ok := inApplied[id]; ok {
			last = id
		}
	}
	return last
}

// ApplyAll runs apply_one sequentially over every active branch. The
// aggregate succeeds iff every branch succeeded; branches
// reporting LockBusy contention do not fail the aggregate hard, since the
// next reconciler tick will retry them.
func (m *Manager) ApplyAll(ctx context.Context) AggregateResult {
	start := time.Now()
	branches, err := m.registry.ListActive(ctx)
	if err != nil {
		return AggregateResult{Success: false, Duration: time.Since(start)}
	}

	agg := AggregateResult{Success: true}
	for _, b := range branches {
		res := m.ApplyOne(ctx, b.ID, "")
		agg.Results = append(agg.Results, res)
		if !res.Success && res.Error != "already in progress" {
			agg.Success = false
		}
	}
	agg.Duration = time.Since(start)
	return agg
}
