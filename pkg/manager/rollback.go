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

// RollbackLast reverts the most recently applied migration. Target is the
// second-to-last applied id, or "" if only one is applied —
// bringing the branch to the pre-initial state.
func (m *Manager) RollbackLast(ctx context.Context, branchID string) Result {
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

	_, err = m.store.Acquire(ctx, branchID)
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

	m.log.LogRollbackStart(branch.Code)

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

	applied, err := strategy.AppliedIDs(ctx, conn)
	if err != nil {
		return m.commitFailure(ctx, branch, res, start, fmt.Errorf("applied_ids: %w", err))
	}
	if len(applied) == 0 {
		res.Error = "no migrations to rollback"
		res.Duration = time.Since(start)
		return res
	}

	target := ""
	if len(applied) > 1 {
		target = applied[len(applied)-2]
	}

	if err := strategy.ApplyReverse(ctx, conn, target, m.catalog); err != nil {
		return m.commitFailure(ctx, branch, res, start, fmt.Errorf("ddl failure: %w", err))
	}

	// An empty target is the pre-initial state, where none of the core
	// tables exist, so the probe only runs when a unit remains applied.
	if target != "" && !strategy.ValidateSchema(ctx, conn, m.catalog.CoreTables()) {
		return m.commitFailure(ctx, branch, res, start, errors.New("integrity validation failed"))
	}

	if err := m.store.CommitSuccess(ctx, branchID, target); err != nil {
		res.Error = err.Error()
		return res
	}

	m.log.LogRollbackComplete(branch.Code, target)
	res.Success = true
	res.AppliedIDs = applied[:len(applied)-1]
	res.Duration = time.Since(start)
	return res
}

// RollbackAll runs rollback_last sequentially over every active branch,
// mirroring ApplyAll's fan-out.
func (m *Manager) RollbackAll(ctx context.Context) AggregateResult {
	start := time.Now()
	branches, err := m.registry.ListActive(ctx)
	if err != nil {
		return AggregateResult{Success: false, Duration: time.Since(start)}
	}

	agg := AggregateResult{Success: true}
	for _, b := range branches {
		res := m.RollbackLast(ctx, b.ID)
		agg.Results = append(agg.Results, res)
		if !res.Success && res.Error != "already in progress" {
			agg.Success = false
		}
	}
	agg.Duration = time.Since(start)
	return agg
}
