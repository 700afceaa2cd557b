// SPDX-License-Identifier: Apache-2.0

package manager

import (
	"context"
	"fmt"
)

// ListPending returns the ids a branch has not yet applied. Read-only: never
// mutates state, never acquires a lock.
func (m *Manager) ListPending(ctx context.Context, branchID string) ([]string, error) {
	branch, err := m.registry.Get(ctx, branchID)
	if err != nil {
		return nil, err
	}
	strategy, err := m.select_(branch.ProviderTag)
	if err != nil {
		return nil, err
	}
	conn, err := strategy.Open(ctx, branch.ConnectionDescriptor)
	if err != nil {
		return nil, fmt.Errorf("list_pending: open: %w", err)
	}
	defer conn.Close() //nolint:errcheck

	return strategy.PendingIDs(ctx, conn, m.catalog)
}

// History answers `history(branch_id)`: applied and pending ids plus the
// persisted state row's bookkeeping fields.
func (m *Manager) History(ctx context.Context, branchID string) (HistoryView, error) {
	branch, err := m.registry.Get(ctx, branchID)
	if err != nil {
		return HistoryView{}, err
	}

	rec, err := m.store.Get(ctx, branchID)
	if err != nil {
		return HistoryView{}, err
	}

	strategy, err := m.select_(branch.ProviderTag)
	if err != nil {
		return HistoryView{}, err
	}
	conn, err := strategy.Open(ctx, branch.ConnectionDescriptor)
	if err != nil {
		return HistoryView{}, fmt.Errorf("history: open: %w", err)
	}
	defer conn.Close() //nolint:errcheck

	applied, err := strategy.AppliedIDs(ctx, conn)
	if err != nil {
		return HistoryView{}, fmt.Errorf("history: applied_ids: %w", err)
	}
	pending, err := strategy.PendingIDs(ctx, conn, m.catalog)
	if err != nil {
		return HistoryView{}, fmt.Errorf("history: pending_ids: %w", err)
	}

	return HistoryView{
		Applied:       applied,
		Pending:       pending,
		LastAttemptAt: rec.LastAttemptAt,
		Status:        rec.Status,
		RetryCount:    rec.RetryCount,
		Error:         rec.ErrorDetails,
	}, nil
}

// Validate runs the integrity probe against a branch's current schema.
// Read-only.
func (m *Manager) Validate(ctx context.Context, branchID string) (bool, error) {
	branch, err := m.registry.Get(ctx, branchID)
	if err != nil {
		return false, err
	}
	strategy, err := m.select_(branch.ProviderTag)
	if err != nil {
		return false, err
	}
	conn, err := strategy.Open(ctx, branch.ConnectionDescriptor)
	if err != nil {
		return false, fmt.Errorf("validate: open: %w", err)
	}
	defer conn.Close() //nolint:errcheck

	return strategy.ValidateSchema(ctx, conn, m.catalog.CoreTables()), nil
}
