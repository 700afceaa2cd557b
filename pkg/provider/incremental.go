// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"
	"fmt"
)

// ApplyIncremental runs cat's forward transform, in catalog order, for every
// id not in appliedIDs, up to and including targetID (or cat.Head() if
// targetID is empty). It is the shared incremental applier the three
// non-bootstrap providers (Postgres, MySQL, SQLite) delegate ApplyForward to
// instead of duplicating the loop.
// onApplied, if non-nil, is invoked after each successfully applied id — the
// hook a strategy uses to write its history-table row, since history
// persistence is backend-specific and not this function's concern.
func ApplyIncremental(ctx context.Context, conn Conn, tag Tag, cat CatalogView, appliedIDs []string, targetID string, onApplied func(id string) error) error {
	target := targetID
	if target == "" {
		target = cat.Head()
	}

	applied := make(map[string]struct{}, len(appliedIDs))
	for _, id := range appliedIDs {
		applied[id] = struct{}{}
	}

	for _, id := range cat.AllIDs() {
		if _, ok := applied[id]; ok {
			if id == target {
				return nil
			}
			continue
		}
		if err := cat.Apply(ctx, id, conn, tag); err != nil {
			return fmt.Errorf("apply %s: %w", id, err)
		}
		if onApplied != nil {
			if err := onApplied(id); err != nil {
				return fmt.Errorf("record applied %s: %w", id, err)
			}
		}
		if id == target {
			return nil
		}
	}
	return nil
}

// ApplyReverseIncremental runs cat's reverse transform for every applied id,
// from the most recent down to (and excluding) targetID. An empty targetID
// means fully down.
// onReverted, if non-nil, is invoked after each successfully reverted id —
// the hook a strategy uses to delete its history-table row.
func ApplyReverseIncremental(ctx context.Context, conn Conn, tag Tag, cat CatalogView, appliedIDs []string, targetID string, onReverted func(id string) error) error {
	for i := len(appliedIDs) - 1; i >= 0; i-- {
		id := appliedIDs[i]
		if id == targetID {
			return nil
		}
		if err := cat.Revert(ctx, id, conn, tag); err != nil {
			return fmt.Errorf("revert %s: %w", id, err)
		}
		if onReverted != nil {
			if err := onReverted(id); err != nil {
				return fmt.Errorf("record reverted %s: %w", id, err)
			}
		}
	}
	return nil
}

// PendingFromApplied computes catalog \ applied, preserving catalog order.
func PendingFromApplied(allIDs, appliedIDs []string) []string {
	applied := make(map[string]struct{}, len(appliedIDs))
	for _, id := range appliedIDs {
		applied[id] = struct{}{}
	}
	pending := make([]string, 0, len(allIDs)-len(appliedIDs))
	for _, id := range allIDs {
		if _, ok := applied[id]; !ok {
			pending = append(pending, id)
		}
	}
	return pending
}
