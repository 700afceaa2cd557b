// SPDX-License-Identifier: Apache-2.0

// Package manager implements the orchestrator owning the apply/rollback
// state machine for one branch, lock acquisition/release, retry accounting,
// fan-out over all active branches, history queries, validation dispatch,
// and the fresh-bootstrap decision (delegated to the selected Strategy).
package manager

import (
	"time"

	"github.com/nimbusdata/branchroll/pkg/state"
)

// Result is the uniform shape every single-branch operation returns: a
// structured value, never an unhandled exception crossing the public
// operations.
type Result struct {
	BranchID   string        `json:"branch_id"`
	Success    bool          `json:"success"`
	AppliedIDs []string      `json:"applied_ids,omitempty"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// AggregateResult is the shape apply_all/rollback_all return.
type AggregateResult struct {
	Success  bool     `json:"success"`
	Results  []Result `json:"results"`
	Duration time.Duration `json:"duration"`
}

// HistoryView answers `history(branch_id)`.
type HistoryView struct {
	Applied       []string     `json:"applied"`
	Pending       []string     `json:"pending"`
	LastAttemptAt time.Time    `json:"last_attempt_at"`
	Status        state.Status `json:"status"`
	RetryCount    int          `json:"retry_count"`
	Error         *string      `json:"error,omitempty"`
}
