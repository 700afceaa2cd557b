// SPDX-License-Identifier: Apache-2.0

// Package reconciler implements a single long-lived loop that periodically
// asks the Manager to advance every active branch toward the head of the
// Catalog.
package reconciler

import (
	"context"
	"time"

	"github.com/nimbusdata/branchroll/internal/corelog"
	"github.com/nimbusdata/branchroll/pkg/manager"
)

const (
	startupDelay = 30 * time.Second
	tickInterval = 5 * time.Minute
)

// Reconciler drives manager.ApplyAll on a fixed tick.
type Reconciler struct {
	manager *manager.Manager
	log     corelog.Logger
}

func New(m *manager.Manager, log corelog.Logger) *Reconciler {
	return &Reconciler{manager: m, log: log}
}

// Run blocks until ctx is cancelled. Cancellation is cooperative: the
// current tick finishes before the loop exits.
func (r *Reconciler) Run(ctx context.Context) {
	select {
	case <-time.After(startupDelay):
	case <-ctx.Done():
		return
	}

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	r.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Reconciler) tick(ctx context.Context) {
	agg := r.manager.ApplyAll(ctx)
	succeeded, failed := 0, 0
	for _, res := range agg.Results {
		if res.Success {
			succeeded++
		} else {
			failed++
		}
	}
	r.log.LogReconcileTick(succeeded, failed)
}
