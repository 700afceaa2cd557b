// SPDX-License-Identifier: Apache-2.0

package state_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusdata/branchroll/pkg/state"
)

func TestAcquireOnFreshBranchCreatesPendingRow(t *testing.T) {
	store := state.NewFakeStore()
	ctx := context.Background()

	rec, err := store.Acquire(ctx, "branch-1")
	require.NoError(t, err)
	assert.Equal(t, "", rec.LastAppliedID)
	require.NotNil(t, rec.LockOwnerToken)
	require.NotNil(t, rec.LockExpiresAt)
}

func TestAcquireTwiceReturnsErrBusy(t *testing.T) {
	store := state.NewFakeStore()
	ctx := context.Background()

	_, err := store.Acquire(ctx, "branch-1")
	require.NoError(t, err)

	_, err = store.Acquire(ctx, "branch-1")
	assert.True(t, errors.Is(err, state.ErrBusy))
}

func TestReleaseThenAcquireSucceeds(t *testing.T) {
	store := state.NewFakeStore()
	ctx := context.Background()

	_, err := store.Acquire(ctx, "branch-1")
	require.NoError(t, err)

	require.NoError(t, store.Release(ctx, "branch-1"))

	rec, err := store.Acquire(ctx, "branch-1")
	require.NoError(t, err)
	require.NotNil(t, rec.LockOwnerToken)
}

func TestCommitSuccessResetsRetryCountAndClearsError(t *testing.T) {
	store := state.NewFakeStore()
	ctx := context.Background()

	require.NoError(t, store.CommitFailure(ctx, "branch-1", "ddl failure"))
	require.NoError(t, store.CommitFailure(ctx, "branch-1", "ddl failure again"))

	rec, err := store.Get(ctx, "branch-1")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.RetryCount)
	assert.Equal(t, state.Failed, rec.Status)

	require.NoError(t, store.CommitSuccess(ctx, "branch-1", "m0002_add_loyalty_points"))

	rec, err = store.Get(ctx, "branch-1")
	require.NoError(t, err)
	assert.Equal(t, state.Completed, rec.Status)
	assert.Equal(t, 0, rec.RetryCount)
	assert.Nil(t, rec.ErrorDetails)
	assert.Equal(t, "m0002_add_loyalty_points", rec.LastAppliedID)
}

func TestCommitFailureEscalatesToManualInterventionAtMaxRetries(t *testing.T) {
	store := state.NewFakeStore()
	ctx := context.Background()

	for i := 0; i < state.MaxRetries-1; i++ {
		require.NoError(t, store.CommitFailure(ctx, "branch-1", "transient"))
		rec, err := store.Get(ctx, "branch-1")
		require.NoError(t, err)
		assert.Equal(t, state.Failed, rec.Status)
	}

	require.NoError(t, store.CommitFailure(ctx, "branch-1", "final"))
	rec, err := store.Get(ctx, "branch-1")
	require.NoError(t, err)
	assert.Equal(t, state.RequiresManualIntervention, rec.Status)
	assert.Equal(t, state.MaxRetries, rec.RetryCount)
}

func TestSetInProgressDoesNotTouchRetryAccounting(t *testing.T) {
	store := state.NewFakeStore()
	ctx := context.Background()

	require.NoError(t, store.CommitFailure(ctx, "branch-1", "oops"))
	require.NoError(t, store.SetInProgress(ctx, "branch-1"))

	rec, err := store.Get(ctx, "branch-1")
	require.NoError(t, err)
	assert.Equal(t, state.InProgress, rec.Status)
	assert.Equal(t, 1, rec.RetryCount)
}

func TestStatusStringCoversEveryValue(t *testing.T) {
	assert.Equal(t, "pending", state.Pending.String())
	assert.Equal(t, "in_progress", state.InProgress.String())
	assert.Equal(t, "completed", state.Completed.String())
	assert.Equal(t, "failed", state.Failed.String())
	assert.Equal(t, "requires_manual_intervention", state.RequiresManualIntervention.String())
	assert.Equal(t, "unknown", state.Status(99).String())
}
