// SPDX-License-Identifier: Apache-2.0

package manager_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusdata/branchroll/internal/corelog"
	"github.com/nimbusdata/branchroll/internal/registry"
	"github.com/nimbusdata/branchroll/pkg/catalog"
	"github.com/nimbusdata/branchroll/pkg/manager"
	"github.com/nimbusdata/branchroll/pkg/provider"
	"github.com/nimbusdata/branchroll/pkg/provider/sqlitestrategy"
	"github.com/nimbusdata/branchroll/pkg/state"
)

// newTestManager wires a Manager against an in-memory registry/state store
// and the real SQLite strategy, regardless of the branch's declared provider
// tag, so tests exercise the full apply/rollback machinery without a network
// database.
func newTestManager(t *testing.T, branches ...registry.Branch) (*manager.Manager, *state.FakeStore) {
	t.Helper()
	reg := registry.NewFakeRegistry(branches...)
	store := state.NewFakeStore()
	sel := func(provider.Tag) (provider.Strategy, error) { return sqlitestrategy.New(), nil }
	m := manager.NewWithSelector(reg, store, catalog.Default, corelog.NewNoopLogger(), sel)
	return m, store
}

func testBranch(id string) registry.Branch {
	return registry.Branch{ID: id, Code: id, Active: true, ProviderTag: provider.SQLite}
}

func withConnDescriptor(t *testing.T, b registry.Branch) registry.Branch {
	t.Helper()
	b.ConnectionDescriptor = filepath.Join(t.TempDir(), "branch.db")
	return b
}

func TestApplyOneAppliesEntireCatalogOnFreshBranch(t *testing.T) {
	branch := withConnDescriptor(t, testBranch("b1"))
	m, store := newTestManager(t, branch)

	res := m.ApplyOne(context.Background(), "b1", "")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, catalog.Default.AllIDs(), res.AppliedIDs)

	rec, err := store.Get(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, state.Completed, rec.Status)
	assert.Equal(t, catalog.Default.Head(), rec.LastAppliedID)
}

func TestApplyOneUnknownBranch(t *testing.T) {
	m, _ := newTestManager(t)
	res := m.ApplyOne(context.Background(), "missing", "")
	assert.False(t, res.Success)
	assert.Equal(t, "branch not found", res.Error)
}

func TestApplyOneNoPendingMigrationsSucceeds(t *testing.T) {
	branch := withConnDescriptor(t, testBranch("b1"))
	m, _ := newTestManager(t, branch)
	ctx := context.Background()

	require.True(t, m.ApplyOne(ctx, "b1", "").Success)

	res := m.ApplyOne(ctx, "b1", "")
	require.True(t, res.Success)
	assert.Equal(t, "no pending migrations", res.Error)
}

func TestApplyOneReportsBusyWhenLockHeld(t *testing.T) {
	branch := withConnDescriptor(t, testBranch("b1"))
	m, store := newTestManager(t, branch)
	ctx := context.Background()

	_, err := store.Acquire(ctx, "b1")
	require.NoError(t, err)

	res := m.ApplyOne(ctx, "b1", "")
	assert.False(t, res.Success)
	assert.Equal(t, "already in progress", res.Error)
}

func TestApplyOneReleasesLockOnSuccess(t *testing.T) {
	branch := withConnDescriptor(t, testBranch("b1"))
	m, store := newTestManager(t, branch)
	ctx := context.Background()

	require.True(t, m.ApplyOne(ctx, "b1", "").Success)

	// A second Acquire must succeed, proving the first call's deferred
	// Release ran.
	_, err := store.Acquire(ctx, "b1")
	assert.NoError(t, err)
}

func TestApplyAllAggregatesAcrossBranches(t *testing.T) {
	b1 := withConnDescriptor(t, testBranch("b1"))
	b2 := withConnDescriptor(t, testBranch("b2"))
	m, _ := newTestManager(t, b1, b2)

	agg := m.ApplyAll(context.Background())
	assert.True(t, agg.Success)
	assert.Len(t, agg.Results, 2)
}

func TestRollbackLastOnBranchWithNoAppliedMigrations(t *testing.T) {
	branch := withConnDescriptor(t, testBranch("b1"))
	m, _ := newTestManager(t, branch)

	res := m.RollbackLast(context.Background(), "b1")
	assert.False(t, res.Success)
	assert.Equal(t, "no migrations to rollback", res.Error)
}

func TestRollbackLastTargetsSecondToLastApplied(t *testing.T) {
	branch := withConnDescriptor(t, testBranch("b1"))
	m, store := newTestManager(t, branch)
	ctx := context.Background()

	require.True(t, m.ApplyOne(ctx, "b1", "").Success)

	res := m.RollbackLast(ctx, "b1")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, []string{"m0001_initial_schema", "m0002_add_loyalty_points"}, res.AppliedIDs)

	rec, err := store.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "m0002_add_loyalty_points", rec.LastAppliedID)
}

func TestRollbackLastDownToEmptyTargetClearsLastApplied(t *testing.T) {
	branch := withConnDescriptor(t, testBranch("b1"))
	m, store := newTestManager(t, branch)
	ctx := context.Background()

	require.True(t, m.ApplyOne(ctx, "b1", "m0001_initial_schema").Success)

	res := m.RollbackLast(ctx, "b1")
	require.True(t, res.Success, res.Error)
	assert.Empty(t, res.AppliedIDs)

	rec, err := store.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "", rec.LastAppliedID)
}

func TestListPendingReflectsCatalogMinusApplied(t *testing.T) {
	branch := withConnDescriptor(t, testBranch("b1"))
	m, _ := newTestManager(t, branch)
	ctx := context.Background()

	pending, err := m.ListPending(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, catalog.Default.AllIDs(), pending)

	require.True(t, m.ApplyOne(ctx, "b1", "").Success)

	pending, err = m.ListPending(ctx, "b1")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestHistoryReportsAppliedPendingAndStateBookkeeping(t *testing.T) {
	branch := withConnDescriptor(t, testBranch("b1"))
	m, _ := newTestManager(t, branch)
	ctx := context.Background()

	require.True(t, m.ApplyOne(ctx, "b1", "").Success)

	view, err := m.History(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, catalog.Default.AllIDs(), view.Applied)
	assert.Empty(t, view.Pending)
	assert.Equal(t, state.Completed, view.Status)
	assert.Equal(t, 0, view.RetryCount)
}

func TestValidatePassesAfterApply(t *testing.T) {
	branch := withConnDescriptor(t, testBranch("b1"))
	m, _ := newTestManager(t, branch)
	ctx := context.Background()

	require.True(t, m.ApplyOne(ctx, "b1", "").Success)

	ok, err := m.Validate(ctx, "b1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestApplyOneEscalatesToManualInterventionAfterMaxRetries(t *testing.T) {
	branch := testBranch("b1")
	branch.ConnectionDescriptor = "" // never opened: the selector below fails with a generic error (not ErrUnsupportedProvider), which goes through commitFailure and bumps retry_count.
	reg := registry.NewFakeRegistry(branch)
	store := state.NewFakeStore()
	sel := func(provider.Tag) (provider.Strategy, error) { return nil, assertableErr }
	m := manager.NewWithSelector(reg, store, catalog.Default, corelog.NewNoopLogger(), sel)
	ctx := context.Background()

	for i := 0; i < state.MaxRetries; i++ {
		res := m.ApplyOne(ctx, "b1", "")
		assert.False(t, res.Success)
	}

	rec, err := store.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, state.RequiresManualIntervention, rec.Status)
	assert.Equal(t, state.MaxRetries, rec.RetryCount)
}

var assertableErr = assertErr("strategy selection failed")

type assertErr string

func (e assertErr) Error() string { return string(e) }

func TestApplyOneSurfacesUnsupportedProviderWithoutMutatingState(t *testing.T) {
	branch := testBranch("b1")
	reg := registry.NewFakeRegistry(branch)
	store := state.NewFakeStore()
	sel := func(provider.Tag) (provider.Strategy, error) { return nil, provider.ErrUnsupportedProvider }
	m := manager.NewWithSelector(reg, store, catalog.Default, corelog.NewNoopLogger(), sel)
	ctx := context.Background()

	res := m.ApplyOne(ctx, "b1", "")
	assert.False(t, res.Success)
	assert.Equal(t, provider.ErrUnsupportedProvider.Error(), res.Error)

	rec, err := store.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, state.Pending, rec.Status)
	assert.Equal(t, 0, rec.RetryCount)

	// The lock must still have been released despite the early return.
	_, err = store.Acquire(ctx, "b1")
	assert.NoError(t, err)
}

func TestApplyOneRejectsTargetPrecedingLastApplied(t *testing.T) {
	branch := withConnDescriptor(t, testBranch("b1"))
	m, store := newTestManager(t, branch)
	ctx := context.Background()

	require.True(t, m.ApplyOne(ctx, "b1", "").Success)

	res := m.ApplyOne(ctx, "b1", "m0001_initial_schema")
	assert.False(t, res.Success)
	assert.Equal(t, "target precedes last applied id; use rollback", res.Error)

	rec, err := store.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, state.Completed, rec.Status)
	assert.Equal(t, catalog.Default.Head(), rec.LastAppliedID)
}

func TestRollbackLastSurfacesUnsupportedProviderWithoutMutatingState(t *testing.T) {
	branch := testBranch("b1")
	reg := registry.NewFakeRegistry(branch)
	store := state.NewFakeStore()
	sel := func(provider.Tag) (provider.Strategy, error) { return nil, provider.ErrUnsupportedProvider }
	m := manager.NewWithSelector(reg, store, catalog.Default, corelog.NewNoopLogger(), sel)
	ctx := context.Background()

	res := m.RollbackLast(ctx, "b1")
	assert.False(t, res.Success)

	rec, err := store.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, state.Pending, rec.Status)
	assert.Equal(t, 0, rec.RetryCount)
}
