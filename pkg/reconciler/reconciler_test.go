// SPDX-License-Identifier: Apache-2.0

package reconciler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

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

func testManager(t *testing.T) *manager.Manager {
	t.Helper()
	branch := registry.Branch{
		ID:                   "b1",
		Code:                 "b1",
		Active:               true,
		ProviderTag:          provider.SQLite,
		ConnectionDescriptor: filepath.Join(t.TempDir(), "branch.db"),
	}
	reg := registry.NewFakeRegistry(branch)
	store := state.NewFakeStore()
	sel := func(provider.Tag) (provider.Strategy, error) { return sqlitestrategy.New(), nil }
	return manager.NewWithSelector(reg, store, catalog.Default, corelog.NewNoopLogger(), sel)
}

func TestTickDrivesApplyAllAcrossActiveBranches(t *testing.T) {
	m := testManager(t)
	r := New(m, corelog.NewNoopLogger())

	r.tick(context.Background())

	rec, err := m.History(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, state.Completed, rec.Status)
	assert.Empty(t, rec.Pending)
}

func TestRunExitsDuringStartupDelayOnCancellation(t *testing.T) {
	m := testManager(t)
	r := New(m, corelog.NewNoopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not exit promptly on a cancelled context")
	}

	// A cancelled-before-start context must not have run a tick.
	rec, err := m.History(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, state.Pending, rec.Status)
}
