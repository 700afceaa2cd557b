// SPDX-License-Identifier: Apache-2.0

package sqlitestrategy_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusdata/branchroll/pkg/catalog"
	"github.com/nimbusdata/branchroll/pkg/provider"
	"github.com/nimbusdata/branchroll/pkg/provider/sqlitestrategy"
)

func TestSQLiteStrategyFullLifecycle(t *testing.T) {
	ctx := context.Background()
	strategy := sqlitestrategy.New()
	assert.Equal(t, provider.SQLite, strategy.Tag())

	dbPath := filepath.Join(t.TempDir(), "branch.db")

	exists, err := strategy.DatabaseExists(ctx, dbPath)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, strategy.EnsureDatabase(ctx, dbPath))

	exists, err = strategy.DatabaseExists(ctx, dbPath)
	require.NoError(t, err)
	assert.True(t, exists)

	assert.True(t, strategy.CanConnect(ctx, dbPath))

	conn, err := strategy.Open(ctx, dbPath)
	require.NoError(t, err)
	defer conn.Close()

	applied, err := strategy.AppliedIDs(ctx, conn)
	require.NoError(t, err)
	assert.Empty(t, applied)

	pending, err := strategy.PendingIDs(ctx, conn, catalog.Default)
	require.NoError(t, err)
	assert.Equal(t, catalog.Default.AllIDs(), pending)

	require.NoError(t, strategy.ApplyForward(ctx, conn, "", catalog.Default))

	applied, err = strategy.AppliedIDs(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, catalog.Default.AllIDs(), applied)

	pending, err = strategy.PendingIDs(ctx, conn, catalog.Default)
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.True(t, strategy.ValidateSchema(ctx, conn, catalog.Default.CoreTables()))

	require.NoError(t, strategy.ApplyReverse(ctx, conn, "", catalog.Default))

	applied, err = strategy.AppliedIDs(ctx, conn)
	require.NoError(t, err)
	assert.Empty(t, applied)

	assert.Equal(t, `"widgets"`, strategy.QuoteIdent("widgets"))
}

func TestSQLiteStrategyApplyForwardToPartialTarget(t *testing.T) {
	ctx := context.Background()
	strategy := sqlitestrategy.New()

	conn, err := strategy.Open(ctx, ":memory:")
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, strategy.ApplyForward(ctx, conn, "m0002_add_loyalty_points", catalog.Default))

	applied, err := strategy.AppliedIDs(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, []string{"m0001_initial_schema", "m0002_add_loyalty_points"}, applied)
}

func TestSQLiteStrategyValidateSchemaFailsOnMissingTable(t *testing.T) {
	ctx := context.Background()
	strategy := sqlitestrategy.New()

	conn, err := strategy.Open(ctx, ":memory:")
	require.NoError(t, err)
	defer conn.Close()

	assert.False(t, strategy.ValidateSchema(ctx, conn, catalog.Default.CoreTables()))
}
