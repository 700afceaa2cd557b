// SPDX-License-Identifier: Apache-2.0

package sqlserverstrategy

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/nimbusdata/branchroll/pkg/provider"
)

// goBatchSeparator matches a line whose entire content is the token GO,
// case-insensitive — SQL Server's client-side batch separator.
var goBatchSeparator = regexp.MustCompile(`(?im)^\s*GO\s*$`)

// Bootstrap materializes the full target schema for a fresh SQL Server
// branch in one shot and synthesizes its history rows, instead of replaying
// forward transforms one-by-one.
func Bootstrap(ctx context.Context, conn provider.Conn, cat provider.CatalogView) error {
	pending := cat.AllIDs()

	var script strings.Builder
	for _, id := range pending {
		frag := cat.ForwardScript(id, provider.SQLServer)
		if frag == "" {
			return fmt.Errorf("sqlserverstrategy: bootstrap: %s has no SQL Server script", id)
		}
		script.WriteString(frag)
		script.WriteString("\nGO\n")
	}

	for _, batch := range goBatchSeparator.Split(script.String(), -1) {
		batch = strings.TrimSpace(batch)
		if batch == "" {
			continue
		}
		if _, err := conn.ExecContext(ctx, batch); err != nil {
			return fmt.Errorf("sqlserverstrategy: bootstrap batch: %w", err)
		}
	}

	if err := createHistoryTable(ctx, conn); err != nil {
		return err
	}

	for _, id := range pending {
		if err := insertHistoryRowIfMissing(ctx, conn, id, cat.ProductVersion()); err != nil {
			return err
		}
	}

	return nil
}

// createHistoryTable materializes the history table with an IF NOT EXISTS
// guard wrapped around the whole statement, since older SQL Server editions
// lack CREATE TABLE IF NOT EXISTS.
func createHistoryTable(ctx context.Context, conn provider.Conn) error {
	stmt := fmt.Sprintf(`
IF NOT EXISTS (SELECT * FROM sys.tables WHERE name = '%s')
CREATE TABLE %s (
	%s NVARCHAR(150) PRIMARY KEY,
	%s NVARCHAR(32) NOT NULL
)`, provider.HistoryTableName, provider.QuoteIdent(provider.SQLServer, provider.HistoryTableName),
		provider.QuoteIdent(provider.SQLServer, "migration_id"), provider.QuoteIdent(provider.SQLServer, "product_version"))
	if _, err := conn.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("sqlserverstrategy: create history table: %w", err)
	}
	return nil
}

// insertHistoryRowIfMissing is individually guarded so Bootstrap is
// re-runnable against a branch that failed partway through a prior attempt.
func insertHistoryRowIfMissing(ctx context.Context, conn provider.Conn, id, productVersion string) error {
	stmt := fmt.Sprintf(`
IF NOT EXISTS (SELECT 1 FROM %s WHERE %s = @p1)
INSERT INTO %s (%s, %s) VALUES (@p1, @p2)`,
		provider.QuoteIdent(provider.SQLServer, provider.HistoryTableName), provider.QuoteIdent(provider.SQLServer, "migration_id"),
		provider.QuoteIdent(provider.SQLServer, provider.HistoryTableName),
		provider.QuoteIdent(provider.SQLServer, "migration_id"), provider.QuoteIdent(provider.SQLServer, "product_version"))
	if _, err := conn.ExecContext(ctx, stmt, id, productVersion); err != nil {
		return fmt.Errorf("sqlserverstrategy: insert history row %s: %w", id, err)
	}
	return nil
}
