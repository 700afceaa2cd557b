// SPDX-License-Identifier: Apache-2.0

package sqlitestrategy

import (
	"context"
	"fmt"
	"strings"

	"github.com/nimbusdata/branchroll/pkg/provider"
)

// RebuildTable implements the SQLite table-rebuild pattern reverse
// transforms need when dropping a column: create-new / copy / drop-old /
// rename / re-create indexes, with foreign-key enforcement toggled off
// around the sequence. createNewTableSQL must create a table
// named tmpTable with the desired post-rebuild shape; copyColumns lists the
// columns preserved from oldTable into tmpTable, in order.
func RebuildTable(ctx context.Context, conn provider.Conn, oldTable, tmpTable, createNewTableSQL string, copyColumns, recreateIndexSQL []string) error {
	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return fmt.Errorf("disable foreign_keys: %w", err)
	}
	defer conn.ExecContext(ctx, "PRAGMA foreign_keys = ON") //nolint:errcheck

	if _, err := conn.ExecContext(ctx, createNewTableSQL); err != nil {
		return fmt.Errorf("create rebuild table: %w", err)
	}

	cols := strings.Join(quoteAll(copyColumns), ", ")
	copySQL := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s",
		provider.QuoteIdent(provider.SQLite, tmpTable), cols, cols, provider.QuoteIdent(provider.SQLite, oldTable))
	if _, err := conn.ExecContext(ctx, copySQL); err != nil {
		return fmt.Errorf("copy rows into rebuild table: %w", err)
	}

	if _, err := conn.ExecContext(ctx, "DROP TABLE "+provider.QuoteIdent(provider.SQLite, oldTable)); err != nil {
		return fmt.Errorf("drop old table: %w", err)
	}

	renameSQL := fmt.Sprintf("ALTER TABLE %s RENAME TO %s",
		provider.QuoteIdent(provider.SQLite, tmpTable), provider.QuoteIdent(provider.SQLite, oldTable))
	if _, err := conn.ExecContext(ctx, renameSQL); err != nil {
		return fmt.Errorf("rename rebuild table: %w", err)
	}

	for _, stmt := range recreateIndexSQL {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("recreate index: %w", err)
		}
	}

	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_key_check"); err != nil {
		return fmt.Errorf("foreign_key_check after rebuild: %w", err)
	}

	return nil
}

func quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = provider.QuoteIdent(provider.SQLite, n)
	}
	return out
}
