// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nimbusdata/branchroll/pkg/provider"
)

// columnExists is the existence predicate forward transforms use before
// adding a column, so partial prior application is recoverable. Network
// backends query information_schema; SQLite reads PRAGMA table_info.
func columnExists(ctx context.Context, conn provider.Conn, tag provider.Tag, table, column string) (bool, error) {
	var query string
	var args []any

	switch tag {
	case provider.PostgreSQL:
		query = `SELECT 1 FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = $1 AND column_name = $2`
		args = []any{table, column}
	case provider.MySQL:
		query = `SELECT 1 FROM information_schema.columns WHERE table_schema = database() AND table_name = ? AND column_name = ?`
		args = []any{table, column}
	case provider.SQLServer:
		query = `SELECT 1 FROM information_schema.columns WHERE table_name = @p1 AND column_name = @p2`
		args = []any{table, column}
	case provider.SQLite:
		rows, err := conn.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", provider.QuoteIdent(provider.SQLite, table)))
		if err != nil {
			return false, err
		}
		defer rows.Close()
		for rows.Next() {
			var cid int
			var name, colType string
			var notNull, pk int
			var dflt any
			if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
				return false, err
			}
			if name == column {
				return true, nil
			}
		}
		return false, rows.Err()
	default:
		return false, fmt.Errorf("columnExists: unsupported tag %q", tag)
	}

	var exists int
	err := conn.QueryRowContext(ctx, query, args...).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// tableExists mirrors columnExists for whole tables. SQL Server's dialect has
// no CREATE TABLE IF NOT EXISTS, so m0001's incremental path (for a branch
// bootstrapped before this unit existed) guards on this instead.
func tableExists(ctx context.Context, conn provider.Conn, tag provider.Tag, table string) (bool, error) {
	var query string
	var args []any

	switch tag {
	case provider.PostgreSQL:
		query = `SELECT 1 FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1`
		args = []any{table}
	case provider.MySQL:
		query = `SELECT 1 FROM information_schema.tables WHERE table_schema = database() AND table_name = ?`
		args = []any{table}
	case provider.SQLServer:
		query = `SELECT 1 FROM information_schema.tables WHERE table_name = @p1`
		args = []any{table}
	case provider.SQLite:
		query = `SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?`
		args = []any{table}
	default:
		return false, fmt.Errorf("tableExists: unsupported tag %q", tag)
	}

	var exists int
	err := conn.QueryRowContext(ctx, query, args...).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
