// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"
	"fmt"
)

// HistoryTableName is the per-branch history table name, identical across
// providers.
const HistoryTableName = "branchroll_migrations"

// CreateHistoryTableDDL returns the CREATE TABLE IF NOT EXISTS statement for
// the two-column history table, in tag's dialect. SQL Server
// is not covered here: its bootstrap path creates the table explicitly with
// an IF NOT EXISTS guard around the whole statement rather than relying on
// CREATE TABLE IF NOT EXISTS, which older SQL Server editions lack.
func CreateHistoryTableDDL(tag Tag) string {
	idType := "VARCHAR(150)"
	versionType := "VARCHAR(32)"
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		%s %s PRIMARY KEY,
		%s %s NOT NULL
	)`, QuoteIdent(tag, HistoryTableName), QuoteIdent(tag, "migration_id"), idType, QuoteIdent(tag, "product_version"), versionType)
}

// InsertHistoryRowSQL returns the parameterized insert statement for
// recording one applied migration, using tag's placeholder convention.
func InsertHistoryRowSQL(tag Tag) string {
	return fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (%s, %s)",
		QuoteIdent(tag, HistoryTableName), QuoteIdent(tag, "migration_id"), QuoteIdent(tag, "product_version"),
		Placeholder(tag, 1), Placeholder(tag, 2))
}

// DeleteHistoryRowSQL returns the parameterized delete statement for
// removing one migration's history row, used by reverse apply.
func DeleteHistoryRowSQL(tag Tag) string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s = %s",
		QuoteIdent(tag, HistoryTableName), QuoteIdent(tag, "migration_id"), Placeholder(tag, 1))
}

// SelectHistoryIDsSQL returns the statement AppliedIDs uses to read back
// every applied id in ascending (catalog) order.
func SelectHistoryIDsSQL(tag Tag) string {
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY %s ASC",
		QuoteIdent(tag, "migration_id"), QuoteIdent(tag, HistoryTableName), QuoteIdent(tag, "migration_id"))
}

// Placeholder returns the positional bind placeholder for tag; n is 1-based.
func Placeholder(tag Tag, n int) string {
	switch tag {
	case PostgreSQL:
		return fmt.Sprintf("$%d", n)
	case SQLServer:
		return fmt.Sprintf("@p%d", n)
	default:
		return "?"
	}
}

// ScanIDColumn runs query (expected to return a single migration_id column,
// ordered ascending) and collects the results. Shared by every strategy's
// AppliedIDs implementation.
func ScanIDColumn(ctx context.Context, conn Conn, query string, args ...any) ([]string, error) {
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
