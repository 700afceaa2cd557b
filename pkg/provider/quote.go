// SPDX-License-Identifier: Apache-2.0

package provider

import "strings"

// QuoteIdent quotes a bare identifier per the backend's convention: double
// quotes for PostgreSQL and SQLite, brackets for SQL Server, backticks for
// MySQL. Every raw-SQL emission inside a strategy or a
// catalog unit must route identifiers through this function (or the
// strategy's own QuoteIdent, which dispatches here) to survive
// case-sensitivity differences across backends.
func QuoteIdent(tag Tag, name string) string {
	switch tag {
	case PostgreSQL, SQLite:
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	case SQLServer:
		return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
	case MySQL:
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	default:
		return name
	}
}
