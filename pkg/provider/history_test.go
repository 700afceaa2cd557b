// SPDX-License-Identifier: Apache-2.0

package provider_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nimbusdata/branchroll/pkg/provider"
)

func TestCreateHistoryTableDDLQuotesIdentifiers(t *testing.T) {
	ddl := provider.CreateHistoryTableDDL(provider.PostgreSQL)
	assert.Contains(t, ddl, `"branchroll_migrations"`)
	assert.Contains(t, ddl, "CREATE TABLE IF NOT EXISTS")

	ddl = provider.CreateHistoryTableDDL(provider.MySQL)
	assert.Contains(t, ddl, "`branchroll_migrations`")
}

func TestInsertHistoryRowSQLUsesTagPlaceholders(t *testing.T) {
	assert.Contains(t, provider.InsertHistoryRowSQL(provider.PostgreSQL), "$1")
	assert.Contains(t, provider.InsertHistoryRowSQL(provider.PostgreSQL), "$2")
	assert.Contains(t, provider.InsertHistoryRowSQL(provider.SQLServer), "@p1")
	assert.Contains(t, provider.InsertHistoryRowSQL(provider.MySQL), "?")
}

func TestDeleteHistoryRowSQL(t *testing.T) {
	stmt := provider.DeleteHistoryRowSQL(provider.PostgreSQL)
	assert.Contains(t, stmt, "DELETE FROM")
	assert.Contains(t, stmt, "$1")
}

func TestSelectHistoryIDsSQLOrdersAscending(t *testing.T) {
	stmt := provider.SelectHistoryIDsSQL(provider.SQLite)
	assert.Contains(t, stmt, "ORDER BY")
	assert.Contains(t, stmt, "ASC")
}
