// SPDX-License-Identifier: Apache-2.0

package provider_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nimbusdata/branchroll/pkg/provider"
)

func TestQuoteIdent(t *testing.T) {
	tests := []struct {
		tag      provider.Tag
		name     string
		expected string
	}{
		{provider.PostgreSQL, "orders", `"orders"`},
		{provider.SQLite, "orders", `"orders"`},
		{provider.SQLServer, "orders", `[orders]`},
		{provider.MySQL, "orders", "`orders`"},
		{provider.PostgreSQL, `weird"name`, `"weird""name"`},
		{provider.SQLServer, "weird]name", `[weird]]name]`},
		{provider.MySQL, "weird`name", "`weird``name`"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, provider.QuoteIdent(tt.tag, tt.name))
	}
}

func TestPlaceholder(t *testing.T) {
	assert.Equal(t, "$1", provider.Placeholder(provider.PostgreSQL, 1))
	assert.Equal(t, "$2", provider.Placeholder(provider.PostgreSQL, 2))
	assert.Equal(t, "@p1", provider.Placeholder(provider.SQLServer, 1))
	assert.Equal(t, "?", provider.Placeholder(provider.MySQL, 1))
	assert.Equal(t, "?", provider.Placeholder(provider.SQLite, 1))
}
