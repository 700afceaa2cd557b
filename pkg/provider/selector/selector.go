// SPDX-License-Identifier: Apache-2.0

// Package selector implements the process-wide Strategy Selector: a pure
// function of a branch's provider tag. It is a separate
// package from pkg/provider specifically so it can import every concrete
// strategy implementation without creating an import cycle back into
// pkg/provider, which those implementations themselves import.
package selector

import (
	"fmt"

	"github.com/nimbusdata/branchroll/pkg/provider"
	"github.com/nimbusdata/branchroll/pkg/provider/mysqlstrategy"
	"github.com/nimbusdata/branchroll/pkg/provider/postgresstrategy"
	"github.com/nimbusdata/branchroll/pkg/provider/sqlitestrategy"
	"github.com/nimbusdata/branchroll/pkg/provider/sqlserverstrategy"
)

// Select returns the Strategy for tag, or ErrUnsupportedProvider for
// anything outside the four known backends.
func Select(tag provider.Tag) (provider.Strategy, error) {
	switch tag {
	case provider.SQLite:
		return sqlitestrategy.New(), nil
	case provider.PostgreSQL:
		return postgresstrategy.New(), nil
	case provider.MySQL:
		return mysqlstrategy.New(), nil
	case provider.SQLServer:
		return sqlserverstrategy.New(), nil
	default:
		return nil, fmt.Errorf("%w: %q", provider.ErrUnsupportedProvider, tag)
	}
}
