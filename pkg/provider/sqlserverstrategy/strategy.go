// SPDX-License-Identifier: Apache-2.0

// Package sqlserverstrategy implements the Strategy capability set for
// branches backed by SQL Server. Its defining feature is the
// fresh-database bootstrap path (bootstrap.go): a brand-new SQL Server
// branch never replays forward transforms one-by-one, since the authored
// transforms target the other three backends' dialect and fail against
// SQL Server's.
package sqlserverstrategy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	mssql "github.com/microsoft/go-mssqldb"

	"github.com/nimbusdata/branchroll/pkg/provider"
)

const driverName = "sqlserver"

// SQL Server error numbers this strategy inspects.
const (
	errDeadlockVictim    = 1205
	errInvalidObjectName = 208
	errCannotOpenDB      = 4060
)

type Strategy struct{}

func New() *Strategy { return &Strategy{} }

func (s *Strategy) Tag() provider.Tag { return provider.SQLServer }

func (s *Strategy) CanConnect(ctx context.Context, connStr string) bool {
	db, err := sql.Open(driverName, connStr)
	if err != nil {
		return false
	}
	defer db.Close()
	return db.PingContext(ctx) == nil
}

func (s *Strategy) Open(ctx context.Context, connStr string) (provider.Conn, error) {
	db, err := sql.Open(driverName, connStr)
	if err != nil {
		return nil, fmt.Errorf("sqlserverstrategy: open: %w", err)
	}
	return &provider.RetryableConn{DB: db, IsTransient: isTransient}, nil
}

// EnsureDatabase is a no-op: SQL Server is a network backend and the core
// never creates one.
func (s *Strategy) EnsureDatabase(ctx context.Context, connStr string) error {
	return nil
}

func (s *Strategy) DatabaseExists(ctx context.Context, connStr string) (bool, error) {
	db, err := sql.Open(driverName, connStr)
	if err != nil {
		return false, nil
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		var mErr mssql.Error
		if errors.As(err, &mErr) && mErr.Number == errCannotOpenDB {
			return false, nil
		}
		return false, nil
	}
	return true, nil
}

func (s *Strategy) AppliedIDs(ctx context.Context, conn provider.Conn) ([]string, error) {
	ids, err := provider.ScanIDColumn(ctx, conn, provider.SelectHistoryIDsSQL(provider.SQLServer))
	if err != nil {
		var mErr mssql.Error
		if errors.As(err, &mErr) && mErr.Number == errInvalidObjectName {
			return nil, nil
		}
		return nil, err
	}
	return ids, nil
}

func (s *Strategy) PendingIDs(ctx context.Context, conn provider.Conn, cat provider.CatalogView) ([]string, error) {
	applied, err := s.AppliedIDs(ctx, conn)
	if err != nil {
		return nil, err
	}
	return provider.PendingFromApplied(cat.AllIDs(), applied), nil
}

// ApplyForward dispatches to Bootstrap when the branch has no applied
// migrations yet (Bootstrap applies every catalog unit and ignores
// targetID); otherwise it
// delegates to the Catalog's standard incremental applier, same as the
// other three providers, since a unit's SQLServer Up branch already exists
// for any migration authored after a branch's bootstrap snapshot.
func (s *Strategy) ApplyForward(ctx context.Context, conn provider.Conn, targetID string, cat provider.CatalogView) error {
	applied, err := s.AppliedIDs(ctx, conn)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		return Bootstrap(ctx, conn, cat)
	}

	insertSQL := provider.InsertHistoryRowSQL(provider.SQLServer)
	return provider.ApplyIncremental(ctx, conn, provider.SQLServer, cat, applied, targetID, func(id string) error {
		_, err := conn.ExecContext(ctx, insertSQL, id, cat.ProductVersion())
		return err
	})
}

func (s *Strategy) ApplyReverse(ctx context.Context, conn provider.Conn, targetID string, cat provider.CatalogView) error {
	applied, err := s.AppliedIDs(ctx, conn)
	if err != nil {
		return err
	}
	deleteSQL := provider.DeleteHistoryRowSQL(provider.SQLServer)
	return provider.ApplyReverseIncremental(ctx, conn, provider.SQLServer, cat, applied, targetID, func(id string) error {
		_, err := conn.ExecContext(ctx, deleteSQL, id)
		return err
	})
}

func (s *Strategy) ValidateSchema(ctx context.Context, conn provider.Conn, coreTables []string) bool {
	for _, table := range coreTables {
		var exists int
		err := conn.QueryRowContext(ctx,
			`SELECT 1 FROM information_schema.tables WHERE table_name = @p1`, table).Scan(&exists)
		if err != nil {
			return false
		}
	}
	return true
}

func (s *Strategy) QuoteIdent(name string) string {
	return provider.QuoteIdent(provider.SQLServer, name)
}

// isTransient reports a deadlock victim, the transient condition SQL Server
// raises under lock contention.
func isTransient(err error) bool {
	var mErr mssql.Error
	return errors.As(err, &mErr) && mErr.Number == errDeadlockVictim
}
