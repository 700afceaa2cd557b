// SPDX-License-Identifier: Apache-2.0

// Package mysqlstrategy implements the Strategy capability set for branches
// backed by MySQL.
package mysqlstrategy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/nimbusdata/branchroll/pkg/provider"
)

const driverName = "mysql"

// MySQL error numbers this strategy inspects, per the driver's
// *mysql.MySQLError.Number field.
const (
	erLockWaitTimeout = 1205
	erLockDeadlock    = 1213
	erNoSuchTable     = 1146
	erBadDB           = 1049
)

type Strategy struct{}

func New() *Strategy { return &Strategy{} }

func (s *Strategy) Tag() provider.Tag { return provider.MySQL }

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
		return nil, fmt.Errorf("mysqlstrategy: open: %w", err)
	}
	return &provider.RetryableConn{DB: db, IsTransient: isTransient}, nil
}

// EnsureDatabase is a no-op: MySQL is a network backend and the core never
// creates one.
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
		var mErr *mysql.MySQLError
		if errors.As(err, &mErr) && mErr.Number == erBadDB {
			return false, nil
		}
		return false, nil
	}
	return true, nil
}

func (s *Strategy) AppliedIDs(ctx context.Context, conn provider.Conn) ([]string, error) {
	ids, err := provider.ScanIDColumn(ctx, conn, provider.SelectHistoryIDsSQL(provider.MySQL))
	if err != nil {
		var mErr *mysql.MySQLError
		if errors.As(err, &mErr) && mErr.Number == erNoSuchTable {
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

func (s *Strategy) ApplyForward(ctx context.Context, conn provider.Conn, targetID string, cat provider.CatalogView) error {
	if _, err := conn.ExecContext(ctx, provider.CreateHistoryTableDDL(provider.MySQL)); err != nil {
		return fmt.Errorf("mysqlstrategy: create history table: %w", err)
	}
	applied, err := s.AppliedIDs(ctx, conn)
	if err != nil {
		return err
	}
	insertSQL := provider.InsertHistoryRowSQL(provider.MySQL)
	return provider.ApplyIncremental(ctx, conn, provider.MySQL, cat, applied, targetID, func(id string) error {
		_, err := conn.ExecContext(ctx, insertSQL, id, cat.ProductVersion())
		return err
	})
}

func (s *Strategy) ApplyReverse(ctx context.Context, conn provider.Conn, targetID string, cat provider.CatalogView) error {
	applied, err := s.AppliedIDs(ctx, conn)
	if err != nil {
		return err
	}
	deleteSQL := provider.DeleteHistoryRowSQL(provider.MySQL)
	return provider.ApplyReverseIncremental(ctx, conn, provider.MySQL, cat, applied, targetID, func(id string) error {
		_, err := conn.ExecContext(ctx, deleteSQL, id)
		return err
	})
}

func (s *Strategy) ValidateSchema(ctx context.Context, conn provider.Conn, coreTables []string) bool {
	for _, table := range coreTables {
		var exists int
		err := conn.QueryRowContext(ctx,
			`SELECT 1 FROM information_schema.tables WHERE table_schema = database() AND table_name = ?`,
			table).Scan(&exists)
		if err != nil {
			return false
		}
	}
	return true
}

func (s *Strategy) QuoteIdent(name string) string {
	return provider.QuoteIdent(provider.MySQL, name)
}

// isTransient reports a lock wait timeout or deadlock victim, the two
// transient MySQL error numbers this strategy retries on.
func isTransient(err error) bool {
	var mErr *mysql.MySQLError
	if !errors.As(err, &mErr) {
		return false
	}
	return mErr.Number == erLockWaitTimeout || mErr.Number == erLockDeadlock
}
