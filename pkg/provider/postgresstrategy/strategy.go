// SPDX-License-Identifier: Apache-2.0

// Package postgresstrategy implements the Strategy capability set for
// branches backed by PostgreSQL, using lib/pq's error-code handling for
// retry classification.
package postgresstrategy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/nimbusdata/branchroll/pkg/provider"
)

const driverName = "postgres"

// lockNotAvailable is the PostgreSQL error code for lock_timeout and
// lock_not_available — a transient condition worth retrying.
const lockNotAvailable pq.ErrorCode = "55P03"

// undefinedTable / invalidCatalogName surface a missing history table /
// missing database respectively.
const (
	undefinedTable      pq.ErrorCode = "42P01"
	invalidCatalogName  pq.ErrorCode = "3D000"
)

type Strategy struct{}

func New() *Strategy { return &Strategy{} }

func (s *Strategy) Tag() provider.Tag { return provider.PostgreSQL }

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
		return nil, fmt.Errorf("postgresstrategy: open: %w", err)
	}
	return &provider.RetryableConn{DB: db, IsTransient: isTransient}, nil
}

// EnsureDatabase is a deliberate no-op: PostgreSQL is a network backend, and
// the core never attempts to create a network database — branch
// provisioning is the registry collaborator's responsibility.
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
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == invalidCatalogName {
			return false, nil
		}
		return false, nil
	}
	return true, nil
}

func (s *Strategy) AppliedIDs(ctx context.Context, conn provider.Conn) ([]string, error) {
	ids, err := provider.ScanIDColumn(ctx, conn, provider.SelectHistoryIDsSQL(provider.PostgreSQL))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == undefinedTable {
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
	if _, err := conn.ExecContext(ctx, provider.CreateHistoryTableDDL(provider.PostgreSQL)); err != nil {
		return fmt.Errorf("postgresstrategy: create history table: %w", err)
	}
	applied, err := s.AppliedIDs(ctx, conn)
	if err != nil {
		return err
	}
	insertSQL := provider.InsertHistoryRowSQL(provider.PostgreSQL)
	return provider.ApplyIncremental(ctx, conn, provider.PostgreSQL, cat, applied, targetID, func(id string) error {
		_, err := conn.ExecContext(ctx, insertSQL, id, cat.ProductVersion())
		return err
	})
}

func (s *Strategy) ApplyReverse(ctx context.Context, conn provider.Conn, targetID string, cat provider.CatalogView) error {
	applied, err := s.AppliedIDs(ctx, conn)
	if err != nil {
		return err
	}
	deleteSQL := provider.DeleteHistoryRowSQL(provider.PostgreSQL)
	return provider.ApplyReverseIncremental(ctx, conn, provider.PostgreSQL, cat, applied, targetID, func(id string) error {
		_, err := conn.ExecContext(ctx, deleteSQL, id)
		return err
	})
}

func (s *Strategy) ValidateSchema(ctx context.Context, conn provider.Conn, coreTables []string) bool {
	for _, table := range coreTables {
		var exists bool
		err := conn.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1)`,
			table).Scan(&exists)
		if err != nil || !exists {
			return false
		}
	}
	return true
}

func (s *Strategy) QuoteIdent(name string) string {
	return provider.QuoteIdent(provider.PostgreSQL, name)
}

func isTransient(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == lockNotAvailable
}
