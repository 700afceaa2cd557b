// SPDX-License-Identifier: Apache-2.0

// Package sqlitestrategy implements the Strategy capability set for
// branches backed by a file-resident SQLite database, using the pure-Go
// modernc.org/sqlite driver so the core needs no cgo toolchain.
package sqlitestrategy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/nimbusdata/branchroll/pkg/provider"
)

const driverName = "sqlite"

// Strategy is the SQLite backend.
type Strategy struct{}

func New() *Strategy { return &Strategy{} }

func (s *Strategy) Tag() provider.Tag { return provider.SQLite }

func (s *Strategy) CanConnect(ctx context.Context, connStr string) bool {
	db, err := sql.Open(driverName, connStr)
	if err != nil {
		return false
	}
	defer db.Close()
	return db.PingContext(ctx) == nil
}

// Open establishes the live handle. sql.Open is lazy, so the database file
// is created on the handle's first use; EnsureDatabase creates it eagerly.
func (s *Strategy) Open(ctx context.Context, connStr string) (provider.Conn, error) {
	db, err := sql.Open(driverName, connStr)
	if err != nil {
		return nil, fmt.Errorf("sqlitestrategy: open %s: %w", connStr, err)
	}
	return &provider.RetryableConn{DB: db, IsTransient: isTransient}, nil
}

// EnsureDatabase touches the underlying file into existence if it is
// missing, since SQLite has no separate create-database step.
func (s *Strategy) EnsureDatabase(ctx context.Context, connStr string) error {
	db, err := sql.Open(driverName, connStr)
	if err != nil {
		return err
	}
	defer db.Close()
	_, err = db.ExecContext(ctx, "PRAGMA user_version")
	return err
}

func (s *Strategy) DatabaseExists(ctx context.Context, connStr string) (bool, error) {
	path := filePath(connStr)
	if path == "" {
		return false, nil
	}
	_, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func filePath(connStr string) string {
	if connStr == ":memory:" || strings.HasPrefix(connStr, "file::memory:") {
		return ""
	}
	path := connStr
	if i := strings.Index(path, "?"); i >= 0 {
		path = path[:i]
	}
	return strings.TrimPrefix(path, "file:")
}

func (s *Strategy) AppliedIDs(ctx context.Context, conn provider.Conn) ([]string, error) {
	exists, err := hasHistoryTable(ctx, conn)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return provider.ScanIDColumn(ctx, conn, provider.SelectHistoryIDsSQL(provider.SQLite))
}

func hasHistoryTable(ctx context.Context, conn provider.Conn) (bool, error) {
	var name string
	err := conn.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name=?", provider.HistoryTableName).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Strategy) PendingIDs(ctx context.Context, conn provider.Conn, cat provider.CatalogView) ([]string, error) {
	applied, err := s.AppliedIDs(ctx, conn)
	if err != nil {
		return nil, err
	}
	return provider.PendingFromApplied(cat.AllIDs(), applied), nil
}

func (s *Strategy) ApplyForward(ctx context.Context, conn provider.Conn, targetID string, cat provider.CatalogView) error {
	if _, err := conn.ExecContext(ctx, provider.CreateHistoryTableDDL(provider.SQLite)); err != nil {
		return fmt.Errorf("sqlitestrategy: create history table: %w", err)
	}
	applied, err := s.AppliedIDs(ctx, conn)
	if err != nil {
		return err
	}
	insertSQL := provider.InsertHistoryRowSQL(provider.SQLite)
	return provider.ApplyIncremental(ctx, conn, provider.SQLite, cat, applied, targetID, func(id string) error {
		_, err := conn.ExecContext(ctx, insertSQL, id, cat.ProductVersion())
		return err
	})
}

func (s *Strategy) ApplyReverse(ctx context.Context, conn provider.Conn, targetID string, cat provider.CatalogView) error {
	applied, err := s.AppliedIDs(ctx, conn)
	if err != nil {
		return err
	}
	deleteSQL := provider.DeleteHistoryRowSQL(provider.SQLite)
	return provider.ApplyReverseIncremental(ctx, conn, provider.SQLite, cat, applied, targetID, func(id string) error {
		_, err := conn.ExecContext(ctx, deleteSQL, id)
		return err
	})
}

func (s *Strategy) ValidateSchema(ctx context.Context, conn provider.Conn, coreTables []string) bool {
	for _, table := range coreTables {
		var name string
		err := conn.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			return false
		}
	}
	return true
}

func (s *Strategy) QuoteIdent(name string) string {
	return provider.QuoteIdent(provider.SQLite, name)
}

// isTransient reports SQLITE_BUSY (database locked by another connection),
// the only transient condition a single-file SQLite database can raise.
func isTransient(err error) bool {
	return err != nil && strings.Contains(err.Error(), "SQLITE_BUSY")
}
