// SPDX-License-Identifier: Apache-2.0

// Package provider defines the capability set that every backend-specific
// migration strategy implements. The process-wide selector that picks one
// by provider tag lives in pkg/provider/selector.
package provider

import (
	"context"
	"database/sql"
	"errors"
)

// Tag identifies a branch's relational backend.
type Tag string

const (
	SQLite     Tag = "sqlite"
	SQLServer  Tag = "sqlserver"
	MySQL      Tag = "mysql"
	PostgreSQL Tag = "postgres"
)

// ErrUnsupportedProvider is returned by Select for any tag outside the four
// known backends.
var ErrUnsupportedProvider = errors.New("provider unsupported")

// Conn is the live handle strategies and catalog units operate against. It is
// satisfied by *sql.DB directly and by RetryableConn.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	Close() error
}

// CatalogView is the read-only slice of pkg/catalog.Catalog that strategies
// need. It exists so this package never has to import pkg/catalog (which in
// turn imports this package for Conn/Tag).
type CatalogView interface {
	// AllIDs returns every migration id in append order.
	AllIDs() []string
	// Head returns the greatest (most recent) migration id, or "" if empty.
	Head() string
	// ProductVersion is the tag written into every history row.
	ProductVersion() string
	// Apply runs the forward transform for id against conn.
	Apply(ctx context.Context, id string, conn Conn, tag Tag) error
	// Revert runs the reverse transform for id against conn.
	Revert(ctx context.Context, id string, conn Conn, tag Tag) error
	// ForwardScript returns the SQL Server bootstrap script fragment for id,
	// used only by the SQL Server fresh-bootstrap path.
	ForwardScript(id string, tag Tag) string
}

// Strategy is the capability set every provider-specific backend implements.
// No implementation throws: every method reports failure through its error
// return or boolean result.
type Strategy interface {
	Tag() Tag

	// CanConnect never panics; it returns false on failure. It does not log
	// anything itself.
	CanConnect(ctx context.Context, connStr string) bool

	// Open establishes a live handle. For file-backed providers this may
	// create the underlying file; for network providers it never creates a
	// database.
	Open(ctx context.Context, connStr string) (Conn, error)

	// EnsureDatabase materializes the target database when missing. It is a
	// create-if-missing for file-backed providers and a no-op for network
	// providers that assume the database already exists.
	EnsureDatabase(ctx context.Context, connStr string) error

	DatabaseExists(ctx context.Context, connStr string) (bool, error)

	// AppliedIDs returns an empty list when the history table is absent; it
	// does not distinguish a fresh database from one whose history table
	// is missing.
	AppliedIDs(ctx context.Context, conn Conn) ([]string, error)

	PendingIDs(ctx context.Context, conn Conn, cat CatalogView) ([]string, error)

	// ApplyForward runs every pending unit up to and including targetID (or
	// through cat.Head() if targetID is empty). The SQL Server fresh-bootstrap
	// path materializes every catalog unit regardless of targetID.
	ApplyForward(ctx context.Context, conn Conn, targetID string, cat CatalogView) error

	// ApplyReverse runs every applied unit's Down, from the most recent down
	// to (and excluding) targetID. An empty targetID means fully down.
	ApplyReverse(ctx context.Context, conn Conn, targetID string, cat CatalogView) error

	// ValidateSchema swallows errors and returns false rather than failing.
	ValidateSchema(ctx context.Context, conn Conn, coreTables []string) bool

	QuoteIdent(name string) string
}
