// SPDX-License-Identifier: Apache-2.0

// Package registry is the branch-registry collaborator the core reads from.
// Branch records are exclusively owned by this external collaborator; the
// core never mutates them, only reads and references by id.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nimbusdata/branchroll/pkg/provider"
)

// ErrBranchNotFound is returned when no branch with the given id exists.
var ErrBranchNotFound = errors.New("registry: branch not found")

// Branch is the read-only view of a tenant database the core consumes.
type Branch struct {
	ID                   string
	Code                 string
	DisplayName          string
	Active               bool
	ProviderTag          provider.Tag
	ConnectionDescriptor string
}

// Registry is the interface the core reads branches through.
type Registry interface {
	Get(ctx context.Context, branchID string) (Branch, error)
	ListActive(ctx context.Context) ([]Branch, error)
}

// PostgresRegistry reads branches from a table in the head-office store.
// It assumes the table already exists and is managed outside this module.
type PostgresRegistry struct {
	db *sql.DB
}

func NewPostgresRegistry(db *sql.DB) *PostgresRegistry {
	return &PostgresRegistry{db: db}
}

func (r *PostgresRegistry) Get(ctx context.Context, branchID string) (Branch, error) {
	var b Branch
	var tag string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, code, display_name, active, provider_tag, connection_descriptor
		FROM branches WHERE id = $1
	`, branchID).Scan(&b.ID, &b.Code, &b.DisplayName, &b.Active, &tag, &b.ConnectionDescriptor)
	if errors.Is(err, sql.ErrNoRows) {
		return Branch{}, ErrBranchNotFound
	}
	if err != nil {
		return Branch{}, fmt.Errorf("registry: get %s: %w", branchID, err)
	}
	b.ProviderTag = provider.Tag(tag)
	return b, nil
}

func (r *PostgresRegistry) ListActive(ctx context.Context) ([]Branch, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, code, display_name, active, provider_tag, connection_descriptor
		FROM branches WHERE active = true ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("registry: list active: %w", err)
	}
	defer rows.Close()

	var branches []Branch
	for rows.Next() {
		var b Branch
		var tag string
		if err := rows.Scan(&b.ID, &b.Code, &b.DisplayName, &b.Active, &tag, &b.ConnectionDescriptor); err != nil {
			return nil, err
		}
		b.ProviderTag = provider.Tag(tag)
		branches = append(branches, b)
	}
	return branches, rows.Err()
}
