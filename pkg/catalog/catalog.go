// SPDX-License-Identifier: Apache-2.0

// Package catalog holds the append-only, totally ordered set of migration
// units the core reads from. The Catalog is produced out of band and is
// read-only to the rest of the core: each unit is a plain value holding an
// id and two functions, not a reflection-discovered type.
package catalog

import (
	"context"
	"fmt"
	"sort"

	"github.com/nimbusdata/branchroll/pkg/provider"
)

// TransformFunc is the shape of a migration unit's forward or reverse
// transform: an opaque side-effect against a live connection, dispatched by
// provider tag for units with provider-conditional branches.
type TransformFunc func(ctx context.Context, conn provider.Conn, tag provider.Tag) error

// Unit is one atomic forward/reverse schema change, identified by a
// lexicographically ordered, timestamp-prefixed string.
type Unit struct {
	ID string
	Up TransformFunc
	// Down is optional: Revert returns an error for a unit authored without
	// a reverse transform, so a reverse apply that reaches such a unit fails
	// there.
	Down TransformFunc
	// Tables lists the tables this unit's Up creates, for strategies whose
	// ValidateSchema checks table presence. Only the initial unit's Tables
	// contribute to the compile-time core set — later units' tables must
	// never be required, or a rollback that drops them would fail
	// validation.
	Tables []string
	// SQLServerScript is the SQL Server-dialect rendering of this unit's Up,
	// used only by the SQL Server fresh-bootstrap path. It may contain `GO`
	// batch-separator lines.
	SQLServerScript string
}

const productVersion = "branchroll/1"

// Catalog is the finite, append-ordered, totally ordered sequence of units,
// keyed by id.
type Catalog struct {
	units   []Unit
	byID    map[string]int
	version string
}

// New builds a Catalog from units, which must already be in catalog
// (ascending id) order — the order in which they were authored.
func New(version string, units ...Unit) *Catalog {
	byID := make(map[string]int, len(units))
	for i, u := range units {
		byID[u.ID] = i
	}
	if !sort.SliceIsSorted(units, func(i, j int) bool { return units[i].ID < units[j].ID }) {
		panic("catalog: units must be supplied in ascending id order")
	}
	return &Catalog{units: units, byID: byID, version: version}
}

// AllIDs returns every migration id in append order.
func (c *Catalog) AllIDs() []string {
	ids := make([]string, len(c.units))
	for i, u := range c.units {
		ids[i] = u.ID
	}
	return ids
}

// Head returns the greatest (most recent) migration id, or "" if the
// catalog is empty.
func (c *Catalog) Head() string {
	if len(c.units) == 0 {
		return ""
	}
	return c.units[len(c.units)-1].ID
}

// ProductVersion is the global tag written into each history row.
func (c *Catalog) ProductVersion() string {
	return c.version
}

// Lookup returns the unit with the given id.
func (c *Catalog) Lookup(id string) (Unit, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Unit{}, false
	}
	return c.units[i], true
}

// Units returns the full ordered slice of units.
func (c *Catalog) Units() []Unit {
	return c.units
}

// Apply runs the forward transform for id against conn.
func (c *Catalog) Apply(ctx context.Context, id string, conn provider.Conn, tag provider.Tag) error {
	u, ok := c.Lookup(id)
	if !ok {
		return fmt.Errorf("catalog: unknown migration id %q", id)
	}
	if u.Up == nil {
		return fmt.Errorf("catalog: migration %q has no forward transform", id)
	}
	return u.Up(ctx, conn, tag)
}

// Revert runs the reverse transform for id against conn.
func (c *Catalog) Revert(ctx context.Context, id string, conn provider.Conn, tag provider.Tag) error {
	u, ok := c.Lookup(id)
	if !ok {
		return fmt.Errorf("catalog: unknown migration id %q", id)
	}
	if u.Down == nil {
		return fmt.Errorf("catalog: migration %q has no reverse transform", id)
	}
	return u.Down(ctx, conn, tag)
}

// ForwardScript returns the SQL Server bootstrap script fragment for id.
func (c *Catalog) ForwardScript(id string, tag provider.Tag) string {
	if tag != provider.SQLServer {
		return ""
	}
	u, ok := c.Lookup(id)
	if !ok {
		return ""
	}
	return u.SQLServerScript
}

// CoreTables returns the compile-time constant set of tables the integrity
// probe requires: the tables created by the initial unit, plus the history
// table. Tables added by later units must never appear here, otherwise a
// rollback that removes them would fail validation.
func (c *Catalog) CoreTables() []string {
	if len(c.units) == 0 {
		return []string{provider.HistoryTableName}
	}
	tables := append([]string{}, c.units[0].Tables...)
	return append(tables, provider.HistoryTableName)
}
