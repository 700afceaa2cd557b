// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"fmt"

	"github.com/nimbusdata/branchroll/pkg/provider"
	"github.com/nimbusdata/branchroll/pkg/provider/sqlitestrategy"
)

// Default is the catalog shipped with this build. In production this would
// be produced out of band by a build step; here it is a literal []Unit.
var Default = New(productVersion,
	unitInitialSchema,
	unitAddLoyaltyPoints,
	unitShrinkOrderStatus,
)

func q(tag provider.Tag, name string) string { return provider.QuoteIdent(tag, name) }

// m0001: initial schema — customers and orders. Required by CoreTables, so
// neither table may ever be dropped by a later unit without losing
// rollback-ability of this unit.
var unitInitialSchema = Unit{
	ID:     "m0001_initial_schema",
	Tables: []string{"customers", "orders"},
	Up: func(ctx context.Context, conn provider.Conn, tag provider.Tag) error {
		switch tag {
		case provider.PostgreSQL, provider.MySQL, provider.SQLite:
			customersDDL := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				%s TEXT PRIMARY KEY,
				%s TEXT NOT NULL,
				%s TEXT NOT NULL
			)`, q(tag, "customers"), q(tag, "id"), q(tag, "display_name"), q(tag, "email"))
			if _, err := conn.ExecContext(ctx, customersDDL); err != nil {
				return fmt.Errorf("create customers: %w", err)
			}

			ordersDDL := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				%s TEXT PRIMARY KEY,
				%s TEXT NOT NULL,
				%s TEXT NOT NULL,
				%s TEXT NOT NULL,
				FOREIGN KEY (%s) REFERENCES %s(%s)
			)`, q(tag, "orders"), q(tag, "id"), q(tag, "customer_id"), q(tag, "status"), q(tag, "created_at"),
				q(tag, "customer_id"), q(tag, "customers"), q(tag, "id"))
			if _, err := conn.ExecContext(ctx, ordersDDL); err != nil {
				return fmt.Errorf("create orders: %w", err)
			}
			return nil
		case provider.SQLServer:
			// A fresh SQL Server branch never reaches this: bootstrap
			// materializes every pending unit, including this one, in a single
			// batch. This branch only runs for a branch that was bootstrapped
			// before m0001 existed in the catalog, so the existence checks make
			// it a genuine incremental apply rather than an unreachable guard.
			customersExists, err := tableExists(ctx, conn, tag, "customers")
			if err != nil {
				return fmt.Errorf("check customers: %w", err)
			}
			if !customersExists {
				if _, err := conn.ExecContext(ctx, `CREATE TABLE [customers] (
					[id] NVARCHAR(64) PRIMARY KEY,
					[display_name] NVARCHAR(256) NOT NULL,
					[email] NVARCHAR(256) NOT NULL
				)`); err != nil {
					return fmt.Errorf("create customers: %w", err)
				}
			}

			ordersExists, err := tableExists(ctx, conn, tag, "orders")
			if err != nil {
				return fmt.Errorf("check orders: %w", err)
			}
			if !ordersExists {
				if _, err := conn.ExecContext(ctx, `CREATE TABLE [orders] (
					[id] NVARCHAR(64) PRIMARY KEY,
					[customer_id] NVARCHAR(64) NOT NULL,
					[status] NVARCHAR(32) NOT NULL,
					[created_at] NVARCHAR(64) NOT NULL,
					FOREIGN KEY ([customer_id]) REFERENCES [customers]([id])
				)`); err != nil {
					return fmt.Errorf("create orders: %w", err)
				}
			}
			return nil
		default:
			return fmt.Errorf("m0001_initial_schema: unsupported provider %q", tag)
		}
	},
	Down: func(ctx context.Context, conn provider.Conn, tag provider.Tag) error {
		if _, err := conn.ExecContext(ctx, "DROP TABLE IF EXISTS "+q(tag, "orders")); err != nil {
			return fmt.Errorf("drop orders: %w", err)
		}
		if _, err := conn.ExecContext(ctx, "DROP TABLE IF EXISTS "+q(tag, "customers")); err != nil {
			return fmt.Errorf("drop customers: %w", err)
		}
		return nil
	},
	SQLServerScript: `
CREATE TABLE [customers] (
	[id] NVARCHAR(64) PRIMARY KEY,
	[display_name] NVARCHAR(256) NOT NULL,
	[email] NVARCHAR(256) NOT NULL
);
GO
CREATE TABLE [orders] (
	[id] NVARCHAR(64) PRIMARY KEY,
	[customer_id] NVARCHAR(64) NOT NULL,
	[status] NVARCHAR(32) NOT NULL,
	[created_at] NVARCHAR(64) NOT NULL,
	FOREIGN KEY ([customer_id]) REFERENCES [customers]([id])
);
GO
`,
}

// m0002: adds a NOT NULL loyalty_points column (default 0) to customers. Forward
// transform is idempotent on every non-SQLite backend via an existence
// predicate; SQLite's ADD COLUMN is naturally safe to guard the
// same way. Reverse transform on SQLite must use the table-rebuild pattern
// since SQLite cannot drop a column in place prior to 3.35, and even on
// newer SQLite builds this port always rebuilds for uniformity with older
// deployments.
var unitAddLoyaltyPoints = Unit{
	ID: "m0002_add_loyalty_points",
	Up: func(ctx context.Context, conn provider.Conn, tag provider.Tag) error {
		exists, err := columnExists(ctx, conn, tag, "customers", "loyalty_points")
		if err != nil {
			return fmt.Errorf("check loyalty_points: %w", err)
		}
		if exists {
			return nil
		}
		columnType := "INTEGER"
		if tag == provider.SQLServer {
			columnType = "INT"
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD %s %s NOT NULL DEFAULT 0", q(tag, "customers"), q(tag, "loyalty_points"), columnType)
		if tag != provider.SQLServer {
			stmt = fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s NOT NULL DEFAULT 0", q(tag, "customers"), q(tag, "loyalty_points"), columnType)
		}
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("add loyalty_points: %w", err)
		}
		return nil
	},
	Down: func(ctx context.Context, conn provider.Conn, tag provider.Tag) error {
		exists, err := columnExists(ctx, conn, tag, "customers", "loyalty_points")
		if err != nil {
			return fmt.Errorf("check loyalty_points: %w", err)
		}
		if !exists {
			return nil
		}

		if tag != provider.SQLite {
			stmt := fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", q(tag, "customers"), q(tag, "loyalty_points"))
			if _, err := conn.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("drop loyalty_points: %w", err)
			}
			return nil
		}

		createTmp := fmt.Sprintf(`CREATE TABLE %s (
			%s TEXT PRIMARY KEY,
			%s TEXT NOT NULL,
			%s TEXT NOT NULL
		)`, q(tag, "customers_rebuild"), q(tag, "id"), q(tag, "display_name"), q(tag, "email"))

		return sqlitestrategy.RebuildTable(ctx, conn, "customers", "customers_rebuild", createTmp,
			[]string{"id", "display_name", "email"}, nil)
	},
	SQLServerScript: `
IF NOT EXISTS (SELECT 1 FROM sys.columns WHERE object_id = OBJECT_ID('customers') AND name = 'loyalty_points')
ALTER TABLE [customers] ADD [loyalty_points] INT NOT NULL DEFAULT 0;
GO
`,
}

// statusBuckets maps the six fine-grained statuses onto three broad ones.
var statusBuckets = map[string]string{
	"pending":    "open",
	"processing": "open",
	"shipped":    "fulfilled",
	"delivered":  "fulfilled",
	"cancelled":  "closed",
	"returned":   "closed",
}

// bucketPreimage is the single pre-image each bucket remaps back to on
// rollback — an intentionally lossy, declared choice. Widening the column
// back to the original domain does not and cannot recover which of the two
// original statuses a collapsed row held.
var bucketPreimage = map[string]string{
	"open":      "pending",
	"fulfilled": "delivered",
	"closed":    "cancelled",
}

// m0003: collapses orders.status from six fine-grained values to three
// broad buckets. This is a declared data-destructive unit: its Down remaps
// each collapsed value back into the six-value domain as a single
// unambiguous pre-image rather than the original value; no column DDL is
// involved in either direction. Any rollback beyond this documented
// pre-image must be confirmed with operators.
var unitShrinkOrderStatus = Unit{
	ID: "m0003_shrink_order_status",
	Up: func(ctx context.Context, conn provider.Conn, tag provider.Tag) error {
		for from, to := range statusBuckets {
			stmt := fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s = %s",
				q(tag, "orders"), q(tag, "status"), provider.Placeholder(tag, 1), q(tag, "status"), provider.Placeholder(tag, 2))
			if _, err := conn.ExecContext(ctx, stmt, to, from); err != nil {
				return fmt.Errorf("collapse status %s->%s: %w", from, to, err)
			}
		}
		return nil
	},
	Down: func(ctx context.Context, conn provider.Conn, tag provider.Tag) error {
		for bucket, preimage := range bucketPreimage {
			stmt := fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s = %s",
				q(tag, "orders"), q(tag, "status"), provider.Placeholder(tag, 1), q(tag, "status"), provider.Placeholder(tag, 2))
			if _, err := conn.ExecContext(ctx, stmt, preimage, bucket); err != nil {
				return fmt.Errorf("widen status %s->%s: %w", bucket, preimage, err)
			}
		}
		return nil
	},
	SQLServerScript: `
UPDATE [orders] SET [status] = 'open' WHERE [status] IN ('pending', 'processing');
GO
UPDATE [orders] SET [status] = 'fulfilled' WHERE [status] IN ('shipped', 'delivered');
GO
UPDATE [orders] SET [status] = 'closed' WHERE [status] IN ('cancelled', 'returned');
GO
`,
}
