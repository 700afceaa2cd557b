// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"
	"database/sql"
	"time"

	"github.com/cloudflare/backoff"
)

const (
	maxBackoffDuration = 1 * time.Minute
	backoffInterval    = 1 * time.Second
)

// IsTransient reports whether err is a transient, retryable error for a
// given backend (lock timeout, deadlock, busy). Each strategy supplies its
// own predicate; RetryableConn is backend-agnostic.
type IsTransient func(error) bool

// RetryableConn wraps a *sql.DB and retries queries on transient errors with
// an exponential backoff.
type RetryableConn struct {
	DB          *sql.DB
	IsTransient IsTransient
}

func (c *RetryableConn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	b := backoff.New(maxBackoffDuration, backoffInterval)
	for {
		res, err := c.DB.ExecContext(ctx, query, args...)
		if err == nil {
			return res, nil
		}
		if c.IsTransient(err) {
			if werr := sleepCtx(ctx, b.Duration()); werr != nil {
				return nil, werr
			}
			continue
		}
		return nil, err
	}
}

func (c *RetryableConn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	b := backoff.New(maxBackoffDuration, backoffInterval)
	for {
		rows, err := c.DB.QueryContext(ctx, query, args...)
		if err == nil {
			return rows, nil
		}
		if c.IsTransient(err) {
			if werr := sleepCtx(ctx, b.Duration()); werr != nil {
				return nil, werr
			}
			continue
		}
		return nil, err
	}
}

// QueryRowContext is not retried: *sql.Row defers error reporting to Scan,
// where a caller cannot distinguish "retry me" from a genuine no-rows
// result, so callers needing retry semantics should prefer QueryContext.
func (c *RetryableConn) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return c.DB.QueryRowContext(ctx, query, args...)
}

func (c *RetryableConn) Close() error {
	return c.DB.Close()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
