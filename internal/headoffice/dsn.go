// SPDX-License-Identifier: Apache-2.0

// Package headoffice builds the connection string the CLI opens the
// control-plane store with.
package headoffice

import (
	"fmt"
	"net/url"
	"strings"
)

// WithSearchPath returns dsn unchanged when schema is empty, otherwise
// returns dsn with a Postgres libpq "options" parameter that sets
// search_path, so the migration-state and branch-registry tables can live
// outside the default schema.
func WithSearchPath(dsn, schema string) (string, error) {
	if schema == "" {
		return dsn, nil
	}

	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("headoffice: parse dsn: %w", err)
	}

	q := u.Query()
	q.Set("options", "-c search_path="+schema)
	u.RawQuery = q.Encode()

	// url.Values.Encode escapes spaces as '+'; libpq's options value expects
	// the space literally percent-encoded.
	return strings.ReplaceAll(u.String(), "+", "%20"), nil
}
