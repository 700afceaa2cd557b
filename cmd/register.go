// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/nimbusdata/branchroll/cmd/flags"
	"github.com/nimbusdata/branchroll/internal/headoffice"
	"github.com/nimbusdata/branchroll/internal/redact"
	"github.com/nimbusdata/branchroll/internal/validate"
)

// registerCmd inserts a new row into the branch registry table. This is an
// operator bootstrap helper, not a core operation: the registry is owned by
// whatever external system provisions tenant databases, and this command
// exists only so a branch can be registered from the same binary during
// setup or local development.
func registerCmd() *cobra.Command {
	var id, code, displayName, providerTag, dsn string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a branch in the registry table (operator bootstrap helper)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			payload := map[string]string{
				"id":                    id,
				"code":                  code,
				"provider_tag":          providerTag,
				"connection_descriptor": dsn,
			}
			if displayName != "" {
				payload["display_name"] = displayName
			}
			raw, err := json.Marshal(payload)
			if err != nil {
				return err
			}
			if err := validate.BranchInput(raw); err != nil {
				return fmt.Errorf("register: %w", err)
			}

			headOfficeDSN, err := headoffice.WithSearchPath(flags.HeadOfficeURL(), flags.HeadOfficeSchema())
			if err != nil {
				return fmt.Errorf("head-office connection string: %w", err)
			}
			db, err := sql.Open("postgres", headOfficeDSN)
			if err != nil {
				return fmt.Errorf("open head-office store: %w", err)
			}
			defer db.Close()

			_, err = db.ExecContext(ctx, `
				INSERT INTO branches (id, code, display_name, active, provider_tag, connection_descriptor)
				VALUES ($1, $2, $3, true, $4, $5)
				ON CONFLICT (id) DO UPDATE SET
					code = EXCLUDED.code,
					display_name = EXCLUDED.display_name,
					provider_tag = EXCLUDED.provider_tag,
					connection_descriptor = EXCLUDED.connection_descriptor
			`, id, code, displayName, providerTag, dsn)
			if err != nil {
				return fmt.Errorf("register: insert branch: %w", err)
			}

			pterm.Success.Printf("registered branch %q (%s) with connection %s\n", id, providerTag, redact.ConnectionDescriptor(dsn))
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Branch id")
	cmd.Flags().StringVar(&code, "code", "", "Branch code (lowercase, hyphen-separated)")
	cmd.Flags().StringVar(&displayName, "display-name", "", "Human-readable branch name")
	cmd.Flags().StringVar(&providerTag, "provider", "", "Provider tag: sqlite, postgres, mysql, or sqlserver")
	cmd.Flags().StringVar(&dsn, "dsn", "", "Branch connection string")
	cmd.MarkFlagRequired("id")       //nolint:errcheck
	cmd.MarkFlagRequired("code")     //nolint:errcheck
	cmd.MarkFlagRequired("provider") //nolint:errcheck
	cmd.MarkFlagRequired("dsn")      //nolint:errcheck

	return cmd
}
