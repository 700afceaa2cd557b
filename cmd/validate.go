// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nimbusdata/branchroll/cmd/flags"
)

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Run the integrity probe against a branch's current schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			m, closeFn, err := NewManager(ctx)
			if err != nil {
				return err
			}
			defer closeFn() //nolint:errcheck

			branchID := flags.BranchID()
			if branchID == "" {
				return fmt.Errorf("--branch-id is required")
			}

			ok, err := m.Validate(ctx, branchID)
			if err != nil {
				return err
			}
			return printJSON(map[string]bool{"valid": ok})
		},
	}
}
