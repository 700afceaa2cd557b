// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/nimbusdata/branchroll/cmd/flags"
)

func rollbackLastCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback-last",
		Short: "Revert the most recently applied migration on one branch",
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

			sp, _ := pterm.DefaultSpinner.WithText("Rolling back migration...").Start()
			res := m.RollbackLast(ctx, branchID)
			if !res.Success {
				sp.Fail(fmt.Sprintf("rollback-last failed: %s", res.Error))
			} else {
				sp.Success("rollback-last complete")
			}

			return printJSON(res)
		},
	}
}

func rollbackAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback-all",
		Short: "Revert the most recently applied migration on every active branch",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			m, closeFn, err := NewManager(ctx)
			if err != nil {
				return err
			}
			defer closeFn() //nolint:errcheck

			sp, _ := pterm.DefaultSpinner.WithText("Rolling back migrations across branches...").Start()
			agg := m.RollbackAll(ctx)
			if !agg.Success {
				sp.Fail("rollback-all finished with failures")
			} else {
				sp.Success("rollback-all complete")
			}

			return printJSON(agg)
		},
	}
}
