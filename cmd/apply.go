// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/nimbusdata/branchroll/cmd/flags"
)

func applyOneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply-one",
		Short: "Bring one branch's schema to the latest (or a target) migration",
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

			sp, _ := pterm.DefaultSpinner.WithText("Applying migrations...").Start()
			res := m.ApplyOne(ctx, branchID, flags.TargetID())
			if !res.Success {
				sp.Fail(fmt.Sprintf("apply-one failed: %s", res.Error))
			} else {
				sp.Success("apply-one complete")
			}

			return printJSON(res)
		},
	}
}

func applyAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply-all",
		Short: "Bring every active branch's schema to the latest migration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			m, closeFn, err := NewManager(ctx)
			if err != nil {
				return err
			}
			defer closeFn() //nolint:errcheck

			sp, _ := pterm.DefaultSpinner.WithText("Applying migrations across branches...").Start()
			agg := m.ApplyAll(ctx)
			if !agg.Success {
				sp.Fail("apply-all finished with failures")
			} else {
				sp.Success("apply-all complete")
			}

			return printJSON(agg)
		},
	}
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
