// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nimbusdata/branchroll/cmd/flags"
)

func listPendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-pending",
		Short: "List migration ids not yet applied to a branch",
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

			ids, err := m.ListPending(ctx, branchID)
			if err != nil {
				return err
			}
			return printJSON(ids)
		},
	}
}

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show a branch's applied/pending migrations and state",
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

			h, err := m.History(ctx, branchID)
			if err != nil {
				return err
			}
			return printJSON(h)
		},
	}
}
