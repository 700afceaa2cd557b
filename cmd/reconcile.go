// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nimbusdata/branchroll/internal/corelog"
	"github.com/nimbusdata/branchroll/pkg/reconciler"
)

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run the background reconciler loop until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			m, closeFn, err := NewManager(ctx)
			if err != nil {
				return err
			}
			defer closeFn() //nolint:errcheck

			log := corelog.New()
			log.Info("starting background reconciler")
			reconciler.New(m, log).Run(ctx)
			return nil
		},
	}
}
