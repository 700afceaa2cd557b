// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nimbusdata/branchroll/cmd/flags"
	"github.com/nimbusdata/branchroll/internal/corelog"
	"github.com/nimbusdata/branchroll/internal/headoffice"
	"github.com/nimbusdata/branchroll/internal/registry"
	"github.com/nimbusdata/branchroll/pkg/catalog"
	"github.com/nimbusdata/branchroll/pkg/manager"
	"github.com/nimbusdata/branchroll/pkg/state"
)

// Version is the branchroll build version.
var Version = "development"

func init() {
	viper.SetEnvPrefix("BRANCHROLL")
	viper.AutomaticEnv()

	flags.HeadOfficeFlags(rootCmd)
	rootCmd.PersistentFlags().String("branch-id", "", "Branch id to operate on")
	rootCmd.PersistentFlags().String("target-id", "", "Optional migration id to apply up to")
	viper.BindPFlag("BRANCH_ID", rootCmd.PersistentFlags().Lookup("branch-id"))
	viper.BindPFlag("TARGET_ID", rootCmd.PersistentFlags().Lookup("target-id"))
}

var rootCmd = &cobra.Command{
	Use:          "branchroll",
	SilenceUsage: true,
	Version:      Version,
}

// NewManager opens the head-office store and returns a ready Manager along
// with a close function. The branch registry table is assumed to already
// exist; it is owned by whatever system registers branches, not this tool.
func NewManager(ctx context.Context) (*manager.Manager, func() error, error) {
	dsn, err := headoffice.WithSearchPath(flags.HeadOfficeURL(), flags.HeadOfficeSchema())
	if err != nil {
		return nil, nil, fmt.Errorf("head-office connection string: %w", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open head-office store: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping head-office store: %w", err)
	}

	store := state.NewPostgresStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ensure migration state schema: %w", err)
	}

	reg := registry.NewPostgresRegistry(db)
	log := corelog.New()

	m := manager.New(reg, store, catalog.Default, log)
	return m, db.Close, nil
}

// Execute executes the root command.
func Execute() error {
	rootCmd.AddCommand(applyOneCmd())
	rootCmd.AddCommand(applyAllCmd())
	rootCmd.AddCommand(rollbackLastCmd())
	rootCmd.AddCommand(rollbackAllCmd())
	rootCmd.AddCommand(listPendingCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(registerCmd())

	return rootCmd.Execute()
}
