// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatewarden Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/gatewarden/gatewarden/internal/perm/postgres"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Apply all pending schema migrations against the PostgreSQL database.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return oops.Code("CONFIG_INVALID").Errorf("database_url is required for migrate")
			}

			migrator, err := postgres.NewMigrator(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer migrator.Close() //nolint:errcheck // close error is secondary

			if down {
				cmd.Println("Rolling back all migrations...")
				if err := migrator.Down(); err != nil {
					return err
				}
				cmd.Println("Rollback completed")
				return nil
			}

			cmd.Println("Running migrations...")
			if err := migrator.Up(); err != nil {
				return err
			}
			version, dirty, err := migrator.Version()
			if err != nil {
				return err
			}
			cmd.Printf("Migrations completed (version %d, dirty=%v)\n", version, dirty)
			return nil
		},
	}

	cmd.Flags().BoolVar(&down, "down", false, "roll back all migrations instead of applying them")
	return cmd
}
