// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatewarden Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/gatewarden/gatewarden/internal/config"
	"github.com/gatewarden/gatewarden/internal/logging"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the gatewarden CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gatewarden",
		Short: "Gatewarden - a hierarchical permission engine",
		Long: `Gatewarden stores players and groups in a multi-parent inheritance
hierarchy and resolves their effective permissions for a given world and
region context, backed by PostgreSQL.`,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	cmd.PersistentFlags().String("database_url", "", "PostgreSQL connection URL (empty = memory only)")
	cmd.PersistentFlags().String("default_group", "default", "group substituted for players with no memberships")
	cmd.PersistentFlags().String("log_format", "text", "log format: text or json")
	cmd.PersistentFlags().String("log_level", "info", "log level: debug, info, warn, error")

	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewResolveCmd())
	cmd.AddCommand(NewGroupsCmd())

	return cmd
}

// loadConfig reads the config file plus flag overrides and installs the
// default logger.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return cfg, err
	}
	logging.SetDefault("gatewarden", version, cfg.LogFormat, logging.ParseLevel(cfg.LogLevel))
	return cfg, nil
}
