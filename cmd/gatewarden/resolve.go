// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatewarden Contributors

package main

import (
	"sort"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// NewResolveCmd creates the resolve subcommand.
func NewResolveCmd() *cobra.Command {
	var (
		world   string
		regions []string
		group   string
	)

	cmd := &cobra.Command{
		Use:   "resolve [player-ulid]",
		Short: "Resolve effective permissions",
		Long: `Resolve the effective permission map for a player (by ULID) or,
with --group, for a single group, in the given world/region context.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			eng, err := buildEngine(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer eng.Close()

			var resolved map[string]bool
			switch {
			case group != "":
				resolved = eng.service.GroupPermissions(group, world, regions)
			case len(args) == 1:
				player, err := ulid.Parse(args[0])
				if err != nil {
					return oops.Code("INVALID_ARGUMENT").With("player", args[0]).
						Errorf("player id must be a ULID: %v", err)
				}
				resolved = eng.service.EffectivePermissions(player, world, regions)
			default:
				return oops.Code("INVALID_ARGUMENT").Errorf("a player ULID or --group is required")
			}

			keys := make([]string, 0, len(resolved))
			for key := range resolved {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				cmd.Printf("%s=%v\n", key, resolved[key])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&world, "world", "", "world context")
	cmd.Flags().StringSliceVar(&regions, "region", nil, "region context (repeatable)")
	cmd.Flags().StringVar(&group, "group", "", "resolve a single group instead of a player")
	return cmd
}
