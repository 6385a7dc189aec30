// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatewarden Contributors

package main

import (
	"strings"

	"github.com/spf13/cobra"
)

// NewGroupsCmd creates the groups subcommand.
func NewGroupsCmd() *cobra.Command {
	var pattern string

	cmd := &cobra.Command{
		Use:   "groups",
		Short: "List groups",
		Long:  `List groups with their priority, direct parents, and member count.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			eng, err := buildEngine(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer eng.Close()

			groups, err := eng.service.ListGroups(pattern)
			if err != nil {
				return err
			}
			if len(groups) == 0 {
				cmd.Println("no groups")
				return nil
			}
			for _, g := range groups {
				parents, err := eng.store.Parents(g.Name)
				if err != nil {
					return err
				}
				members := eng.service.Members(g.Name)
				cmd.Printf("%s\tpriority=%d\tparents=[%s]\tmembers=%d\n",
					g.DisplayName, g.Priority, strings.Join(parents, ", "), len(members))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&pattern, "pattern", "", "glob pattern filtering group names")
	return cmd
}
