// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatewarden Contributors

// Package config loads gatewarden configuration from an optional YAML file
// with command-line flag overrides.
package config

import (
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Config is the full engine configuration.
type Config struct {
	// DatabaseURL enables the PostgreSQL adapter; empty runs memory-only.
	DatabaseURL string `koanf:"database_url"`

	// DefaultGroup is substituted when a player has no live memberships.
	DefaultGroup string `koanf:"default_group"`

	// GroupPermissionFormat synthesizes a permission key per ancestor
	// group ("group.%s"); AssignedPermissionFormat does the same per
	// directly-held group. Empty disables either.
	GroupPermissionFormat    string `koanf:"group_permission_format"`
	AssignedPermissionFormat string `koanf:"assigned_permission_format"`

	// PlayerCacheSize / GroupCacheSize bound the metadata cache sides.
	PlayerCacheSize int `koanf:"player_cache_size"`
	GroupCacheSize  int `koanf:"group_cache_size"`

	// ExpirationFudge pads the expiration timer so it never fires early.
	ExpirationFudge time.Duration `koanf:"expiration_fudge"`

	// RefreshDelay spaces out queued player refreshes.
	RefreshDelay time.Duration `koanf:"refresh_delay"`

	// LogFormat is "text" or "json"; LogLevel is debug/info/warn/error.
	LogFormat string `koanf:"log_format"`
	LogLevel  string `koanf:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DefaultGroup:             "default",
		GroupPermissionFormat:    "group.%s",
		AssignedPermissionFormat: "assignedgroup.%s",
		PlayerCacheSize:          1000,
		GroupCacheSize:           1000,
		ExpirationFudge:          time.Second,
		RefreshDelay:             100 * time.Millisecond,
		LogFormat:                "text",
		LogLevel:                 "info",
	}
}

// Load reads the YAML file at path (skipped when empty or absent) and then
// overlays any set flags. Flags always win over the file.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	cfg := Default()
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return cfg, oops.In("config").With("path", path).Wrap(err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, oops.In("config").With("path", path).Wrap(err)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return cfg, oops.In("config").With("operation", "load flags").Wrap(err)
		}
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, oops.In("config").With("operation", "unmarshal").Wrap(err)
	}
	if cfg.PlayerCacheSize < 1 || cfg.GroupCacheSize < 1 {
		return cfg, oops.In("config").Errorf("cache sizes must be at least 1")
	}
	if cfg.DefaultGroup == "" {
		return cfg, oops.In("config").Errorf("default_group cannot be empty")
	}
	return cfg, nil
}
