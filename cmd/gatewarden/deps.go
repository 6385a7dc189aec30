// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatewarden Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/gatewarden/gatewarden/internal/config"
	"github.com/gatewarden/gatewarden/internal/perm"
	"github.com/gatewarden/gatewarden/internal/perm/postgres"
)

// engine bundles the wired permission components for one CLI invocation.
type engine struct {
	store    *perm.Store
	resolver *perm.Resolver
	cache    *perm.MetadataCache
	service  *perm.Service
	adapter  *postgres.Adapter // nil when memory-only
}

// buildEngine wires the store, resolver, cache, and query service. With a
// database URL configured, the persisted graph is loaded into the store;
// otherwise the engine starts empty and memory-only.
func buildEngine(ctx context.Context, cfg config.Config, logger *slog.Logger) (*engine, error) {
	var (
		adapter *postgres.Adapter
		err     error
	)
	if cfg.DatabaseURL != "" {
		adapter, err = postgres.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, err
		}
	}

	var store *perm.Store
	if adapter != nil {
		store = perm.NewStore(adapter, cfg.DefaultGroup)
		snap, err := adapter.Load(ctx)
		if err != nil {
			adapter.Close()
			return nil, err
		}
		store.LoadSnapshot(snap)
	} else {
		store = perm.NewStore(nil, cfg.DefaultGroup)
	}

	resolver := perm.NewResolver(store, logger, cfg.GroupPermissionFormat, cfg.AssignedPermissionFormat)
	cache := perm.NewMetadataCache(resolver, cfg.PlayerCacheSize, cfg.GroupCacheSize)
	service := perm.NewService(store, resolver, cache, nil)

	return &engine{
		store:    store,
		resolver: resolver,
		cache:    cache,
		service:  service,
		adapter:  adapter,
	}, nil
}

// Close flushes and releases the persistence adapter, if any.
func (e *engine) Close() {
	if e.adapter != nil {
		e.adapter.Close()
	}
}
