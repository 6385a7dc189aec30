// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatewarden Contributors

package perm

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
)

// Resolver computes effective permission maps by walking the inheritance
// graph and merging scoped overrides. It only ever reads from the store and
// holds no locks of its own.
type Resolver struct {
	store *Store
	log   *slog.Logger

	// groupFormat synthesizes a permission key from each ancestor group's
	// name (e.g. "group.%s"); assignedFormat does the same for groups the
	// player holds directly. Either may be empty to disable.
	groupFormat    string
	assignedFormat string
}

// NewResolver creates a resolver over the given store. logger may be nil.
func NewResolver(store *Store, logger *slog.Logger, groupFormat, assignedFormat string) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		store:          store,
		log:            logger,
		groupFormat:    groupFormat,
		assignedFormat: assignedFormat,
	}
}

// ResolvePlayer computes the player's effective permission map for the
// given world and region set. Groups apply lowest priority first so higher
// priority groups overwrite; the player's own entries apply last and win
// over every group.
func (r *Resolver) ResolvePlayer(player ulid.ULID, world string, regions []string) map[string]bool {
	start := time.Now()

	acc := make(map[string]bool)
	groups := r.store.EffectiveGroups(player)
	for _, group := range groups {
		r.resolveGroupInto(acc, group, world, regions, true)
	}
	r.applyEntries(acc, PlayerRef(player, ""), world, regions)

	resolveDuration.WithLabelValues("player").Observe(time.Since(start).Seconds())
	r.log.Debug("resolved player permissions",
		"player", player,
		"world", world,
		"groups", len(groups),
		"keys", len(acc))
	return acc
}

// ResolveGroup computes the permission map a direct member of the named
// group would receive from that group alone (ad hoc inspection).
func (r *Resolver) ResolveGroup(group, world string, regions []string) map[string]bool {
	start := time.Now()

	acc := make(map[string]bool)
	r.resolveGroupInto(acc, group, world, regions, true)

	resolveDuration.WithLabelValues("group").Observe(time.Since(start).Seconds())
	return acc
}

// MetadataResult is a resolved metadata map together with the set of groups
// (canonical names) consulted to produce it. The cache keys invalidation
// cascades off the group set.
type MetadataResult struct {
	Values map[string]any
	Groups map[string]struct{}
}

// ResolvePlayerMetadata accumulates metadata over the player's groups'
// ancestries (farthest ancestor first, so nearer groups override) and
// finally the player's own metadata.
func (r *Resolver) ResolvePlayerMetadata(player ulid.ULID) MetadataResult {
	res := MetadataResult{
		Values: make(map[string]any),
		Groups: make(map[string]struct{}),
	}
	for _, group := range r.store.EffectiveGroups(player) {
		r.accumulateGroupMetadata(&res, group)
	}
	for name, value := range r.store.AllMetadata(PlayerRef(player, "")) {
		res.Values[name] = value
	}
	return res
}

// ResolveGroupMetadata accumulates metadata over the named group's
// ancestry.
func (r *Resolver) ResolveGroupMetadata(group string) MetadataResult {
	res := MetadataResult{
		Values: make(map[string]any),
		Groups: make(map[string]struct{}),
	}
	r.accumulateGroupMetadata(&res, group)
	return res
}

func (r *Resolver) accumulateGroupMetadata(res *MetadataResult, group string) {
	for _, ancestor := range r.store.Ancestry(group) {
		res.Groups[canonical(ancestor)] = struct{}{}
		for name, value := range r.store.AllMetadata(GroupRef(ancestor)) {
			res.Values[name] = value
		}
	}
}

// resolveGroupInto applies one group's full ancestry into the accumulator.
// assigned marks groups the player holds directly: those additionally
// receive the assigned-group synthetic permission.
func (r *Resolver) resolveGroupInto(acc map[string]bool, group, world string, regions []string, assigned bool) {
	ancestry := r.store.Ancestry(group)
	if len(ancestry) == 0 {
		return
	}
	if assigned && r.assignedFormat != "" {
		acc[canonical(fmt.Sprintf(r.assignedFormat, group))] = true
	}
	for _, ancestor := range ancestry {
		if r.groupFormat != "" {
			acc[canonical(fmt.Sprintf(r.groupFormat, ancestor))] = true
		}
		r.applyEntries(acc, GroupRef(ancestor), world, regions)
	}
}

// applyEntries merges one entity's entries into the accumulator with the
// scope precedence: global, then world-only, then universal-region, then
// world+region (most specific wins). Entries for a different world are
// ignored entirely.
func (r *Resolver) applyEntries(acc map[string]bool, ref EntityRef, world string, regions []string) {
	entries := r.store.Entries(ref)
	if len(entries) == 0 {
		return
	}

	world = canonical(world)
	regionSet := make(map[string]struct{}, len(regions))
	for _, region := range regions {
		regionSet[canonical(region)] = struct{}{}
	}

	var worldOnly, universalRegion, worldRegion []Entry
	for _, e := range entries {
		inRegions := false
		if e.Region != "" {
			_, inRegions = regionSet[e.Region]
		}
		switch {
		case e.Region == "" && e.World == "":
			acc[e.Permission] = e.Value
		case e.World == "" && inRegions:
			universalRegion = append(universalRegion, e)
		case e.World == world && e.Region == "":
			worldOnly = append(worldOnly, e)
		case e.World == world && inRegions:
			worldRegion = append(worldRegion, e)
		}
	}
	for _, e := range worldOnly {
		acc[e.Permission] = e.Value
	}
	for _, e := range universalRegion {
		acc[e.Permission] = e.Value
	}
	for _, e := range worldRegion {
		acc[e.Permission] = e.Value
	}
}
