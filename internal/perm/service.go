// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatewarden Contributors

package perm

import (
	"github.com/gobwas/glob"
	"github.com/oklog/ulid/v2"
)

// Service is the read-only query surface for command handlers, dump
// tooling, and integrations. All methods are safe to call from any
// goroutine.
type Service struct {
	store    *Store
	resolver *Resolver
	cache    *MetadataCache
	registry ImplicationRegistry // may be nil
}

// NewService wires the query surface. registry may be nil to disable
// implication expansion.
func NewService(store *Store, resolver *Resolver, cache *MetadataCache, registry ImplicationRegistry) *Service {
	return &Service{
		store:    store,
		resolver: resolver,
		cache:    cache,
		registry: registry,
	}
}

// ListGroups lists groups whose display name matches the glob pattern.
// An empty pattern lists everything.
func (s *Service) ListGroups(pattern string) ([]Entity, error) {
	return s.list(KindGroup, pattern)
}

// ListPlayers lists players whose display name matches the glob pattern.
func (s *Service) ListPlayers(pattern string) ([]Entity, error) {
	return s.list(KindPlayer, pattern)
}

func (s *Service) list(kind Kind, pattern string) ([]Entity, error) {
	entities := s.store.Entities(kind)
	if pattern == "" {
		return entities, nil
	}
	g, err := glob.Compile(canonical(pattern))
	if err != nil {
		return nil, invalidArgument("invalid glob pattern %q: %v", pattern, err)
	}
	out := entities[:0]
	for _, e := range entities {
		if g.Match(canonical(e.DisplayName)) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Ancestry returns the group's ancestor list, farthest first and the group
// itself last.
func (s *Service) Ancestry(group string) []string {
	return s.store.Ancestry(group)
}

// Members returns the group's memberships sorted by member display name.
func (s *Service) Members(group string) []Membership {
	return s.store.Members(group)
}

// Memberships returns every membership the player holds, including expired
// ones, in resolution order.
func (s *Service) Memberships(player ulid.ULID) []Membership {
	return s.store.Memberships(player)
}

// Entries returns an entity's direct permission entries.
func (s *Service) Entries(ref EntityRef) []Entry {
	return s.store.Entries(ref)
}

// PlayerMetadata reads one resolved metadata value through the cache.
func (s *Service) PlayerMetadata(player ulid.ULID, name string) (any, bool) {
	return s.cache.PlayerMetadata(player, name)
}

// GroupMetadata reads one resolved metadata value through the cache.
func (s *Service) GroupMetadata(group, name string) (any, bool) {
	return s.cache.GroupMetadata(group, name)
}

// EffectivePermissions resolves the player's full permission map for the
// context, expanded through the implication registry when one is wired.
func (s *Service) EffectivePermissions(player ulid.ULID, world string, regions []string) map[string]bool {
	resolved := s.resolver.ResolvePlayer(player, world, regions)
	if s.registry == nil {
		return resolved
	}
	return ExpandImplications(resolved, s.registry)
}

// GroupPermissions resolves what the named group alone grants a direct
// member, expanded like EffectivePermissions.
func (s *Service) GroupPermissions(group, world string, regions []string) map[string]bool {
	resolved := s.resolver.ResolveGroup(group, world, regions)
	if s.registry == nil {
		return resolved
	}
	return ExpandImplications(resolved, s.registry)
}

// Has reports whether the player holds the permission key in the context.
// Unresolved keys are false.
func (s *Service) Has(player ulid.ULID, world string, regions []string, key string) bool {
	return s.EffectivePermissions(player, world, regions)[canonical(key)]
}
