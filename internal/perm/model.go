// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatewarden Contributors

// Package perm implements the permission resolution engine: an in-memory
// entity/permission graph with multi-parent group inheritance, world/region
// scoped permission entries, time-bounded memberships, a resolved-metadata
// cache, and an expiration scheduler.
//
// Players are keyed by their stable ULID; groups by case-insensitive name.
// Permission keys are opaque strings compared case-insensitively.
package perm

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Kind distinguishes the two entity namespaces.
type Kind string

const (
	// KindPlayer identifies player entities (keyed by ULID).
	KindPlayer Kind = "player"
	// KindGroup identifies group entities (keyed by case-insensitive name).
	KindGroup Kind = "group"
)

// EntityRef identifies an entity. References are always tagged with their
// kind; the two namespaces never collide.
type EntityRef struct {
	Kind Kind
	// ID is set for players.
	ID ulid.ULID
	// Name is the group name for groups, or the last-seen display name for
	// players (used when a player entity is created implicitly on write).
	Name string
}

// PlayerRef builds a reference to a player.
func PlayerRef(id ulid.ULID, displayName string) EntityRef {
	return EntityRef{Kind: KindPlayer, ID: id, Name: displayName}
}

// GroupRef builds a reference to a group.
func GroupRef(name string) EntityRef {
	return EntityRef{Kind: KindGroup, Name: name}
}

// IsGroup reports whether the reference names a group.
func (r EntityRef) IsGroup() bool { return r.Kind == KindGroup }

// Entity is a read-only view of a stored player or group.
type Entity struct {
	Kind        Kind
	ID          ulid.ULID // players only
	Name        string    // canonical key (lowercased group name, ULID string for players)
	DisplayName string
	Priority    int
}

// Entry is a single scoped permission assignment owned by one entity.
// Empty Region/World means unscoped in that dimension.
type Entry struct {
	Permission string
	Value      bool
	Region     string
	World      string
}

// Membership links a player to a group, optionally until an expiration
// instant. A nil Expiration means the membership is permanent.
type Membership struct {
	Group       string // canonical (lowercased) group name
	Member      ulid.ULID
	DisplayName string // member's last-seen display name
	Expiration  *time.Time
}

// Expired reports whether the membership has lapsed as of now.
func (m Membership) Expired(now time.Time) bool {
	return m.Expiration != nil && !m.Expiration.After(now)
}

// canonical lowercases a name for use as a map key. Blank-insensitive:
// callers validate emptiness separately.
func canonical(name string) string {
	return strings.ToLower(name)
}
