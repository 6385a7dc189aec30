// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatewarden Contributors

package perm

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// Record types passed to the persistence adapter. They are flat snapshots of
// store state, detached from the in-memory graph.

// EntityRecord describes a player or group.
type EntityRecord struct {
	Kind        Kind
	ID          ulid.ULID // players only
	Name        string    // canonical key
	DisplayName string
	Priority    int
}

// EntryRecord describes a scoped permission entry and its owner.
type EntryRecord struct {
	Owner      EntityRecord
	Permission string
	Value      bool
	Region     string // empty = unscoped
	World      string // empty = unscoped
}

// MembershipRecord describes a player's membership in a group.
type MembershipRecord struct {
	Group       string // canonical group name
	Member      ulid.ULID
	DisplayName string
	Expiration  *time.Time
}

// InheritanceRecord describes a child-to-parent group edge.
type InheritanceRecord struct {
	Child    string
	Parent   string
	Ordering int
}

// MetadataRecord describes a typed metadata entry and its owner.
type MetadataRecord struct {
	Owner EntityRecord
	Name  string
	Value any // string | int64 | float64 | bool
}

// Snapshot is the bulk-load form of the whole graph, produced by an
// adapter's Load and consumed by Store.LoadSnapshot on startup.
type Snapshot struct {
	Entities     []EntityRecord
	Entries      []EntryRecord
	Memberships  []MembershipRecord
	Inheritances []InheritanceRecord
	Metadata     []MetadataRecord
}

// Adapter receives a callback for every structural mutation after it has
// been applied in memory. Durability is entirely the adapter's concern: it
// may persist synchronously or asynchronously with its own retry policy,
// and no call returns an error to the store (fire-and-forget).
type Adapter interface {
	CreateEntity(e EntityRecord)
	DeleteEntity(e EntityRecord)
	UpdateDisplayName(e EntityRecord)
	SetPriority(e EntityRecord)

	UpsertEntry(e EntryRecord)
	DeleteEntry(e EntryRecord)

	UpsertMembership(m MembershipRecord)
	DeleteMembership(m MembershipRecord)

	UpsertInheritance(i InheritanceRecord)
	DeleteInheritance(i InheritanceRecord)

	UpsertMetadata(m MetadataRecord)
	DeleteMetadata(m MetadataRecord)

	CreateRegion(name string)
	DeleteRegions(names []string)
	CreateWorld(name string)
	DeleteWorlds(names []string)

	// Load reads the persisted graph for initial population.
	Load(ctx context.Context) (*Snapshot, error)
}

// NullAdapter discards every mutation and loads an empty graph. Used for
// memory-only operation and in tests.
type NullAdapter struct{}

var _ Adapter = NullAdapter{}

func (NullAdapter) CreateEntity(EntityRecord)           {}
func (NullAdapter) DeleteEntity(EntityRecord)           {}
func (NullAdapter) UpdateDisplayName(EntityRecord)      {}
func (NullAdapter) SetPriority(EntityRecord)            {}
func (NullAdapter) UpsertEntry(EntryRecord)             {}
func (NullAdapter) DeleteEntry(EntryRecord)             {}
func (NullAdapter) UpsertMembership(MembershipRecord)   {}
func (NullAdapter) DeleteMembership(MembershipRecord)   {}
func (NullAdapter) UpsertInheritance(InheritanceRecord) {}
func (NullAdapter) DeleteInheritance(InheritanceRecord) {}
func (NullAdapter) UpsertMetadata(MetadataRecord)       {}
func (NullAdapter) DeleteMetadata(MetadataRecord)       {}
func (NullAdapter) CreateRegion(string)                 {}
func (NullAdapter) DeleteRegions([]string)              {}
func (NullAdapter) CreateWorld(string)                  {}
func (NullAdapter) DeleteWorlds([]string)               {}

// Load returns an empty snapshot.
func (NullAdapter) Load(context.Context) (*Snapshot, error) {
	return &Snapshot{}, nil
}
