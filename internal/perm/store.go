// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatewarden Contributors

package perm

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Store is the single source of truth for entities, permission entries,
// memberships, and inheritance edges.
//
// Thread-safety: one mutex guards every operation. The store is not
// read-parallel by design; operations are synchronous, non-blocking, and
// may be called from any goroutine. Adapter hooks run while the lock is
// held and must not call back into the store.
type Store struct {
	mu           sync.Mutex
	adapter      Adapter
	defaultGroup string // canonical

	regions map[string]*scopeTag
	worlds  map[string]*scopeTag
	players map[ulid.ULID]*entity
	groups  map[string]*entity

	// membersOf is the reverse membership index: member → group name → record.
	membersOf map[ulid.ULID]map[string]*membershipRec
}

type scopeTag struct {
	name string
}

type entity struct {
	kind        Kind
	id          ulid.ULID // players only
	name        string    // canonical key
	displayName string
	priority    int
	entries     []*entryRec
	metadata    map[string]*metadataRec

	// Groups only.
	memberships map[ulid.ULID]*membershipRec
	parentEdges []*inheritanceRec // ordered by ordering ascending
	childEdges  map[string]*inheritanceRec
}

type entryRec struct {
	permission string
	value      bool
	region     *scopeTag // nil = unscoped
	world      *scopeTag // nil = unscoped
}

type membershipRec struct {
	group       *entity
	member      ulid.ULID
	displayName string
	expiration  *time.Time
}

type inheritanceRec struct {
	child    *entity
	parent   *entity
	ordering int
}

type metadataRec struct {
	name  string
	value any
}

// NewStore creates an empty store. A nil adapter behaves like NullAdapter.
// defaultGroup is the group substituted when membership or ancestry lookups
// resolve to nothing.
func NewStore(adapter Adapter, defaultGroup string) *Store {
	if adapter == nil {
		adapter = NullAdapter{}
	}
	return &Store{
		adapter:      adapter,
		defaultGroup: canonical(defaultGroup),
		regions:      make(map[string]*scopeTag),
		worlds:       make(map[string]*scopeTag),
		players:      make(map[ulid.ULID]*entity),
		groups:       make(map[string]*entity),
		membersOf:    make(map[ulid.ULID]map[string]*membershipRec),
	}
}

// DefaultGroup returns the configured default group's canonical name.
func (s *Store) DefaultGroup() string { return s.defaultGroup }

// LoadSnapshot replaces the in-memory graph with the given snapshot,
// without invoking adapter hooks. Called once on startup with the
// adapter-provided bulk load.
func (s *Store) LoadSnapshot(snap *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.regions = make(map[string]*scopeTag)
	s.worlds = make(map[string]*scopeTag)
	s.players = make(map[ulid.ULID]*entity)
	s.groups = make(map[string]*entity)
	s.membersOf = make(map[ulid.ULID]map[string]*membershipRec)

	for _, rec := range snap.Entities {
		e := &entity{
			kind:        rec.Kind,
			id:          rec.ID,
			name:        canonical(rec.Name),
			displayName: rec.DisplayName,
			priority:    rec.Priority,
			metadata:    make(map[string]*metadataRec),
		}
		if rec.Kind == KindGroup {
			e.memberships = make(map[ulid.ULID]*membershipRec)
			e.childEdges = make(map[string]*inheritanceRec)
			s.groups[e.name] = e
		} else {
			e.name = e.id.String()
			s.players[e.id] = e
		}
	}
	for _, rec := range snap.Entries {
		owner := s.lookupLocked(refForRecord(rec.Owner))
		if owner == nil {
			continue
		}
		owner.entries = append(owner.entries, &entryRec{
			permission: canonical(rec.Permission),
			value:      rec.Value,
			region:     s.internScope(s.regions, rec.Region),
			world:      s.internScope(s.worlds, rec.World),
		})
	}
	for _, rec := range snap.Memberships {
		group := s.groups[canonical(rec.Group)]
		if group == nil {
			continue
		}
		m := &membershipRec{
			group:       group,
			member:      rec.Member,
			displayName: rec.DisplayName,
			expiration:  copyTime(rec.Expiration),
		}
		group.memberships[m.member] = m
		s.rememberMembership(m)
	}
	for _, rec := range snap.Inheritances {
		child := s.groups[canonical(rec.Child)]
		parent := s.groups[canonical(rec.Parent)]
		if child == nil || parent == nil {
			continue
		}
		edge := &inheritanceRec{child: child, parent: parent, ordering: rec.Ordering}
		child.parentEdges = append(child.parentEdges, edge)
		parent.childEdges[child.name] = edge
	}
	for _, g := range s.groups {
		sortEdges(g.parentEdges)
	}
	for _, rec := range snap.Metadata {
		owner := s.lookupLocked(refForRecord(rec.Owner))
		if owner == nil {
			continue
		}
		name := canonical(rec.Name)
		owner.metadata[name] = &metadataRec{name: name, value: rec.Value}
	}
}

// GetPermission performs an exact-match lookup (no inheritance walk).
// The second return reports whether a matching entry exists.
func (s *Store) GetPermission(ref EntityRef, region, world, permission string) (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.lookupLocked(ref)
	if e == nil {
		return false, false
	}
	regionTag, ok := s.findScope(s.regions, region)
	if !ok {
		return false, false
	}
	worldTag, ok := s.findScope(s.worlds, world)
	if !ok {
		return false, false
	}
	if en := findEntry(e, regionTag, worldTag, permission); en != nil {
		return en.value, true
	}
	return false, false
}

// SetPermission creates or updates an entry. Player entities are created
// implicitly; referencing a nonexistent group fails with MISSING_GROUP.
func (s *Store) SetPermission(ref EntityRef, region, world, permission string, value bool) error {
	if strings.TrimSpace(permission) == "" {
		return invalidArgument("permission key cannot be blank")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	owner, err := s.ownerLocked(ref)
	if err != nil {
		return err
	}
	regionTag := s.ensureScope(s.regions, region, s.adapter.CreateRegion)
	worldTag := s.ensureScope(s.worlds, world, s.adapter.CreateWorld)

	permission = canonical(permission)
	found := findEntry(owner, regionTag, worldTag, permission)
	if found == nil {
		found = &entryRec{permission: permission, region: regionTag, world: worldTag}
		owner.entries = append(owner.entries, found)
	}
	found.value = value
	s.adapter.UpsertEntry(entryRecord(owner, found))
	return nil
}

// UnsetPermission removes an entry, reporting whether one existed. Any
// region/world tag left unreferenced is pruned.
func (s *Store) UnsetPermission(ref EntityRef, region, world, permission string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.lookupLocked(ref)
	if e == nil {
		return false
	}
	regionTag, ok := s.findScope(s.regions, region)
	if !ok {
		return false
	}
	worldTag, ok := s.findScope(s.worlds, world)
	if !ok {
		return false
	}

	permission = canonical(permission)
	for i, en := range e.entries {
		if en.permission == permission && en.region == regionTag && en.world == worldTag {
			e.entries = append(e.entries[:i], e.entries[i+1:]...)
			s.adapter.DeleteEntry(entryRecord(e, en))
			s.pruneScopesLocked()
			return true
		}
	}
	return false
}

// AddMember adds the player to the group, or updates the expiration of an
// existing membership. Fails with MISSING_GROUP if the group does not exist.
func (s *Store) AddMember(group string, member ulid.ULID, displayName string, expiration *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.groupLocked(group)
	if err != nil {
		return err
	}

	m := g.memberships[member]
	if m == nil {
		m = &membershipRec{group: g, member: member, displayName: displayName}
		g.memberships[member] = m
		s.rememberMembership(m)
	}
	m.expiration = copyTime(expiration)
	s.adapter.UpsertMembership(membershipRecord(m))
	return nil
}

// RemoveMember removes the player from the group, reporting whether a
// membership existed. Fails with MISSING_GROUP if the group does not exist.
func (s *Store) RemoveMember(group string, member ulid.ULID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.groupLocked(group)
	if err != nil {
		return false, err
	}
	m := g.memberships[member]
	if m == nil {
		return false, nil
	}
	delete(g.memberships, member)
	s.forgetMembership(m)
	s.adapter.DeleteMembership(membershipRecord(m))
	return true, nil
}

// SetGroup atomically removes the player from all other groups and ensures
// membership in exactly the named group (legacy single-primary-group
// operation). Expiration semantics match AddMember.
func (s *Store) SetGroup(member ulid.ULID, displayName, group string, expiration *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.groupLocked(group)
	if err != nil {
		return err
	}

	var found *membershipRec
	for _, m := range s.membersOf[member] {
		if m.group != g {
			delete(m.group.memberships, member)
			s.adapter.DeleteMembership(membershipRecord(m))
		} else {
			found = m
		}
	}
	delete(s.membersOf, member)

	if found == nil {
		found = &membershipRec{group: g, member: member, displayName: displayName}
		g.memberships[member] = found
	}
	found.expiration = copyTime(expiration)
	s.rememberMembership(found)
	s.adapter.UpsertMembership(membershipRecord(found))
	return nil
}

// Memberships returns every membership held by the player, including
// expired ones, sorted ascending by group priority with group name as the
// tie-break (lowest priority first).
func (s *Store) Memberships(member ulid.ULID) []Membership {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.membershipsLocked(member)
}

func (s *Store) membershipsLocked(member ulid.ULID) []Membership {
	recs := make([]*membershipRec, 0, len(s.membersOf[member]))
	for _, m := range s.membersOf[member] {
		recs = append(recs, m)
	}
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i].group, recs[j].group
		if a.priority != b.priority {
			return a.priority < b.priority
		}
		return a.name < b.name
	})
	out := make([]Membership, len(recs))
	for i, m := range recs {
		out[i] = membershipView(m)
	}
	return out
}

// EffectiveGroups returns the canonical names of the player's unexpired
// groups in resolution order (lowest priority first, name tie-break). A
// player with no live memberships yields the configured default group.
// This is the store-level home of the default-group fallback policy.
func (s *Store) EffectiveGroups(member ulid.ULID) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var out []string
	for _, m := range s.membershipsLocked(member) {
		if !m.Expired(now) {
			out = append(out, m.Group)
		}
	}
	if len(out) == 0 {
		out = append(out, s.defaultGroup)
	}
	return out
}

// Members returns the group's memberships sorted by member display name
// (case-insensitive). A nonexistent group yields an empty list.
func (s *Store) Members(group string) []Membership {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.groups[canonical(group)]
	if g == nil {
		return nil
	}
	out := make([]Membership, 0, len(g.memberships))
	for _, m := range g.memberships {
		out = append(out, membershipView(m))
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].DisplayName) < strings.ToLower(out[j].DisplayName)
	})
	return out
}

// SetParents replaces the group's full parent set with the given groups in
// order. The whole operation fails with MISSING_GROUP or INHERITANCE_CYCLE
// before any edge is changed; orderings are assigned in increments of 100
// in the order given, and the previous edge set is diffed against the new
// one to decide adds, removals, and updates.
func (s *Store) SetParents(group string, parents []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.groupLocked(group)
	if err != nil {
		return err
	}

	// Validate the whole batch before touching any edge.
	desired := make([]*inheritanceRec, 0, len(parents))
	seen := make(map[string]struct{}, len(parents))
	ordering := 0
	for _, parentName := range parents {
		parent, err := s.groupLocked(parentName)
		if err != nil {
			return err
		}
		if _, dup := seen[parent.name]; dup {
			continue
		}
		seen[parent.name] = struct{}{}

		// A search from the candidate parent over existing parent edges
		// must not reach the group itself.
		queue := []*entity{parent}
		for len(queue) > 0 {
			check := queue[0]
			queue = queue[1:]
			if check == g {
				return cycleError(g.displayName, parent.displayName)
			}
			for _, edge := range check.parentEdges {
				queue = append(queue, edge.parent)
			}
		}

		desired = append(desired, &inheritanceRec{child: g, parent: parent, ordering: ordering})
		ordering += 100
	}

	existing := make(map[string]*inheritanceRec, len(g.parentEdges))
	for _, edge := range g.parentEdges {
		existing[edge.parent.name] = edge
	}

	var next []*inheritanceRec
	for _, want := range desired {
		if have, ok := existing[want.parent.name]; ok {
			delete(existing, want.parent.name)
			if have.ordering != want.ordering {
				have.ordering = want.ordering
				s.adapter.UpsertInheritance(inheritanceRecord(have))
			}
			next = append(next, have)
			continue
		}
		want.parent.childEdges[g.name] = want
		s.adapter.UpsertInheritance(inheritanceRecord(want))
		next = append(next, want)
	}
	for _, gone := range existing {
		delete(gone.parent.childEdges, g.name)
		s.adapter.DeleteInheritance(inheritanceRecord(gone))
	}
	sortEdges(next)
	g.parentEdges = next
	return nil
}

// Parents returns the group's direct parent names in edge order. Fails with
// MISSING_GROUP if the group does not exist.
func (s *Store) Parents(group string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.groupLocked(group)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(g.parentEdges))
	for i, edge := range g.parentEdges {
		out[i] = edge.parent.displayName
	}
	return out, nil
}

// Ancestry returns every group reachable over parent edges from the named
// group plus the group itself, each exactly once, farthest ancestors first
// and the group itself last (breadth-first visitation order, reversed).
// A nonexistent group yields the ancestry of the configured default group,
// or an empty list if that is absent too.
func (s *Store) Ancestry(group string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ancestryLocked(group)
}

func (s *Store) ancestryLocked(group string) []string {
	g := s.groups[canonical(group)]
	if g == nil {
		g = s.groups[s.defaultGroup]
	}
	if g == nil {
		return nil
	}

	// Breadth-first over parent edges, deduplicating by first visit. The
	// BFS-then-reverse order is load-bearing for diamond inheritance:
	// changing it to a topological sort would change override outcomes.
	var names []string
	index := make(map[string]struct{})
	add := func(e *entity) {
		if _, ok := index[e.name]; ok {
			return
		}
		index[e.name] = struct{}{}
		names = append(names, e.displayName)
	}
	add(g)
	queue := make([]*entity, 0, len(g.parentEdges))
	for _, edge := range g.parentEdges {
		queue = append(queue, edge.parent)
	}
	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]
		add(e)
		for _, edge := range e.parentEdges {
			queue = append(queue, edge.parent)
		}
	}

	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return names
}

// SetPriority sets the group's priority/weight. Fails with MISSING_GROUP.
func (s *Store) SetPriority(group string, priority int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.groupLocked(group)
	if err != nil {
		return err
	}
	g.priority = priority
	s.adapter.SetPriority(entityRecord(g))
	return nil
}

// CreateGroup creates the group if absent, reporting whether it was created.
func (s *Store) CreateGroup(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.groups[canonical(name)] != nil {
		return false
	}
	s.createGroupLocked(name)
	return true
}

// DeleteEntity removes an entity, reporting whether anything was deleted.
// Deleting a group detaches its children (they become parentless, not
// reassigned) and removes all memberships to it; deleting a player removes
// all memberships the player holds. Unreferenced scopes are pruned.
func (s *Store) DeleteEntity(ref EntityRef) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ref.IsGroup() {
		g := s.groups[canonical(ref.Name)]
		if g == nil {
			return false
		}
		for _, edge := range g.parentEdges {
			delete(edge.parent.childEdges, g.name)
		}
		for _, edge := range g.childEdges {
			removeEdge(edge.child, edge)
		}
		for member := range g.memberships {
			if byGroup := s.membersOf[member]; byGroup != nil {
				delete(byGroup, g.name)
			}
		}
		delete(s.groups, g.name)
		// The adapter cascades entries, memberships, and edges that
		// reference the deleted entity.
		s.adapter.DeleteEntity(entityRecord(g))
		s.pruneScopesLocked()
		return true
	}

	found := false
	for _, m := range s.membersOf[ref.ID] {
		delete(m.group.memberships, ref.ID)
		s.adapter.DeleteMembership(membershipRecord(m))
		found = true
	}
	delete(s.membersOf, ref.ID)

	if p := s.players[ref.ID]; p != nil {
		delete(s.players, ref.ID)
		s.adapter.DeleteEntity(entityRecord(p))
		s.pruneScopesLocked()
		found = true
	}
	return found
}

// Entity returns a read-only view of the referenced entity.
func (s *Store) Entity(ref EntityRef) (Entity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.lookupLocked(ref)
	if e == nil {
		return Entity{}, false
	}
	return entityView(e), true
}

// Entities lists all entities of the given kind.
func (s *Store) Entities(kind Kind) []Entity {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Entity
	if kind == KindGroup {
		for _, g := range s.groups {
			out = append(out, entityView(g))
		}
	} else {
		for _, p := range s.players {
			out = append(out, entityView(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// EntityNames lists display names of all entities of the given kind.
func (s *Store) EntityNames(kind Kind) []string {
	entities := s.Entities(kind)
	out := make([]string, len(entities))
	for i, e := range entities {
		out[i] = e.DisplayName
	}
	return out
}

// Entries returns copies of the entity's permission entries. A missing
// entity yields nil (the nonexistent default group resolves to nothing).
func (s *Store) Entries(ref EntityRef) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.lookupLocked(ref)
	if e == nil {
		return nil
	}
	out := make([]Entry, len(e.entries))
	for i, en := range e.entries {
		out[i] = Entry{
			Permission: en.permission,
			Value:      en.value,
			Region:     scopeName(en.region),
			World:      scopeName(en.world),
		}
	}
	return out
}

// GetMetadata reads a named metadata value (case-insensitive).
func (s *Store) GetMetadata(ref EntityRef, name string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.lookupLocked(ref)
	if e == nil {
		return nil, false
	}
	if md := e.metadata[canonical(name)]; md != nil {
		return md.value, true
	}
	return nil, false
}

// SetMetadata creates or updates a typed metadata value. Allowed types are
// string, bool, int/int64, and float64; anything else is INVALID_ARGUMENT.
func (s *Store) SetMetadata(ref EntityRef, name string, value any) error {
	if strings.TrimSpace(name) == "" {
		return invalidArgument("metadata name cannot be blank")
	}
	value, err := normalizeMetadataValue(value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	owner, err := s.ownerLocked(ref)
	if err != nil {
		return err
	}
	name = canonical(name)
	md := owner.metadata[name]
	if md == nil {
		md = &metadataRec{name: name}
		owner.metadata[name] = md
	}
	md.value = value
	s.adapter.UpsertMetadata(MetadataRecord{Owner: entityRecord(owner), Name: name, Value: value})
	return nil
}

// UnsetMetadata removes a metadata value, reporting whether one existed.
func (s *Store) UnsetMetadata(ref EntityRef, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.lookupLocked(ref)
	if e == nil {
		return false
	}
	name = canonical(name)
	if _, ok := e.metadata[name]; !ok {
		return false
	}
	delete(e.metadata, name)
	s.adapter.DeleteMetadata(MetadataRecord{Owner: entityRecord(e), Name: name})
	return true
}

// AllMetadata returns a copy of the entity's metadata map (keys lowercased).
func (s *Store) AllMetadata(ref EntityRef) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.lookupLocked(ref)
	if e == nil {
		return nil
	}
	out := make(map[string]any, len(e.metadata))
	for name, md := range e.metadata {
		out[name] = md.value
	}
	return out
}

// UpdateDisplayName records a player's last-seen display name on the player
// entity and every membership the player holds.
func (s *Store) UpdateDisplayName(member ulid.ULID, displayName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p := s.players[member]; p != nil && p.displayName != displayName {
		p.displayName = displayName
		s.adapter.UpdateDisplayName(entityRecord(p))
	}
	for _, m := range s.membersOf[member] {
		if m.displayName != displayName {
			m.displayName = displayName
			s.adapter.UpsertMembership(membershipRecord(m))
		}
	}
}

// --- internals (all require s.mu held) ---

func (s *Store) lookupLocked(ref EntityRef) *entity {
	if ref.IsGroup() {
		return s.groups[canonical(ref.Name)]
	}
	return s.players[ref.ID]
}

// ownerLocked resolves a reference for a write: groups must already exist,
// players are created implicitly.
func (s *Store) ownerLocked(ref EntityRef) (*entity, error) {
	if ref.IsGroup() {
		return s.groupLocked(ref.Name)
	}
	if ref.ID == (ulid.ULID{}) {
		return nil, invalidArgument("player reference requires a non-zero id")
	}
	p := s.players[ref.ID]
	if p == nil {
		p = &entity{
			kind:        KindPlayer,
			id:          ref.ID,
			name:        ref.ID.String(),
			displayName: ref.Name,
			metadata:    make(map[string]*metadataRec),
		}
		s.players[ref.ID] = p
		s.adapter.CreateEntity(entityRecord(p))
	}
	return p, nil
}

func (s *Store) groupLocked(name string) (*entity, error) {
	if strings.TrimSpace(name) == "" {
		return nil, invalidArgument("group name cannot be blank")
	}
	g := s.groups[canonical(name)]
	if g == nil {
		return nil, missingGroup(name)
	}
	return g, nil
}

func (s *Store) createGroupLocked(name string) *entity {
	g := &entity{
		kind:        KindGroup,
		name:        canonical(name),
		displayName: name,
		metadata:    make(map[string]*metadataRec),
		memberships: make(map[ulid.ULID]*membershipRec),
		childEdges:  make(map[string]*inheritanceRec),
	}
	s.groups[g.name] = g
	s.adapter.CreateEntity(entityRecord(g))
	return g
}

func (s *Store) rememberMembership(m *membershipRec) {
	byGroup := s.membersOf[m.member]
	if byGroup == nil {
		byGroup = make(map[string]*membershipRec)
		s.membersOf[m.member] = byGroup
	}
	byGroup[m.group.name] = m
}

func (s *Store) forgetMembership(m *membershipRec) {
	if byGroup := s.membersOf[m.member]; byGroup != nil {
		delete(byGroup, m.group.name)
		if len(byGroup) == 0 {
			delete(s.membersOf, m.member)
		}
	}
}

func (s *Store) findScope(scopes map[string]*scopeTag, name string) (*scopeTag, bool) {
	if name == "" {
		return nil, true
	}
	tag, ok := scopes[canonical(name)]
	return tag, ok
}

func (s *Store) ensureScope(scopes map[string]*scopeTag, name string, created func(string)) *scopeTag {
	if name == "" {
		return nil
	}
	key := canonical(name)
	tag := scopes[key]
	if tag == nil {
		tag = &scopeTag{name: key}
		scopes[key] = tag
		created(key)
	}
	return tag
}

func (s *Store) internScope(scopes map[string]*scopeTag, name string) *scopeTag {
	if name == "" {
		return nil
	}
	key := canonical(name)
	tag := scopes[key]
	if tag == nil {
		tag = &scopeTag{name: key}
		scopes[key] = tag
	}
	return tag
}

// pruneScopesLocked drops region/world tags no entry references anymore.
func (s *Store) pruneScopesLocked() {
	usedRegions := make(map[*scopeTag]struct{})
	usedWorlds := make(map[*scopeTag]struct{})
	scan := func(e *entity) {
		for _, en := range e.entries {
			if en.region != nil {
				usedRegions[en.region] = struct{}{}
			}
			if en.world != nil {
				usedWorlds[en.world] = struct{}{}
			}
		}
	}
	for _, g := range s.groups {
		scan(g)
	}
	for _, p := range s.players {
		scan(p)
	}

	var goneRegions, goneWorlds []string
	for name, tag := range s.regions {
		if _, ok := usedRegions[tag]; !ok {
			delete(s.regions, name)
			goneRegions = append(goneRegions, name)
		}
	}
	for name, tag := range s.worlds {
		if _, ok := usedWorlds[tag]; !ok {
			delete(s.worlds, name)
			goneWorlds = append(goneWorlds, name)
		}
	}
	if len(goneRegions) > 0 {
		s.adapter.DeleteRegions(goneRegions)
	}
	if len(goneWorlds) > 0 {
		s.adapter.DeleteWorlds(goneWorlds)
	}
}

func findEntry(e *entity, region, world *scopeTag, permission string) *entryRec {
	permission = canonical(permission)
	for _, en := range e.entries {
		if en.permission == permission && en.region == region && en.world == world {
			return en
		}
	}
	return nil
}

func removeEdge(child *entity, edge *inheritanceRec) {
	for i, e := range child.parentEdges {
		if e == edge {
			child.parentEdges = append(child.parentEdges[:i], child.parentEdges[i+1:]...)
			return
		}
	}
}

func sortEdges(edges []*inheritanceRec) {
	sort.Slice(edges, func(i, j int) bool { return edges[i].ordering < edges[j].ordering })
}

func normalizeMetadataValue(value any) (any, error) {
	switch v := value.(type) {
	case string, bool, int64, float64:
		return v, nil
	case int:
		return int64(v), nil
	default:
		return nil, invalidArgument("unsupported metadata value type %T", value)
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func scopeName(tag *scopeTag) string {
	if tag == nil {
		return ""
	}
	return tag.name
}

func entityRecord(e *entity) EntityRecord {
	return EntityRecord{
		Kind:        e.kind,
		ID:          e.id,
		Name:        e.name,
		DisplayName: e.displayName,
		Priority:    e.priority,
	}
}

func entryRecord(e *entity, en *entryRec) EntryRecord {
	return EntryRecord{
		Owner:      entityRecord(e),
		Permission: en.permission,
		Value:      en.value,
		Region:     scopeName(en.region),
		World:      scopeName(en.world),
	}
}

func membershipRecord(m *membershipRec) MembershipRecord {
	return MembershipRecord{
		Group:       m.group.name,
		Member:      m.member,
		DisplayName: m.displayName,
		Expiration:  copyTime(m.expiration),
	}
}

func inheritanceRecord(i *inheritanceRec) InheritanceRecord {
	return InheritanceRecord{
		Child:    i.child.name,
		Parent:   i.parent.name,
		Ordering: i.ordering,
	}
}

func membershipView(m *membershipRec) Membership {
	return Membership{
		Group:       m.group.name,
		Member:      m.member,
		DisplayName: m.displayName,
		Expiration:  copyTime(m.expiration),
	}
}

func entityView(e *entity) Entity {
	return Entity{
		Kind:        e.kind,
		ID:          e.id,
		Name:        e.name,
		DisplayName: e.displayName,
		Priority:    e.priority,
	}
}

func refForRecord(rec EntityRecord) EntityRef {
	if rec.Kind == KindGroup {
		return GroupRef(rec.Name)
	}
	return PlayerRef(rec.ID, rec.DisplayName)
}
