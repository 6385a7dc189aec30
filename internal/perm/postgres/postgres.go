// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatewarden Contributors

// Package postgres persists the permission graph to PostgreSQL. Mutations
// arrive as fire-and-forget hooks from the store and are applied by a
// single background writer with retry; reads happen only through Load at
// startup.
package postgres

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/gatewarden/gatewarden/internal/perm"
)

// poolIface is the subset of pgxpool.Pool the adapter needs. pgxmock
// satisfies it in tests.
type poolIface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

const (
	writeQueueSize = 1024
	writeTimeout   = 10 * time.Second
	maxRetries     = 5
)

// Adapter implements perm.Adapter against PostgreSQL.
type Adapter struct {
	pool poolIface
	log  *slog.Logger

	writes    chan writeOp
	done      chan struct{}
	closeOnce sync.Once
}

type writeOp struct {
	op   string
	sql  string
	args []any
}

var _ perm.Adapter = (*Adapter)(nil)

// New connects a pool and starts the background writer.
func New(ctx context.Context, dsn string, logger *slog.Logger) (*Adapter, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.In("postgres").With("operation", "connect").Wrap(err)
	}
	return NewWithPool(pool, logger), nil
}

// NewWithPool wraps an existing pool (or a pgxmock pool in tests) and
// starts the background writer.
func NewWithPool(pool poolIface, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Adapter{
		pool:   pool,
		log:    logger,
		writes: make(chan writeOp, writeQueueSize),
		done:   make(chan struct{}),
	}
	go a.writer()
	return a
}

// Close drains queued writes, stops the writer, and closes the pool.
func (a *Adapter) Close() {
	a.closeOnce.Do(func() {
		close(a.writes)
		<-a.done
		a.pool.Close()
	})
}

// enqueue hands a statement to the background writer. Hooks are called
// under the store lock, so this must not block in the common case; the
// queue is sized generously and overflow blocks rather than dropping a
// durable write.
func (a *Adapter) enqueue(op, sql string, args ...any) {
	a.writes <- writeOp{op: op, sql: sql, args: args}
}

func (a *Adapter) writer() {
	defer close(a.done)
	for w := range a.writes {
		a.apply(w)
	}
}

func (a *Adapter) apply(w writeOp) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	backoff := retry.WithMaxRetries(maxRetries, retry.NewExponential(50*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if _, err := a.pool.Exec(ctx, w.sql, w.args...); err != nil {
			if transient(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		// Fire-and-forget contract: the in-memory change stands, the
		// write is lost. Loud log, no propagation.
		a.log.Error("dropping failed permission write",
			"op", w.op,
			"error", err)
	}
}

// transient reports whether the error is worth retrying: connection-level
// failures and serialization/deadlock aborts. Constraint violations are
// permanent.
func transient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.SerializationFailure,
			pgerrcode.DeadlockDetected,
			pgerrcode.AdminShutdown,
			pgerrcode.CrashShutdown,
			pgerrcode.CannotConnectNow:
			return true
		}
		return pgerrcode.IsConnectionException(pgErr.Code)
	}
	// Network-level errors arrive without a PostgreSQL code.
	return !errors.Is(err, context.Canceled)
}

func (a *Adapter) CreateEntity(e perm.EntityRecord) {
	a.enqueue("create entity",
		`INSERT INTO entities (name, is_group, display_name, priority)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (name) DO UPDATE SET display_name = EXCLUDED.display_name`,
		e.Name, e.Kind == perm.KindGroup, e.DisplayName, e.Priority)
}

func (a *Adapter) DeleteEntity(e perm.EntityRecord) {
	a.enqueue("delete entity",
		`DELETE FROM entities WHERE name = $1`,
		e.Name)
}

func (a *Adapter) UpdateDisplayName(e perm.EntityRecord) {
	a.enqueue("update display name",
		`UPDATE entities SET display_name = $2 WHERE name = $1`,
		e.Name, e.DisplayName)
}

func (a *Adapter) SetPriority(e perm.EntityRecord) {
	a.enqueue("set priority",
		`UPDATE entities SET priority = $2 WHERE name = $1`,
		e.Name, e.Priority)
}

func (a *Adapter) UpsertEntry(e perm.EntryRecord) {
	a.enqueue("upsert entry",
		`INSERT INTO entries (entity_name, region, world, permission, value)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (entity_name, region, world, permission)
		 DO UPDATE SET value = EXCLUDED.value`,
		e.Owner.Name, e.Region, e.World, e.Permission, e.Value)
}

func (a *Adapter) DeleteEntry(e perm.EntryRecord) {
	a.enqueue("delete entry",
		`DELETE FROM entries
		 WHERE entity_name = $1 AND region = $2 AND world = $3 AND permission = $4`,
		e.Owner.Name, e.Region, e.World, e.Permission)
}

func (a *Adapter) UpsertMembership(m perm.MembershipRecord) {
	a.enqueue("upsert membership",
		`INSERT INTO memberships (group_name, member_id, display_name, expiration)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (group_name, member_id)
		 DO UPDATE SET display_name = EXCLUDED.display_name, expiration = EXCLUDED.expiration`,
		m.Group, m.Member.String(), m.DisplayName, m.Expiration)
}

func (a *Adapter) DeleteMembership(m perm.MembershipRecord) {
	a.enqueue("delete membership",
		`DELETE FROM memberships WHERE group_name = $1 AND member_id = $2`,
		m.Group, m.Member.String())
}

func (a *Adapter) UpsertInheritance(i perm.InheritanceRecord) {
	a.enqueue("upsert inheritance",
		`INSERT INTO inheritances (child_name, parent_name, ordering)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (child_name, parent_name) DO UPDATE SET ordering = EXCLUDED.ordering`,
		i.Child, i.Parent, i.Ordering)
}

func (a *Adapter) DeleteInheritance(i perm.InheritanceRecord) {
	a.enqueue("delete inheritance",
		`DELETE FROM inheritances WHERE child_name = $1 AND parent_name = $2`,
		i.Child, i.Parent)
}

func (a *Adapter) UpsertMetadata(m perm.MetadataRecord) {
	var (
		stringValue *string
		intValue    *int64
		realValue   *float64
		boolValue   *bool
	)
	switch v := m.Value.(type) {
	case string:
		stringValue = &v
	case int64:
		intValue = &v
	case float64:
		realValue = &v
	case bool:
		boolValue = &v
	}
	a.enqueue("upsert metadata",
		`INSERT INTO metadata (entity_name, name, string_value, int_value, real_value, bool_value)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (entity_name, name)
		 DO UPDATE SET string_value = EXCLUDED.string_value, int_value = EXCLUDED.int_value,
		               real_value = EXCLUDED.real_value, bool_value = EXCLUDED.bool_value`,
		m.Owner.Name, m.Name, stringValue, intValue, realValue, boolValue)
}

func (a *Adapter) DeleteMetadata(m perm.MetadataRecord) {
	a.enqueue("delete metadata",
		`DELETE FROM metadata WHERE entity_name = $1 AND name = $2`,
		m.Owner.Name, m.Name)
}

func (a *Adapter) CreateRegion(name string) {
	a.enqueue("create region",
		`INSERT INTO regions (name) VALUES ($1) ON CONFLICT DO NOTHING`, name)
}

func (a *Adapter) DeleteRegions(names []string) {
	a.enqueue("delete regions",
		`DELETE FROM regions WHERE name = ANY($1)`, names)
}

func (a *Adapter) CreateWorld(name string) {
	a.enqueue("create world",
		`INSERT INTO worlds (name) VALUES ($1) ON CONFLICT DO NOTHING`, name)
}

func (a *Adapter) DeleteWorlds(names []string) {
	a.enqueue("delete worlds",
		`DELETE FROM worlds WHERE name = ANY($1)`, names)
}

// Load reads the whole persisted graph for initial store population.
func (a *Adapter) Load(ctx context.Context) (*perm.Snapshot, error) {
	snap := &perm.Snapshot{}
	entities := make(map[string]perm.EntityRecord)

	rows, err := a.pool.Query(ctx,
		`SELECT name, is_group, display_name, priority FROM entities`)
	if err != nil {
		return nil, oops.In("postgres").With("operation", "load entities").Wrap(err)
	}
	for rows.Next() {
		var (
			name, displayName string
			isGroup           bool
			priority          int
		)
		if err := rows.Scan(&name, &isGroup, &displayName, &priority); err != nil {
			rows.Close()
			return nil, oops.In("postgres").With("operation", "scan entity").Wrap(err)
		}
		rec := perm.EntityRecord{
			Kind:        perm.KindGroup,
			Name:        name,
			DisplayName: displayName,
			Priority:    priority,
		}
		if !isGroup {
			id, err := ulid.Parse(name)
			if err != nil {
				a.log.Warn("skipping player entity with unparseable id", "name", name)
				continue
			}
			rec.Kind = perm.KindPlayer
			rec.ID = id
		}
		entities[name] = rec
		snap.Entities = append(snap.Entities, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, oops.In("postgres").With("operation", "iterate entities").Wrap(err)
	}

	rows, err = a.pool.Query(ctx,
		`SELECT entity_name, region, world, permission, value FROM entries`)
	if err != nil {
		return nil, oops.In("postgres").With("operation", "load entries").Wrap(err)
	}
	for rows.Next() {
		var (
			entityName, region, world, permission string
			value                                 bool
		)
		if err := rows.Scan(&entityName, &region, &world, &permission, &value); err != nil {
			rows.Close()
			return nil, oops.In("postgres").With("operation", "scan entry").Wrap(err)
		}
		owner, ok := entities[entityName]
		if !ok {
			continue
		}
		snap.Entries = append(snap.Entries, perm.EntryRecord{
			Owner:      owner,
			Permission: permission,
			Value:      value,
			Region:     region,
			World:      world,
		})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, oops.In("postgres").With("operation", "iterate entries").Wrap(err)
	}

	rows, err = a.pool.Query(ctx,
		`SELECT group_name, member_id, display_name, expiration FROM memberships`)
	if err != nil {
		return nil, oops.In("postgres").With("operation", "load memberships").Wrap(err)
	}
	for rows.Next() {
		var (
			groupName, memberID, displayName string
			expiration                       *time.Time
		)
		if err := rows.Scan(&groupName, &memberID, &displayName, &expiration); err != nil {
			rows.Close()
			return nil, oops.In("postgres").With("operation", "scan membership").Wrap(err)
		}
		member, err := ulid.Parse(memberID)
		if err != nil {
			a.log.Warn("skipping membership with unparseable member id", "member_id", memberID)
			continue
		}
		snap.Memberships = append(snap.Memberships, perm.MembershipRecord{
			Group:       groupName,
			Member:      member,
			DisplayName: displayName,
			Expiration:  expiration,
		})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, oops.In("postgres").With("operation", "iterate memberships").Wrap(err)
	}

	rows, err = a.pool.Query(ctx,
		`SELECT child_name, parent_name, ordering FROM inheritances`)
	if err != nil {
		return nil, oops.In("postgres").With("operation", "load inheritances").Wrap(err)
	}
	for rows.Next() {
		var rec perm.InheritanceRecord
		if err := rows.Scan(&rec.Child, &rec.Parent, &rec.Ordering); err != nil {
			rows.Close()
			return nil, oops.In("postgres").With("operation", "scan inheritance").Wrap(err)
		}
		snap.Inheritances = append(snap.Inheritances, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, oops.In("postgres").With("operation", "iterate inheritances").Wrap(err)
	}

	rows, err = a.pool.Query(ctx,
		`SELECT entity_name, name, string_value, int_value, real_value, bool_value FROM metadata`)
	if err != nil {
		return nil, oops.In("postgres").With("operation", "load metadata").Wrap(err)
	}
	for rows.Next() {
		var (
			entityName, name string
			stringValue      *string
			intValue         *int64
			realValue        *float64
			boolValue        *bool
		)
		if err := rows.Scan(&entityName, &name, &stringValue, &intValue, &realValue, &boolValue); err != nil {
			rows.Close()
			return nil, oops.In("postgres").With("operation", "scan metadata").Wrap(err)
		}
		owner, ok := entities[entityName]
		if !ok {
			continue
		}
		var value any
		switch {
		case stringValue != nil:
			value = *stringValue
		case intValue != nil:
			value = *intValue
		case realValue != nil:
			value = *realValue
		case boolValue != nil:
			value = *boolValue
		default:
			continue
		}
		snap.Metadata = append(snap.Metadata, perm.MetadataRecord{
			Owner: owner,
			Name:  name,
			Value: value,
		})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, oops.In("postgres").With("operation", "iterate metadata").Wrap(err)
	}

	return snap, nil
}
