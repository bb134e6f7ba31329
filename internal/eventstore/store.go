// Package eventstore owns the durable layer: an append-only sequence of
// audit records plus a current-entities table derived from it.
//
// The entities table is an index over the log, rebuildable by replaying
// all records in (created_at, seq) order; the log is the single source
// of truth. Commit is the only write primitive — there is no way to
// update or delete a stored record.
package eventstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"kasrt/internal/audit"
)

var (
	ErrNotFound = errors.New("eventstore: not found")

	// ErrConflict means the entity's version no longer matches what the
	// caller read. Nothing was written; the caller sees fresh state or
	// surfaces the conflict.
	ErrConflict = errors.New("eventstore: version conflict")
)

// Entity is one row of the current-view table.
type Entity struct {
	Type      string
	ID        string
	Data      json.RawMessage
	Version   int64
	UpdatedAt time.Time
}

// Change is one atomic unit of work: exactly one entity write (or
// removal) and exactly one audit record, committed together or not at
// all.
type Change struct {
	EntityType string
	EntityID   string

	// Data is the new entity state; nil removes the entity from the
	// current view (the audit trail keeps its history).
	Data json.RawMessage

	// ExpectVersion is the optimistic concurrency check: the entity's
	// current version, or 0 if the entity must not exist yet. Two
	// concurrent mutations to the same entity cannot both pass it.
	ExpectVersion int64

	Record audit.Record
}

func (ch Change) validate() error {
	if ch.EntityType == "" || ch.EntityID == "" {
		return errors.New("eventstore: change requires entity type and id")
	}
	if ch.Data == nil && ch.ExpectVersion == 0 {
		return errors.New("eventstore: cannot remove an entity that must not exist")
	}
	return ch.Record.Validate()
}

// RecordFilter narrows ListRecords. Zero values mean "any".
type RecordFilter struct {
	EntityType string
	EntityID   string
	Action     audit.Action

	// Ascending returns oldest-first (replay order); default is
	// newest-first (audit log UI order).
	Ascending bool
	Limit     int
}

// Store is the persistence contract for the ledger core.
type Store interface {
	// Commit atomically applies the entity change and appends the audit
	// record, assigning its sequence number. Fails with ErrConflict on a
	// version mismatch and writes nothing.
	Commit(ctx context.Context, ch Change) (audit.Record, error)

	Entity(ctx context.Context, entityType, entityID string) (Entity, error)

	// Entities returns a consistent snapshot of the current view for one
	// entity type. Safe to call concurrently with Commit; it never
	// observes a half-committed audit-plus-entity pair.
	Entities(ctx context.Context, entityType string) ([]Entity, error)

	Record(ctx context.Context, id string) (audit.Record, error)
	Records(ctx context.Context, f RecordFilter) ([]audit.Record, error)
}
