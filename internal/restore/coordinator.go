// Package restore reverts entities to prior audited snapshots.
//
// A restore never rewrites history: it is an ordinary mutation routed
// through the ledger engine, so it appends its own audit record with the
// pre-restore state as `before` and the revived snapshot as `after`.
package restore

import (
	"context"
	"errors"
	"fmt"

	"kasrt/internal/audit"
	"kasrt/internal/eventstore"
	"kasrt/internal/ledger"
)

var (
	ErrNotFound = errors.New("restore: audit record not found")

	// ErrNotRestorable covers create, setup_admin and prior restore
	// records, and records for entity types without restore support.
	ErrNotRestorable = errors.New("restore: record not restorable")

	// ErrConflict mirrors the event store conflict: the entity's current
	// state diverged from what the inverse operation expects.
	ErrConflict = errors.New("restore: entity state diverged")
)

// Coordinator is the authority on restorability. The UI disables the
// restore button for non-restorable records, but only this check counts.
type Coordinator struct {
	store  eventstore.Store
	engine *ledger.Engine
}

func NewCoordinator(store eventstore.Store, engine *ledger.Engine) *Coordinator {
	return &Coordinator{store: store, engine: engine}
}

// Result is the outcome of a successful restore.
type Result struct {
	Record      audit.Record       `json:"record"`
	Transaction ledger.Transaction `json:"transaction"`
}

// Restore computes the inverse of the target record and applies it
// through the ledger engine's normal mutation path.
func (c *Coordinator) Restore(ctx context.Context, actor, auditID string) (Result, error) {
	target, err := c.store.Record(ctx, auditID)
	if errors.Is(err, eventstore.ErrNotFound) {
		return Result{}, ErrNotFound
	}
	if err != nil {
		return Result{}, err
	}

	if target.EntityType != ledger.EntityType {
		return Result{}, fmt.Errorf("%w: entity type %q", ErrNotRestorable, target.EntityType)
	}
	switch target.Action {
	case audit.ActionUpdate, audit.ActionDelete, audit.ActionCorrection:
	default:
		return Result{}, fmt.Errorf("%w: action %q", ErrNotRestorable, target.Action)
	}
	if target.Before == nil {
		return Result{}, fmt.Errorf("%w: record has no before snapshot", ErrNotRestorable)
	}

	tx, rec, err := c.engine.ApplyRestore(ctx, actor, target)
	if errors.Is(err, eventstore.ErrConflict) {
		return Result{}, fmt.Errorf("%w: %v", ErrConflict, err)
	}
	if err != nil {
		return Result{}, err
	}
	return Result{Record: rec, Transaction: tx}, nil
}
