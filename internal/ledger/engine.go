package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"time"

	"kasrt/internal/audit"
	"kasrt/internal/eventstore"

	"github.com/google/uuid"
)

// Engine applies ledger mutations and derives balances.
//
// Every mutation commits its entity change together with exactly one
// audit record through eventstore.Commit; the engine never performs an
// unaudited state change. The current view held by the store is an
// index over the audit log, not a second source of truth.
type Engine struct {
	store eventstore.Store
	rec   *audit.Recorder
	clock func() time.Time
}

func NewEngine(store eventstore.Store, rec *audit.Recorder) *Engine {
	return &Engine{store: store, rec: rec, clock: time.Now}
}

// NewEngineAt pins the engine clock, for tests.
func NewEngineAt(store eventstore.Store, rec *audit.Recorder, clock func() time.Time) *Engine {
	return &Engine{store: store, rec: rec, clock: clock}
}

func (e *Engine) Create(ctx context.Context, actor string, in CreateInput) (Transaction, error) {
	tx := Transaction{
		ID:          uuid.NewString(),
		Type:        in.Type,
		Amount:      in.Amount,
		Category:    in.Category,
		Description: in.Description,
		CreatedAt:   e.clock().UTC(),
		CreatedBy:   actor,
	}
	if err := tx.validate(); err != nil {
		return Transaction{}, err
	}

	snap, err := tx.snapshot()
	if err != nil {
		return Transaction{}, err
	}
	rec, err := e.rec.New(audit.ActionCreate, EntityType, tx.ID, nil, snap,
		fmt.Sprintf("created %s %d (%s)", tx.Type, tx.Amount, tx.Category), actor)
	if err != nil {
		return Transaction{}, err
	}

	if _, err := e.store.Commit(ctx, eventstore.Change{
		EntityType: EntityType,
		EntityID:   tx.ID,
		Data:       snap,
		Record:     rec,
	}); err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

// Update patches the mutable fields of a transaction and records an
// `update` audit event with before/after snapshots.
func (e *Engine) Update(ctx context.Context, actor, id string, p Patch) (Transaction, error) {
	return e.patch(ctx, actor, id, p, audit.ActionUpdate)
}

// Correct is an Update recorded as a `correction`, which the audit log
// UI displays separately from routine edits.
func (e *Engine) Correct(ctx context.Context, actor, id string, p Patch) (Transaction, error) {
	return e.patch(ctx, actor, id, p, audit.ActionCorrection)
}

func (e *Engine) patch(ctx context.Context, actor, id string, p Patch, action audit.Action) (Transaction, error) {
	ent, before, err := e.load(ctx, id)
	if err != nil {
		return Transaction{}, err
	}

	after := p.apply(before)
	if err := after.validate(); err != nil {
		return Transaction{}, err
	}

	beforeSnap := json.RawMessage(ent.Data)
	afterSnap, err := after.snapshot()
	if err != nil {
		return Transaction{}, err
	}
	rec, err := e.rec.New(action, EntityType, id, beforeSnap, afterSnap, changeNote(before, after), actor)
	if err != nil {
		return Transaction{}, err
	}

	if _, err := e.store.Commit(ctx, eventstore.Change{
		EntityType:    EntityType,
		EntityID:      id,
		Data:          afterSnap,
		ExpectVersion: ent.Version,
		Record:        rec,
	}); err != nil {
		return Transaction{}, err
	}
	return after, nil
}

// Delete removes a transaction from the current view. Its audit history
// persists and the delete itself is recorded with a before snapshot, so
// it stays restorable.
func (e *Engine) Delete(ctx context.Context, actor, id string) error {
	ent, before, err := e.load(ctx, id)
	if err != nil {
		return err
	}

	rec, err := e.rec.New(audit.ActionDelete, EntityType, id, json.RawMessage(ent.Data), nil,
		fmt.Sprintf("deleted %s %d (%s)", before.Type, before.Amount, before.Category), actor)
	if err != nil {
		return err
	}

	_, err = e.store.Commit(ctx, eventstore.Change{
		EntityType:    EntityType,
		EntityID:      id,
		Data:          nil,
		ExpectVersion: ent.Version,
		Record:        rec,
	})
	return err
}

// ApplyRestore re-enters the normal mutation path on behalf of the
// restore coordinator: the entity is set back to the target record's
// before snapshot and a `restore` record is appended with the current
// state as its own before.
//
// Conflict rules:
// - restoring a delete requires the entity to be absent, or present with
//   state identical to the snapshot (then the restore is a state no-op
//   that still appends a record);
// - restoring an update/correction requires the entity to exist.
// Anything else means the entity diverged since the target record was
// written, and the conflict is surfaced instead of guessed around.
func (e *Engine) ApplyRestore(ctx context.Context, actor string, target audit.Record) (Transaction, audit.Record, error) {
	if target.EntityType != EntityType {
		return Transaction{}, audit.Record{}, fmt.Errorf("%w: cannot restore entity type %q", ErrValidation, target.EntityType)
	}

	var restored Transaction
	if err := json.Unmarshal(target.Before, &restored); err != nil {
		return Transaction{}, audit.Record{}, fmt.Errorf("%w: target snapshot is not a transaction: %v", ErrValidation, err)
	}
	if err := restored.validate(); err != nil {
		return Transaction{}, audit.Record{}, err
	}

	var (
		beforeSnap    json.RawMessage
		expectVersion int64
	)
	ent, err := e.store.Entity(ctx, EntityType, target.EntityID)
	switch {
	case err == nil:
		if target.Action == audit.ActionDelete && !jsonEqual(ent.Data, target.Before) {
			return Transaction{}, audit.Record{}, eventstore.ErrConflict
		}
		beforeSnap = json.RawMessage(ent.Data)
		expectVersion = ent.Version
	case errors.Is(err, eventstore.ErrNotFound):
		if target.Action != audit.ActionDelete {
			// The entity was deleted after the target record was written;
			// restoring the edit would silently resurrect it.
			return Transaction{}, audit.Record{}, eventstore.ErrConflict
		}
	default:
		return Transaction{}, audit.Record{}, err
	}

	rec, err := e.rec.New(audit.ActionRestore, EntityType, target.EntityID,
		beforeSnap, target.Before,
		fmt.Sprintf("restored from %s (audit %s)", target.Action, target.ID), actor)
	if err != nil {
		return Transaction{}, audit.Record{}, err
	}

	out, err := e.store.Commit(ctx, eventstore.Change{
		EntityType:    EntityType,
		EntityID:      target.EntityID,
		Data:          target.Before,
		ExpectVersion: expectVersion,
		Record:        rec,
	})
	if err != nil {
		return Transaction{}, audit.Record{}, err
	}
	return restored, out, nil
}

func (e *Engine) Get(ctx context.Context, id string) (Transaction, error) {
	_, tx, err := e.load(ctx, id)
	return tx, err
}

// List returns the current (non-deleted) transactions, newest first.
func (e *Engine) List(ctx context.Context) ([]Transaction, error) {
	txs, err := e.current(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(txs, func(i, j int) bool {
		if txs[i].CreatedAt.Equal(txs[j].CreatedAt) {
			return txs[i].ID > txs[j].ID
		}
		return txs[i].CreatedAt.After(txs[j].CreatedAt)
	})
	return txs, nil
}

// ComputeBalance replays every current transaction with created_at <=
// asOf (zero asOf means now) in ascending chronological order and folds
// income minus expense. It is a pure fold over a consistent snapshot;
// no cached counter is consulted.
func (e *Engine) ComputeBalance(ctx context.Context, asOf time.Time) (Balance, error) {
	if asOf.IsZero() {
		asOf = e.clock().UTC()
	}
	txs, err := e.current(ctx)
	if err != nil {
		return Balance{}, err
	}
	sort.Slice(txs, func(i, j int) bool {
		if txs[i].CreatedAt.Equal(txs[j].CreatedAt) {
			return txs[i].ID < txs[j].ID
		}
		return txs[i].CreatedAt.Before(txs[j].CreatedAt)
	})

	var b Balance
	for _, tx := range txs {
		if tx.CreatedAt.After(asOf) {
			continue
		}
		switch tx.Type {
		case TypeIncome:
			b.IncomeTotal += tx.Amount
		case TypeExpense:
			b.ExpenseTotal += tx.Amount
		}
		b.Balance += tx.Signed()
	}
	return b, nil
}

func (e *Engine) current(ctx context.Context) ([]Transaction, error) {
	ents, err := e.store.Entities(ctx, EntityType)
	if err != nil {
		return nil, err
	}
	out := make([]Transaction, 0, len(ents))
	for _, ent := range ents {
		var tx Transaction
		if err := json.Unmarshal(ent.Data, &tx); err != nil {
			return nil, fmt.Errorf("ledger: corrupt entity %s: %w", ent.ID, err)
		}
		out = append(out, tx)
	}
	return out, nil
}

func (e *Engine) load(ctx context.Context, id string) (eventstore.Entity, Transaction, error) {
	ent, err := e.store.Entity(ctx, EntityType, id)
	if errors.Is(err, eventstore.ErrNotFound) {
		return eventstore.Entity{}, Transaction{}, ErrNotFound
	}
	if err != nil {
		return eventstore.Entity{}, Transaction{}, err
	}
	var tx Transaction
	if err := json.Unmarshal(ent.Data, &tx); err != nil {
		return eventstore.Entity{}, Transaction{}, fmt.Errorf("ledger: corrupt entity %s: %w", id, err)
	}
	return ent, tx, nil
}

func jsonEqual(a, b json.RawMessage) bool {
	var av, bv any
	if err := json.Unmarshal(a, &av); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &bv); err != nil {
		return false
	}
	return reflect.DeepEqual(av, bv)
}
