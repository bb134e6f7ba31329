package eventstore

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"kasrt/internal/audit"
)

func testRecord(t *testing.T, action audit.Action, entityID string, before, after string) audit.Record {
	t.Helper()
	rec := audit.Record{
		ID:         "rec-" + entityID + "-" + string(action),
		EntityType: "transaction",
		EntityID:   entityID,
		Action:     action,
		CreatedAt:  time.Unix(1700000000, 0).UTC(),
	}
	if before != "" {
		rec.Before = json.RawMessage(before)
	}
	if after != "" {
		rec.After = json.RawMessage(after)
	}
	if err := rec.Validate(); err != nil {
		t.Fatalf("test record invalid: %v", err)
	}
	return rec
}

func TestCommit_CreateThenRead(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	rec, err := m.Commit(ctx, Change{
		EntityType: "transaction",
		EntityID:   "t1",
		Data:       json.RawMessage(`{"id":"t1"}`),
		Record:     testRecord(t, audit.ActionCreate, "t1", "", `{"id":"t1"}`),
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if rec.Seq != 1 {
		t.Fatalf("expected seq 1, got %d", rec.Seq)
	}

	e, err := m.Entity(ctx, "transaction", "t1")
	if err != nil {
		t.Fatalf("entity: %v", err)
	}
	if e.Version != 1 {
		t.Fatalf("expected version 1, got %d", e.Version)
	}
}

func TestCommit_CreateConflictsWhenEntityExists(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	mustCommit(t, m, "t1", `{"id":"t1"}`, 0, audit.ActionCreate)
	_, err := m.Commit(ctx, Change{
		EntityType: "transaction",
		EntityID:   "t1",
		Data:       json.RawMessage(`{"id":"t1"}`),
		Record:     testRecord(t, audit.ActionCreate, "t1", "", `{"id":"t1"}`),
	})
	if err != ErrConflict {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestCommit_StaleVersionConflicts(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	mustCommit(t, m, "t1", `{"id":"t1","v":1}`, 0, audit.ActionCreate)

	// Two writers read version 1; the second commit must fail.
	if _, err := m.Commit(ctx, updateChange(t, "t1", `{"id":"t1","v":2}`, 1)); err != nil {
		t.Fatalf("first update: %v", err)
	}
	if _, err := m.Commit(ctx, updateChange(t, "t1", `{"id":"t1","v":3}`, 1)); err != ErrConflict {
		t.Fatalf("expected ErrConflict for lost update, got %v", err)
	}
}

func TestCommit_DeleteRemovesFromCurrentViewOnly(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	mustCommit(t, m, "t1", `{"id":"t1"}`, 0, audit.ActionCreate)

	_, err := m.Commit(ctx, Change{
		EntityType:    "transaction",
		EntityID:      "t1",
		Data:          nil,
		ExpectVersion: 1,
		Record:        testRecord(t, audit.ActionDelete, "t1", `{"id":"t1"}`, ""),
	})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := m.Entity(ctx, "transaction", "t1"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	// History persists.
	recs, err := m.Records(ctx, RecordFilter{EntityID: "t1", Ascending: true})
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[1].Action != audit.ActionDelete {
		t.Fatalf("expected delete record last, got %s", recs[1].Action)
	}
}

func TestCommit_ConflictAppendsNothing(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	mustCommit(t, m, "t1", `{"id":"t1"}`, 0, audit.ActionCreate)

	if _, err := m.Commit(ctx, updateChange(t, "t1", `{"id":"t1"}`, 99)); err != ErrConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	recs, _ := m.Records(ctx, RecordFilter{})
	if len(recs) != 1 {
		t.Fatalf("conflicting commit must not append a record, got %d records", len(recs))
	}
}

func TestCommit_CancelledContextWritesNothing(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Commit(ctx, Change{
		EntityType: "transaction",
		EntityID:   "t1",
		Data:       json.RawMessage(`{"id":"t1"}`),
		Record:     testRecord(t, audit.ActionCreate, "t1", "", `{"id":"t1"}`),
	})
	if err == nil {
		t.Fatalf("expected context error")
	}
	recs, _ := m.Records(context.Background(), RecordFilter{})
	if len(recs) != 0 {
		t.Fatalf("cancelled commit must write nothing")
	}
}

func TestRecords_FilterAndOrder(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	mustCommit(t, m, "t1", `{"id":"t1"}`, 0, audit.ActionCreate)
	mustCommit(t, m, "t2", `{"id":"t2"}`, 0, audit.ActionCreate)
	if _, err := m.Commit(ctx, updateChange(t, "t1", `{"id":"t1","x":1}`, 1)); err != nil {
		t.Fatalf("update: %v", err)
	}

	recs, err := m.Records(ctx, RecordFilter{EntityID: "t1"})
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records for t1, got %d", len(recs))
	}
	// Newest first by default.
	if recs[0].Seq <= recs[1].Seq {
		t.Fatalf("expected descending seq, got %d then %d", recs[0].Seq, recs[1].Seq)
	}

	asc, _ := m.Records(ctx, RecordFilter{Ascending: true})
	for i := 1; i < len(asc); i++ {
		if asc[i].Seq <= asc[i-1].Seq {
			t.Fatalf("expected strictly increasing seq")
		}
	}
}

func mustCommit(t *testing.T, m *Memory, id, data string, expect int64, action audit.Action) {
	t.Helper()
	var before, after string
	if action == audit.ActionDelete {
		before = data
	} else {
		after = data
	}
	var payload json.RawMessage
	if action != audit.ActionDelete {
		payload = json.RawMessage(data)
	}
	rec := audit.Record{
		ID:         "rec-" + id + "-" + string(action) + "-" + time.Now().String(),
		EntityType: "transaction",
		EntityID:   id,
		Action:     action,
		CreatedAt:  time.Unix(1700000000, 0).UTC(),
	}
	if before != "" {
		rec.Before = json.RawMessage(before)
	}
	if after != "" {
		rec.After = json.RawMessage(after)
	}
	if _, err := m.Commit(context.Background(), Change{
		EntityType:    "transaction",
		EntityID:      id,
		Data:          payload,
		ExpectVersion: expect,
		Record:        rec,
	}); err != nil {
		t.Fatalf("commit %s %s: %v", action, id, err)
	}
}

func updateChange(t *testing.T, id, data string, expect int64) Change {
	t.Helper()
	rec := testRecord(t, audit.ActionUpdate, id, `{"id":"`+id+`"}`, data)
	rec.ID = rec.ID + "-" + data
	return Change{
		EntityType:    "transaction",
		EntityID:      id,
		Data:          json.RawMessage(data),
		ExpectVersion: expect,
		Record:        rec,
	}
}
