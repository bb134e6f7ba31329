package settings

import (
	"context"
	"testing"
	"time"

	"kasrt/internal/audit"
	"kasrt/internal/eventstore"
)

func newTestService(t *testing.T) (*Service, *eventstore.Memory) {
	t.Helper()
	store := eventstore.NewMemory()
	clk := func() time.Time { return time.Unix(1700000000, 0).UTC() }
	return NewService(store, audit.NewRecorderAt(clk)), store
}

func TestGet_ZeroValueBeforeSetup(t *testing.T) {
	s, _ := newTestService(t)
	got, err := s.Get(context.Background())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != (AppSettings{}) {
		t.Fatalf("expected zero settings, got %+v", got)
	}
}

func TestPut_FirstWriteCreatesThenUpdates(t *testing.T) {
	s, store := newTestService(t)
	ctx := context.Background()

	first := AppSettings{RTName: "001", RWName: "002", Kelurahan: "Sukamaju"}
	if _, err := s.Put(ctx, "admin-1", first); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, _ := s.Get(ctx)
	if got != first {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	second := first
	second.Address = "Jl. Melati 5"
	if _, err := s.Put(ctx, "admin-1", second); err != nil {
		t.Fatalf("second put: %v", err)
	}

	recs, err := store.Records(ctx, eventstore.RecordFilter{EntityType: EntityType, Ascending: true})
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].Action != audit.ActionCreate || recs[1].Action != audit.ActionUpdate {
		t.Fatalf("expected create then update, got %s then %s", recs[0].Action, recs[1].Action)
	}
	if recs[1].Before == nil {
		t.Fatalf("update record must carry the previous settings")
	}
}
