package users

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"kasrt/internal/audit"
	"kasrt/internal/eventstore"
	"kasrt/internal/rbac"
)

func newTestService(t *testing.T) (*Service, *eventstore.Memory) {
	t.Helper()
	clk := func() time.Time { return time.Unix(1700000000, 0).UTC() }
	store := eventstore.NewMemory()
	return NewServiceAt(store, audit.NewRecorderAt(clk), clk), store
}

func seedAdmin(t *testing.T, s *Service) SafeUser {
	t.Helper()
	u, err := s.CreateInitialAdmin(context.Background(), "pak_rt", "rahasia-sekali")
	if err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	return u
}

func TestCreateInitialAdmin_SetupOnce(t *testing.T) {
	s, store := newTestService(t)
	ctx := context.Background()

	u := seedAdmin(t, s)
	if u.Role != rbac.RoleAdmin {
		t.Fatalf("expected admin role, got %s", u.Role)
	}

	ok, err := s.IsSetup(ctx)
	if err != nil || !ok {
		t.Fatalf("expected setup complete, got %v %v", ok, err)
	}
	if _, err := s.CreateInitialAdmin(ctx, "other", "password123"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error on second setup, got %v", err)
	}

	recs, _ := store.Records(ctx, eventstore.RecordFilter{Action: audit.ActionSetupAdmin})
	if len(recs) != 1 {
		t.Fatalf("expected one setup_admin record, got %d", len(recs))
	}
	if recs[0].Before != nil || recs[0].After == nil {
		t.Fatalf("setup_admin record should carry only an after snapshot")
	}
}

func TestCreate_ValidatesAndAudits(t *testing.T) {
	s, store := newTestService(t)
	ctx := context.Background()
	admin := seedAdmin(t, s)

	if _, err := s.Create(ctx, admin.ID, CreateInput{Username: "x", Password: "password123", Role: rbac.RoleUser}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for short username, got %v", err)
	}
	if _, err := s.Create(ctx, admin.ID, CreateInput{Username: "warga01", Password: "short", Role: rbac.RoleUser}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for short password, got %v", err)
	}
	if _, err := s.Create(ctx, admin.ID, CreateInput{Username: "warga01", Password: "password123", Role: "root"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for bad role, got %v", err)
	}

	u, err := s.Create(ctx, admin.ID, CreateInput{Username: "warga01", Password: "password123", FullName: "Warga Satu", Role: rbac.RoleUser})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	recs, _ := store.Records(ctx, eventstore.RecordFilter{EntityID: u.ID, Action: audit.ActionCreate})
	if len(recs) != 1 {
		t.Fatalf("expected one create record, got %d", len(recs))
	}
	if strings.Contains(string(recs[0].After), "password_hash") {
		t.Fatalf("audit snapshot must not contain password hashes: %s", recs[0].After)
	}
}

func TestCreate_UsernameUniqueness(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	admin := seedAdmin(t, s)

	if _, err := s.Create(ctx, admin.ID, CreateInput{Username: "pak_rt", Password: "password123", Role: rbac.RoleUser}); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestUpdate_RoleChangeIsAudited(t *testing.T) {
	s, store := newTestService(t)
	ctx := context.Background()
	admin := seedAdmin(t, s)
	u, _ := s.Create(ctx, admin.ID, CreateInput{Username: "warga01", Password: "password123", Role: rbac.RoleUser})

	role := rbac.RoleAdmin
	got, err := s.Update(ctx, admin.ID, u.ID, Patch{Role: &role})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Role != rbac.RoleAdmin {
		t.Fatalf("expected promoted role, got %s", got.Role)
	}

	recs, _ := store.Records(ctx, eventstore.RecordFilter{EntityID: u.ID, Action: audit.ActionUpdate})
	if len(recs) != 1 {
		t.Fatalf("expected one update record, got %d", len(recs))
	}
	var snap struct {
		Role rbac.Role `json:"role"`
	}
	if err := json.Unmarshal(recs[0].Before, &snap); err != nil || snap.Role != rbac.RoleUser {
		t.Fatalf("before snapshot should hold the old role: %s err %v", recs[0].Before, err)
	}
}

func TestDelete_Guards(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	admin := seedAdmin(t, s)

	if err := s.Delete(ctx, admin.ID, admin.ID); !errors.Is(err, ErrSelfDelete) {
		t.Fatalf("expected ErrSelfDelete, got %v", err)
	}

	u, _ := s.Create(ctx, admin.ID, CreateInput{Username: "warga01", Password: "password123", Role: rbac.RoleUser})
	if err := s.Delete(ctx, u.ID, admin.ID); !errors.Is(err, ErrLastAdmin) {
		t.Fatalf("expected ErrLastAdmin, got %v", err)
	}

	if err := s.Delete(ctx, admin.ID, u.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, u.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestUpdate_LastAdminCannotBeDemoted(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	admin := seedAdmin(t, s)

	role := rbac.RoleUser
	if _, err := s.Update(ctx, admin.ID, admin.ID, Patch{Role: &role}); !errors.Is(err, ErrLastAdmin) {
		t.Fatalf("expected ErrLastAdmin, got %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	admin := seedAdmin(t, s)

	u, err := s.Authenticate(ctx, "pak_rt", "rahasia-sekali")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if u.ID != admin.ID {
		t.Fatalf("unexpected user: %+v", u)
	}

	if _, err := s.Authenticate(ctx, "pak_rt", "wrong-password"); err == nil {
		t.Fatalf("expected error for wrong password")
	}
	if _, err := s.Authenticate(ctx, "nobody", "rahasia-sekali"); err == nil {
		t.Fatalf("expected error for unknown user")
	}
}
