package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"kasrt/internal/audit"
	"kasrt/internal/auth"
	"kasrt/internal/eventstore"
	"kasrt/internal/rbac"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("users: not found")
	ErrValidation    = errors.New("users: validation failed")
	ErrUsernameTaken = errors.New("users: username already taken")

	// ErrLastAdmin guards against locking everyone out: the final admin
	// account can neither be deleted nor demoted.
	ErrLastAdmin  = errors.New("users: cannot remove the last admin")
	ErrSelfDelete = errors.New("users: cannot delete your own account")
)

// Service manages user accounts. Every mutation is audited on
// entity_type "user" with SafeUser snapshots, so role changes leave a
// trail and password hashes never reach the log.
type Service struct {
	store eventstore.Store
	rec   *audit.Recorder
	clock func() time.Time
}

func NewService(store eventstore.Store, rec *audit.Recorder) *Service {
	return &Service{store: store, rec: rec, clock: time.Now}
}

func NewServiceAt(store eventstore.Store, rec *audit.Recorder, clock func() time.Time) *Service {
	return &Service{store: store, rec: rec, clock: clock}
}

func (s *Service) Create(ctx context.Context, actor string, in CreateInput) (SafeUser, error) {
	if err := auth.ValidateUsername(in.Username); err != nil {
		return SafeUser{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		return SafeUser{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if !in.Role.Valid() {
		return SafeUser{}, fmt.Errorf("%w: unknown role %q", ErrValidation, in.Role)
	}
	if err := s.ensureUsernameFree(ctx, in.Username, ""); err != nil {
		return SafeUser{}, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return SafeUser{}, err
	}

	now := s.clock().UTC()
	u := User{
		ID:           uuid.NewString(),
		Username:     in.Username,
		PasswordHash: hash,
		FullName:     in.FullName,
		Role:         in.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.commit(ctx, u, 0, audit.ActionCreate, nil,
		fmt.Sprintf("created user %s (%s)", u.Username, u.Role), actor); err != nil {
		return SafeUser{}, err
	}
	return u.Safe(), nil
}

// CreateInitialAdmin creates the first administrator during setup and
// records it as `setup_admin`. Fails once any user exists.
func (s *Service) CreateInitialAdmin(ctx context.Context, username, password string) (SafeUser, error) {
	if err := auth.ValidateUsername(username); err != nil {
		return SafeUser{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := auth.ValidatePassword(password); err != nil {
		return SafeUser{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	populated, err := s.IsSetup(ctx)
	if err != nil {
		return SafeUser{}, err
	}
	if populated {
		return SafeUser{}, fmt.Errorf("%w: setup already completed", ErrValidation)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return SafeUser{}, err
	}

	now := s.clock().UTC()
	u := User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		FullName:     username + " (Administrator)",
		Role:         rbac.RoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.commit(ctx, u, 0, audit.ActionSetupAdmin, nil, "initial administrator created", u.ID); err != nil {
		return SafeUser{}, err
	}
	return u.Safe(), nil
}

func (s *Service) Update(ctx context.Context, actor, id string, p Patch) (SafeUser, error) {
	ent, before, err := s.load(ctx, id)
	if err != nil {
		return SafeUser{}, err
	}

	after := before
	if p.Username != nil && *p.Username != before.Username {
		if err := auth.ValidateUsername(*p.Username); err != nil {
			return SafeUser{}, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		if err := s.ensureUsernameFree(ctx, *p.Username, id); err != nil {
			return SafeUser{}, err
		}
		after.Username = *p.Username
	}
	if p.Password != nil {
		if err := auth.ValidatePassword(*p.Password); err != nil {
			return SafeUser{}, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		hash, err := auth.HashPassword(*p.Password)
		if err != nil {
			return SafeUser{}, err
		}
		after.PasswordHash = hash
	}
	if p.FullName != nil {
		after.FullName = *p.FullName
	}
	if p.Role != nil && *p.Role != before.Role {
		if !p.Role.Valid() {
			return SafeUser{}, fmt.Errorf("%w: unknown role %q", ErrValidation, *p.Role)
		}
		if before.Role == rbac.RoleAdmin {
			last, err := s.isLastAdmin(ctx, id)
			if err != nil {
				return SafeUser{}, err
			}
			if last {
				return SafeUser{}, ErrLastAdmin
			}
		}
		after.Role = *p.Role
	}
	after.UpdatedAt = s.clock().UTC()

	beforeSnap, err := before.safeSnapshot()
	if err != nil {
		return SafeUser{}, err
	}
	if err := s.commit(ctx, after, ent.Version, audit.ActionUpdate, beforeSnap,
		userChangeNote(before, after), actor); err != nil {
		return SafeUser{}, err
	}
	return after.Safe(), nil
}

func (s *Service) Delete(ctx context.Context, actor, id string) error {
	if actor == id {
		return ErrSelfDelete
	}
	ent, u, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if u.Role == rbac.RoleAdmin {
		last, err := s.isLastAdmin(ctx, id)
		if err != nil {
			return err
		}
		if last {
			return ErrLastAdmin
		}
	}

	snap, err := u.safeSnapshot()
	if err != nil {
		return err
	}
	rec, err := s.rec.New(audit.ActionDelete, EntityType, id, snap, nil,
		fmt.Sprintf("deleted user %s", u.Username), actor)
	if err != nil {
		return err
	}
	_, err = s.store.Commit(ctx, eventstore.Change{
		EntityType:    EntityType,
		EntityID:      id,
		Data:          nil,
		ExpectVersion: ent.Version,
		Record:        rec,
	})
	return err
}

func (s *Service) Get(ctx context.Context, id string) (SafeUser, error) {
	_, u, err := s.load(ctx, id)
	if err != nil {
		return SafeUser{}, err
	}
	return u.Safe(), nil
}

func (s *Service) List(ctx context.Context) ([]SafeUser, error) {
	all, err := s.all(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]SafeUser, 0, len(all))
	for _, u := range all {
		out = append(out, u.Safe())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Username < out[j].Username
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// IsSetup reports whether any user account exists.
func (s *Service) IsSetup(ctx context.Context) (bool, error) {
	all, err := s.all(ctx)
	if err != nil {
		return false, err
	}
	return len(all) > 0, nil
}

// Authenticate verifies username/password and returns the account.
// The same error covers unknown usernames and wrong passwords.
func (s *Service) Authenticate(ctx context.Context, username, password string) (SafeUser, error) {
	all, err := s.all(ctx)
	if err != nil {
		return SafeUser{}, err
	}
	for _, u := range all {
		if u.Username != username {
			continue
		}
		if err := auth.VerifyPassword(u.PasswordHash, password); err != nil {
			return SafeUser{}, auth.ErrInvalidCredentials
		}
		return u.Safe(), nil
	}
	return SafeUser{}, auth.ErrInvalidCredentials
}

func (s *Service) commit(ctx context.Context, u User, expectVersion int64, action audit.Action, beforeSnap json.RawMessage, note, actor string) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	afterSnap, err := u.safeSnapshot()
	if err != nil {
		return err
	}
	rec, err := s.rec.New(action, EntityType, u.ID, beforeSnap, afterSnap, note, actor)
	if err != nil {
		return err
	}
	_, err = s.store.Commit(ctx, eventstore.Change{
		EntityType:    EntityType,
		EntityID:      u.ID,
		Data:          data,
		ExpectVersion: expectVersion,
		Record:        rec,
	})
	return err
}

func (s *Service) load(ctx context.Context, id string) (eventstore.Entity, User, error) {
	ent, err := s.store.Entity(ctx, EntityType, id)
	if errors.Is(err, eventstore.ErrNotFound) {
		return eventstore.Entity{}, User{}, ErrNotFound
	}
	if err != nil {
		return eventstore.Entity{}, User{}, err
	}
	var u User
	if err := json.Unmarshal(ent.Data, &u); err != nil {
		return eventstore.Entity{}, User{}, fmt.Errorf("users: corrupt entity %s: %w", id, err)
	}
	return ent, u, nil
}

func (s *Service) all(ctx context.Context) ([]User, error) {
	ents, err := s.store.Entities(ctx, EntityType)
	if err != nil {
		return nil, err
	}
	out := make([]User, 0, len(ents))
	for _, ent := range ents {
		var u User
		if err := json.Unmarshal(ent.Data, &u); err != nil {
			return nil, fmt.Errorf("users: corrupt entity %s: %w", ent.ID, err)
		}
		out = append(out, u)
	}
	return out, nil
}

func (s *Service) ensureUsernameFree(ctx context.Context, username, exceptID string) error {
	all, err := s.all(ctx)
	if err != nil {
		return err
	}
	for _, u := range all {
		if u.Username == username && u.ID != exceptID {
			return ErrUsernameTaken
		}
	}
	return nil
}

func (s *Service) isLastAdmin(ctx context.Context, id string) (bool, error) {
	all, err := s.all(ctx)
	if err != nil {
		return false, err
	}
	for _, u := range all {
		if u.Role == rbac.RoleAdmin && u.ID != id {
			return false, nil
		}
	}
	return true, nil
}

func userChangeNote(before, after User) string {
	var parts []string
	if before.Username != after.Username {
		parts = append(parts, fmt.Sprintf("username: %s -> %s", before.Username, after.Username))
	}
	if before.FullName != after.FullName {
		parts = append(parts, fmt.Sprintf("full_name: %s -> %s", before.FullName, after.FullName))
	}
	if before.Role != after.Role {
		parts = append(parts, fmt.Sprintf("role: %s -> %s", before.Role, after.Role))
	}
	if before.PasswordHash != after.PasswordHash {
		parts = append(parts, "password changed")
	}
	if len(parts) == 0 {
		return "no visible changes"
	}
	return strings.Join(parts, "; ")
}
