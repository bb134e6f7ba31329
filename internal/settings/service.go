// Package settings holds the deployment's identity fields: one
// AppSettings singleton per village instance.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"kasrt/internal/audit"
	"kasrt/internal/eventstore"
)

const (
	EntityType = "settings"

	// singletonID keys the one settings row in the current view.
	singletonID = "app"
)

type AppSettings struct {
	RTName    string `json:"rt_name"`
	RWName    string `json:"rw_name"`
	Kelurahan string `json:"kelurahan"`
	Kecamatan string `json:"kecamatan"`
	Address   string `json:"address"`
}

type Service struct {
	store eventstore.Store
	rec   *audit.Recorder
}

func NewService(store eventstore.Store, rec *audit.Recorder) *Service {
	return &Service{store: store, rec: rec}
}

// Get returns the stored settings, or the zero value before setup.
func (s *Service) Get(ctx context.Context) (AppSettings, error) {
	ent, err := s.store.Entity(ctx, EntityType, singletonID)
	if errors.Is(err, eventstore.ErrNotFound) {
		return AppSettings{}, nil
	}
	if err != nil {
		return AppSettings{}, err
	}
	var out AppSettings
	if err := json.Unmarshal(ent.Data, &out); err != nil {
		return AppSettings{}, fmt.Errorf("settings: corrupt entity: %w", err)
	}
	return out, nil
}

// Put replaces the settings; the first write is audited as a create,
// later writes as updates with the previous state as before snapshot.
func (s *Service) Put(ctx context.Context, actor string, in AppSettings) (AppSettings, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return AppSettings{}, err
	}

	var (
		action        = audit.ActionCreate
		beforeSnap    json.RawMessage
		expectVersion int64
	)
	ent, err := s.store.Entity(ctx, EntityType, singletonID)
	switch {
	case err == nil:
		action = audit.ActionUpdate
		beforeSnap = json.RawMessage(ent.Data)
		expectVersion = ent.Version
	case errors.Is(err, eventstore.ErrNotFound):
	default:
		return AppSettings{}, err
	}

	rec, err := s.rec.New(action, EntityType, singletonID, beforeSnap, data, "settings saved", actor)
	if err != nil {
		return AppSettings{}, err
	}
	if _, err := s.store.Commit(ctx, eventstore.Change{
		EntityType:    EntityType,
		EntityID:      singletonID,
		Data:          data,
		ExpectVersion: expectVersion,
		Record:        rec,
	}); err != nil {
		return AppSettings{}, err
	}
	return in, nil
}
