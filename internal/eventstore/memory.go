package eventstore

import (
	"context"
	"sync"

	"kasrt/internal/audit"
)

// Memory is an in-memory Store for tests and local development.
// One mutex guards both tables, so every Commit and every read is a
// consistent snapshot by construction.
type Memory struct {
	mu       sync.Mutex
	seq      int64
	records  []audit.Record
	byID     map[string]int
	entities map[string]map[string]Entity // type -> id -> row
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		byID:     make(map[string]int),
		entities: make(map[string]map[string]Entity),
	}
}

func (m *Memory) Commit(ctx context.Context, ch Change) (audit.Record, error) {
	if err := ch.validate(); err != nil {
		return audit.Record{}, err
	}
	if err := ctx.Err(); err != nil {
		// Caller cancelled before the commit point; nothing is written.
		return audit.Record{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rows := m.entities[ch.EntityType]
	cur, exists := rows[ch.EntityID]

	if ch.ExpectVersion == 0 {
		if exists {
			return audit.Record{}, ErrConflict
		}
	} else if !exists || cur.Version != ch.ExpectVersion {
		return audit.Record{}, ErrConflict
	}

	if ch.Data != nil {
		if rows == nil {
			rows = make(map[string]Entity)
			m.entities[ch.EntityType] = rows
		}
		rows[ch.EntityID] = Entity{
			Type:      ch.EntityType,
			ID:        ch.EntityID,
			Data:      append([]byte(nil), ch.Data...),
			Version:   ch.ExpectVersion + 1,
			UpdatedAt: ch.Record.CreatedAt,
		}
	} else {
		delete(rows, ch.EntityID)
	}

	m.seq++
	rec := ch.Record
	rec.Seq = m.seq
	m.byID[rec.ID] = len(m.records)
	m.records = append(m.records, rec)
	return rec, nil
}

func (m *Memory) Entity(ctx context.Context, entityType, entityID string) (Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.entities[entityType][entityID]
	if !ok {
		return Entity{}, ErrNotFound
	}
	return copyEntity(row), nil
}

func (m *Memory) Entities(ctx context.Context, entityType string) ([]Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.entities[entityType]
	out := make([]Entity, 0, len(rows))
	for _, row := range rows {
		out = append(out, copyEntity(row))
	}
	return out, nil
}

func (m *Memory) Record(ctx context.Context, id string) (audit.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.byID[id]
	if !ok {
		return audit.Record{}, ErrNotFound
	}
	return m.records[i], nil
}

func (m *Memory) Records(ctx context.Context, f RecordFilter) ([]audit.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]audit.Record, 0, len(m.records))
	for _, r := range m.records {
		if f.EntityType != "" && r.EntityType != f.EntityType {
			continue
		}
		if f.EntityID != "" && r.EntityID != f.EntityID {
			continue
		}
		if f.Action != "" && r.Action != f.Action {
			continue
		}
		out = append(out, r)
	}
	if !f.Ascending {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func copyEntity(e Entity) Entity {
	out := e
	out.Data = append([]byte(nil), e.Data...)
	return out
}
