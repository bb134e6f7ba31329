package eventstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"kasrt/internal/audit"
	"kasrt/pkg/utils"
)

// Postgres implements Store on database/sql (pgx stdlib driver).
//
// audit_records is insert-only; seq is a BIGSERIAL assigned by the
// database at append time. entities carries a per-row version used for
// the optimistic concurrency check, so two concurrent mutations to the
// same entity cannot both commit.
type Postgres struct {
	db *sql.DB
}

var _ Store = (*Postgres)(nil)

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS audit_records (
	seq         BIGSERIAL PRIMARY KEY,
	id          TEXT NOT NULL UNIQUE,
	entity_type TEXT NOT NULL,
	entity_id   TEXT NOT NULL DEFAULT '',
	action      TEXT NOT NULL,
	before      JSONB,
	after       JSONB,
	note        TEXT NOT NULL DEFAULT '',
	created_by  TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_records_entity_idx
	ON audit_records (entity_type, entity_id);

CREATE TABLE IF NOT EXISTS entities (
	entity_type TEXT NOT NULL,
	entity_id   TEXT NOT NULL,
	data        JSONB NOT NULL,
	version     BIGINT NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (entity_type, entity_id)
);
`

// EnsureSchema creates the two tables if they do not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("eventstore: ensure schema: %w", err)
		}
	}
	return nil
}

func (p *Postgres) Commit(ctx context.Context, ch Change) (audit.Record, error) {
	if err := ch.validate(); err != nil {
		return audit.Record{}, err
	}

	var out audit.Record
	err := utils.WithTx(ctx, p.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		if err := applyEntityChange(ctx, tx, ch); err != nil {
			return err
		}
		rec, err := insertRecord(ctx, tx, ch.Record)
		if err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return audit.Record{}, err
	}
	return out, nil
}

func applyEntityChange(ctx context.Context, tx *sql.Tx, ch Change) error {
	switch {
	case ch.ExpectVersion == 0:
		// Entity must not exist yet.
		res, err := tx.ExecContext(ctx, `
			INSERT INTO entities (entity_type, entity_id, data, version, updated_at)
			VALUES ($1, $2, $3, 1, $4)
			ON CONFLICT (entity_type, entity_id) DO NOTHING`,
			ch.EntityType, ch.EntityID, []byte(ch.Data), ch.Record.CreatedAt)
		if err != nil {
			return err
		}
		return oneRowOrConflict(res)

	case ch.Data != nil:
		res, err := tx.ExecContext(ctx, `
			UPDATE entities
			SET data = $4, version = version + 1, updated_at = $5
			WHERE entity_type = $1 AND entity_id = $2 AND version = $3`,
			ch.EntityType, ch.EntityID, ch.ExpectVersion, []byte(ch.Data), ch.Record.CreatedAt)
		if err != nil {
			return err
		}
		return oneRowOrConflict(res)

	default:
		res, err := tx.ExecContext(ctx, `
			DELETE FROM entities
			WHERE entity_type = $1 AND entity_id = $2 AND version = $3`,
			ch.EntityType, ch.EntityID, ch.ExpectVersion)
		if err != nil {
			return err
		}
		return oneRowOrConflict(res)
	}
}

func oneRowOrConflict(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return ErrConflict
	}
	return nil
}

func insertRecord(ctx context.Context, tx *sql.Tx, rec audit.Record) (audit.Record, error) {
	row := tx.QueryRowContext(ctx, `
		INSERT INTO audit_records (id, entity_type, entity_id, action, before, after, note, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING seq`,
		rec.ID, rec.EntityType, rec.EntityID, string(rec.Action),
		nullableJSON(rec.Before), nullableJSON(rec.After),
		rec.Note, rec.CreatedBy, rec.CreatedAt)
	if err := row.Scan(&rec.Seq); err != nil {
		return audit.Record{}, err
	}
	return rec, nil
}

func nullableJSON(b []byte) any {
	if b == nil {
		return nil
	}
	return []byte(b)
}

func (p *Postgres) Entity(ctx context.Context, entityType, entityID string) (Entity, error) {
	var e Entity
	err := p.db.QueryRowContext(ctx, `
		SELECT entity_type, entity_id, data, version, updated_at
		FROM entities
		WHERE entity_type = $1 AND entity_id = $2`,
		entityType, entityID,
	).Scan(&e.Type, &e.ID, &e.Data, &e.Version, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Entity{}, ErrNotFound
	}
	if err != nil {
		return Entity{}, err
	}
	return e, nil
}

func (p *Postgres) Entities(ctx context.Context, entityType string) ([]Entity, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT entity_type, entity_id, data, version, updated_at
		FROM entities
		WHERE entity_type = $1`,
		entityType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entity
	for rows.Next() {
		var e Entity
		if err := rows.Scan(&e.Type, &e.ID, &e.Data, &e.Version, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *Postgres) Record(ctx context.Context, id string) (audit.Record, error) {
	rec, err := scanRecord(p.db.QueryRowContext(ctx, recordSelect+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return audit.Record{}, ErrNotFound
	}
	return rec, err
}

const recordSelect = `
	SELECT seq, id, entity_type, entity_id, action, before, after, note, created_by, created_at
	FROM audit_records`

func (p *Postgres) Records(ctx context.Context, f RecordFilter) ([]audit.Record, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.EntityType != "" {
		add("entity_type = $%d", f.EntityType)
	}
	if f.EntityID != "" {
		add("entity_id = $%d", f.EntityID)
	}
	if f.Action != "" {
		add("action = $%d", string(f.Action))
	}

	q := recordSelect
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	if f.Ascending {
		q += " ORDER BY seq ASC"
	} else {
		q += " ORDER BY seq DESC"
	}
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []audit.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (audit.Record, error) {
	var (
		rec           audit.Record
		action        string
		before, after []byte
	)
	if err := row.Scan(&rec.Seq, &rec.ID, &rec.EntityType, &rec.EntityID, &action,
		&before, &after, &rec.Note, &rec.CreatedBy, &rec.CreatedAt); err != nil {
		return audit.Record{}, err
	}
	rec.Action = audit.Action(action)
	rec.Before = before
	rec.After = after
	return rec, nil
}
