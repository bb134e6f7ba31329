package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Record is an immutable, append-only audit log entry describing one
// state transition of a single entity.
//
// Invariants:
// - Records are never updated or deleted; a restore appends a NEW record.
// - At most one of Before/After may be absent, never both.
// - Seq is assigned by the event store at append time and, together with
//   CreatedAt, gives the total order of the log (wall-clock alone is not
//   enough at sub-second granularity).

type Record struct {
	ID         string `json:"id"`
	Seq        int64  `json:"seq"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`

	Action Action `json:"action"`

	// Before/After are JSON snapshots of the entity state around the
	// transition. Absent Before means the entity did not exist before
	// (create, setup_admin); absent After means it no longer does (delete).
	Before json.RawMessage `json:"before,omitempty"`
	After  json.RawMessage `json:"after,omitempty"`

	// Note is a short human-readable summary for the audit log UI.
	// The snapshots, not the note, are authoritative.
	Note string `json:"note,omitempty"`

	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

type Action string

const (
	ActionCreate     Action = "create"
	ActionUpdate     Action = "update"
	ActionDelete     Action = "delete"
	ActionCorrection Action = "correction"
	ActionRestore    Action = "restore"
	ActionSetupAdmin Action = "setup_admin"
)

func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete, ActionCorrection, ActionRestore, ActionSetupAdmin:
		return true
	default:
		return false
	}
}

var ErrInvalidRecord = errors.New("audit: invalid record")

// Validate enforces the snapshot invariants before a record may be appended.
func (r Record) Validate() error {
	if !r.Action.Valid() {
		return fmt.Errorf("%w: unknown action %q", ErrInvalidRecord, r.Action)
	}
	if r.EntityType == "" {
		return fmt.Errorf("%w: entity_type required", ErrInvalidRecord)
	}
	if r.Before == nil && r.After == nil {
		return fmt.Errorf("%w: before and after cannot both be absent", ErrInvalidRecord)
	}
	switch r.Action {
	case ActionCreate, ActionSetupAdmin:
		if r.Before != nil {
			return fmt.Errorf("%w: %s must not carry a before snapshot", ErrInvalidRecord, r.Action)
		}
	case ActionDelete:
		if r.After != nil {
			return fmt.Errorf("%w: delete must not carry an after snapshot", ErrInvalidRecord)
		}
	}
	return nil
}
