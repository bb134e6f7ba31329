package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Recorder builds audit records for mutating operations.
//
// It only constructs and validates records; durability and sequence
// assignment belong to the event store, which appends the record inside
// the same transaction as the entity change it describes. No mutation
// may exist without its record, and no record without its mutation.
type Recorder struct {
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewRecorder() *Recorder {
	return &Recorder{clock: time.Now}
}

// NewRecorderAt pins the recorder clock, for tests.
func NewRecorderAt(clock func() time.Time) *Recorder {
	return &Recorder{clock: clock}
}

// New stamps id, actor and timestamp onto a record and validates it.
// Seq remains zero until the event store appends the record.
func (r *Recorder) New(action Action, entityType, entityID string, before, after json.RawMessage, note, actor string) (Record, error) {
	rec := Record{
		ID:         uuid.NewString(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Before:     before,
		After:      after,
		Note:       note,
		CreatedBy:  actor,
		CreatedAt:  r.clock().UTC(),
	}
	if err := rec.Validate(); err != nil {
		return Record{}, err
	}
	return rec, nil
}
