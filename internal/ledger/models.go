package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// EntityType is the audit entity_type for transactions.
const EntityType = "transaction"

type Type string

const (
	TypeIncome  Type = "income"
	TypeExpense Type = "expense"
)

// Transaction is one entry of the cash ledger.
//
// Amount is in the smallest currency unit (never a float). ID, CreatedAt
// and CreatedBy are set at creation and immutable afterwards.
type Transaction struct {
	ID          string    `json:"id"`
	Type        Type      `json:"type"`
	Amount      int64     `json:"amount"`
	Category    string    `json:"category"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	CreatedBy   string    `json:"created_by"`
}

// Signed returns the transaction's contribution to the balance.
func (t Transaction) Signed() int64 {
	if t.Type == TypeExpense {
		return -t.Amount
	}
	return t.Amount
}

var (
	ErrNotFound   = errors.New("ledger: transaction not found")
	ErrValidation = errors.New("ledger: validation failed")
)

func (t Transaction) validate() error {
	if t.Type != TypeIncome && t.Type != TypeExpense {
		return fmt.Errorf("%w: type must be income or expense, got %q", ErrValidation, t.Type)
	}
	if t.Amount < 0 {
		return fmt.Errorf("%w: amount must be >= 0, got %d", ErrValidation, t.Amount)
	}
	if t.Category == "" {
		return fmt.Errorf("%w: category is required", ErrValidation)
	}
	return nil
}

func (t Transaction) snapshot() (json.RawMessage, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// CreateInput carries the caller-supplied fields of a new transaction.
type CreateInput struct {
	Type        Type   `json:"type"`
	Amount      int64  `json:"amount"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

// Patch updates a subset of mutable fields. Nil fields are left as-is;
// id, created_at and created_by cannot be patched.
type Patch struct {
	Type        *Type   `json:"type"`
	Amount      *int64  `json:"amount"`
	Category    *string `json:"category"`
	Description *string `json:"description"`
}

func (p Patch) apply(t Transaction) Transaction {
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	return t
}

// changeNote renders the "field: old -> new" summary shown in the audit
// log UI next to the authoritative snapshots.
func changeNote(before, after Transaction) string {
	var parts []string
	if before.Type != after.Type {
		parts = append(parts, fmt.Sprintf("type: %s -> %s", before.Type, after.Type))
	}
	if before.Amount != after.Amount {
		parts = append(parts, fmt.Sprintf("amount: %d -> %d", before.Amount, after.Amount))
	}
	if before.Category != after.Category {
		parts = append(parts, fmt.Sprintf("category: %s -> %s", before.Category, after.Category))
	}
	if before.Description != after.Description {
		parts = append(parts, fmt.Sprintf("description: %s -> %s", before.Description, after.Description))
	}
	return strings.Join(parts, "; ")
}

// Balance is the result of a full replay of the current ledger.
type Balance struct {
	Balance      int64 `json:"balance"`
	IncomeTotal  int64 `json:"income_total"`
	ExpenseTotal int64 `json:"expense_total"`
}
