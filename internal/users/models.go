package users

import (
	"encoding/json"
	"time"

	"kasrt/internal/rbac"
)

const EntityType = "user"

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	FullName     string    `json:"full_name"`
	Role         rbac.Role `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SafeUser is the outward shape of a user: no password hash, ever.
// It is also the audit snapshot form, so credentials never reach the log.
type SafeUser struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name"`
	Role      rbac.Role `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u User) Safe() SafeUser {
	return SafeUser{
		ID:        u.ID,
		Username:  u.Username,
		FullName:  u.FullName,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func (u User) safeSnapshot() (json.RawMessage, error) {
	return json.Marshal(u.Safe())
}

type CreateInput struct {
	Username string    `json:"username"`
	Password string    `json:"password"`
	FullName string    `json:"full_name"`
	Role     rbac.Role `json:"role"`
}

// Patch updates a subset of user fields. A nil field is left unchanged.
type Patch struct {
	Username *string    `json:"username"`
	Password *string    `json:"password"`
	FullName *string    `json:"full_name"`
	Role     *rbac.Role `json:"role"`
}
