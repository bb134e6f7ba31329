package rbac

// Role names. Keep these stable; they are part of the token contract.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
	RoleGuest Role = "guest"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser, RoleGuest:
		return true
	default:
		return false
	}
}

func IsAdmin(role Role) bool { return role == RoleAdmin }
