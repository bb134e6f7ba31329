package auth

import "github.com/golang-jwt/jwt/v5"

// Claims are the only supported token claims shape for this service.
// The token is the request-scoped identity: the core never consults
// ambient session state, every service call receives the actor
// explicitly.
type Claims struct {
	jwt.RegisteredClaims

	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}
