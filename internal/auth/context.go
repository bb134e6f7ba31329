package auth

import (
	"context"
	"errors"
)

// Identity is the request-scoped actor passed into every service call.
type Identity struct {
	UserID   string
	Username string
	Role     string
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func IdentityFrom(ctx context.Context) (Identity, error) {
	if id, ok := ctx.Value(ctxKey{}).(Identity); ok && id.UserID != "" {
		return id, nil
	}
	return Identity{}, errors.New("no identity in context")
}
