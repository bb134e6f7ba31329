// Package httpapi exposes the ledger core over HTTP/JSON for the
// dashboard frontend. Handlers stay thin: parse input, pull the caller
// identity from context, delegate to internal services, map errors.
package httpapi

import (
	"errors"
	"net/http"

	"kasrt/internal/auth"
	"kasrt/internal/eventstore"
	"kasrt/internal/ledger"
	"kasrt/internal/restore"
	"kasrt/internal/settings"
	"kasrt/internal/users"
	"kasrt/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
type Handlers struct {
	Auth     *auth.Manager
	Users    *users.Service
	Ledger   *ledger.Engine
	Settings *settings.Service
	Restore  *restore.Coordinator
	Store    eventstore.Store
}

// fail maps core errors onto HTTP statuses per the error taxonomy:
// 404 unknown id, 409 diverged state, 422 user-correctable input,
// 500 for storage failures (logged, never detailed to the client).
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ledger.ErrNotFound),
		errors.Is(err, users.ErrNotFound),
		errors.Is(err, restore.ErrNotFound),
		errors.Is(err, eventstore.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})

	case errors.Is(err, restore.ErrConflict),
		errors.Is(err, eventstore.ErrConflict),
		errors.Is(err, users.ErrUsernameTaken):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})

	case errors.Is(err, ledger.ErrValidation),
		errors.Is(err, users.ErrValidation),
		errors.Is(err, users.ErrSelfDelete),
		errors.Is(err, users.ErrLastAdmin),
		errors.Is(err, restore.ErrNotRestorable):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})

	default:
		logger.FromGin(c).Error("internal error", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func identity(c *gin.Context) (auth.Identity, bool) {
	id, err := auth.IdentityFrom(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return auth.Identity{}, false
	}
	return id, true
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}

func (h Handlers) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
