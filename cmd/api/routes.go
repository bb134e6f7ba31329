package main

import (
	"kasrt/internal/auth"
	"kasrt/internal/config"
	"kasrt/internal/httpapi"
	"kasrt/internal/rbac"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, manager *auth.Manager, rdb *redis.Client, cfg config.Config) {
	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")

	// Public: setup state probe, and the two credential endpoints behind
	// a per-IP rate limit so they cannot be brute-forced.
	limited := httpapi.RateLimit(rdb, "auth", cfg.Auth.RateLimit, cfg.Auth.RateWindow)
	api.GET("/check-setup", h.CheckSetup)
	api.POST("/setup", limited, h.Setup)
	api.POST("/login", limited, h.Login)

	authed := api.Group("", auth.RequireAccessToken(manager))
	{
		authed.GET("/me", h.Me)

		authed.GET("/transactions", h.ListTransactions)
		authed.GET("/transactions/balance", h.Balance)
		authed.GET("/transactions/:id", h.GetTransaction)

		// Self profile edits are allowed here; the handler enforces
		// that non-admins touch only their own name and password.
		authed.PUT("/users/:id", h.UpdateUser)

		authed.GET("/settings", h.GetSettings)

		authed.GET("/audit-log", h.ListAuditLog)
		authed.GET("/audit-log/:id", h.GetAuditRecord)
	}

	admin := authed.Group("", rbac.RequireAdmin())
	{
		admin.POST("/transactions", h.CreateTransaction)
		admin.PUT("/transactions/:id", h.UpdateTransaction)
		admin.DELETE("/transactions/:id", h.DeleteTransaction)

		admin.GET("/users", h.ListUsers)
		admin.GET("/users/:id", h.GetUser)
		admin.POST("/users", h.CreateUser)
		admin.DELETE("/users/:id", h.DeleteUser)

		admin.PUT("/settings", h.PutSettings)

		admin.POST("/audit-log/:id/restore", h.RestoreRecord)
	}
}
