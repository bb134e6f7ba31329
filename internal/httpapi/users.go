package httpapi

import (
	"net/http"

	"kasrt/internal/rbac"
	"kasrt/internal/users"

	"github.com/gin-gonic/gin"
)

func (h Handlers) ListUsers(c *gin.Context) {
	list, err := h.Users.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	if list == nil {
		list = []users.SafeUser{}
	}
	c.JSON(http.StatusOK, gin.H{"users": list})
}

func (h Handlers) GetUser(c *gin.Context) {
	u, err := h.Users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h Handlers) CreateUser(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	var in users.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	u, err := h.Users.Create(c.Request.Context(), id.UserID, in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

// UpdateUser handles both admin edits and self profile edits. A
// non-admin may change only their own full name and password; username
// and role stay admin-only.
func (h Handlers) UpdateUser(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	var p users.Patch
	if err := c.ShouldBindJSON(&p); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	targetID := c.Param("id")
	if !rbac.IsAdmin(rbac.Role(id.Role)) {
		if targetID != id.UserID {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin role required"})
			return
		}
		if p.Username != nil || p.Role != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "username and role changes require admin"})
			return
		}
	}

	u, err := h.Users.Update(c.Request.Context(), id.UserID, targetID, p)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h Handlers) DeleteUser(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	if err := h.Users.Delete(c.Request.Context(), id.UserID, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
