package rbac

import (
	"net/http"

	"kasrt/internal/auth"

	"github.com/gin-gonic/gin"
)

// RequireAdmin rejects callers whose access token does not carry the
// admin role. Authentication itself belongs to internal/auth; chain
// this after auth.RequireAccessToken.
func RequireAdmin() gin.HandlerFunc {
	return RequireAnyRole(RoleAdmin)
}

// RequireAnyRole allows access if the caller has any of the given roles.
func RequireAnyRole(allowed ...Role) gin.HandlerFunc {
	allowedSet := make(map[Role]struct{}, len(allowed))
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		id, err := auth.IdentityFrom(c.Request.Context())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		if _, ok := allowedSet[Role(id.Role)]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
