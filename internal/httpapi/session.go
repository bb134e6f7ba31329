package httpapi

import (
	"net/http"
	"time"

	"kasrt/internal/settings"
	"kasrt/internal/users"
	"kasrt/pkg/logger"

	"github.com/gin-gonic/gin"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type setupRequest struct {
	Username string                `json:"username"`
	Password string                `json:"password"`
	Settings *settings.AppSettings `json:"settings"`
}

type loginResponse struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	User      users.SafeUser `json:"user"`
}

// CheckSetup tells the frontend whether the first-run setup screen is
// needed. Public: it leaks only the fact that an admin exists.
func (h Handlers) CheckSetup(c *gin.Context) {
	ok, err := h.Users.IsSetup(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"is_setup": ok})
}

// Setup creates the initial administrator, stores the community
// settings when supplied, and logs the admin in. It fails once any
// user exists, so it cannot be replayed to seize a live system.
func (h Handlers) Setup(c *gin.Context) {
	var req setupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	u, err := h.Users.CreateInitialAdmin(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		fail(c, err)
		return
	}

	if req.Settings != nil {
		if _, err := h.Settings.Put(c.Request.Context(), u.ID, *req.Settings); err != nil {
			fail(c, err)
			return
		}
	}

	token, expiresAt, err := h.Auth.Issue(time.Now(), u.ID, u.Username, string(u.Role))
	if err != nil {
		fail(c, err)
		return
	}

	logger.FromGin(c).Info("initial admin created", "user_id", u.ID, "username", u.Username)
	c.JSON(http.StatusCreated, loginResponse{Token: token, ExpiresAt: expiresAt, User: u})
}

// Login verifies credentials and issues an access token. Unknown user
// and wrong password are indistinguishable to the caller.
func (h Handlers) Login(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	u, err := h.Users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
		return
	}

	token, expiresAt, err := h.Auth.Issue(time.Now(), u.ID, u.Username, string(u.Role))
	if err != nil {
		fail(c, err)
		return
	}

	logger.FromGin(c).Info("login", "user_id", u.ID, "username", u.Username)
	c.JSON(http.StatusOK, loginResponse{Token: token, ExpiresAt: expiresAt, User: u})
}

// Me returns the authenticated caller's profile.
func (h Handlers) Me(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	u, err := h.Users.Get(c.Request.Context(), id.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}
