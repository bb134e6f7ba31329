package httpapi

import (
	"net/http"

	"kasrt/internal/settings"

	"github.com/gin-gonic/gin"
)

func (h Handlers) GetSettings(c *gin.Context) {
	s, err := h.Settings.Get(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h Handlers) PutSettings(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	var in settings.AppSettings
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	s, err := h.Settings.Put(c.Request.Context(), id.UserID, in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}
