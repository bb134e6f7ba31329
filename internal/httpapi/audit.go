package httpapi

import (
	"net/http"
	"strconv"

	"kasrt/internal/audit"
	"kasrt/internal/eventstore"

	"github.com/gin-gonic/gin"
)

const defaultAuditPageSize = 100

// ListAuditLog returns audit records newest first. Optional filters:
// entity_type, entity_id, action, limit.
func (h Handlers) ListAuditLog(c *gin.Context) {
	f := eventstore.RecordFilter{
		EntityType: c.Query("entity_type"),
		EntityID:   c.Query("entity_id"),
		Limit:      defaultAuditPageSize,
	}
	if raw := c.Query("action"); raw != "" {
		a := audit.Action(raw)
		if !a.Valid() {
			badRequest(c, "unknown action "+strconv.Quote(raw))
			return
		}
		f.Action = a
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		f.Limit = n
	}

	records, err := h.Store.Records(c.Request.Context(), f)
	if err != nil {
		fail(c, err)
		return
	}
	if records == nil {
		records = []audit.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

func (h Handlers) GetAuditRecord(c *gin.Context) {
	rec, err := h.Store.Record(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// RestoreRecord reverts the state change captured by one audit record.
func (h Handlers) RestoreRecord(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	res, err := h.Restore.Restore(c.Request.Context(), id.UserID, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
