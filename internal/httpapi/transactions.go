package httpapi

import (
	"net/http"
	"time"

	"kasrt/internal/ledger"

	"github.com/gin-gonic/gin"
)

func (h Handlers) ListTransactions(c *gin.Context) {
	txs, err := h.Ledger.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	if txs == nil {
		txs = []ledger.Transaction{}
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

func (h Handlers) GetTransaction(c *gin.Context) {
	tx, err := h.Ledger.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}

func (h Handlers) CreateTransaction(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	var in ledger.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	tx, err := h.Ledger.Create(c.Request.Context(), id.UserID, in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, tx)
}

// UpdateTransaction patches mutable fields. A `correction=true` query
// flag records the change as a correction instead of a plain update,
// for fixing data-entry mistakes after the fact.
func (h Handlers) UpdateTransaction(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	var p ledger.Patch
	if err := c.ShouldBindJSON(&p); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	apply := h.Ledger.Update
	if c.Query("correction") == "true" {
		apply = h.Ledger.Correct
	}
	tx, err := apply(c.Request.Context(), id.UserID, c.Param("id"), p)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}

func (h Handlers) DeleteTransaction(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	if err := h.Ledger.Delete(c.Request.Context(), id.UserID, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Balance replays the current ledger. An optional `as_of` RFC 3339
// query parameter computes the balance at that instant (inclusive).
func (h Handlers) Balance(c *gin.Context) {
	var asOf time.Time
	if raw := c.Query("as_of"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			badRequest(c, "as_of must be RFC 3339")
			return
		}
		asOf = t
	}

	b, err := h.Ledger.ComputeBalance(c.Request.Context(), asOf)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}
