package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ghiac/journal/internal/apierr"
	"github.com/ghiac/journal/internal/model"
)

func (a *API) handleListEntries(c *gin.Context) {
	tx, err := a.Store.Begin(c.Request.Context())
	if err != nil {
		writeError(c, apierr.Internal(err))
		return
	}
	defer tx.Rollback()

	entries, err := tx.ListJournalEntries(c.Request.Context(), userID(c))
	if err != nil {
		writeError(c, apierr.Internal(err))
		return
	}
	if entries == nil {
		entries = []*model.JournalEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (a *API) handleGetEntry(c *gin.Context) {
	tx, err := a.Store.Begin(c.Request.Context())
	if err != nil {
		writeError(c, apierr.Internal(err))
		return
	}
	defer tx.Rollback()

	entry, err := tx.GetJournalEntry(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		writeError(c, mapStoreErr(err))
		return
	}
	c.JSON(http.StatusOK, entry)
}
