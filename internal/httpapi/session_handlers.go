package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ghiac/journal/internal/apierr"
	"github.com/ghiac/journal/internal/model"
)

type createSessionRequest struct {
	ConversationType string         `json:"conversation_type"`
	Metadata         map[string]any `json:"metadata"`
}

func (a *API) handleCreateSession(c *gin.Context) {
	var req createSessionRequest
	_ = c.ShouldBindJSON(&req)

	tx, err := a.Store.Begin(c.Request.Context())
	if err != nil {
		writeError(c, apierr.Internal(err))
		return
	}
	defer tx.Rollback()

	session := model.NewChatSession(uuid.NewString(), userID(c), req.ConversationType, req.Metadata)
	if err := tx.CreateChatSession(c.Request.Context(), session); err != nil {
		writeError(c, apierr.Internal(err))
		return
	}
	if err := tx.Commit(); err != nil {
		writeError(c, apierr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, sessionView(session))
}

func (a *API) handleListSessions(c *gin.Context) {
	tx, err := a.Store.Begin(c.Request.Context())
	if err != nil {
		writeError(c, apierr.Internal(err))
		return
	}
	defer tx.Rollback()

	sessions, err := tx.ListSessionsForUser(c.Request.Context(), userID(c))
	if err != nil {
		writeError(c, apierr.Internal(err))
		return
	}
	out := make([]gin.H, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionView(s))
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

func sessionView(s *model.ChatSession) gin.H {
	return gin.H{
		"session_id":        s.ID,
		"conversation_type": s.ConversationType,
		"is_active":         s.IsActive,
		"created_at":        s.CreatedAt,
	}
}

type chatRequest struct {
	Text string `json:"text" binding:"required"`
}

func (a *API) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apierr.Validation(err.Error()))
		return
	}

	result, err := a.Agent.RunTurn(c.Request.Context(), userID(c), c.Param("session_id"), req.Text)
	if err != nil {
		writeError(c, err)
		return
	}
	metadata := gin.H{}
	if result.Overflow {
		metadata["overflow"] = true
	}
	c.JSON(http.StatusOK, gin.H{
		"text":               result.Text,
		"session_id":         result.SessionID,
		"updated_draft_data": result.UpdatedDraftData,
		"tool_calls":         result.ToolCalls,
		"metadata":           metadata,
	})
}
