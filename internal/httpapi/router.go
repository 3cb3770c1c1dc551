// Package httpapi registers the journaling core's HTTP API surface on a
// gin.Engine: a single RegisterRoutes method wires every path onto a
// receiver holding the wired components, with apierr mapped to status codes
// at the edge instead of inside each handler.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ghiac/journal/internal/agent"
	"github.com/ghiac/journal/internal/apierr"
	"github.com/ghiac/journal/internal/auth"
	"github.com/ghiac/journal/internal/journallog"
	"github.com/ghiac/journal/internal/store"
	"github.com/ghiac/journal/internal/tasks"
	"github.com/ghiac/journal/internal/template"
)

// API holds every component the HTTP layer calls into.
type API struct {
	Store     store.Store
	Auth      *auth.Service
	Agent     *agent.Runtime
	Tasks     *tasks.Manager
	Templates *template.Provider
	Locks     *store.LockTable
}

// RegisterRoutes wires the API onto router.
func (a *API) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", a.handleHealth)

	router.POST("/auth/register", a.handleRegister)
	router.POST("/auth/login", a.handleLogin)

	authed := router.Group("/")
	authed.Use(a.requireAuth)

	authed.GET("/auth/me", a.handleMe)
	authed.POST("/auth/logout", a.handleLogout)

	authed.GET("/sessions", a.handleListSessions)
	authed.POST("/sessions", a.handleCreateSession)
	authed.POST("/agent/chat/:session_id", a.handleChat)

	authed.GET("/user/preferences", a.handleGetPreferences)
	authed.POST("/user/preferences", a.handleUpdatePreferences)

	authed.GET("/user/template", a.handleGetTemplate)
	authed.POST("/user/template", a.handleSetTemplate)

	authed.GET("/journal-entries", a.handleListEntries)
	authed.GET("/journal-entries/:id", a.handleGetEntry)

	authed.GET("/tasks", a.handleListTasks)
	authed.POST("/tasks", a.handleCreateTask)
	authed.PUT("/tasks/:id", a.handleUpdateTask)
	authed.POST("/tasks/:id/complete", a.handleCompleteTask)
	authed.DELETE("/tasks/:id", a.handleDeleteTask)
	authed.POST("/tasks/reorder", a.handleReorderTasks)
}

func (a *API) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// userIDKey is the gin context key requireAuth stores the authenticated
// user's id under.
const userIDKey = "journal.user_id"

func (a *API) requireAuth(c *gin.Context) {
	header := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		writeError(c, apierr.Unauthorized(""))
		c.Abort()
		return
	}
	token := header[len(prefix):]

	user, err := a.Auth.RequireUser(c.Request.Context(), token)
	if err != nil {
		writeError(c, err)
		c.Abort()
		return
	}
	c.Set(userIDKey, user.ID)
	c.Next()
}

func userID(c *gin.Context) string {
	v, _ := c.Get(userIDKey)
	s, _ := v.(string)
	return s
}

// writeError maps err to the HTTP response it deserves: an apierr.APIError
// other than Internal renders its own status/code/message; an Internal
// APIError or anything else is treated as an unexpected internal failure and
// logged with a correlation id rather than echoed back to the caller.
func writeError(c *gin.Context, err error) {
	if apiErr, ok := apierr.As(err); ok && apiErr.Code() != apierr.CodeInternal {
		c.JSON(apiErr.Status(), gin.H{"error": gin.H{"code": apiErr.Code(), "message": apiErr.SafeMessage()}})
		return
	}
	correlationID := c.GetHeader("X-Request-ID")
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	journallog.Log.WithCorrelationID(correlationID).Errorf("unhandled error: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": apierr.CodeInternal, "message": "an unexpected error occurred"}})
}

// mapStoreErr converts a raw store.ErrNotFound into apierr.NotFound;
// anything already an apierr.APIError passes through unchanged.
func mapStoreErr(err error) error {
	if err == store.ErrNotFound {
		return apierr.NotFound("resource not found")
	}
	if _, ok := apierr.As(err); ok {
		return err
	}
	return apierr.Internal(err)
}
