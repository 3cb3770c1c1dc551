package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ghiac/journal/internal/apierr"
)

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email"`
	Password string `json:"password" binding:"required"`
}

func (a *API) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apierr.Validation(err.Error()))
		return
	}
	user, err := a.Auth.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": user.ID, "username": user.Username})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (a *API) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apierr.Validation(err.Error()))
		return
	}
	token, expiresAt, user, err := a.Auth.Login(c.Request.Context(), req.Username, req.Password, c.Request.UserAgent(), c.ClientIP())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "bearer",
		"expires_in":   int(time.Until(expiresAt).Seconds()),
		"user_id":      user.ID,
		"username":     user.Username,
	})
}

func (a *API) handleMe(c *gin.Context) {
	tx, err := a.Store.Begin(c.Request.Context())
	if err != nil {
		writeError(c, apierr.Internal(err))
		return
	}
	defer tx.Rollback()

	user, err := tx.GetUserByID(c.Request.Context(), userID(c))
	if err != nil {
		writeError(c, apierr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":     user.ID,
		"username":    user.Username,
		"email":       user.Email,
		"is_verified": user.IsVerified,
		"created_at":  user.CreatedAt,
	})
}

func (a *API) handleLogout(c *gin.Context) {
	if err := a.Auth.Logout(c.Request.Context(), userID(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}
