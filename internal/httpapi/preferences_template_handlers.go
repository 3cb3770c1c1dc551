package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ghiac/journal/internal/apierr"
	"github.com/ghiac/journal/internal/model"
)

func (a *API) handleGetPreferences(c *gin.Context) {
	tx, err := a.Store.Begin(c.Request.Context())
	if err != nil {
		writeError(c, apierr.Internal(err))
		return
	}
	defer tx.Rollback()

	prefs, err := tx.GetPreferences(c.Request.Context(), userID(c))
	if err != nil {
		writeError(c, apierr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, prefs)
}

type updatePreferencesRequest struct {
	PurposeStatement  *string           `json:"purpose_statement"`
	LongTermGoals     []string          `json:"long_term_goals"`
	KnownChallenges   []string          `json:"known_challenges"`
	PreferredFeedback *string           `json:"preferred_feedback"`
	Glossary          map[string]string `json:"glossary"`
}

func (a *API) handleUpdatePreferences(c *gin.Context) {
	var req updatePreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apierr.Validation(err.Error()))
		return
	}

	tx, err := a.Store.Begin(c.Request.Context())
	if err != nil {
		writeError(c, apierr.Internal(err))
		return
	}
	defer tx.Rollback()

	prefs, err := tx.GetPreferences(c.Request.Context(), userID(c))
	if err != nil {
		writeError(c, apierr.Internal(err))
		return
	}

	patch := model.PreferencesPatch{
		PurposeStatement: req.PurposeStatement,
		LongTermGoals:    req.LongTermGoals,
		KnownChallenges:  req.KnownChallenges,
		Glossary:         req.Glossary,
	}
	if req.PreferredFeedback != nil {
		style := model.FeedbackStyle(*req.PreferredFeedback)
		patch.PreferredFeedback = &style
	}
	prefs.Apply(patch)

	if err := tx.UpsertPreferences(c.Request.Context(), prefs); err != nil {
		writeError(c, apierr.Internal(err))
		return
	}
	if err := tx.Commit(); err != nil {
		writeError(c, apierr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, prefs)
}

func (a *API) handleGetTemplate(c *gin.Context) {
	tx, err := a.Store.Begin(c.Request.Context())
	if err != nil {
		writeError(c, apierr.Internal(err))
		return
	}
	defer tx.Rollback()

	tmpl, err := a.Templates.ForUser(c.Request.Context(), tx, userID(c))
	if err != nil {
		writeError(c, apierr.Internal(err))
		return
	}
	if err := tx.Commit(); err != nil {
		writeError(c, apierr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"name":      tmpl.Name,
		"sections":  tmpl.OrderedSections(),
		"is_active": tmpl.IsActive,
	})
}

type setTemplateRequest struct {
	Name     string                  `json:"name" binding:"required"`
	Sections []model.TemplateSection `json:"sections" binding:"required"`
}

func (a *API) handleSetTemplate(c *gin.Context) {
	var req setTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apierr.Validation(err.Error()))
		return
	}
	if len(req.Sections) == 0 {
		writeError(c, apierr.Validation("template must declare at least one section"))
		return
	}

	tx, err := a.Store.Begin(c.Request.Context())
	if err != nil {
		writeError(c, apierr.Internal(err))
		return
	}
	defer tx.Rollback()

	tmpl := model.NewUserTemplate(userID(c), req.Name, req.Sections, true)
	if err := a.Templates.SetUserTemplate(c.Request.Context(), tx, tmpl); err != nil {
		writeError(c, apierr.Internal(err))
		return
	}
	if err := tx.Commit(); err != nil {
		writeError(c, apierr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": tmpl.Name, "sections": tmpl.OrderedSections(), "is_active": tmpl.IsActive})
}
