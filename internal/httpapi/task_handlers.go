package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ghiac/journal/internal/apierr"
	"github.com/ghiac/journal/internal/model"
)

func (a *API) handleListTasks(c *gin.Context) {
	includeCompleted := c.Query("include_completed") == "true"
	list, err := a.Tasks.List(c.Request.Context(), userID(c), includeCompleted)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": list})
}

type createTaskRequest struct {
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	Priority    *int       `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
}

func (a *API) handleCreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apierr.Validation(err.Error()))
		return
	}
	task, err := a.Tasks.Create(c.Request.Context(), userID(c), req.Title, req.Description, req.Priority, req.DueDate)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

type updateTaskRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Priority    *int       `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
}

func (a *API) handleUpdateTask(c *gin.Context) {
	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apierr.Validation(err.Error()))
		return
	}
	patch := model.TaskPatch{Title: req.Title, Description: req.Description, Priority: req.Priority, DueDate: req.DueDate}
	task, err := a.Tasks.Update(c.Request.Context(), userID(c), c.Param("id"), patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (a *API) handleCompleteTask(c *gin.Context) {
	task, err := a.Tasks.Complete(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (a *API) handleDeleteTask(c *gin.Context) {
	if err := a.Tasks.Delete(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "task deleted"})
}

type reorderTasksRequest struct {
	TaskOrders []struct {
		TaskID      string `json:"task_id" binding:"required"`
		NewPriority int    `json:"new_priority" binding:"required"`
	} `json:"task_orders" binding:"required"`
}

func (a *API) handleReorderTasks(c *gin.Context) {
	var req reorderTasksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apierr.Validation(err.Error()))
		return
	}
	orderings := make([]model.TaskOrdering, 0, len(req.TaskOrders))
	for _, o := range req.TaskOrders {
		orderings = append(orderings, model.TaskOrdering{TaskID: o.TaskID, NewPriority: o.NewPriority})
	}
	if err := a.Tasks.Reorder(c.Request.Context(), userID(c), orderings); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "tasks reordered"})
}
