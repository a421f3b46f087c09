package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/taskyard/internal/models"
	"github.com/zulandar/taskyard/internal/task"
)

type createTaskRequest struct {
	Name           string     `json:"name"`
	Kind           string     `json:"kind"`
	PageID         *uint      `json:"page_id"`
	Activate       *time.Time `json:"activate"`
	Deadline       *time.Time `json:"deadline"`
	Duration       string     `json:"duration"`
	PrerequisiteID *uint      `json:"prerequisite_id"`
	Notes          string     `json:"notes"`
	Position       string     `json:"position"`
}

type updateTaskRequest struct {
	Name          *string    `json:"name"`
	Activate      *time.Time `json:"activate"`
	ClearActivate bool       `json:"clear_activate"`
	Deadline      *time.Time `json:"deadline"`
	ClearDeadline bool       `json:"clear_deadline"`
	Duration      *string    `json:"duration"`
	Notes         *string    `json:"notes"`
	Position      *string    `json:"position"`
	Status        *string    `json:"status"`
}

type prerequisiteRequest struct {
	PrerequisiteID *uint `json:"prerequisite_id"`
}

func (s *Server) handleListTasks(c *gin.Context) {
	now := s.tasks.Now()
	filters := task.ListFilters{
		Owner:      s.owner,
		Status:     c.Query("status"),
		Kind:       c.Query("kind"),
		View:       c.Query("view"),
		IncludeOld: c.Query("old") == "true",
	}
	tasks, err := task.List(s.db, filters, now)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": newTaskViews(tasks, now)})
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	opts := task.CreateOpts{
		Owner:          s.owner,
		PageID:         req.PageID,
		Name:           req.Name,
		Kind:           req.Kind,
		Activate:       req.Activate,
		Deadline:       req.Deadline,
		PrerequisiteID: req.PrerequisiteID,
		Notes:          req.Notes,
		Position:       req.Position,
	}
	if req.Duration != "" {
		d, err := time.ParseDuration(req.Duration)
		if err != nil {
			badRequest(c, fmt.Errorf("duration: %w", err))
			return
		}
		opts.Duration = d
	}
	t, err := s.tasks.Create(opts)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"task": newTaskView(t, s.tasks.Now())})
}

func (s *Server) handleGetTask(c *gin.Context) {
	t, ok := s.loadTask(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": newTaskView(t, s.tasks.Now())})
}

func (s *Server) handleUpdateTask(c *gin.Context) {
	t, ok := s.loadTask(c)
	if !ok {
		return
	}
	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	opts := task.UpdateOpts{
		Name:          req.Name,
		Activate:      req.Activate,
		ClearActivate: req.ClearActivate,
		Deadline:      req.Deadline,
		ClearDeadline: req.ClearDeadline,
		Notes:         req.Notes,
		Position:      req.Position,
		Status:        req.Status,
	}
	if req.Duration != nil {
		d, err := time.ParseDuration(*req.Duration)
		if err != nil {
			badRequest(c, fmt.Errorf("duration: %w", err))
			return
		}
		opts.Duration = &d
	}
	updated, err := s.tasks.Update(t.ID, opts)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": newTaskView(updated, s.tasks.Now())})
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	t, ok := s.loadTask(c)
	if !ok {
		return
	}
	if err := s.tasks.Delete(t.ID); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleTransition wraps a lifecycle operation such as complete or reset.
func (s *Server) handleTransition(fn func(id uint) (*models.Task, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		t, ok := s.loadTask(c)
		if !ok {
			return
		}
		updated, err := fn(t.ID)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"task": newTaskView(updated, s.tasks.Now())})
	}
}

func (s *Server) handleSetPrerequisite(c *gin.Context) {
	t, ok := s.loadTask(c)
	if !ok {
		return
	}
	var req prerequisiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.tasks.SetPrerequisite(t.ID, req.PrerequisiteID); err != nil {
		s.respondError(c, err)
		return
	}
	updated, err := task.Get(s.db, t.ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": newTaskView(updated, s.tasks.Now())})
}

// handleTaskChain returns the tasks before and after the task in its
// recurrence chain, nearest first.
func (s *Server) handleTaskChain(c *gin.Context) {
	t, ok := s.loadTask(c)
	if !ok {
		return
	}
	before, err := task.ChainBefore(s.db, t.ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	after, err := task.ChainAfter(s.db, t.ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	now := s.tasks.Now()
	c.JSON(http.StatusOK, gin.H{
		"before": newTaskViews(before, now),
		"task":   newTaskView(t, now),
		"after":  newTaskViews(after, now),
	})
}

// loadTask resolves the :id parameter to a task of the server's owner.
func (s *Server) loadTask(c *gin.Context) (*models.Task, bool) {
	id, ok := parseID(c, "id")
	if !ok {
		return nil, false
	}
	t, err := task.Get(s.db, id)
	if err == nil && t.Owner != s.owner {
		err = fmt.Errorf("%w: %d", task.ErrNotFound, id)
	}
	if err != nil {
		s.respondError(c, err)
		return nil, false
	}
	return t, true
}
