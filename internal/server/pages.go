package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/taskyard/internal/models"
	"github.com/zulandar/taskyard/internal/page"
	"github.com/zulandar/taskyard/internal/task"
	"gorm.io/gorm"
)

type pageRequest struct {
	Name   string `json:"name"`
	ChatID string `json:"chat_id"`
	Tag    string `json:"tag"`
}

func (s *Server) handleListPages(c *gin.Context) {
	pages, err := page.List(s.db, s.owner)
	if err != nil {
		s.respondError(c, err)
		return
	}
	views := make([]pageView, 0, len(pages))
	for i := range pages {
		views = append(views, newPageView(&pages[i]))
	}
	c.JSON(http.StatusOK, gin.H{"pages": views})
}

func (s *Server) handleCreatePage(c *gin.Context) {
	var req pageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Name == "" {
		badRequest(c, fmt.Errorf("name is required"))
		return
	}
	p, err := page.Create(s.db, page.CreateOpts{Owner: s.owner, Name: req.Name, ChatID: req.ChatID, Tag: req.Tag})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"page": newPageView(p)})
}

func (s *Server) handleGetPage(c *gin.Context) {
	p, ok := s.loadPage(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"page": newPageView(p)})
}

func (s *Server) handleDeletePage(c *gin.Context) {
	p, ok := s.loadPage(c)
	if !ok {
		return
	}
	if err := page.Delete(s.db, p.ID); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleSharePage(c *gin.Context) {
	s.pageAction(c, page.Share)
}

func (s *Server) handleUnsharePage(c *gin.Context) {
	s.pageAction(c, page.Unshare)
}

func (s *Server) pageAction(c *gin.Context, fn func(db *gorm.DB, id uint) (*models.Page, error)) {
	p, ok := s.loadPage(c)
	if !ok {
		return
	}
	updated, err := fn(s.db, p.ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"page": newPageView(updated)})
}

func (s *Server) handlePageTasks(c *gin.Context) {
	p, ok := s.loadPage(c)
	if !ok {
		return
	}
	now := s.tasks.Now()
	tasks, err := task.List(s.db, task.ListFilters{Owner: s.owner, PageID: &p.ID, View: c.Query("view")}, now)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": newTaskViews(tasks, now)})
}

// handleShared renders a shared page's open tasks without authentication.
func (s *Server) handleShared(c *gin.Context) {
	p, err := page.GetByToken(s.db, c.Param("token"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	now := s.tasks.Now()
	tasks, err := task.List(s.db, task.ListFilters{PageID: &p.ID, View: task.ViewOpen}, now)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sharedView{Name: p.Name, Tasks: newTaskViews(tasks, now)})
}

// loadPage resolves the :id parameter to a page of the server's owner.
func (s *Server) loadPage(c *gin.Context) (*models.Page, bool) {
	id, ok := parseID(c, "id")
	if !ok {
		return nil, false
	}
	p, err := page.Get(s.db, id)
	if err == nil && p.Owner != s.owner {
		err = fmt.Errorf("%w: %d", page.ErrNotFound, id)
	}
	if err != nil {
		s.respondError(c, err)
		return nil, false
	}
	return p, true
}
