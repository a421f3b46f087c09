// Package server exposes the task engine and pages over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/zulandar/taskyard/internal/page"
	"github.com/zulandar/taskyard/internal/task"
	"gorm.io/gorm"
)

// Opts holds the dependencies of the API.
type Opts struct {
	DB     *gorm.DB
	Tasks  *task.Engine // defaults to a wall-clock engine over DB
	Owner  string       // every request acts as this owner
	Logger logrus.FieldLogger
}

// Server serves the JSON API.
type Server struct {
	router *gin.Engine
	db     *gorm.DB
	tasks  *task.Engine
	owner  string
	log    logrus.FieldLogger
}

// New builds the router with all routes registered.
func New(opts Opts) (*Server, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("server: db is required")
	}
	if opts.Owner == "" {
		return nil, fmt.Errorf("server: owner is required")
	}
	if opts.Tasks == nil {
		opts.Tasks = task.NewEngine(opts.DB, nil)
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{router: router, db: opts.DB, tasks: opts.Tasks, owner: opts.Owner, log: opts.Logger}
	s.registerRoutes()
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// StartOpts holds configuration for a listening server.
type StartOpts struct {
	Opts
	Port int
	Out  io.Writer
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	s, err := New(opts.Opts)
	if err != nil {
		return err
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Taskyard API listening on http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

func (s *Server) registerRoutes() {
	api := s.router.Group("/api")
	{
		api.GET("/healthz", s.handleHealth)

		pages := api.Group("/pages")
		{
			pages.GET("", s.handleListPages)
			pages.POST("", s.handleCreatePage)
			pages.GET("/:id", s.handleGetPage)
			pages.DELETE("/:id", s.handleDeletePage)
			pages.POST("/:id/share", s.handleSharePage)
			pages.POST("/:id/unshare", s.handleUnsharePage)
			pages.GET("/:id/tasks", s.handlePageTasks)
		}

		tasks := api.Group("/tasks")
		{
			tasks.GET("", s.handleListTasks)
			tasks.POST("", s.handleCreateTask)
			tasks.GET("/:id", s.handleGetTask)
			tasks.PATCH("/:id", s.handleUpdateTask)
			tasks.DELETE("/:id", s.handleDeleteTask)
			tasks.POST("/:id/complete", s.handleTransition(s.tasks.Complete))
			tasks.POST("/:id/reset", s.handleTransition(s.tasks.Reset))
			tasks.POST("/:id/toggle", s.handleTransition(s.tasks.Toggle))
			tasks.POST("/:id/fail", s.handleTransition(s.tasks.Fail))
			tasks.PUT("/:id/prerequisite", s.handleSetPrerequisite)
			tasks.GET("/:id/chain", s.handleTaskChain)
		}
	}

	s.router.GET("/shared/:token", s.handleShared)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// parseID converts a path parameter to a uint, writing 400 on failure.
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identifier"})
		return 0, false
	}
	return uint(id), true
}

// respondError maps engine errors to status codes.
func (s *Server) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, task.ErrNotFound), errors.Is(err, page.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, task.ErrInvalidInput), errors.Is(err, task.ErrInvalidPrecondition):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.log.WithFields(logrus.Fields{"path": c.FullPath(), "method": c.Request.Method}).
			WithError(err).Error("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
