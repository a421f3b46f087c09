package task

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/zulandar/taskyard/internal/db"
	"github.com/zulandar/taskyard/internal/models"
	"gorm.io/gorm"
)

var t0 = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

// openTestDB returns a migrated in-memory database private to the test.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gdb, err := db.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}

// newTestEngine returns an engine whose clock starts at t0.
func newTestEngine(t *testing.T) (*Engine, *clock.Mock, *gorm.DB) {
	t.Helper()
	gdb := openTestDB(t)
	clk := clock.NewMock()
	clk.Set(t0)
	return NewEngine(gdb, clk), clk, gdb
}

func ptr[T any](v T) *T { return &v }

func mustCreate(t *testing.T, e *Engine, opts CreateOpts) *models.Task {
	t.Helper()
	if opts.Owner == "" {
		opts.Owner = "alice"
	}
	task, err := e.Create(opts)
	if err != nil {
		t.Fatalf("Create(%+v): %v", opts, err)
	}
	return task
}

func mustGet(t *testing.T, gdb *gorm.DB, id uint) *models.Task {
	t.Helper()
	task, err := Get(gdb, id)
	if err != nil {
		t.Fatalf("Get(%d): %v", id, err)
	}
	return task
}

// successorOf returns the task whose previous_id is id, or nil.
func successorOf(t *testing.T, gdb *gorm.DB, id uint) *models.Task {
	t.Helper()
	var tasks []models.Task
	if err := gdb.Where("previous_id = ?", id).Find(&tasks).Error; err != nil {
		t.Fatalf("successor of %d: %v", id, err)
	}
	switch len(tasks) {
	case 0:
		return nil
	case 1:
		return &tasks[0]
	default:
		t.Fatalf("task %d has %d successors", id, len(tasks))
		return nil
	}
}

func countTasks(t *testing.T, gdb *gorm.DB) int64 {
	t.Helper()
	var n int64
	if err := gdb.Model(&models.Task{}).Count(&n).Error; err != nil {
		t.Fatalf("count tasks: %v", err)
	}
	return n
}

// assertCompletedInvariant checks completed is set exactly for DONE and FAILED.
func assertCompletedInvariant(t *testing.T, task *models.Task) {
	t.Helper()
	if IsCompleted(task) != (task.Completed != nil) {
		t.Errorf("task %d: status %s with completed %v", task.ID, task.Status, task.Completed)
	}
}
