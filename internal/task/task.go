// Package task provides the task state machine, recurrence chains, and
// pipeline activation.
package task

import (
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/taskyard/internal/models"
	"gorm.io/gorm"
)

// OldTaskAge is how long completed tasks stay in default listings.
const OldTaskAge = 40 * 24 * time.Hour

// CreateOpts holds parameters for creating a new task.
type CreateOpts struct {
	Owner          string
	PageID         *uint
	Name           string
	Kind           string // normal, repetitive, never_ending, pipeline, notes
	Activate       *time.Time
	Deadline       *time.Time
	Duration       time.Duration // repetitive and never_ending
	PrerequisiteID *uint         // pipeline
	Notes          string        // notes
	Position       string        // notes: top or bottom
}

// ListFilters holds optional filters for listing tasks.
type ListFilters struct {
	Owner      string
	PageID     *uint
	Status     string
	Kind       string
	View       string
	IncludeOld bool
}

// ValidKinds lists the task kinds accepted by Create.
var ValidKinds = []string{
	models.KindNormal,
	models.KindRepetitive,
	models.KindNeverEnding,
	models.KindPipeline,
	models.KindNotes,
}

// Create validates opts and inserts a new ACTIVE task.
func (e *Engine) Create(opts CreateOpts) (*models.Task, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if opts.Owner == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalidInput)
	}
	if opts.Kind == "" {
		opts.Kind = models.KindNormal
	}
	if !validKind(opts.Kind) {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidInput, opts.Kind)
	}

	switch opts.Kind {
	case models.KindRepetitive, models.KindNeverEnding:
		if opts.Duration <= 0 {
			return nil, fmt.Errorf("%w: %s tasks need a positive duration", ErrInvalidInput, opts.Kind)
		}
	case models.KindPipeline:
		if opts.PrerequisiteID == nil {
			return nil, fmt.Errorf("%w: pipeline tasks need a prerequisite", ErrInvalidInput)
		}
	case models.KindNotes:
		if opts.Position == "" {
			opts.Position = models.PositionTop
		}
		if err := validatePosition(opts.Position); err != nil {
			return nil, err
		}
	}
	if opts.PrerequisiteID != nil && opts.Kind != models.KindPipeline {
		return nil, fmt.Errorf("%w: only pipeline tasks take a prerequisite", ErrInvalidInput)
	}

	t := models.Task{
		Owner:          opts.Owner,
		PageID:         opts.PageID,
		Name:           opts.Name,
		Kind:           opts.Kind,
		Status:         models.StatusActive,
		Activate:       opts.Activate,
		Deadline:       opts.Deadline,
		Duration:       opts.Duration,
		PrerequisiteID: opts.PrerequisiteID,
		Notes:          opts.Notes,
		Position:       opts.Position,
	}

	err := e.db.Transaction(func(tx *gorm.DB) error {
		if opts.PageID != nil {
			var count int64
			if err := tx.Model(&models.Page{}).Where("id = ? AND owner = ?", *opts.PageID, opts.Owner).Count(&count).Error; err != nil {
				return fmt.Errorf("task: check page %d: %w", *opts.PageID, err)
			}
			if count == 0 {
				return fmt.Errorf("%w: page %d", ErrNotFound, *opts.PageID)
			}
		}
		if opts.PrerequisiteID != nil {
			if _, err := getOwned(tx, *opts.PrerequisiteID, opts.Owner); err != nil {
				return err
			}
		}
		if err := tx.Create(&t).Error; err != nil {
			return fmt.Errorf("task: create: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Get retrieves a task by ID.
func Get(db *gorm.DB, id uint) (*models.Task, error) {
	return get(db, id)
}

func get(db *gorm.DB, id uint) (*models.Task, error) {
	var t models.Task
	if err := db.Where("id = ?", id).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("task: get %d: %w", id, err)
	}
	return &t, nil
}

// getOwned is get restricted to one owner's tasks; other owners' tasks
// are reported as not found.
func getOwned(db *gorm.DB, id uint, owner string) (*models.Task, error) {
	return get(db.Where("owner = ?", owner), id)
}

// List returns tasks matching the given filters, ordered by ID. Tasks
// completed more than OldTaskAge before now are hidden unless
// IncludeOld is set.
func List(db *gorm.DB, filters ListFilters, now time.Time) ([]models.Task, error) {
	q := db.Model(&models.Task{})
	if filters.Owner != "" {
		q = q.Where("owner = ?", filters.Owner)
	}
	if filters.PageID != nil {
		q = q.Where("page_id = ?", *filters.PageID)
	}
	if filters.Status != "" {
		q = q.Where("status = ?", filters.Status)
	}
	if filters.Kind != "" {
		q = q.Where("kind = ?", filters.Kind)
	}
	if !filters.IncludeOld {
		q = q.Where("(completed IS NULL OR completed >= ?)", now.Add(-OldTaskAge))
	}

	q, err := applyView(q, filters.View, now)
	if err != nil {
		return nil, err
	}

	var tasks []models.Task
	if err := q.Order("id ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("task: list: %w", err)
	}
	return tasks, nil
}

// Dependents returns the pipeline tasks waiting on id.
func Dependents(db *gorm.DB, id uint) ([]models.Task, error) {
	var tasks []models.Task
	if err := db.Where("prerequisite_id = ?", id).Order("id ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("task: dependents of %d: %w", id, err)
	}
	return tasks, nil
}

func validKind(kind string) bool {
	for _, k := range ValidKinds {
		if k == kind {
			return true
		}
	}
	return false
}

func validateStatus(status string) error {
	switch status {
	case models.StatusActive, models.StatusDone, models.StatusFailed:
		return nil
	}
	return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
}

func validatePosition(position string) error {
	switch position {
	case models.PositionTop, models.PositionBottom:
		return nil
	}
	return fmt.Errorf("%w: position must be top or bottom, got %q", ErrInvalidInput, position)
}
