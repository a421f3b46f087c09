package task

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/zulandar/taskyard/internal/models"
	"gorm.io/gorm"
)

// Engine applies lifecycle operations. Every mutation runs in one
// transaction together with all effects it produces.
type Engine struct {
	db    *gorm.DB
	clock clock.Clock
}

// NewEngine returns an engine over db. A nil clock uses the wall clock.
func NewEngine(db *gorm.DB, clk clock.Clock) *Engine {
	if clk == nil {
		clk = clock.New()
	}
	return &Engine{db: db, clock: clk}
}

// Now returns the engine clock's current time.
func (e *Engine) Now() time.Time {
	return e.clock.Now()
}

// UpdateOpts holds optional field changes. Nil pointers leave a field
// untouched; the Clear flags null out the timestamps.
type UpdateOpts struct {
	Name          *string
	Activate      *time.Time
	ClearActivate bool
	Deadline      *time.Time
	ClearDeadline bool
	Duration      *time.Duration
	Notes         *string
	Position      *string
	Status        *string
}

// Prepare normalizes the completed timestamp and returns the effects a
// save of t must trigger.
func Prepare(t *models.Task, now time.Time) []Effect {
	switch t.Status {
	case models.StatusDone, models.StatusFailed:
		if t.Completed == nil {
			t.Completed = &now
		}
	case models.StatusActive:
		t.Completed = nil
	}

	var effects []Effect
	switch t.Status {
	case models.StatusDone:
		effects = append(effects, ActivateDependents{TaskID: t.ID})
	case models.StatusFailed:
		effects = append(effects, ActivateDependents{TaskID: t.ID, Fail: true})
	}
	return append(effects, BehaviorFor(t.Kind).OnSave(t)...)
}

// Complete marks the task DONE.
func (e *Engine) Complete(id uint) (*models.Task, error) {
	return e.mutate(id, func(t *models.Task, now time.Time) ([]Effect, error) {
		return e.complete(t, now), nil
	})
}

// Reset returns the task to ACTIVE.
func (e *Engine) Reset(id uint) (*models.Task, error) {
	return e.mutate(id, func(t *models.Task, now time.Time) ([]Effect, error) {
		return e.reset(t), nil
	})
}

// Toggle resets a DONE or FAILED task and completes an ACTIVE one.
func (e *Engine) Toggle(id uint) (*models.Task, error) {
	return e.mutate(id, func(t *models.Task, now time.Time) ([]Effect, error) {
		if IsActive(t) {
			return e.complete(t, now), nil
		}
		return e.reset(t), nil
	})
}

// Fail assigns FAILED directly; only the save hook runs.
func (e *Engine) Fail(id uint) (*models.Task, error) {
	status := models.StatusFailed
	return e.Update(id, UpdateOpts{Status: &status})
}

// Save re-runs the save hook without changing any field.
func (e *Engine) Save(id uint) (*models.Task, error) {
	return e.mutate(id, func(*models.Task, time.Time) ([]Effect, error) {
		return nil, nil
	})
}

// Update applies field changes and saves. A status change is a direct
// assignment and skips the complete and reset hooks.
func (e *Engine) Update(id uint, opts UpdateOpts) (*models.Task, error) {
	return e.mutate(id, func(t *models.Task, now time.Time) ([]Effect, error) {
		if opts.Name != nil {
			if *opts.Name == "" {
				return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
			}
			t.Name = *opts.Name
		}
		if opts.ClearActivate {
			t.Activate = nil
		} else if opts.Activate != nil {
			t.Activate = opts.Activate
		}
		if opts.ClearDeadline {
			t.Deadline = nil
		} else if opts.Deadline != nil {
			t.Deadline = opts.Deadline
		}
		if opts.Duration != nil {
			if !t.IsChain() {
				return nil, fmt.Errorf("%w: duration only applies to repetitive and never-ending tasks", ErrInvalidInput)
			}
			if *opts.Duration <= 0 {
				return nil, fmt.Errorf("%w: duration must be positive", ErrInvalidInput)
			}
			t.Duration = *opts.Duration
		}
		if opts.Notes != nil {
			t.Notes = *opts.Notes
		}
		if opts.Position != nil {
			if err := validatePosition(*opts.Position); err != nil {
				return nil, err
			}
			t.Position = *opts.Position
		}
		if opts.Status != nil {
			if err := validateStatus(*opts.Status); err != nil {
				return nil, err
			}
			t.Status = *opts.Status
		}
		return nil, nil
	})
}

// Delete removes the task after repairing the chain and detaching any
// pipeline dependents.
func (e *Engine) Delete(id uint) error {
	return e.db.Transaction(func(tx *gorm.DB) error {
		t, err := get(tx, id)
		if err != nil {
			return err
		}
		return e.deleteTx(tx, t, e.clock.Now())
	})
}

func (e *Engine) complete(t *models.Task, now time.Time) []Effect {
	t.Status = models.StatusDone
	t.Completed = &now
	return BehaviorFor(t.Kind).OnComplete(t)
}

func (e *Engine) reset(t *models.Task) []Effect {
	t.Status = models.StatusActive
	t.Completed = nil
	return BehaviorFor(t.Kind).OnReset(t)
}

// mutate loads the task, lets fn change it and collect hook effects, runs
// those effects, then saves and runs the save effects, all in one
// transaction.
func (e *Engine) mutate(id uint, fn func(t *models.Task, now time.Time) ([]Effect, error)) (*models.Task, error) {
	var out *models.Task
	err := e.db.Transaction(func(tx *gorm.DB) error {
		t, err := get(tx, id)
		if err != nil {
			return err
		}
		now := e.clock.Now()
		r := &runner{engine: e, tx: tx, now: now}

		effects, err := fn(t, now)
		if err != nil {
			return err
		}
		if err := r.run(effects); err != nil {
			return err
		}

		effects = Prepare(t, now)
		if err := tx.Save(t).Error; err != nil {
			return fmt.Errorf("task: save %d: %w", t.ID, err)
		}
		if err := r.run(effects); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) deleteTx(tx *gorm.DB, t *models.Task, now time.Time) error {
	r := &runner{engine: e, tx: tx, now: now}
	effects := append(BehaviorFor(t.Kind).OnDelete(t), DetachDependents{TaskID: t.ID})
	if err := r.run(effects); err != nil {
		return err
	}
	if err := tx.Delete(&models.Task{}, t.ID).Error; err != nil {
		return fmt.Errorf("task: delete %d: %w", t.ID, err)
	}
	return nil
}
