package task

import (
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/taskyard/internal/chain"
	"github.com/zulandar/taskyard/internal/models"
	"gorm.io/gorm"
)

// Effect is a side-effect command produced by a lifecycle hook.
type Effect interface {
	String() string
}

// ActivateDependents stamps activate on pipeline tasks waiting on TaskID.
// With Fail set the dependents are also forced to FAILED.
type ActivateDependents struct {
	TaskID uint
	Fail   bool
}

func (e ActivateDependents) String() string {
	if e.Fail {
		return fmt.Sprintf("activate and fail dependents of %d", e.TaskID)
	}
	return fmt.Sprintf("activate dependents of %d", e.TaskID)
}

// GenerateSuccessor appends a new chain node after TaskID unless one
// already exists. Repetitive successors shift activate and deadline by the
// duration; FromNow successors activate at now plus the duration.
type GenerateSuccessor struct {
	TaskID  uint
	FromNow bool
}

func (e GenerateSuccessor) String() string {
	return fmt.Sprintf("generate successor of %d", e.TaskID)
}

// DeleteSuccessor removes the successor of TaskID through the delete path.
type DeleteSuccessor struct {
	TaskID uint
}

func (e DeleteSuccessor) String() string {
	return fmt.Sprintf("delete successor of %d", e.TaskID)
}

// SpliceChain unlinks TaskID and reconnects its neighbours.
type SpliceChain struct {
	TaskID uint
}

func (e SpliceChain) String() string {
	return fmt.Sprintf("splice chain around %d", e.TaskID)
}

// BlockPredecessor stops PredecessorID from ever regenerating.
type BlockPredecessor struct {
	TaskID        uint
	PredecessorID uint
}

func (e BlockPredecessor) String() string {
	return fmt.Sprintf("block %d after deleting %d", e.PredecessorID, e.TaskID)
}

// DetachSuccessor clears the back link of TaskID's successor.
type DetachSuccessor struct {
	TaskID uint
}

func (e DetachSuccessor) String() string {
	return fmt.Sprintf("detach successor of %d", e.TaskID)
}

// DetachDependents clears prerequisite links pointing at TaskID.
type DetachDependents struct {
	TaskID uint
}

func (e DetachDependents) String() string {
	return fmt.Sprintf("detach dependents of %d", e.TaskID)
}

// runner applies effects inside one transaction.
type runner struct {
	engine *Engine
	tx     *gorm.DB
	now    time.Time
}

func (r *runner) run(effects []Effect) error {
	for _, eff := range effects {
		var err error
		switch e := eff.(type) {
		case ActivateDependents:
			err = r.activateDependents(e)
		case GenerateSuccessor:
			err = r.generateSuccessor(e)
		case DeleteSuccessor:
			err = r.deleteSuccessor(e)
		case SpliceChain:
			err = r.splice(e)
		case BlockPredecessor:
			err = r.tx.Model(&models.Task{}).Where("id = ?", e.PredecessorID).Update("blocked", true).Error
		case DetachSuccessor:
			err = r.tx.Model(&models.Task{}).Where("previous_id = ?", e.TaskID).Update("previous_id", nil).Error
		case DetachDependents:
			err = r.tx.Model(&models.Task{}).Where("prerequisite_id = ?", e.TaskID).Update("prerequisite_id", nil).Error
		default:
			err = fmt.Errorf("unknown effect %T", eff)
		}
		if err != nil {
			return fmt.Errorf("task: %s: %w", eff, err)
		}
	}
	return nil
}

// activateDependents is a single hop: the dependents' own hooks do not run.
func (r *runner) activateDependents(e ActivateDependents) error {
	updates := map[string]interface{}{"activate": r.now}
	if e.Fail {
		updates["status"] = models.StatusFailed
		updates["completed"] = gorm.Expr("COALESCE(completed, ?)", r.now)
	}
	return r.tx.Model(&models.Task{}).
		Where("prerequisite_id = ? AND activate IS NULL", e.TaskID).
		Updates(updates).Error
}

func (r *runner) generateSuccessor(e GenerateSuccessor) error {
	src, err := get(r.tx, e.TaskID)
	if err != nil {
		return err
	}
	if src.Kind == models.KindNeverEnding && src.Blocked {
		return nil
	}

	var existing int64
	if err := r.tx.Model(&models.Task{}).Where("previous_id = ?", src.ID).Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		return nil
	}

	g, err := chain.Load(r.tx, src.ID)
	if err != nil {
		return err
	}

	prev := src.ID
	next := models.Task{
		Owner:      src.Owner,
		PageID:     src.PageID,
		Name:       src.Name,
		Kind:       src.Kind,
		Status:     models.StatusActive,
		Duration:   src.Duration,
		PreviousID: &prev,
	}
	if e.FromNow {
		activate := r.now.Add(src.Duration)
		next.Activate = &activate
	} else {
		if src.Activate == nil || src.Deadline == nil {
			return fmt.Errorf("%w: repetitive task %d needs activate and deadline to repeat", ErrInvalidPrecondition, src.ID)
		}
		activate := src.Activate.Add(src.Duration)
		deadline := src.Deadline.Add(src.Duration)
		next.Activate = &activate
		next.Deadline = &deadline
	}

	if err := r.tx.Create(&next).Error; err != nil {
		return err
	}
	return g.Link(src.ID, next.ID)
}

func (r *runner) deleteSuccessor(e DeleteSuccessor) error {
	var next models.Task
	err := r.tx.Where("previous_id = ?", e.TaskID).Take(&next).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return r.engine.deleteTx(r.tx, &next, r.now)
}

// splice clears the removed node's own link before re-pointing its
// successor, so previous_id stays unique at every step.
func (r *runner) splice(e SpliceChain) error {
	g, err := chain.Load(r.tx, e.TaskID)
	if err != nil {
		return err
	}
	repair := g.Remove(e.TaskID)
	if err := g.Validate(); err != nil {
		return err
	}

	if err := r.tx.Model(&models.Task{}).Where("id = ?", e.TaskID).Update("previous_id", nil).Error; err != nil {
		return err
	}
	if repair.Successor == nil {
		return nil
	}
	var prev interface{}
	if repair.Prev != nil {
		prev = *repair.Prev
	}
	return r.tx.Model(&models.Task{}).Where("id = ?", *repair.Successor).Update("previous_id", prev).Error
}
