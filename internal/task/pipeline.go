package task

import (
	"fmt"

	"github.com/zulandar/taskyard/internal/chain"
	"github.com/zulandar/taskyard/internal/models"
	"gorm.io/gorm"
)

// SetPrerequisite re-points a pipeline task at prereq, or detaches it when
// prereq is nil. Links that would make a task wait on itself, directly or
// through other pipeline tasks, are rejected.
func (e *Engine) SetPrerequisite(id uint, prereq *uint) error {
	return e.db.Transaction(func(tx *gorm.DB) error {
		t, err := get(tx, id)
		if err != nil {
			return err
		}
		if t.Kind != models.KindPipeline {
			return fmt.Errorf("%w: task %d is %s, only pipeline tasks take a prerequisite", ErrInvalidInput, id, t.Kind)
		}
		if prereq != nil {
			if *prereq == id {
				return fmt.Errorf("%w: task %d cannot wait on itself", ErrInvalidInput, id)
			}
			if _, err := getOwned(tx, *prereq, t.Owner); err != nil {
				return err
			}
			cyclic, err := waitsOn(tx, *prereq, id)
			if err != nil {
				return err
			}
			if cyclic {
				return fmt.Errorf("%w: %d → %d would create a cycle", ErrInvalidInput, id, *prereq)
			}
		}

		var value interface{}
		if prereq != nil {
			value = *prereq
		}
		if err := tx.Model(&models.Task{}).Where("id = ?", id).Update("prerequisite_id", value).Error; err != nil {
			return fmt.Errorf("task: set prerequisite of %d: %w", id, err)
		}
		return nil
	})
}

// waitsOn walks prerequisite links upward from current and reports whether
// target is reached.
func waitsOn(db *gorm.DB, current, target uint) (bool, error) {
	visited := make(map[uint]bool)
	for depth := 0; depth <= chain.MaxDepth; depth++ {
		if current == target {
			return true, nil
		}
		if visited[current] {
			return false, nil
		}
		visited[current] = true

		t, err := get(db, current)
		if err != nil {
			return false, err
		}
		if t.PrerequisiteID == nil {
			return false, nil
		}
		current = *t.PrerequisiteID
	}
	return false, chain.ErrTooDeep
}
