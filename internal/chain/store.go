package chain

import (
	"errors"
	"fmt"

	"github.com/zulandar/taskyard/internal/models"
	"gorm.io/gorm"
)

// link is the projection of a task row needed to rebuild a chain.
type link struct {
	ID         uint
	PreviousID *uint
}

// Load builds the graph of the chain containing taskID by walking
// previous_id links in both directions.
func Load(db *gorm.DB, taskID uint) (*Graph, error) {
	g := New()

	cur := taskID
	for depth := 0; ; depth++ {
		if depth > MaxDepth {
			return nil, ErrTooDeep
		}
		var row link
		err := db.Model(&models.Task{}).Select("id", "previous_id").Where("id = ?", cur).Take(&row).Error
		if err != nil {
			return nil, fmt.Errorf("chain: load %d: %w", cur, err)
		}
		if row.PreviousID == nil {
			break
		}
		if err := g.Link(*row.PreviousID, cur); err != nil {
			return nil, err
		}
		cur = *row.PreviousID
	}

	cur = taskID
	for depth := 0; ; depth++ {
		if depth > MaxDepth {
			return nil, ErrTooDeep
		}
		var row link
		err := db.Model(&models.Task{}).Select("id", "previous_id").Where("previous_id = ?", cur).Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("chain: load successor of %d: %w", cur, err)
		}
		if err := g.Link(cur, row.ID); err != nil {
			return nil, err
		}
		cur = row.ID
	}
	return g, nil
}
