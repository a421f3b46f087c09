package task

import (
	"fmt"

	"github.com/zulandar/taskyard/internal/chain"
	"github.com/zulandar/taskyard/internal/models"
	"gorm.io/gorm"
)

// ChainAfter returns every task following id in its chain, nearest first.
func ChainAfter(db *gorm.DB, id uint) ([]models.Task, error) {
	return chainTasks(db, id, (*chain.Graph).After)
}

// ChainBefore returns every task preceding id in its chain, nearest first.
func ChainBefore(db *gorm.DB, id uint) ([]models.Task, error) {
	return chainTasks(db, id, (*chain.Graph).Before)
}

func chainTasks(db *gorm.DB, id uint, walk func(*chain.Graph, uint) ([]uint, error)) ([]models.Task, error) {
	if _, err := get(db, id); err != nil {
		return nil, err
	}
	g, err := chain.Load(db, id)
	if err != nil {
		return nil, fmt.Errorf("task: load chain of %d: %w", id, err)
	}
	ids, err := walk(g, id)
	if err != nil {
		return nil, fmt.Errorf("task: walk chain of %d: %w", id, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	var rows []models.Task
	if err := db.Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("task: load chain tasks of %d: %w", id, err)
	}
	byID := make(map[uint]models.Task, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}
	out := make([]models.Task, 0, len(ids))
	for _, cid := range ids {
		if r, ok := byID[cid]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}
