package page

import (
	"fmt"
	"time"

	"github.com/zulandar/taskyard/internal/models"
	"gorm.io/gorm"
)

// LastMessage returns the most recent logged message, or nil.
func LastMessage(p *models.Page) *models.PageMessage {
	if len(p.Messages) == 0 {
		return nil
	}
	last := p.Messages[len(p.Messages)-1]
	return &last
}

// AppendMessage adds an entry to the page's message log. Entries are never
// rewritten or removed.
func AppendMessage(db *gorm.DB, id uint, text string, at time.Time) (*models.PageMessage, error) {
	entry := models.PageMessage{Text: text, Timestamp: at}
	err := db.Transaction(func(tx *gorm.DB) error {
		p, err := Get(tx, id)
		if err != nil {
			return err
		}
		msgs := append(p.Messages, entry)
		if err := tx.Model(&models.Page{}).Where("id = ?", id).Update("messages", msgs).Error; err != nil {
			return fmt.Errorf("page: append message to %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
