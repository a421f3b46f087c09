// Package page manages task pages: sharing, message destinations, and the
// append-only log of digests sent to them.
package page

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/zulandar/taskyard/internal/models"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a referenced page does not exist.
var ErrNotFound = errors.New("page: not found")

// CreateOpts holds parameters for creating a page.
type CreateOpts struct {
	Owner  string
	Name   string
	ChatID string
	Tag    string
}

// Create inserts a new, unshared page.
func Create(db *gorm.DB, opts CreateOpts) (*models.Page, error) {
	if opts.Owner == "" {
		return nil, fmt.Errorf("page: owner is required")
	}
	if opts.Name == "" {
		return nil, fmt.Errorf("page: name is required")
	}
	p := models.Page{
		Owner:  opts.Owner,
		Name:   opts.Name,
		ChatID: optional(opts.ChatID),
		Tag:    optional(opts.Tag),
	}
	if err := db.Create(&p).Error; err != nil {
		return nil, fmt.Errorf("page: create %q: %w", opts.Name, err)
	}
	return &p, nil
}

// Get retrieves a page by ID.
func Get(db *gorm.DB, id uint) (*models.Page, error) {
	var p models.Page
	if err := db.Where("id = ?", id).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("page: get %d: %w", id, err)
	}
	return &p, nil
}

// GetByToken retrieves a shared page by its share token.
func GetByToken(db *gorm.DB, token string) (*models.Page, error) {
	var p models.Page
	if err := db.Where("share_token = ? AND is_shared = ?", token, true).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: token %s", ErrNotFound, token)
		}
		return nil, fmt.Errorf("page: get by token: %w", err)
	}
	return &p, nil
}

// List returns the owner's pages ordered by name. An empty owner lists all.
func List(db *gorm.DB, owner string) ([]models.Page, error) {
	q := db.Model(&models.Page{})
	if owner != "" {
		q = q.Where("owner = ?", owner)
	}
	var pages []models.Page
	if err := q.Order("name ASC").Find(&pages).Error; err != nil {
		return nil, fmt.Errorf("page: list: %w", err)
	}
	return pages, nil
}

// Share marks the page shared under a fresh random token.
func Share(db *gorm.DB, id uint) (*models.Page, error) {
	token := uuid.NewString()
	return update(db, id, map[string]interface{}{"is_shared": true, "share_token": token})
}

// Unshare revokes the page's share token.
func Unshare(db *gorm.DB, id uint) (*models.Page, error) {
	return update(db, id, map[string]interface{}{"is_shared": false, "share_token": nil})
}

// SetDestination sets the chat the page's digests go to. An empty chatID
// stops digests for the page.
func SetDestination(db *gorm.DB, id uint, chatID string) (*models.Page, error) {
	return update(db, id, map[string]interface{}{"chat_id": nullable(chatID)})
}

// SetTag sets the mention prefixed to the page's digests.
func SetTag(db *gorm.DB, id uint, tag string) (*models.Page, error) {
	return update(db, id, map[string]interface{}{"tag": nullable(tag)})
}

// Delete removes the page. Its tasks are kept and detached from it.
func Delete(db *gorm.DB, id uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if _, err := Get(tx, id); err != nil {
			return err
		}
		if err := tx.Model(&models.Task{}).Where("page_id = ?", id).Update("page_id", nil).Error; err != nil {
			return fmt.Errorf("page: detach tasks of %d: %w", id, err)
		}
		if err := tx.Delete(&models.Page{}, id).Error; err != nil {
			return fmt.Errorf("page: delete %d: %w", id, err)
		}
		return nil
	})
}

// Link returns the public path of a shared page, or "" when unshared.
func Link(p *models.Page) string {
	if !p.IsShared || p.ShareToken == nil {
		return ""
	}
	return "/shared/" + *p.ShareToken
}

// CanSendUpdates reports whether digests can be delivered to the page:
// it must be shared and have a chat destination.
func CanSendUpdates(p *models.Page) bool {
	return p.IsShared && p.ChatID != nil && *p.ChatID != ""
}

func update(db *gorm.DB, id uint, updates map[string]interface{}) (*models.Page, error) {
	result := db.Model(&models.Page{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("page: update %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return Get(db, id)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
