package models

import (
	"time"

	"gorm.io/datatypes"
)

// Page groups an owner's tasks and optionally receives digest messages.
type Page struct {
	ID         uint    `gorm:"primaryKey;autoIncrement"`
	Owner      string  `gorm:"size:64;not null;uniqueIndex:idx_page_owner_name"`
	Name       string  `gorm:"size:200;not null;uniqueIndex:idx_page_owner_name"`
	IsShared   bool    `gorm:"not null;default:false"`
	ShareToken *string `gorm:"size:36;uniqueIndex"`
	ChatID     *string `gorm:"size:64"`
	Tag        *string `gorm:"size:64"`
	Messages   datatypes.JSONSlice[PageMessage]
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Tasks []Task `gorm:"foreignKey:PageID"`
}

// PageMessage is one entry of a page's append-only send log.
type PageMessage struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}
