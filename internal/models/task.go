package models

import "time"

// Task statuses.
const (
	StatusActive = "ACTIVE"
	StatusDone   = "DONE"
	StatusFailed = "FAILED"
)

// Task kinds. Kind-specific columns are only meaningful for their kind.
const (
	KindNormal      = "normal"
	KindRepetitive  = "repetitive"
	KindNeverEnding = "never_ending"
	KindPipeline    = "pipeline"
	KindNotes       = "notes"
)

// Notes positions.
const (
	PositionTop    = "top"
	PositionBottom = "bottom"
)

// Task is a single tracked item on a page.
type Task struct {
	ID        uint       `gorm:"primaryKey;autoIncrement"`
	Owner     string     `gorm:"size:64;not null;index"`
	PageID    *uint      `gorm:"index"`
	Name      string     `gorm:"size:300;not null"`
	Kind      string     `gorm:"size:16;not null;default:normal;index"`
	Status    string     `gorm:"size:16;not null;default:ACTIVE;index"`
	Activate  *time.Time `gorm:"index"`
	Deadline  *time.Time
	Completed *time.Time `gorm:"index"`

	// Repetitive and never-ending chains.
	Duration   time.Duration
	PreviousID *uint `gorm:"uniqueIndex"`
	Blocked    bool  `gorm:"not null;default:false"`

	// Pipeline dependency on a task of any kind.
	PrerequisiteID *uint `gorm:"index"`

	Notes    string `gorm:"type:text"`
	Position string `gorm:"size:8"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsChain reports whether the task belongs to a successor chain.
func (t *Task) IsChain() bool {
	return t.Kind == KindRepetitive || t.Kind == KindNeverEnding
}
