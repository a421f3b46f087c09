package task

import (
	"fmt"
	"time"

	"github.com/zulandar/taskyard/internal/models"
	"gorm.io/gorm"
)

// List views.
const (
	ViewAll       = "all"
	ViewWeek      = "week"
	ViewNextWeek  = "next_week"
	ViewActivated = "activated"
	ViewOpen      = "open"
)

// StartOfWeek returns Monday 00:00 of the week containing now.
func StartOfWeek(now time.Time) time.Time {
	offset := (int(now.Weekday()) + 6) % 7
	y, m, d := now.AddDate(0, 0, -offset).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

// EndOfWeek returns Sunday 23:59:59 of the week containing now.
func EndOfWeek(now time.Time) time.Time {
	return StartOfWeek(now).AddDate(0, 0, 7).Add(-time.Second)
}

// applyView narrows q to one of the list views. Notes tasks are shown
// apart from the views, so every view except all excludes them.
func applyView(q *gorm.DB, view string, now time.Time) (*gorm.DB, error) {
	switch view {
	case "", ViewAll:
		return q, nil
	case ViewWeek:
		start, end := StartOfWeek(now), EndOfWeek(now)
		q = q.Where("((activate <= ? AND status = ?) OR (completed >= ? AND completed <= ?))",
			now, models.StatusActive, start, end)
	case ViewNextWeek:
		start, end := StartOfWeek(now).AddDate(0, 0, 7), EndOfWeek(now).AddDate(0, 0, 7)
		q = q.Where("((activate <= ? AND status = ?) OR (completed >= ? AND completed <= ?))",
			start, models.StatusActive, start, end)
	case ViewActivated:
		q = q.Where("activate <= ?", now)
	case ViewOpen:
		q = q.Where("status = ?", models.StatusActive)
	default:
		return nil, fmt.Errorf("%w: unknown view %q", ErrInvalidInput, view)
	}
	return q.Where("kind <> ?", models.KindNotes), nil
}

// Notes returns the owner's active notes at a position.
func Notes(db *gorm.DB, owner string, pageID *uint, position string) ([]models.Task, error) {
	q := db.Where("owner = ? AND kind = ? AND status = ? AND position = ?",
		owner, models.KindNotes, models.StatusActive, position)
	if pageID != nil {
		q = q.Where("page_id = ?", *pageID)
	}
	var notes []models.Task
	if err := q.Order("id ASC").Find(&notes).Error; err != nil {
		return nil, fmt.Errorf("task: notes for %s: %w", owner, err)
	}
	return notes, nil
}
