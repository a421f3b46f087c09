package server

import (
	"time"

	"github.com/zulandar/taskyard/internal/models"
	"github.com/zulandar/taskyard/internal/page"
	"github.com/zulandar/taskyard/internal/task"
)

type taskView struct {
	ID             uint       `json:"id"`
	PageID         *uint      `json:"page_id"`
	Name           string     `json:"name"`
	Kind           string     `json:"kind"`
	Status         string     `json:"status"`
	Activate       *time.Time `json:"activate"`
	Deadline       *time.Time `json:"deadline"`
	Completed      *time.Time `json:"completed"`
	Duration       string     `json:"duration,omitempty"`
	PreviousID     *uint      `json:"previous_id,omitempty"`
	Blocked        bool       `json:"blocked,omitempty"`
	PrerequisiteID *uint      `json:"prerequisite_id,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	Position       string     `json:"position,omitempty"`
	DueIn          string     `json:"due_in"`
	Overdue        bool       `json:"overdue"`
}

func newTaskView(t *models.Task, now time.Time) taskView {
	v := taskView{
		ID:             t.ID,
		PageID:         t.PageID,
		Name:           t.Name,
		Kind:           t.Kind,
		Status:         t.Status,
		Activate:       t.Activate,
		Deadline:       t.Deadline,
		Completed:      t.Completed,
		PreviousID:     t.PreviousID,
		Blocked:        t.Blocked,
		PrerequisiteID: t.PrerequisiteID,
		Notes:          t.Notes,
		Position:       t.Position,
		DueIn:          task.DueInString(t, now),
		Overdue:        task.IsOverdue(t, now),
	}
	if t.Duration > 0 {
		v.Duration = t.Duration.String()
	}
	return v
}

func newTaskViews(tasks []models.Task, now time.Time) []taskView {
	out := make([]taskView, 0, len(tasks))
	for i := range tasks {
		out = append(out, newTaskView(&tasks[i], now))
	}
	return out
}

type pageView struct {
	ID       uint                 `json:"id"`
	Name     string               `json:"name"`
	IsShared bool                 `json:"is_shared"`
	Link     string               `json:"link,omitempty"`
	ChatID   *string              `json:"chat_id,omitempty"`
	Tag      *string              `json:"tag,omitempty"`
	Messages []models.PageMessage `json:"messages,omitempty"`
}

func newPageView(p *models.Page) pageView {
	return pageView{
		ID:       p.ID,
		Name:     p.Name,
		IsShared: p.IsShared,
		Link:     page.Link(p),
		ChatID:   p.ChatID,
		Tag:      p.Tag,
		Messages: p.Messages,
	}
}

// sharedView is what anonymous visitors of a share link see.
type sharedView struct {
	Name  string     `json:"name"`
	Tasks []taskView `json:"tasks"`
}
