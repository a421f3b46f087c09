package task

import (
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/taskyard/internal/models"
)

// IsActive reports whether the task is still open.
func IsActive(t *models.Task) bool { return t.Status == models.StatusActive }

// IsDone reports whether the task was completed successfully.
func IsDone(t *models.Task) bool { return t.Status == models.StatusDone }

// IsFailed reports whether the task was marked failed.
func IsFailed(t *models.Task) bool { return t.Status == models.StatusFailed }

// IsCompleted reports whether the task left the ACTIVE state.
func IsCompleted(t *models.Task) bool { return IsDone(t) || IsFailed(t) }

// DueIn returns the time left until the deadline, or zero without one.
func DueIn(t *models.Task, now time.Time) time.Duration {
	if t.Deadline == nil {
		return 0
	}
	return t.Deadline.Sub(now)
}

// IsOverdue reports whether an active task is past its deadline.
func IsOverdue(t *models.Task, now time.Time) bool {
	if !IsActive(t) {
		return false
	}
	return DueIn(t, now) < 0
}

// DueInString renders the remaining time for display. Done tasks show
// nothing; a failed task still shows time left before its deadline.
// Never-ending tasks describe when they reappear instead, while active.
func DueInString(t *models.Task, now time.Time) string {
	if IsDone(t) {
		return ""
	}
	if t.Kind == models.KindNeverEnding {
		if !IsActive(t) {
			return ""
		}
		return reappearString(t.Duration)
	}
	if IsOverdue(t, now) {
		return "Overdue"
	}

	days, hours, minutes, seconds := splitDuration(DueIn(t, now))
	var parts []string
	if days > 0 {
		parts = append(parts, plural(days, "Day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "Hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "Minute"))
	}
	if len(parts) > 0 {
		return strings.Join(parts, ", ")
	}
	if seconds > 0 {
		return "Now"
	}
	return ""
}

func reappearString(d time.Duration) string {
	days, hours, minutes, seconds := splitDuration(d)
	var parts []string
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if seconds > 0 {
		parts = append(parts, plural(seconds, "second"))
	}

	switch len(parts) {
	case 0:
		return "Reappears"
	case 1:
		return "Reappears " + parts[0] + " after completion"
	default:
		return "Reappears " + strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1] + " after completion"
	}
}

func splitDuration(d time.Duration) (days, hours, minutes, seconds int64) {
	total := int64(d / time.Second)
	days = total / 86400
	total %= 86400
	return days, total / 3600, (total % 3600) / 60, total % 60
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// CompletedSortKey orders tasks for display, ascending: undated open tasks,
// open tasks by deadline day, open tasks with only an activate date, then
// completed tasks by completion day.
func CompletedSortKey(t *models.Task) int64 {
	if t.Completed == nil {
		if t.Deadline != nil {
			return 10 * dayNumber(*t.Deadline)
		}
		if t.Activate != nil {
			return 10 * 88888888
		}
		return 99999999
	}
	return 100 * dayNumber(*t.Completed)
}

func dayNumber(ts time.Time) int64 {
	return int64(ts.Year())*10000 + int64(ts.Month())*100 + int64(ts.Day())
}
