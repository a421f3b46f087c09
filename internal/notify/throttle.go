package notify

import (
	"time"

	"github.com/zulandar/taskyard/internal/models"
)

// Throttle decides when a page may receive another active-tasks digest.
type Throttle struct {
	Cooldown time.Duration
	SendHour int
	Location *time.Location
}

// ShouldSend reports whether a digest may go out at now given the page's
// last logged message. With no prior message it always may. Within the
// cooldown it never may. After it, only during SendHour in Location.
func (th Throttle) ShouldSend(last *models.PageMessage, now time.Time) bool {
	if last == nil {
		return true
	}
	if now.Before(last.Timestamp.Add(th.Cooldown)) {
		return false
	}
	loc := th.Location
	if loc == nil {
		loc = time.Local
	}
	return now.In(loc).Hour() == th.SendHour
}
