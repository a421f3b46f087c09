package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/taskyard/internal/models"
)

// CompletedTimeLayout renders completion times in completed digests.
const CompletedTimeLayout = "02.01.2006 15:04"

// FormatCompleted composes the thank-you digest for tasks completed since
// the last message. tasks must already be ordered newest first.
func FormatCompleted(tag string, tasks []models.Task, loc *time.Location) string {
	if len(tasks) == 0 {
		return ""
	}
	lines := make([]string, 0, len(tasks))
	for _, t := range tasks {
		at := ""
		if t.Completed != nil {
			at = t.Completed.In(loc).Format(CompletedTimeLayout)
		}
		lines = append(lines, fmt.Sprintf("%s at %s", t.Name, at))
	}
	return fmt.Sprintf("%sthank you for completing the following tasks:\n%s", prefix(tag), strings.Join(lines, "\n"))
}

// FormatActive composes the reminder digest listing the page's active tasks.
func FormatActive(tag string, tasks []models.Task, baseURL, link string) string {
	if len(tasks) == 0 {
		return ""
	}
	lines := make([]string, 0, len(tasks))
	for _, t := range tasks {
		lines = append(lines, "⏰ "+t.Name)
	}
	return fmt.Sprintf("%syou have %d active tasks:\n%s\nCheck: %s%s",
		prefix(tag), len(tasks), strings.Join(lines, "\n"), strings.TrimRight(baseURL, "/"), link)
}

func prefix(tag string) string {
	if tag == "" {
		return ""
	}
	return tag + " "
}
