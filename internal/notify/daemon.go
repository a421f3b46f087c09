package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateSchedule reports whether expr is a valid 5-field cron expression.
func ValidateSchedule(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("notify: schedule %q: %w", expr, err)
	}
	return nil
}

// Daemon runs the scheduler on a cron schedule.
type Daemon struct {
	sched    *Scheduler
	expr     string
	schedule cron.Schedule
	loc      *time.Location
	log      logrus.FieldLogger
}

// NewDaemon creates a Daemon firing sched on the cron expression expr,
// evaluated in loc.
func NewDaemon(sched *Scheduler, expr string, loc *time.Location) (*Daemon, error) {
	if sched == nil {
		return nil, fmt.Errorf("notify: scheduler is required")
	}
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("notify: schedule %q: %w", expr, err)
	}
	if loc == nil {
		loc = time.Local
	}
	return &Daemon{sched: sched, expr: expr, schedule: schedule, loc: loc, log: sched.log}, nil
}

// Next returns the first fire time after t.
func (d *Daemon) Next(t time.Time) time.Time {
	return d.schedule.Next(t.In(d.loc))
}

// Run blocks until ctx is cancelled, running one batch per tick. A tick
// that fires while the previous batch is still running is skipped.
func (d *Daemon) Run(ctx context.Context) error {
	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithLocation(d.loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(d.log))),
	)
	if _, err := c.AddFunc(d.expr, func() { d.tick(ctx) }); err != nil {
		return fmt.Errorf("notify: schedule %q: %w", d.expr, err)
	}

	d.log.WithFields(logrus.Fields{
		"schedule": d.expr,
		"next":     d.Next(time.Now()).Format(time.RFC3339),
	}).Info("digest daemon started")
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	d.log.Info("digest daemon stopped")
	return nil
}

func (d *Daemon) tick(ctx context.Context) {
	summary, err := d.sched.Run(ctx)
	if err != nil {
		d.log.WithError(err).Error("digest run failed")
		return
	}
	for _, r := range summary.Failed() {
		d.log.WithFields(logrus.Fields{"page_id": r.PageID, "page": r.PageName}).
			WithError(r.Err).Error("page digest failed")
	}
}
