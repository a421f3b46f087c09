// Package notify runs the digest batch: for every page with a chat
// destination it sends completed and active task digests through a
// telegraph adapter and logs each confirmed send on the page.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
	"github.com/zulandar/taskyard/internal/models"
	"github.com/zulandar/taskyard/internal/page"
	"github.com/zulandar/taskyard/internal/telegraph"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// ErrSendFailed wraps gateway failures and timeouts.
var ErrSendFailed = errors.New("notify: send failed")

// Options configures a Scheduler.
type Options struct {
	Owner       string // restrict to one owner's pages; empty means all
	Workers     int
	SendTimeout time.Duration
	Throttle    Throttle
	BaseURL     string
	Logger      logrus.FieldLogger
}

// Scheduler composes and delivers page digests.
type Scheduler struct {
	db      *gorm.DB
	adapter telegraph.Adapter
	clock   clock.Clock
	opts    Options
	log     logrus.FieldLogger
}

// New creates a Scheduler. The adapter must already be connected; its
// lifecycle belongs to the caller. A nil clk uses the wall clock.
func New(db *gorm.DB, adapter telegraph.Adapter, clk clock.Clock, opts Options) (*Scheduler, error) {
	if db == nil {
		return nil, fmt.Errorf("notify: db is required")
	}
	if adapter == nil {
		return nil, fmt.Errorf("notify: adapter is required")
	}
	if clk == nil {
		clk = clock.New()
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 10 * time.Second
	}
	if opts.Throttle.Location == nil {
		opts.Throttle.Location = time.Local
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scheduler{db: db, adapter: adapter, clock: clk, opts: opts, log: log}, nil
}

// Result is the outcome of one page's digest pass.
type Result struct {
	PageID   uint
	PageName string
	Sent     int
	Err      error
}

// Summary collects the per-page results of one batch run.
type Summary struct {
	Results []Result
}

// Failed returns the results that ended in an error.
func (s *Summary) Failed() []Result {
	var out []Result
	for _, r := range s.Results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// Sent returns the total number of messages delivered.
func (s *Summary) Sent() int {
	n := 0
	for _, r := range s.Results {
		n += r.Sent
	}
	return n
}

// Err returns a non-nil error when any page failed.
func (s *Summary) Err() error {
	if failed := s.Failed(); len(failed) > 0 {
		return fmt.Errorf("notify: %d of %d pages failed", len(failed), len(s.Results))
	}
	return nil
}

// Run makes one pass over every eligible page. Pages are processed
// concurrently up to Workers; one page failing never stops the others.
// The returned error covers only loading the page list.
func (s *Scheduler) Run(ctx context.Context) (*Summary, error) {
	pages, err := s.eligiblePages()
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(pages))
	var g errgroup.Group
	g.SetLimit(s.opts.Workers)
	for i := range pages {
		i := i
		g.Go(func() error {
			p := &pages[i]
			sent, err := s.RunPage(ctx, p)
			results[i] = Result{PageID: p.ID, PageName: p.Name, Sent: sent, Err: err}
			return nil
		})
	}
	g.Wait()

	summary := &Summary{Results: results}
	s.log.WithFields(logrus.Fields{
		"pages":  len(results),
		"sent":   summary.Sent(),
		"failed": len(summary.Failed()),
	}).Info("digest run finished")
	return summary, nil
}

// RunPage sends the page's completed digest, then its active digest, and
// returns how many messages went out.
func (s *Scheduler) RunPage(ctx context.Context, p *models.Page) (int, error) {
	if !page.CanSendUpdates(p) {
		return 0, nil
	}
	log := s.log.WithFields(logrus.Fields{"page_id": p.ID, "page": p.Name})
	tag := ""
	if p.Tag != nil {
		tag = *p.Tag
	}
	sent := 0

	last := page.LastMessage(p)
	if last != nil {
		done, err := s.completedSince(p.ID, last.Timestamp)
		if err != nil {
			return sent, err
		}
		if text := FormatCompleted(tag, done, s.opts.Throttle.Location); text != "" {
			entry, err := s.deliver(ctx, p, text)
			if err != nil {
				log.WithError(err).Warn("completed digest not sent")
				return sent, err
			}
			sent++
			last = entry
			log.WithField("tasks", len(done)).Info("completed digest sent")
		}
	}

	if !s.opts.Throttle.ShouldSend(last, s.clock.Now()) {
		return sent, nil
	}
	active, err := s.active(p.ID)
	if err != nil {
		return sent, err
	}
	text := FormatActive(tag, active, s.opts.BaseURL, page.Link(p))
	if text == "" {
		return sent, nil
	}
	if _, err := s.deliver(ctx, p, text); err != nil {
		log.WithError(err).Warn("active digest not sent")
		return sent, err
	}
	log.WithField("tasks", len(active)).Info("active digest sent")
	return sent + 1, nil
}

// deliver sends text to the page and, only on success, appends it to the
// page's message log.
func (s *Scheduler) deliver(ctx context.Context, p *models.Page, text string) (*models.PageMessage, error) {
	sendCtx, cancel := context.WithTimeout(ctx, s.opts.SendTimeout)
	defer cancel()

	if err := s.adapter.Send(sendCtx, telegraph.OutboundMessage{ChannelID: *p.ChatID, Text: text}); err != nil {
		return nil, fmt.Errorf("%w: page %d: %v", ErrSendFailed, p.ID, err)
	}
	entry, err := page.AppendMessage(s.db, p.ID, text, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("notify: log message for page %d: %w", p.ID, err)
	}
	return entry, nil
}

func (s *Scheduler) eligiblePages() ([]models.Page, error) {
	q := s.db.Where("is_shared = ? AND chat_id IS NOT NULL AND chat_id <> ?", true, "")
	if s.opts.Owner != "" {
		q = q.Where("owner = ?", s.opts.Owner)
	}
	var pages []models.Page
	if err := q.Order("id ASC").Find(&pages).Error; err != nil {
		return nil, fmt.Errorf("notify: load pages: %w", err)
	}
	return pages, nil
}

// completedSince returns the page's DONE tasks completed after since,
// newest first.
func (s *Scheduler) completedSince(pageID uint, since time.Time) ([]models.Task, error) {
	var tasks []models.Task
	err := s.db.Where("page_id = ? AND status = ? AND completed IS NOT NULL", pageID, models.StatusDone).
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("notify: completed tasks of page %d: %w", pageID, err)
	}
	out := tasks[:0]
	for _, t := range tasks {
		if t.Completed.After(since) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Completed.After(*out[j].Completed)
	})
	return out, nil
}

func (s *Scheduler) active(pageID uint) ([]models.Task, error) {
	var tasks []models.Task
	err := s.db.Where("page_id = ? AND status = ? AND kind <> ?", pageID, models.StatusActive, models.KindNotes).
		Order("id ASC").Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("notify: active tasks of page %d: %w", pageID, err)
	}
	return tasks, nil
}
