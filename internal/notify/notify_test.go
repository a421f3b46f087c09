package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/zulandar/taskyard/internal/db"
	"github.com/zulandar/taskyard/internal/models"
	"github.com/zulandar/taskyard/internal/page"
	"github.com/zulandar/taskyard/internal/task"
	"github.com/zulandar/taskyard/internal/telegraph"
	"gorm.io/gorm"
)

// t0 falls inside the 08:00 send window.
var t0 = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

type fixture struct {
	db      *gorm.DB
	clock   *clock.Mock
	engine  *task.Engine
	adapter *telegraph.MockAdapter
	sched   *Scheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gdb, err := db.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})

	clk := clock.NewMock()
	clk.Set(t0)
	adapter := telegraph.NewMockAdapter()
	adapter.Connect(context.Background())

	sched, err := New(gdb, adapter, clk, Options{
		Workers:     4,
		SendTimeout: time.Second,
		Throttle:    Throttle{Cooldown: 2 * time.Hour, SendHour: 8, Location: time.UTC},
		BaseURL:     "https://tasks.example.com/",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &fixture{db: gdb, clock: clk, engine: task.NewEngine(gdb, clk), adapter: adapter, sched: sched}
}

// page creates a shared page, the state in which it takes digests.
func (f *fixture) page(t *testing.T, name, chatID, tag string) *models.Page {
	t.Helper()
	p := f.privatePage(t, name, chatID, tag)
	shared, err := page.Share(f.db, p.ID)
	if err != nil {
		t.Fatalf("share page: %v", err)
	}
	return shared
}

func (f *fixture) privatePage(t *testing.T, name, chatID, tag string) *models.Page {
	t.Helper()
	p, err := page.Create(f.db, page.CreateOpts{Owner: "alice", Name: name, ChatID: chatID, Tag: tag})
	if err != nil {
		t.Fatalf("create page: %v", err)
	}
	return p
}

func (f *fixture) task(t *testing.T, p *models.Page, name string) *models.Task {
	t.Helper()
	tk, err := f.engine.Create(task.CreateOpts{Owner: "alice", PageID: &p.ID, Name: name})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return tk
}

func (f *fixture) run(t *testing.T) *Summary {
	t.Helper()
	summary, err := f.sched.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return summary
}

func (f *fixture) messages(t *testing.T, id uint) []models.PageMessage {
	t.Helper()
	p, err := page.Get(f.db, id)
	if err != nil {
		t.Fatalf("get page: %v", err)
	}
	return p.Messages
}

func TestShouldSend(t *testing.T) {
	th := Throttle{Cooldown: 2 * time.Hour, SendHour: 8, Location: time.UTC}
	at := func(h, m int) time.Time { return time.Date(2026, 3, 10, h, m, 0, 0, time.UTC) }
	msg := func(ts time.Time) *models.PageMessage { return &models.PageMessage{Text: "x", Timestamp: ts} }

	tests := []struct {
		name string
		last *models.PageMessage
		now  time.Time
		want bool
	}{
		{"no prior message", nil, at(15, 0), true},
		{"inside cooldown", msg(at(7, 0)), at(8, 30), false},
		{"cooldown boundary in send hour", msg(at(6, 0)), at(8, 0), true},
		{"after cooldown outside send hour", msg(at(8, 0)), at(10, 0), false},
		{"next day send hour", msg(at(8, 0).Add(-24 * time.Hour)), at(8, 45), true},
		{"last message in future", msg(at(9, 0)), at(8, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := th.ShouldSend(tt.last, tt.now); got != tt.want {
				t.Errorf("ShouldSend = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShouldSend_UsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	th := Throttle{Cooldown: 2 * time.Hour, SendHour: 8, Location: loc}
	last := &models.PageMessage{Timestamp: time.Date(2026, 3, 9, 6, 0, 0, 0, time.UTC)}

	if !th.ShouldSend(last, time.Date(2026, 3, 10, 6, 30, 0, 0, time.UTC)) {
		t.Error("06:30 UTC is 08:30 local; expected send")
	}
	if th.ShouldSend(last, time.Date(2026, 3, 10, 8, 30, 0, 0, time.UTC)) {
		t.Error("08:30 UTC is 10:30 local; expected no send")
	}
}

func TestFormatCompleted(t *testing.T) {
	at := func(m int) *time.Time { ts := t0.Add(time.Duration(m) * time.Minute); return &ts }
	tasks := []models.Task{
		{Name: "taxes", Completed: at(30)},
		{Name: "dishes", Completed: at(10)},
	}
	got := FormatCompleted("@alice", tasks, time.UTC)
	want := "@alice thank you for completing the following tasks:\ntaxes at 10.03.2026 08:30\ndishes at 10.03.2026 08:10"
	if got != want {
		t.Errorf("FormatCompleted =\n%q\nwant\n%q", got, want)
	}
	if got := FormatCompleted("", tasks[:1], time.UTC); !strings.HasPrefix(got, "thank you") {
		t.Errorf("untagged digest = %q", got)
	}
	if FormatCompleted("@alice", nil, time.UTC) != "" {
		t.Error("empty task list should produce no digest")
	}
}

func TestFormatActive(t *testing.T) {
	tasks := []models.Task{{Name: "dishes"}, {Name: "laundry"}}
	got := FormatActive("@alice", tasks, "https://tasks.example.com/", "/shared/abc")
	want := "@alice you have 2 active tasks:\n⏰ dishes\n⏰ laundry\nCheck: https://tasks.example.com/shared/abc"
	if got != want {
		t.Errorf("FormatActive =\n%q\nwant\n%q", got, want)
	}
	if FormatActive("", nil, "", "") != "" {
		t.Error("empty task list should produce no digest")
	}
}

func TestRun_FirstRunSendsActiveDigest(t *testing.T) {
	f := newFixture(t)
	p := f.page(t, "Home", "100", "@alice")
	f.task(t, p, "dishes")
	f.task(t, p, "laundry")
	shared, err := page.Share(f.db, p.ID)
	if err != nil {
		t.Fatal(err)
	}

	summary := f.run(t)
	if summary.Err() != nil || summary.Sent() != 1 {
		t.Fatalf("summary = %+v", summary.Results)
	}
	msg, _ := f.adapter.LastSent()
	if msg.ChannelID != "100" {
		t.Errorf("ChannelID = %q, want 100", msg.ChannelID)
	}
	wantLink := "Check: https://tasks.example.com/shared/" + *shared.ShareToken
	if !strings.HasPrefix(msg.Text, "@alice you have 2 active tasks:") || !strings.HasSuffix(msg.Text, wantLink) {
		t.Errorf("text = %q", msg.Text)
	}

	logged := f.messages(t, p.ID)
	if len(logged) != 1 || logged[0].Text != msg.Text || !logged[0].Timestamp.Equal(t0) {
		t.Errorf("log = %+v", logged)
	}
}

func TestRun_NoDestinationIsSkipped(t *testing.T) {
	f := newFixture(t)
	p := f.page(t, "Quiet", "", "")
	f.task(t, p, "dishes")
	if _, err := page.Share(f.db, p.ID); err != nil {
		t.Fatal(err)
	}

	summary := f.run(t)
	if len(summary.Results) != 0 {
		t.Errorf("results = %+v, want none", summary.Results)
	}
	if f.adapter.SentCount() != 0 {
		t.Errorf("sent = %d, want 0", f.adapter.SentCount())
	}
}

func TestRun_UnsharedPageIsSkipped(t *testing.T) {
	f := newFixture(t)
	private := f.privatePage(t, "Private", "100", "")
	f.task(t, private, "dishes")
	public := f.page(t, "Public", "200", "")
	f.task(t, public, "laundry")

	summary := f.run(t)
	if len(summary.Results) != 1 || summary.Results[0].PageID != public.ID {
		t.Fatalf("results = %+v, want only the shared page", summary.Results)
	}
	if got := f.adapter.SentTo("100"); len(got) != 0 {
		t.Errorf("unshared page got %d messages", len(got))
	}
	if len(f.messages(t, private.ID)) != 0 {
		t.Error("unshared page must not be logged")
	}

	// RunPage on its own also refuses the unshared page.
	if sent, err := f.sched.RunPage(context.Background(), private); err != nil || sent != 0 {
		t.Errorf("RunPage(unshared) = %d, %v; want 0, nil", sent, err)
	}

	// Revoking the link stops the digests.
	f.clock.Set(t0.Add(24 * time.Hour))
	if _, err := page.Unshare(f.db, public.ID); err != nil {
		t.Fatal(err)
	}
	if s := f.run(t); len(s.Results) != 0 {
		t.Errorf("results after unshare = %+v, want none", s.Results)
	}
}

func TestRun_NoActiveTasksSendsNothing(t *testing.T) {
	f := newFixture(t)
	p := f.page(t, "Empty", "100", "")
	if _, err := f.engine.Create(task.CreateOpts{Owner: "alice", PageID: &p.ID, Name: "ideas", Kind: models.KindNotes}); err != nil {
		t.Fatal(err)
	}

	summary := f.run(t)
	if summary.Sent() != 0 || len(f.messages(t, p.ID)) != 0 {
		t.Errorf("sent = %d, want 0", summary.Sent())
	}
}

func TestRun_Idempotent(t *testing.T) {
	f := newFixture(t)
	p := f.page(t, "Home", "100", "")
	f.task(t, p, "dishes")

	f.run(t)
	for _, d := range []time.Duration{0, 30 * time.Minute, 59 * time.Minute, time.Hour + 59*time.Minute, 2 * time.Hour, 5 * time.Hour} {
		f.clock.Set(t0.Add(d))
		f.run(t)
	}
	if f.adapter.SentCount() != 1 {
		t.Errorf("sent = %d, want 1", f.adapter.SentCount())
	}
	if n := len(f.messages(t, p.ID)); n != 1 {
		t.Errorf("log entries = %d, want 1", n)
	}

	// Next morning the reminder goes out again.
	f.clock.Set(t0.Add(24 * time.Hour))
	f.run(t)
	if f.adapter.SentCount() != 2 {
		t.Errorf("sent = %d, want 2", f.adapter.SentCount())
	}
}

func TestRun_CompletedDigest(t *testing.T) {
	f := newFixture(t)
	p := f.page(t, "Home", "100", "@alice")
	a := f.task(t, p, "dishes")
	b := f.task(t, p, "taxes")
	f.task(t, p, "laundry")

	f.run(t) // last message at t0

	f.clock.Set(t0.Add(10 * time.Minute))
	if _, err := f.engine.Complete(a.ID); err != nil {
		t.Fatal(err)
	}
	f.clock.Set(t0.Add(30 * time.Minute))
	if _, err := f.engine.Complete(b.ID); err != nil {
		t.Fatal(err)
	}

	f.clock.Set(t0.Add(40 * time.Minute))
	summary := f.run(t)
	if summary.Sent() != 1 {
		t.Fatalf("sent this run = %d, want 1", summary.Sent())
	}
	msg, _ := f.adapter.LastSent()
	want := "@alice thank you for completing the following tasks:\ntaxes at 10.03.2026 08:30\ndishes at 10.03.2026 08:10"
	if msg.Text != want {
		t.Errorf("text =\n%q\nwant\n%q", msg.Text, want)
	}
	logged := f.messages(t, p.ID)
	if len(logged) != 2 {
		t.Fatalf("log entries = %d, want 2", len(logged))
	}
	if logged[1].Text != want || !logged[1].Timestamp.Equal(t0.Add(40*time.Minute)) {
		t.Errorf("new entry = %+v", logged[1])
	}

	// Nothing new completed: the next run stays silent.
	f.clock.Set(t0.Add(50 * time.Minute))
	if s := f.run(t); s.Sent() != 0 {
		t.Errorf("sent on quiet run = %d, want 0", s.Sent())
	}
}

func TestRun_CompletedDigestSuppressesActiveThroughCooldown(t *testing.T) {
	f := newFixture(t)
	p := f.page(t, "Home", "100", "")
	a := f.task(t, p, "dishes")
	f.task(t, p, "laundry")

	// Seed a message from yesterday so today's 08:00 run is past the cooldown.
	if _, err := page.AppendMessage(f.db, p.ID, "old", t0.Add(-24*time.Hour)); err != nil {
		t.Fatal(err)
	}
	f.clock.Set(t0.Add(-12 * time.Hour))
	if _, err := f.engine.Complete(a.ID); err != nil {
		t.Fatal(err)
	}

	f.clock.Set(t0)
	summary := f.run(t)
	if summary.Sent() != 1 {
		t.Fatalf("sent = %d, want only the completed digest", summary.Sent())
	}
	msg, _ := f.adapter.LastSent()
	if !strings.HasPrefix(msg.Text, "thank you") {
		t.Errorf("text = %q", msg.Text)
	}
}

func TestRun_FailureIsolation(t *testing.T) {
	f := newFixture(t)
	x := f.page(t, "X", "x", "")
	y := f.page(t, "Y", "y", "")
	f.task(t, x, "x task")
	f.task(t, y, "y task")
	f.adapter.FailChannel("x", errors.New("chat not found"))

	summary := f.run(t)
	if summary.Err() == nil {
		t.Fatal("expected summary error")
	}
	results := map[uint]Result{}
	for _, r := range summary.Results {
		results[r.PageID] = r
	}
	if !errors.Is(results[x.ID].Err, ErrSendFailed) {
		t.Errorf("X err = %v, want ErrSendFailed", results[x.ID].Err)
	}
	if results[y.ID].Err != nil || results[y.ID].Sent != 1 {
		t.Errorf("Y result = %+v", results[y.ID])
	}
	if len(f.messages(t, x.ID)) != 0 {
		t.Error("failed send must not be logged")
	}
	if len(f.messages(t, y.ID)) != 1 {
		t.Error("successful send must be logged")
	}

	// The next run retries X because nothing was logged.
	f.adapter.FailChannel("x", nil)
	if s := f.run(t); s.Err() != nil || s.Sent() != 1 {
		t.Errorf("retry run = %+v", s.Results)
	}
}

func TestRun_SendTimeout(t *testing.T) {
	f := newFixture(t)
	f.sched.opts.SendTimeout = 20 * time.Millisecond
	slow := f.page(t, "Slow", "slow", "")
	fast := f.page(t, "Fast", "fast", "")
	f.task(t, slow, "a")
	f.task(t, fast, "b")
	f.adapter.BlockChannel("slow")

	summary := f.run(t)
	for _, r := range summary.Results {
		switch r.PageID {
		case slow.ID:
			if !errors.Is(r.Err, ErrSendFailed) {
				t.Errorf("slow err = %v, want ErrSendFailed", r.Err)
			}
		case fast.ID:
			if r.Err != nil || r.Sent != 1 {
				t.Errorf("fast result = %+v", r)
			}
		}
	}
	if len(f.messages(t, slow.ID)) != 0 {
		t.Error("timed out send must not be logged")
	}
}

func TestRun_ManyPagesBoundedWorkers(t *testing.T) {
	f := newFixture(t)
	f.sched.opts.Workers = 2
	for i := 0; i < 10; i++ {
		p := f.page(t, fmt.Sprintf("p%02d", i), fmt.Sprint(1000+i), "")
		f.task(t, p, "task")
	}
	summary := f.run(t)
	if len(summary.Results) != 10 || summary.Sent() != 10 || summary.Err() != nil {
		t.Errorf("summary: %d results, %d sent, err %v", len(summary.Results), summary.Sent(), summary.Err())
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(nil, telegraph.NewMockAdapter(), nil, Options{}); err == nil {
		t.Error("expected error for nil db")
	}
	f := newFixture(t)
	if _, err := New(f.db, nil, nil, Options{}); err == nil {
		t.Error("expected error for nil adapter")
	}
}

func TestDaemon_Schedule(t *testing.T) {
	f := newFixture(t)
	if _, err := NewDaemon(f.sched, "not a cron", time.UTC); err == nil {
		t.Error("expected error for invalid schedule")
	}
	if err := ValidateSchedule("0 * * * * *"); err == nil {
		t.Error("six-field expressions should be rejected")
	}

	d, err := NewDaemon(f.sched, "0 * * * *", time.UTC)
	if err != nil {
		t.Fatalf("NewDaemon: %v", err)
	}
	next := d.Next(t0.Add(5 * time.Minute))
	if !next.Equal(t0.Add(time.Hour)) {
		t.Errorf("Next = %v, want %v", next, t0.Add(time.Hour))
	}
}

func TestDaemon_RunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	d, err := NewDaemon(f.sched, "0 * * * *", time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("daemon did not stop")
	}
}
