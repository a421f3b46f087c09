package telegram

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/zulandar/taskyard/internal/telegraph"
)

type mockBot struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	sendErrs []error // consumed one per Send
	calls    int
}

func (m *mockBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if len(m.sendErrs) > 0 {
		err := m.sendErrs[0]
		m.sendErrs = m.sendErrs[1:]
		if err != nil {
			return tgbotapi.Message{}, err
		}
	}
	m.sent = append(m.sent, c)
	return tgbotapi.Message{MessageID: len(m.sent)}, nil
}

func tooManyRequests() error {
	return &tgbotapi.Error{Code: 429, Message: "Too Many Requests"}
}

func newConnected(t *testing.T, bot *mockBot) *Adapter {
	t.Helper()
	fallbackWait = time.Millisecond
	a, err := New(AdapterOpts{Bot: bot})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return a
}

var _ telegraph.Adapter = (*Adapter)(nil)

func TestNew_RequiresToken(t *testing.T) {
	if _, err := New(AdapterOpts{}); err == nil {
		t.Fatal("expected error for missing token")
	}
}

func TestSend_NotConnected(t *testing.T) {
	a, _ := New(AdapterOpts{Bot: &mockBot{}})
	err := a.Send(context.Background(), telegraph.OutboundMessage{ChannelID: "1", Text: "x"})
	if !errors.Is(err, telegraph.ErrNotConnected) {
		t.Fatalf("Send = %v, want ErrNotConnected", err)
	}
}

func TestConnect_AlreadyClosed(t *testing.T) {
	a, _ := New(AdapterOpts{Bot: &mockBot{}})
	a.Close()
	if err := a.Connect(context.Background()); err == nil {
		t.Fatal("expected error connecting closed adapter")
	}
}

func TestSend_NumericChat(t *testing.T) {
	bot := &mockBot{}
	a := newConnected(t, bot)

	if err := a.Send(context.Background(), telegraph.OutboundMessage{ChannelID: "-100123", Text: "hello"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(bot.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(bot.sent))
	}
	msg, ok := bot.sent[0].(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("sent %T, want MessageConfig", bot.sent[0])
	}
	if msg.ChatID != -100123 || msg.Text != "hello" {
		t.Errorf("msg = chat %d text %q", msg.ChatID, msg.Text)
	}
}

func TestSend_ChannelUsername(t *testing.T) {
	bot := &mockBot{}
	a := newConnected(t, bot)

	if err := a.Send(context.Background(), telegraph.OutboundMessage{ChannelID: "@family", Text: "hi"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	msg := bot.sent[0].(tgbotapi.MessageConfig)
	if msg.ChannelUsername != "@family" {
		t.Errorf("ChannelUsername = %q, want @family", msg.ChannelUsername)
	}
}

func TestSend_InvalidChat(t *testing.T) {
	bot := &mockBot{}
	a := newConnected(t, bot)

	for _, dest := range []string{"", "family"} {
		if err := a.Send(context.Background(), telegraph.OutboundMessage{ChannelID: dest, Text: "hi"}); err == nil {
			t.Errorf("Send(%q): expected error", dest)
		}
	}
	if bot.calls != 0 {
		t.Errorf("bot called %d times, want 0", bot.calls)
	}
}

func TestSend_RetriesRateLimitOnce(t *testing.T) {
	bot := &mockBot{sendErrs: []error{tooManyRequests()}}
	a := newConnected(t, bot)

	if err := a.Send(context.Background(), telegraph.OutboundMessage{ChannelID: "1", Text: "x"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if bot.calls != 2 || len(bot.sent) != 1 {
		t.Errorf("calls = %d, sent = %d; want 2, 1", bot.calls, len(bot.sent))
	}
}

func TestSend_GivesUpAfterSecondRateLimit(t *testing.T) {
	bot := &mockBot{sendErrs: []error{tooManyRequests(), tooManyRequests()}}
	a := newConnected(t, bot)

	err := a.Send(context.Background(), telegraph.OutboundMessage{ChannelID: "1", Text: "x"})
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) || apiErr.Code != 429 {
		t.Fatalf("Send = %v, want 429 error", err)
	}
	if bot.calls != maxRetries+1 {
		t.Errorf("calls = %d, want %d", bot.calls, maxRetries+1)
	}
}

func TestSend_OtherErrorNotRetried(t *testing.T) {
	bot := &mockBot{sendErrs: []error{fmt.Errorf("Forbidden: bot was blocked by the user")}}
	a := newConnected(t, bot)

	if err := a.Send(context.Background(), telegraph.OutboundMessage{ChannelID: "1", Text: "x"}); err == nil {
		t.Fatal("expected error")
	}
	if bot.calls != 1 {
		t.Errorf("calls = %d, want 1", bot.calls)
	}
}
