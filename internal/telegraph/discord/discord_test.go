package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/zulandar/taskyard/internal/telegraph"
)

// --- Mock session ---

type sentMessage struct {
	channelID string
	content   string
}

type mockSession struct {
	mu       sync.Mutex
	openErr  error
	opened   bool
	closed   bool
	sent     []sentMessage
	sendErrs []error // consumed one per send
}

func (m *mockSession) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openErr != nil {
		return m.openErr
	}
	m.opened = true
	return nil
}

func (m *mockSession) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockSession) ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sendErrs) > 0 {
		err := m.sendErrs[0]
		m.sendErrs = m.sendErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	m.sent = append(m.sent, sentMessage{channelID: channelID, content: content})
	return &discordgo.Message{ChannelID: channelID, Content: content}, nil
}

func rateLimited() error {
	return &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusTooManyRequests}}
}

func newConnected(t *testing.T, sess *mockSession) *Adapter {
	t.Helper()
	a, err := New(AdapterOpts{Session: sess})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a.retryWait = time.Millisecond
	if err := a.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return a
}

var _ telegraph.Adapter = (*Adapter)(nil)

func TestNew_RequiresBotToken(t *testing.T) {
	if _, err := New(AdapterOpts{}); err == nil {
		t.Fatal("expected error for missing bot token")
	}
}

func TestConnect_Success(t *testing.T) {
	sess := &mockSession{}
	newConnected(t, sess)
	if !sess.opened {
		t.Error("session was not opened")
	}
}

func TestConnect_OpenError(t *testing.T) {
	a, _ := New(AdapterOpts{Session: &mockSession{openErr: fmt.Errorf("bad token")}})
	if err := a.Connect(context.Background()); err == nil {
		t.Fatal("expected open error")
	}
	if err := a.Send(context.Background(), telegraph.OutboundMessage{ChannelID: "1", Text: "x"}); !errors.Is(err, telegraph.ErrNotConnected) {
		t.Errorf("Send after failed connect = %v, want ErrNotConnected", err)
	}
}

func TestConnect_AlreadyClosed(t *testing.T) {
	a, _ := New(AdapterOpts{Session: &mockSession{}})
	a.Close()
	if err := a.Connect(context.Background()); err == nil {
		t.Fatal("expected error connecting closed adapter")
	}
}

func TestClose_ClosesSession(t *testing.T) {
	sess := &mockSession{}
	a := newConnected(t, sess)
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !sess.closed {
		t.Error("session was not closed")
	}
	if err := a.Close(); err != nil {
		t.Fatalf("double Close: %v", err)
	}
}

func TestSend_SimpleText(t *testing.T) {
	sess := &mockSession{}
	a := newConnected(t, sess)

	if err := a.Send(context.Background(), telegraph.OutboundMessage{ChannelID: "123", Text: "hello"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(sess.sent) != 1 || sess.sent[0].channelID != "123" || sess.sent[0].content != "hello" {
		t.Errorf("sent = %+v", sess.sent)
	}
}

func TestSend_NoChannel(t *testing.T) {
	a := newConnected(t, &mockSession{})
	if err := a.Send(context.Background(), telegraph.OutboundMessage{Text: "hello"}); err == nil {
		t.Fatal("expected error for missing channel")
	}
}

func TestSend_RetriesRateLimitOnce(t *testing.T) {
	sess := &mockSession{sendErrs: []error{rateLimited()}}
	a := newConnected(t, sess)

	if err := a.Send(context.Background(), telegraph.OutboundMessage{ChannelID: "1", Text: "x"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(sess.sent) != 1 {
		t.Errorf("sent = %d, want 1", len(sess.sent))
	}
}

func TestSend_GivesUpAfterSecondRateLimit(t *testing.T) {
	sess := &mockSession{sendErrs: []error{rateLimited(), rateLimited()}}
	a := newConnected(t, sess)

	if err := a.Send(context.Background(), telegraph.OutboundMessage{ChannelID: "1", Text: "x"}); err == nil {
		t.Fatal("expected error after second rate limit")
	}
	if len(sess.sent) != 0 {
		t.Errorf("sent = %d, want 0", len(sess.sent))
	}
}

func TestSend_OtherErrorNotRetried(t *testing.T) {
	sess := &mockSession{sendErrs: []error{fmt.Errorf("missing access"), nil}}
	a := newConnected(t, sess)

	if err := a.Send(context.Background(), telegraph.OutboundMessage{ChannelID: "1", Text: "x"}); err == nil {
		t.Fatal("expected error")
	}
	if len(sess.sendErrs) != 1 {
		t.Errorf("send called %d times, want 1", 2-len(sess.sendErrs))
	}
}
