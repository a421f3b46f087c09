// Package telegram implements the telegraph Adapter for the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/zulandar/taskyard/internal/telegraph"
)

// maxRetries is the max number of retries for rate-limited API calls.
const maxRetries = 1

// fallbackWait is used when Telegram omits retry_after.
var fallbackWait = time.Second

// botClient abstracts the Bot API methods we use, enabling test mocks.
type botClient interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Adapter implements telegraph.Adapter for Telegram.
type Adapter struct {
	bot       botClient
	token     string
	username  string
	mu        sync.Mutex
	connected bool
	closed    bool
}

// AdapterOpts holds parameters for creating a Telegram Adapter.
type AdapterOpts struct {
	Token string // bot token from @BotFather
	// For testing: inject a mock client instead of the real Bot API.
	Bot botClient
}

// New creates a Telegram Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.Bot == nil && opts.Token == "" {
		return nil, fmt.Errorf("telegram: bot token is required")
	}
	return &Adapter{bot: opts.Bot, token: opts.Token}, nil
}

// Connect authenticates the bot token with getMe.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("telegram: adapter already closed")
	}
	if a.connected {
		return nil
	}
	if a.bot == nil {
		api, err := tgbotapi.NewBotAPI(a.token)
		if err != nil {
			return fmt.Errorf("telegram: auth: %w", err)
		}
		a.username = api.Self.UserName
		a.bot = api
	}
	a.connected = true
	return nil
}

// Send posts msg.Text to msg.ChannelID, which is either a numeric chat id
// or an @channel username.
func (a *Adapter) Send(ctx context.Context, msg telegraph.OutboundMessage) error {
	a.mu.Lock()
	if !a.connected {
		a.mu.Unlock()
		return telegraph.ErrNotConnected
	}
	bot := a.bot
	a.mu.Unlock()

	chat, err := buildMessage(msg)
	if err != nil {
		return err
	}

	err = retryOnRateLimit(ctx, func() error {
		_, sendErr := bot.Send(chat)
		return sendErr
	})
	if err != nil {
		return fmt.Errorf("telegram: send message to %s: %w", msg.ChannelID, err)
	}
	return nil
}

// Close shuts down the adapter.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	a.connected = false
	return nil
}

// Username returns the bot's @username (available after Connect).
func (a *Adapter) Username() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.username
}

// buildMessage maps a chat destination to a Bot API message config.
func buildMessage(msg telegraph.OutboundMessage) (tgbotapi.MessageConfig, error) {
	dest := strings.TrimSpace(msg.ChannelID)
	if dest == "" {
		return tgbotapi.MessageConfig{}, fmt.Errorf("telegram: no chat specified")
	}
	if strings.HasPrefix(dest, "@") {
		return tgbotapi.NewMessageToChannel(dest, msg.Text), nil
	}
	id, err := strconv.ParseInt(dest, 10, 64)
	if err != nil {
		return tgbotapi.MessageConfig{}, fmt.Errorf("telegram: chat id %q is neither numeric nor @username", dest)
	}
	return tgbotapi.NewMessage(id, msg.Text), nil
}

// retryOnRateLimit calls fn and retries after Telegram's retry_after when
// the API answers 429. It respects context cancellation.
func retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		var apiErr *tgbotapi.Error
		if !errors.As(err, &apiErr) || apiErr.Code != 429 || attempt == maxRetries {
			return err
		}

		wait := time.Duration(apiErr.RetryAfter) * time.Second
		if wait <= 0 {
			wait = fallbackWait
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
