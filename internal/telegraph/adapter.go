// Package telegraph delivers task digests to chat platforms (Telegram,
// Slack, Discord).
package telegraph

import (
	"context"
	"errors"
)

// ErrNotConnected is returned by Send when Connect has not succeeded.
var ErrNotConnected = errors.New("telegraph: not connected")

// Adapter is the interface that platform-specific implementations must satisfy.
type Adapter interface {
	// Connect authenticates against the chat platform.
	Connect(ctx context.Context) error

	// Send delivers an outbound message to the platform.
	Send(ctx context.Context, msg OutboundMessage) error

	// Close gracefully shuts down the adapter connection.
	Close() error
}

// OutboundMessage represents a message to be sent to the chat platform.
type OutboundMessage struct {
	ChannelID string // platform-specific chat/channel identifier
	Text      string // plain message text
}
