package telegraph

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Paced wraps an Adapter so that sends never exceed a fixed rate. Chat
// platforms throttle bots that burst, so every outbound message waits for
// a token first.
type Paced struct {
	Adapter
	limiter *rate.Limiter
}

// NewPaced limits next to perMinute messages per minute. A non-positive
// perMinute disables pacing.
func NewPaced(next Adapter, perMinute int) *Paced {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	return &Paced{Adapter: next, limiter: rate.NewLimiter(limit, 1)}
}

// Send waits for the limiter, then delegates.
func (p *Paced) Send(ctx context.Context, msg OutboundMessage) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegraph: pace: %w", err)
	}
	return p.Adapter.Send(ctx, msg)
}
