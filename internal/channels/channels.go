// Package channels holds the narrow outbound interfaces the dispatcher
// invokes: voice, sms, email, route assignment, and ledger correction. Every
// implementation is timeout-bounded and rate-limited; none of them touch
// queue state.
package channels

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"opspulse_backend/internal/signals/domain"
)

// Outbound is one concrete send the dispatcher resolved from a
// DispatchRequest: destination, rendered body, and the entity it concerns.
type Outbound struct {
	To      string
	Name    string
	Body    string
	Subject domain.SubjectRef
}

// Channel executes one kind of outbound action.
type Channel interface {
	Kind() domain.ChannelKind
	Send(ctx context.Context, out Outbound) error
}

// Registry maps channel kinds to their implementations.
type Registry struct {
	channels map[domain.ChannelKind]Channel
}

// NewRegistry builds a registry from the given channels. Later entries of the
// same kind override earlier ones.
func NewRegistry(channels ...Channel) *Registry {
	byKind := make(map[domain.ChannelKind]Channel, len(channels))
	for _, ch := range channels {
		if ch == nil {
			continue
		}
		byKind[ch.Kind()] = ch
	}
	return &Registry{channels: byKind}
}

// Get returns the channel for a kind.
func (r *Registry) Get(kind domain.ChannelKind) (Channel, error) {
	ch, ok := r.channels[kind]
	if !ok {
		return nil, fmt.Errorf("no channel configured for %q", kind)
	}
	return ch, nil
}

// limited wraps a channel with a shared outbound rate limit.
type limited struct {
	inner   Channel
	limiter *rate.Limiter
}

// RateLimited caps how fast a channel may send. Waiting respects the context
// deadline, so a saturated limiter surfaces as a dispatch timeout rather than
// an unbounded stall.
func RateLimited(inner Channel, perSecond float64, burst int) Channel {
	return &limited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (l *limited) Kind() domain.ChannelKind {
	return l.inner.Kind()
}

func (l *limited) Send(ctx context.Context, out Outbound) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return l.inner.Send(ctx, out)
}
