package ratelimit

import (
	"context"
	"time"

	"sponsorlink/internal/platform/config"
)

// BucketStore is the counter backend behind the limiter.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
	Reset(ctx context.Context, key string) error
}

// Limiter applies per-(client, endpoint class) limits over a shared window.
type Limiter struct {
	store  BucketStore
	window time.Duration
	limits map[EndpointClass]int
}

func NewLimiter(store BucketStore, cfg config.RateLimitConfig) *Limiter {
	return &Limiter{
		store:  store,
		window: cfg.Window,
		limits: map[EndpointClass]int{
			ClassLogin:      cfg.Login,
			ClassCheckout:   cfg.Checkout,
			ClassSubmission: cfg.Submission,
		},
	}
}

// Check consumes one slot for the client/class pair. Unknown classes fall
// back to the strictest configured limit.
func (l *Limiter) Check(ctx context.Context, clientIP string, class EndpointClass) (*Result, error) {
	limit, ok := l.limits[class]
	if !ok {
		limit = l.strictest()
	}
	return l.store.Allow(ctx, string(class)+":"+clientIP, limit, l.window)
}

func (l *Limiter) strictest() int {
	min := 0
	for _, v := range l.limits {
		if min == 0 || v < min {
			min = v
		}
	}
	if min == 0 {
		min = 10
	}
	return min
}
