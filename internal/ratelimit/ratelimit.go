// Package ratelimit paces outbound gateway sends to at most MAX_SEND_PER_SECOND,
// orthogonal to the Dispatcher's semaphore which bounds instantaneous
// concurrency rather than rate.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket: Acquire blocks (without busy-waiting) until a
// token is available or the context is cancelled. It is a thin wrapper over
// golang.org/x/time/rate, whose bucket refills continuously at the configured
// rate: each Acquire reserves a token under the limiter's mutex and, when
// none is available yet, sleeps on a timer until its token is due. There is
// no separate refill task and no broadcast wake-up of waiting callers.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a Limiter that allows up to perSecond sends per second, with a
// burst equal to perSecond (never less than 1) so a briefly idle bucket can
// absorb one full second's worth of backlog without throttling below quota.
func New(perSecond int) *Limiter {
	if perSecond < 1 {
		perSecond = 1
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(perSecond), perSecond)}
}

// Acquire blocks until one token is available or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}
