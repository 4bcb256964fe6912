package fetcher

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Gate is the quota gate shared by every worker of a crawl. A cooldown
// started by one worker holds back all outbound calls until it elapses.
type Gate struct {
	limiter *rate.Limiter

	mu       sync.Mutex
	resumeAt time.Time
	now      func() time.Time
}

// NewGate paces calls to perSecond requests per second; perSecond <= 0
// disables pacing.
func NewGate(perSecond float64) *Gate {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &Gate{
		limiter: rate.NewLimiter(limit, 1),
		now:     time.Now,
	}
}

// Suspend holds back calls for d from now. An already longer suspension is
// kept.
func (g *Gate) Suspend(d time.Duration) time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	until := g.now().Add(d)
	if until.After(g.resumeAt) {
		g.resumeAt = until
	}
	return g.resumeAt
}

func (g *Gate) ResumeAt() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resumeAt
}

// Wait blocks until no cooldown is active and the pacing limiter admits one
// more call.
func (g *Gate) Wait(ctx context.Context) error {
	for {
		wait := g.ResumeAt().Sub(g.now())
		if wait <= 0 {
			break
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return g.limiter.Wait(ctx)
}
