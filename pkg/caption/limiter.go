package caption

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimited keeps a generator under a requests-per-minute quota and bounds
// each call. Waiting for quota counts against the call's own timeout.
type RateLimited struct {
	next    TextGenerator
	limiter *rate.Limiter
	timeout time.Duration
}

func NewRateLimited(next TextGenerator, requestsPerMinute int, timeout time.Duration) *RateLimited {
	limit := rate.Inf
	burst := 1
	if requestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(requestsPerMinute))
		burst = requestsPerMinute
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(limit, burst), timeout: timeout}
}

func (r *RateLimited) Name() string {
	return r.next.Name()
}

func (r *RateLimited) Generate(ctx context.Context, prompt string) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return r.next.Generate(ctx, prompt)
}
