package llm

import (
	"context"
	"sync"
	"time"
)

// RateLimitedProvider spaces calls to a Provider so that no more than rpm
// start in any minute. A full minute's allowance may be used as a burst.
type RateLimitedProvider struct {
	provider  Provider
	interval  time.Duration // one call's share of a minute
	tolerance time.Duration // how far ahead of schedule a call may start

	mu  sync.Mutex
	tat time.Time // theoretical arrival time of the next call
}

// NewRateLimitedProvider wraps the given provider with a rate limiter
// that allows at most rpm requests per minute.
func NewRateLimitedProvider(provider Provider, rpm int) Provider {
	if rpm <= 0 {
		return provider
	}
	interval := time.Minute / time.Duration(rpm)
	return &RateLimitedProvider{
		provider:  provider,
		interval:  interval,
		tolerance: time.Duration(rpm-1) * interval,
	}
}

func (r *RateLimitedProvider) Name() string {
	return r.provider.Name()
}

func (r *RateLimitedProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.provider.Complete(ctx, req)
}

// wait reserves the next slot and sleeps until it opens. A cancelled wait
// gives its slot back.
func (r *RateLimitedProvider) wait(ctx context.Context) error {
	r.mu.Lock()
	now := time.Now()
	if r.tat.Before(now) {
		r.tat = now
	}
	delay := r.tat.Sub(now) - r.tolerance
	r.tat = r.tat.Add(r.interval)
	r.mu.Unlock()

	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		r.mu.Lock()
		r.tat = r.tat.Add(-r.interval)
		r.mu.Unlock()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
