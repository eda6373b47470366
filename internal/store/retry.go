// internal/store/retry.go
package store

import (
	"context"
	"time"
)

// RetryPolicy controls the bounded fixed-backoff polling used after
// submitting a turn, when the assistant's reply is only discoverable by
// refetching the conversation.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryPolicy returns the polling defaults: 10 attempts spaced
// 2 seconds apart.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts: 10,
		Delay:       2 * time.Second,
	}
}

// Execute runs fn up to MaxAttempts times, sleeping the fixed delay
// between attempts. It returns nil on the first success, the context's
// error if it is cancelled while waiting, or the last error otherwise.
func (p *RetryPolicy) Execute(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt == p.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Delay):
		}
	}
	return lastErr
}
