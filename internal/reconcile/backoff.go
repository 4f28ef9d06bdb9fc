package reconcile

import (
	"context"
	"math/rand/v2"
	"time"
)

const maxBackoff = 30 * time.Second

// Backoff returns base*2^attempt plus up to 50% random jitter, capped at 30s.
func Backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt > 16 {
		attempt = 16
	}
	exp := base * time.Duration(1<<attempt)
	if exp > maxBackoff {
		exp = maxBackoff
	}
	jitter := time.Duration(0)
	if half := int64(exp / 2); half > 0 {
		jitter = time.Duration(rand.Int64N(half))
	}
	return exp + jitter
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
