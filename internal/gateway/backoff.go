package gateway

import (
	"context"
	"math/rand/v2"
	"time"
)

// backoffDelay returns min(maxMs, base + U[0, base/4)) where
// base = baseMs * 2^(attempt-1). jitter(n) must return a value in [0, n).
func backoffDelay(attempt, baseMs, maxMs int, jitter func(n int64) int64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if baseMs <= 0 {
		return 0
	}

	// stop doubling once the cap is reached to avoid overflow
	base := int64(baseMs)
	for i := 1; i < attempt && base < int64(maxMs); i++ {
		base *= 2
	}

	delay := base
	if quarter := base / 4; quarter > 0 {
		delay += jitter(quarter)
	}
	if delay > int64(maxMs) {
		delay = int64(maxMs)
	}
	return time.Duration(delay) * time.Millisecond
}

func defaultJitter(n int64) int64 {
	return rand.Int64N(n)
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
