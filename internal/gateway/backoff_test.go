package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func noJitter(int64) int64 { return 0 }

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		name    string
		attempt int
		base    int
		max     int
		jitter  func(int64) int64
		want    time.Duration
	}{
		{"first attempt", 1, 500, 10000, noJitter, 500 * time.Millisecond},
		{"second attempt doubles", 2, 500, 10000, noJitter, time.Second},
		{"third attempt", 3, 500, 10000, noJitter, 2 * time.Second},
		{"capped", 10, 500, 10000, noJitter, 10 * time.Second},
		{"jitter is added", 1, 500, 10000, func(n int64) int64 { return n - 1 }, 624 * time.Millisecond},
		{"jitter never exceeds cap", 5, 500, 8500, func(n int64) int64 { return n - 1 }, 8500 * time.Millisecond},
		{"zero attempt treated as first", 0, 100, 1000, noJitter, 100 * time.Millisecond},
		{"zero base disables backoff", 3, 0, 1000, noJitter, 0},
		{"tiny base skips jitter", 1, 3, 1000, func(int64) int64 { panic("called") }, 3 * time.Millisecond},
		{"huge attempt does not overflow", 200, 500, 10000, noJitter, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, backoffDelay(tt.attempt, tt.base, tt.max, tt.jitter))
		})
	}
}

func TestBackoffDelay_Bounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		attempt := rapid.IntRange(1, 64).Draw(t, "attempt")
		base := rapid.IntRange(1, 5000).Draw(t, "base")
		maxMs := rapid.IntRange(base, 60000).Draw(t, "max")

		got := backoffDelay(attempt, base, maxMs, defaultJitter)
		if got > time.Duration(maxMs)*time.Millisecond {
			t.Fatalf("delay %s exceeds cap %dms", got, maxMs)
		}
		if got < time.Duration(base)*time.Millisecond {
			t.Fatalf("delay %s below base %dms", got, base)
		}

		next := backoffDelay(attempt+1, base, maxMs, noJitter)
		prev := backoffDelay(attempt, base, maxMs, noJitter)
		if next < prev {
			t.Fatalf("delay shrank from %s to %s", prev, next)
		}
	})
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))
	assert.NoError(t, sleepContext(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
	assert.ErrorIs(t, sleepContext(ctx, 0), context.Canceled)
}
