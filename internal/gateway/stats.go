package gateway

import (
	"sync"
	"time"
)

// latencySmoothing is the weight given to the newest sample in the latency EMA.
const latencySmoothing = 0.1

type deploymentStats struct {
	mu           sync.Mutex
	usage        int64
	requests     int64
	avgLatencyMs float64
	hasLatency   bool
	lastUsed     time.Time
}

type statsSnapshot struct {
	UsageCount       int64
	RequestCount     int64
	AverageLatencyMs float64
	LastUsed         time.Time
}

// statsTracker keeps per-deployment counters. Each deployment's numbers are
// guarded by their own mutex so the EMA update is atomic per deployment.
type statsTracker struct {
	stats sync.Map // name -> *deploymentStats
	now   func() time.Time
}

func newStatsTracker() *statsTracker {
	return &statsTracker{now: time.Now}
}

func (t *statsTracker) entry(name string) *deploymentStats {
	if v, ok := t.stats.Load(name); ok {
		return v.(*deploymentStats)
	}
	v, _ := t.stats.LoadOrStore(name, &deploymentStats{})
	return v.(*deploymentStats)
}

func (s *deploymentStats) observe(ms float64) {
	if !s.hasLatency {
		s.avgLatencyMs = ms
		s.hasLatency = true
		return
	}
	s.avgLatencyMs = (1-latencySmoothing)*s.avgLatencyMs + latencySmoothing*ms
}

func (t *statsTracker) incrementUsage(name string) {
	s := t.entry(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage++
	s.requests++
	s.lastUsed = t.now()
}

func (t *statsTracker) recordLatency(name string, ms float64) {
	s := t.entry(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observe(ms)
	s.requests++
	s.lastUsed = t.now()
}

// update applies one successful dispatch: a single usage, a single request
// and one latency sample.
func (t *statsTracker) update(name string, ms float64) {
	s := t.entry(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage++
	s.requests++
	s.observe(ms)
	s.lastUsed = t.now()
}

func (t *statsTracker) snapshot(name string) statsSnapshot {
	v, ok := t.stats.Load(name)
	if !ok {
		return statsSnapshot{}
	}
	s := v.(*deploymentStats)
	s.mu.Lock()
	defer s.mu.Unlock()
	return statsSnapshot{
		UsageCount:       s.usage,
		RequestCount:     s.requests,
		AverageLatencyMs: s.avgLatencyMs,
		LastUsed:         s.lastUsed,
	}
}

func (t *statsTracker) usageCounts(names []string) map[string]int64 {
	counts := make(map[string]int64, len(names))
	for _, n := range names {
		counts[n] = t.snapshot(n).UsageCount
	}
	return counts
}

func (t *statsTracker) reset() {
	t.stats.Range(func(k, _ any) bool {
		t.stats.Delete(k)
		return true
	})
}
