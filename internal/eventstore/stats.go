package eventstore

import (
	"slices"
	"sync"
	"time"
)

// call is one round trip to the event store: a put, get, delete or list,
// including its retries.
type call struct {
	at     time.Time
	op     string
	ms     int64
	failed bool
}

// OpStats summarizes the calls of one operation.
type OpStats struct {
	Count    int     `json:"count"`
	Failures int     `json:"failures"`
	P50Ms    float64 `json:"p50_ms"`
	P95Ms    float64 `json:"p95_ms"`
}

// StatsSnapshot aggregates the event store calls seen in the window.
// ByOp counts calls per operation; Ops breaks latency down the same way.
type StatsSnapshot struct {
	Window   string             `json:"window"`
	Count    int                `json:"count"`
	Failures int                `json:"failures"`
	ByOp     map[string]int     `json:"by_op"`
	Ops      map[string]OpStats `json:"ops"`
	MinMs    int64              `json:"min_ms"`
	MaxMs    int64              `json:"max_ms"`
	AvgMs    float64            `json:"avg_ms"`
	P50Ms    float64            `json:"p50_ms"`
	P95Ms    float64            `json:"p95_ms"`
	P99Ms    float64            `json:"p99_ms"`
}

// Stats keeps the event store calls made in the last window. Client records
// one call per Put, Get, Delete and List; the API serves Snapshot at
// /api/stats/store.
type Stats struct {
	window time.Duration

	mu    sync.Mutex
	calls []call
}

func NewStats(window time.Duration) *Stats {
	if window <= 0 {
		window = time.Hour
	}
	return &Stats{window: window, calls: make([]call, 0, 256)}
}

// Record adds one call of op that took d. A non-nil err counts as a failure.
func (s *Stats) Record(op string, d time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.expire(now)
	s.calls = append(s.calls, call{at: now, op: op, ms: max(d.Milliseconds(), 0), failed: err != nil})
}

func (s *Stats) Snapshot() StatsSnapshot {
	now := time.Now()

	s.mu.Lock()
	s.expire(now)
	calls := slices.Clone(s.calls)
	s.mu.Unlock()

	snap := StatsSnapshot{
		Window: s.window.String(),
		ByOp:   map[string]int{},
		Ops:    map[string]OpStats{},
	}
	if len(calls) == 0 {
		return snap
	}

	all := make([]int64, 0, len(calls))
	perOp := map[string][]int64{}
	var total int64
	for _, c := range calls {
		all = append(all, c.ms)
		perOp[c.op] = append(perOp[c.op], c.ms)
		total += c.ms

		op := snap.Ops[c.op]
		op.Count++
		if c.failed {
			op.Failures++
			snap.Failures++
		}
		snap.Ops[c.op] = op
		snap.ByOp[c.op]++
	}

	for name, ms := range perOp {
		slices.Sort(ms)
		op := snap.Ops[name]
		op.P50Ms = percentile(ms, 50)
		op.P95Ms = percentile(ms, 95)
		snap.Ops[name] = op
	}

	slices.Sort(all)
	snap.Count = len(all)
	snap.MinMs = all[0]
	snap.MaxMs = all[len(all)-1]
	snap.AvgMs = float64(total) / float64(len(all))
	snap.P50Ms = percentile(all, 50)
	snap.P95Ms = percentile(all, 95)
	snap.P99Ms = percentile(all, 99)
	return snap
}

// expire drops calls older than the window. Calls are appended in time
// order, so the expired ones form a prefix.
func (s *Stats) expire(now time.Time) {
	cutoff := now.Add(-s.window)
	i, _ := slices.BinarySearchFunc(s.calls, cutoff, func(c call, t time.Time) int {
		return c.at.Compare(t)
	})
	if i > 0 {
		s.calls = slices.Delete(s.calls, 0, i)
	}
}

// percentile interpolates between the closest ranks of sorted.
func percentile(sorted []int64, p float64) float64 {
	n := len(sorted)
	switch {
	case n == 0:
		return 0
	case p <= 0:
		return float64(sorted[0])
	case p >= 100:
		return float64(sorted[n-1])
	}
	rank := p / 100 * float64(n-1)
	i := int(rank)
	if i+1 >= n {
		return float64(sorted[i])
	}
	return float64(sorted[i]) + (rank-float64(i))*float64(sorted[i+1]-sorted[i])
}
