package capture

import "sync/atomic"

// Counters are the per-session frame tallies. Total counts attempted reads,
// Accepted counts publishes, Dropped counts failed or gate-rejected reads, and
// Skipped counts ticks dropped before any read for resource reasons.
type Counters struct {
	accepted atomic.Uint64
	dropped  atomic.Uint64
	skipped  atomic.Uint64
	total    atomic.Uint64
}

// CounterSnapshot is a point-in-time copy of Counters.
type CounterSnapshot struct {
	Accepted uint64 `json:"accepted"`
	Dropped  uint64 `json:"dropped"`
	Skipped  uint64 `json:"skipped"`
	Total    uint64 `json:"total"`
}

func (c *Counters) Snapshot() CounterSnapshot {
	return CounterSnapshot{
		Accepted: c.accepted.Load(),
		Dropped:  c.dropped.Load(),
		Skipped:  c.skipped.Load(),
		Total:    c.total.Load(),
	}
}

// Reset zeroes every counter.
func (c *Counters) Reset() {
	c.accepted.Store(0)
	c.dropped.Store(0)
	c.skipped.Store(0)
	c.total.Store(0)
}

// DropRate is dropped reads over attempted reads.
func (s CounterSnapshot) DropRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Dropped) / float64(s.Total)
}

// SkipRate is skipped ticks over all ticks.
func (s CounterSnapshot) SkipRate() float64 {
	ticks := s.Total + s.Skipped
	if ticks == 0 {
		return 0
	}
	return float64(s.Skipped) / float64(ticks)
}
