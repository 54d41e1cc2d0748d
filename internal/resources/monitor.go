// Package resources samples host CPU and memory load and turns it into
// per-session pacing decisions.
package resources

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"camwatch/internal/logging"
)

// MinSampleInterval is the shortest sampling cadence the monitor accepts.
const MinSampleInterval = 2 * time.Second

// Thresholds configures pacing adjustments.
type Thresholds struct {
	TargetFPS  float64
	MinFPS     float64
	MaxFPS     float64
	StepDown   float64
	StepUp     float64
	CPUHigh    float64
	CPULow     float64
	SkipCPU    float64
	MemoryHigh float64
}

// Sample is one host load reading.
type Sample struct {
	CPU     float64   `json:"cpu_percent"`
	Memory  float64   `json:"memory_percent"`
	At      time.Time `json:"at"`
	Reclaim bool      `json:"reclaim"`
}

// Reclaimer relieves memory pressure. It is advisory.
type Reclaimer interface {
	Reclaim()
}

// ReclaimFunc adapts a function to Reclaimer.
type ReclaimFunc func()

func (f ReclaimFunc) Reclaim() { f() }

// FreeOSMemory returns freed heap to the operating system.
var FreeOSMemory = ReclaimFunc(debug.FreeOSMemory)

// Options wires a Monitor.
type Options struct {
	Provider   Provider
	Interval   time.Duration
	Thresholds Thresholds
	Reclaimer  Reclaimer
	Logger     *slog.Logger
	// OnSample is called after every successful sample.
	OnSample func(Sample)
}

// Monitor is shared by all sessions. It samples on its own cadence and adjusts
// every registered Pacer.
type Monitor struct {
	provider   Provider
	interval   time.Duration
	thresholds Thresholds
	reclaimer  Reclaimer
	logger     *slog.Logger
	onSample   func(Sample)

	mu     sync.Mutex
	pacers map[string]*Pacer
	last   Sample
}

// NewMonitor builds a monitor. Intervals below MinSampleInterval are raised.
func NewMonitor(opts Options) *Monitor {
	if opts.Interval < MinSampleInterval {
		opts.Interval = MinSampleInterval
	}
	if opts.Reclaimer == nil {
		opts.Reclaimer = FreeOSMemory
	}
	return &Monitor{
		provider:   opts.Provider,
		interval:   opts.Interval,
		thresholds: opts.Thresholds,
		reclaimer:  opts.Reclaimer,
		logger:     logging.NewComponentLogger(opts.Logger, "resources"),
		onSample:   opts.OnSample,
		pacers:     make(map[string]*Pacer),
	}
}

// Register returns the pacer for name, creating it at the target rate.
func (m *Monitor) Register(name string) *Pacer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pacers[name]; ok {
		return p
	}
	p := NewPacer(m.thresholds)
	m.pacers[name] = p
	return p
}

// Last returns the most recent sample.
func (m *Monitor) Last() Sample {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Run samples until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	if m.provider == nil {
		return
	}
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		if _, err := m.Sample(ctx); err != nil && ctx.Err() == nil {
			m.logger.Debug("resource sample failed", logging.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sample takes one reading and applies it to every registered pacer.
func (m *Monitor) Sample(ctx context.Context) (Sample, error) {
	cpu, err := m.provider.CPUPercent(ctx)
	if err != nil {
		return Sample{}, err
	}
	mem, err := m.provider.MemoryPercent(ctx)
	if err != nil {
		return Sample{}, err
	}
	s := Sample{CPU: cpu, Memory: mem, At: time.Now()}
	s.Reclaim = m.thresholds.MemoryHigh > 0 && mem > m.thresholds.MemoryHigh

	m.mu.Lock()
	m.last = s
	names := make([]string, 0, len(m.pacers))
	for name := range m.pacers {
		names = append(names, name)
	}
	sort.Strings(names)
	pacers := make([]*Pacer, 0, len(names))
	for _, name := range names {
		pacers = append(pacers, m.pacers[name])
	}
	m.mu.Unlock()

	for i, p := range pacers {
		before := p.TargetFPS()
		after := p.Adjust(cpu)
		if after != before {
			m.logger.Debug("target fps adjusted",
				logging.String(logging.FieldCamera, names[i]),
				logging.Float64("cpu_percent", cpu),
				logging.Float64("from", before),
				logging.Float64("to", after),
			)
		}
	}
	if s.Reclaim {
		m.logger.Info("memory pressure, requesting reclamation", logging.Float64("memory_percent", mem))
		m.reclaimer.Reclaim()
	}
	if m.onSample != nil {
		m.onSample(s)
	}
	return s, nil
}
