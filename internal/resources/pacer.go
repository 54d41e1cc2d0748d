package resources

import (
	"sync"
	"time"
)

// Pacer is one session's adaptive frame rate and skip flag. It implements the
// capture loop's pacing interface.
type Pacer struct {
	mu   sync.Mutex
	t    Thresholds
	fps  float64
	skip bool
}

// NewPacer starts at the target rate clamped to [MinFPS, MaxFPS].
func NewPacer(t Thresholds) *Pacer {
	if t.MaxFPS < t.MinFPS {
		t.MaxFPS = t.MinFPS
	}
	p := &Pacer{t: t}
	p.fps = p.clamp(t.TargetFPS)
	return p
}

// Adjust applies one CPU reading and returns the new target rate.
func (p *Pacer) Adjust(cpu float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case cpu > p.t.CPUHigh:
		p.fps = p.clamp(p.fps - p.t.StepDown)
	case cpu < p.t.CPULow:
		p.fps = p.clamp(p.fps + p.t.StepUp)
	}
	p.skip = p.t.SkipCPU > 0 && cpu > p.t.SkipCPU
	return p.fps
}

// TargetFPS returns the current rate.
func (p *Pacer) TargetFPS() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fps
}

func (p *Pacer) Interval() time.Duration {
	fps := p.TargetFPS()
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / fps)
}

func (p *Pacer) SkipTick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.skip
}

func (p *Pacer) clamp(fps float64) float64 {
	if fps < p.t.MinFPS {
		return p.t.MinFPS
	}
	if fps > p.t.MaxFPS {
		return p.t.MaxFPS
	}
	return fps
}
