package session

import (
	"time"

	"camwatch/internal/capture"
	"camwatch/internal/display"
	"camwatch/internal/services"
)

// Status is a point-in-time view of a session.
type Status struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Source string `json:"source"`

	Running   bool   `json:"running"`
	ShouldRun bool   `json:"should_run"`
	Available bool   `json:"available"`
	Stable    bool   `json:"stable"`
	State     string `json:"state"`
	CycleID   string `json:"cycle_id,omitempty"`

	TargetFPS     float64 `json:"target_fps"`
	EffectiveFPS  float64 `json:"effective_fps"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`

	Accepted uint64  `json:"accepted"`
	Dropped  uint64  `json:"dropped"`
	Skipped  uint64  `json:"skipped"`
	Total    uint64  `json:"total"`
	DropRate float64 `json:"drop_rate"`
	SkipRate float64 `json:"skip_rate"`

	StableCount   int       `json:"stable_count"`
	Restarts      uint64    `json:"restarts"`
	LastSuccess   time.Time `json:"last_success"`
	LastErrorKind string    `json:"last_error_kind,omitempty"`
	LastError     string    `json:"last_error,omitempty"`

	GateEnabled bool `json:"gate_enabled"`
	MinWidth    int  `json:"min_width"`
	MinHeight   int  `json:"min_height"`

	PendingCapture bool              `json:"pending_capture"`
	View           display.ViewState `json:"view"`
}

// Status reports the session's lifecycle flags, pacing and counters.
func (s *Session) Status() Status {
	s.mu.Lock()
	current := s.current
	lastLoop := s.lastCycle
	lastErr := s.lastErr
	seeded := s.seeded
	s.mu.Unlock()

	st := Status{
		Name:           s.settings.Name,
		Kind:           s.settings.Locator.Kind.String(),
		Source:         s.settings.Locator.String(),
		ShouldRun:      s.ShouldRun(),
		State:          capture.StateUninitialized.String(),
		TargetFPS:      s.deps.Pacer.TargetFPS(),
		Restarts:       s.restarts.Load(),
		LastSuccess:    seeded,
		GateEnabled:    s.settings.Loop.Gate.Enabled,
		MinWidth:       s.settings.Loop.Gate.MinWidth,
		MinHeight:      s.settings.Loop.Gate.MinHeight,
		PendingCapture: s.pending.Has(),
		View:           s.view.State(),
	}
	if s.deps.Load != nil {
		sample := s.deps.Load.Last()
		st.CPUPercent = sample.CPU
		st.MemoryPercent = sample.Memory
	}

	counts := s.counters.Snapshot()
	st.Accepted, st.Dropped, st.Skipped, st.Total = counts.Accepted, counts.Dropped, counts.Skipped, counts.Total
	st.DropRate = counts.DropRate()
	st.SkipRate = counts.SkipRate()

	if lastLoop != nil {
		ls := lastLoop.Status()
		st.LastSuccess = ls.LastSuccess
		st.LastErrorKind = ls.Backoff.LastErrorKind
	}
	if current != nil && current.alive() {
		ls := current.loop.Status()
		st.Running = true
		st.CycleID = current.id
		st.State = ls.State.String()
		st.Available = ls.Available
		st.Stable = ls.Stable
		st.StableCount = ls.StableCount
		if elapsed := s.now().Sub(current.started).Seconds(); elapsed > 0 {
			st.EffectiveFPS = float64(counts.Accepted) / elapsed
		}
	}
	if lastErr != nil {
		st.LastErrorKind = services.ErrorKind(lastErr)
		st.LastError = lastErr.Error()
	}
	return st
}
