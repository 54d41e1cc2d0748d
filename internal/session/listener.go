package session

import "camwatch/internal/snapshot"

// Listener receives session lifecycle and save events. Calls are made from
// session goroutines and must not block for long.
type Listener interface {
	CycleStarted(camera, cycleID string)
	CycleEnded(camera, cycleID string, err error)
	Restarted(camera, reason string)
	Saved(camera string, res snapshot.Result)
	SaveFailed(camera string, err error)
}

// NopListener ignores all events.
type NopListener struct{}

func (NopListener) CycleStarted(string, string)      {}
func (NopListener) CycleEnded(string, string, error) {}
func (NopListener) Restarted(string, string)         {}
func (NopListener) Saved(string, snapshot.Result)    {}
func (NopListener) SaveFailed(string, error)         {}
