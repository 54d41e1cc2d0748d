package capture

// State is the capture loop's lifecycle position.
type State int32

const (
	StateUninitialized State = iota
	StateConnecting
	StateQualityProbing
	StateStreaming
	StateBackoff
	StateShuttingDown
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConnecting:
		return "connecting"
	case StateQualityProbing:
		return "quality_probing"
	case StateStreaming:
		return "streaming"
	case StateBackoff:
		return "backoff"
	case StateShuttingDown:
		return "shutting_down"
	default:
		return "unknown"
	}
}
