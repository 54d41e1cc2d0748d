// Package quality decides whether captured frames meet a camera's minimum
// resolution for long enough to be published.
package quality

// Gate is the quality requirement for one camera.
type Gate struct {
	Enabled   bool
	MinWidth  int
	MinHeight int
	// Required is the number of consecutive qualifying frames needed before
	// the first frame is accepted.
	Required int
}

// Qualifies reports whether a single frame meets the minimum resolution.
func (g Gate) Qualifies(width, height int) bool {
	if width <= 0 || height <= 0 {
		return false
	}
	return width >= g.MinWidth && height >= g.MinHeight
}

// Negotiator tracks the run of consecutive qualifying frames for one capture
// cycle. It never inspects or mutates pixel data.
type Negotiator struct {
	gate   Gate
	stable int
}

// NewNegotiator returns a negotiator for gate. A Required below one is treated as one.
func NewNegotiator(gate Gate) *Negotiator {
	if gate.Required < 1 {
		gate.Required = 1
	}
	return &Negotiator{gate: gate}
}

// Observe records a frame of the given dimensions and reports whether it may
// be published. With gating disabled every structurally valid frame is accepted.
// Acceptance does not reset the stable count.
func (n *Negotiator) Observe(width, height int) bool {
	if !n.gate.Enabled {
		if width <= 0 || height <= 0 {
			n.stable = 0
			return false
		}
		n.stable++
		return true
	}
	if !n.gate.Qualifies(width, height) {
		n.stable = 0
		return false
	}
	n.stable++
	return n.stable >= n.gate.Required
}

// Reset clears the stable count, e.g. after a failed read.
func (n *Negotiator) Reset() {
	n.stable = 0
}

// Stable returns the current run of consecutive qualifying frames.
func (n *Negotiator) Stable() int {
	return n.stable
}

// Gate returns the requirement the negotiator enforces.
func (n *Negotiator) Gate() Gate {
	return n.gate
}
