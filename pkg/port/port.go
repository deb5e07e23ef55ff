// Package port holds the definition of the physical call switch port
// and the detector which turns raw switch readings into edges.
package port

// Reading is the raw level of the call switch, sampled once per poll.
type Reading int

const (
	// Inactive indicates a released switch (handset on hook).
	Inactive Reading = iota
	// Active indicates a pressed switch (handset off hook).
	Active
)

func (r Reading) String() string {
	if r == Active {
		return "active"
	}
	return "inactive"
}

// Edge indicates the type of change to the switch state.
type Edge int

const (
	// NoEdge indicates an unchanged switch.
	NoEdge Edge = iota
	// ActiveEdge indicates an inactive to active change.
	ActiveEdge
	// InactiveEdge indicates an active to inactive change.
	InactiveEdge
)

func (e Edge) String() string {
	switch e {
	case ActiveEdge:
		return "active"
	case InactiveEdge:
		return "inactive"
	default:
		return "no edge"
	}
}

// Detector remembers the last reading of the switch.
// The zero value is ready to use and has no baseline.
type Detector struct {
	last  Reading
	valid bool
}

// Observe returns the edge between the stored baseline and r and stores r as the new baseline.
// Without a baseline the edge matches the reading, so a switch that is already pressed at start-up
// is acted on immediately.
func (d *Detector) Observe(r Reading) Edge {
	edge := NoEdge

	switch {
	case !d.valid && r == Active, d.valid && d.last == Inactive && r == Active:
		edge = ActiveEdge
	case !d.valid && r == Inactive, d.valid && d.last == Active && r == Inactive:
		edge = InactiveEdge
	}

	d.last = r
	d.valid = true
	return edge
}
