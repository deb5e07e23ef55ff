// Package call is the state machine of a point-to-point intercom call.
//  The state is derived from the received packet and the edge of the call switch.
//  Dispatch is a pure function, Call holds the one shared state of the process.
package call

import (
	"fmt"
	"sync"

	"intercom/pkg/packet"
	"intercom/pkg/port"

	"github.com/womat/debug"
)

// State is the state of the call.
type State int

const (
	Idle State = iota
	OutgoingCall
	IncomingCall
	InProgressCall
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case OutgoingCall:
		return "OutgoingCall"
	case IncomingCall:
		return "IncomingCall"
	case InProgressCall:
		return "InProgressCall"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// NoPacket is the packet kind of a tick without a received packet.
const NoPacket packet.Kind = 0

// InvalidTransitionError is returned by Dispatch for a combination which shouldn't happen.
// The state machine resets to Idle in this case.
type InvalidTransitionError struct {
	State  State
	Packet packet.Kind
	Edge   port.Edge
}

func (e *InvalidTransitionError) Error() string {
	p := "none"
	if e.Packet != NoPacket {
		p = e.Packet.String()
	}
	return fmt.Sprintf("invalid call transition: state %v, packet %v, switch %v", e.State, p, e.Edge)
}

// Call holds the call state shared between the control loop (writer) and readers like audio capture.
type Call struct {
	mu     sync.RWMutex
	state  State
	resets uint64
	// packet is the packet kind of the last Dispatch
	packet packet.Kind
}

// New returns an idle call.
func New() *Call {
	return &Call{state: Idle}
}

// State returns the current state.
func (c *Call) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Resets returns the number of invalid transitions since start.
func (c *Call) Resets() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resets
}

// Packet returns the packet kind (or NoPacket) of the last Dispatch.
func (c *Call) Packet() packet.Kind {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.packet
}

// Dispatch advances the state with the packet kind (or NoPacket) and switch edge of one tick
// and returns the new state.
func (c *Call) Dispatch(k packet.Kind, e port.Edge) State {
	c.mu.Lock()
	prev := c.state
	next, err := Dispatch(prev, k, e)
	c.state = next
	c.packet = k
	if err != nil {
		c.resets++
	}
	c.mu.Unlock()

	if err != nil {
		debug.ErrorLog.Printf("%v, reset to %v", err, next)
	}
	if next != prev {
		debug.InfoLog.Printf("call state %v -> %v", prev, next)
	}
	return next
}
