package call

import (
	"intercom/pkg/packet"
	"intercom/pkg/port"
)

// stateSet, kindSet and edgeSet are bit sets used to match a rule.
type (
	stateSet uint8
	kindSet  uint8
	edgeSet  uint8
)

func states(s ...State) (set stateSet) {
	for _, x := range s {
		set |= 1 << uint(x)
	}
	return
}

func kinds(k ...packet.Kind) (set kindSet) {
	for _, x := range k {
		set |= 1 << uint(x)
	}
	return
}

func edges(e ...port.Edge) (set edgeSet) {
	for _, x := range e {
		set |= 1 << uint(x)
	}
	return
}

var (
	anyKind = kinds(NoPacket, packet.VoiceData, packet.Ring, packet.RingAck)
	anyEdge = edges(port.NoEdge, port.ActiveEdge, port.InactiveEdge)
)

type rule struct {
	from    stateSet
	packets kindSet
	edges   edgeSet
	to      State
	// invalid marks combinations which shouldn't happen
	invalid bool
}

func (r rule) match(s State, k packet.Kind, e port.Edge) bool {
	return r.from&states(s) != 0 && r.packets&kinds(k) != 0 && r.edges&edges(e) != 0
}

// rules is evaluated top to bottom, the first matching rule wins.
// The order matters where rules overlap, e.g. the mid-call restart rule
// (Idle, VoiceData, Active) has to precede the stray audio rule (Idle, VoiceData, *).
var rules = []rule{
	// nothing happening
	{from: states(Idle), packets: kinds(NoPacket), edges: edges(port.NoEdge), to: Idle},
	// switch pressed, call the other side
	{from: states(Idle), packets: kinds(NoPacket), edges: edges(port.ActiveEdge), to: OutgoingCall},
	// still calling, the peer acknowledges the ring
	{from: states(OutgoingCall), packets: kinds(packet.RingAck, NoPacket), edges: edges(port.NoEdge), to: OutgoingCall},
	// the peer answered with audio
	{from: states(OutgoingCall), packets: kinds(packet.VoiceData), edges: edges(port.NoEdge), to: InProgressCall},
	// the peer calls
	{from: states(Idle), packets: kinds(packet.Ring), edges: edges(port.NoEdge), to: IncomingCall},
	// still ringing
	{from: states(IncomingCall), packets: kinds(packet.Ring, NoPacket), edges: edges(port.NoEdge), to: IncomingCall},
	// local answer
	{from: states(IncomingCall), packets: kinds(packet.Ring, NoPacket), edges: edges(port.ActiveEdge), to: InProgressCall},
	// ongoing call
	{from: states(InProgressCall), packets: kinds(packet.VoiceData, NoPacket), edges: edges(port.NoEdge), to: InProgressCall},
	// local hangup always wins
	{from: states(OutgoingCall, InProgressCall), packets: anyKind, edges: edges(port.InactiveEdge), to: Idle},
	// restarted mid-call, the switch is still pressed and audio resumes
	{from: states(Idle), packets: kinds(packet.VoiceData), edges: edges(port.ActiveEdge), to: InProgressCall},
	// both sides called at the same time, the peer's ring is the answer
	{from: states(OutgoingCall), packets: kinds(packet.Ring), edges: edges(port.NoEdge), to: InProgressCall},
	{from: states(Idle), packets: kinds(packet.Ring), edges: edges(port.ActiveEdge), to: InProgressCall},
	// leftovers of a finished call
	{from: states(Idle), packets: kinds(packet.RingAck), edges: anyEdge, to: Idle},
	{from: states(Idle), packets: kinds(packet.VoiceData), edges: edges(port.NoEdge, port.InactiveEdge), to: Idle},
	{from: states(InProgressCall), packets: kinds(packet.Ring), edges: edges(port.NoEdge), to: InProgressCall},
}

// fallback resets every other combination, e.g. (Idle, none, Inactive),
// (IncomingCall, RingAck, *), (OutgoingCall, *, Active) or (InProgressCall, *, Active).
var fallback = rule{
	from:    states(Idle, OutgoingCall, IncomingCall, InProgressCall),
	packets: anyKind,
	edges:   anyEdge,
	to:      Idle,
	invalid: true,
}

// Dispatch returns the state following s for the packet kind k (NoPacket if none) and the switch edge e.
// A combination which shouldn't happen returns Idle together with an *InvalidTransitionError.
func Dispatch(s State, k packet.Kind, e port.Edge) (State, error) {
	r := fallback
	for _, x := range rules {
		if x.match(s, k, e) {
			r = x
			break
		}
	}

	if r.invalid {
		return r.to, &InvalidTransitionError{State: s, Packet: k, Edge: e}
	}
	return r.to, nil
}
