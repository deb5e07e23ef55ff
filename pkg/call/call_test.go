package call

import (
	"os"
	"sync"
	"testing"

	"intercom/pkg/packet"
	"intercom/pkg/port"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/womat/debug"
)

var (
	allStates = []State{Idle, OutgoingCall, IncomingCall, InProgressCall}
	allKinds  = []packet.Kind{NoPacket, packet.VoiceData, packet.Ring, packet.RingAck}
	allEdges  = []port.Edge{port.NoEdge, port.ActiveEdge, port.InactiveEdge}
)

type input struct {
	state State
	kind  packet.Kind
	edge  port.Edge
}

// valid lists every combination which doesn't reset the call.
var valid = map[input]State{
	{Idle, NoPacket, port.NoEdge}:                         Idle,
	{Idle, NoPacket, port.ActiveEdge}:                     OutgoingCall,
	{Idle, packet.Ring, port.NoEdge}:                      IncomingCall,
	{Idle, packet.Ring, port.ActiveEdge}:                  InProgressCall,
	{Idle, packet.RingAck, port.NoEdge}:                   Idle,
	{Idle, packet.RingAck, port.ActiveEdge}:               Idle,
	{Idle, packet.RingAck, port.InactiveEdge}:             Idle,
	{Idle, packet.VoiceData, port.NoEdge}:                 Idle,
	{Idle, packet.VoiceData, port.ActiveEdge}:             InProgressCall,
	{Idle, packet.VoiceData, port.InactiveEdge}:           Idle,
	{OutgoingCall, NoPacket, port.NoEdge}:                 OutgoingCall,
	{OutgoingCall, packet.RingAck, port.NoEdge}:           OutgoingCall,
	{OutgoingCall, packet.VoiceData, port.NoEdge}:         InProgressCall,
	{OutgoingCall, packet.Ring, port.NoEdge}:              InProgressCall,
	{OutgoingCall, NoPacket, port.InactiveEdge}:           Idle,
	{OutgoingCall, packet.Ring, port.InactiveEdge}:        Idle,
	{OutgoingCall, packet.RingAck, port.InactiveEdge}:     Idle,
	{OutgoingCall, packet.VoiceData, port.InactiveEdge}:   Idle,
	{IncomingCall, NoPacket, port.NoEdge}:                 IncomingCall,
	{IncomingCall, packet.Ring, port.NoEdge}:              IncomingCall,
	{IncomingCall, NoPacket, port.ActiveEdge}:             InProgressCall,
	{IncomingCall, packet.Ring, port.ActiveEdge}:          InProgressCall,
	{InProgressCall, NoPacket, port.NoEdge}:               InProgressCall,
	{InProgressCall, packet.VoiceData, port.NoEdge}:       InProgressCall,
	{InProgressCall, packet.Ring, port.NoEdge}:            InProgressCall,
	{InProgressCall, NoPacket, port.InactiveEdge}:         Idle,
	{InProgressCall, packet.Ring, port.InactiveEdge}:      Idle,
	{InProgressCall, packet.RingAck, port.InactiveEdge}:   Idle,
	{InProgressCall, packet.VoiceData, port.InactiveEdge}: Idle,
}

func TestMain(m *testing.M) {
	debug.SetDebug(os.Stderr, debug.Standard)
	os.Exit(m.Run())
}

func TestDispatchTable(t *testing.T) {
	invalid := 0

	for _, s := range allStates {
		for _, k := range allKinds {
			for _, e := range allEdges {
				got, err := Dispatch(s, k, e)

				if want, ok := valid[input{s, k, e}]; ok {
					assert.NoError(t, err, "%v %v %v", s, k, e)
					assert.Equal(t, want, got, "%v %v %v", s, k, e)
					continue
				}

				invalid++
				assert.Equal(t, Idle, got, "%v %v %v", s, k, e)
				var ite *InvalidTransitionError
				if assert.ErrorAs(t, err, &ite, "%v %v %v", s, k, e) {
					assert.Equal(t, input{s, k, e}, input{ite.State, ite.Packet, ite.Edge})
				}
			}
		}
	}

	assert.Equal(t, 48-len(valid), invalid)
}

func TestHangupAlwaysWins(t *testing.T) {
	for _, s := range []State{OutgoingCall, InProgressCall} {
		for _, k := range allKinds {
			got, err := Dispatch(s, k, port.InactiveEdge)
			require.NoError(t, err)
			assert.Equal(t, Idle, got)
		}
	}
}

func TestIdleIsIdempotent(t *testing.T) {
	s := Idle
	for i := 0; i < 100; i++ {
		var err error
		s, err = Dispatch(s, NoPacket, port.NoEdge)
		require.NoError(t, err)
	}
	assert.Equal(t, Idle, s)
}

func TestDispatchUnknownKind(t *testing.T) {
	got, err := Dispatch(InProgressCall, packet.Kind(9), port.NoEdge)
	assert.Equal(t, Idle, got)
	assert.Error(t, err)
}

func TestScenarioOutgoingCall(t *testing.T) {
	c := New()

	assert.Equal(t, OutgoingCall, c.Dispatch(NoPacket, port.ActiveEdge))
	for i := 0; i < 5; i++ {
		assert.Equal(t, OutgoingCall, c.Dispatch(NoPacket, port.NoEdge))
	}
	assert.Equal(t, OutgoingCall, c.Dispatch(packet.RingAck, port.NoEdge))
	assert.Equal(t, InProgressCall, c.Dispatch(packet.VoiceData, port.NoEdge))
	assert.Equal(t, InProgressCall, c.Dispatch(packet.VoiceData, port.NoEdge))
	assert.Equal(t, Idle, c.Dispatch(packet.VoiceData, port.InactiveEdge))
	assert.Zero(t, c.Resets())
}

func TestScenarioCollision(t *testing.T) {
	c := New()

	require.Equal(t, OutgoingCall, c.Dispatch(NoPacket, port.ActiveEdge))
	assert.Equal(t, InProgressCall, c.Dispatch(packet.Ring, port.NoEdge))
	assert.Zero(t, c.Resets())
}

func TestPacket(t *testing.T) {
	c := New()
	assert.Equal(t, NoPacket, c.Packet())

	// both sides pressed the switch at once
	assert.Equal(t, InProgressCall, c.Dispatch(packet.Ring, port.ActiveEdge))
	assert.Equal(t, packet.Ring, c.Packet())

	c.Dispatch(NoPacket, port.NoEdge)
	assert.Equal(t, NoPacket, c.Packet())
}

func TestScenarioIncomingCall(t *testing.T) {
	c := New()

	assert.Equal(t, IncomingCall, c.Dispatch(packet.Ring, port.NoEdge))
	assert.Equal(t, IncomingCall, c.Dispatch(NoPacket, port.NoEdge))
	assert.Equal(t, InProgressCall, c.Dispatch(NoPacket, port.ActiveEdge))
	assert.Equal(t, InProgressCall, c.Dispatch(packet.Ring, port.NoEdge))
	assert.Equal(t, Idle, c.Dispatch(NoPacket, port.InactiveEdge))
}

func TestScenarioSelfHeal(t *testing.T) {
	c := New()

	require.Equal(t, IncomingCall, c.Dispatch(packet.Ring, port.NoEdge))
	assert.Equal(t, Idle, c.Dispatch(packet.RingAck, port.NoEdge))
	assert.Equal(t, uint64(1), c.Resets())
	assert.Equal(t, Idle, c.State())
}

func TestConcurrentReaders(t *testing.T) {
	c := New()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				_ = c.State()
			}
		}()
	}

	for j := 0; j < 100; j++ {
		c.Dispatch(NoPacket, port.ActiveEdge)
		c.Dispatch(NoPacket, port.InactiveEdge)
	}
	wg.Wait()
	assert.Equal(t, Idle, c.State())
}

func TestInvalidTransitionErrorMessage(t *testing.T) {
	err := &InvalidTransitionError{State: IncomingCall, Packet: NoPacket, Edge: port.InactiveEdge}
	assert.Equal(t, "invalid call transition: state IncomingCall, packet none, switch inactive", err.Error())

	err = &InvalidTransitionError{State: InProgressCall, Packet: packet.RingAck, Edge: port.NoEdge}
	assert.Contains(t, err.Error(), "packet RingAck")
}

func TestStateText(t *testing.T) {
	b, err := InProgressCall.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "InProgressCall", string(b))
	assert.Equal(t, "State(7)", State(7).String())
}
