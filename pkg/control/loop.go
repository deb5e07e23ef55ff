// Package control is the control loop of the intercom.
//  Each tick polls one packet and the call switch, dispatches the call state machine
//  and applies the side effects of the new state: ring tones, signaling packets and voice output.
package control

import (
	"errors"
	"sync/atomic"
	"time"

	"intercom/pkg/call"
	"intercom/pkg/debounce"
	"intercom/pkg/packet"
	"intercom/pkg/port"

	"github.com/womat/debug"
)

// Receiver polls inbound packets without blocking.
type Receiver interface {
	Poll() (p packet.Packet, ok bool, err error)
}

// Sender sends packets to the peer.
type Sender interface {
	Send(k packet.Kind) error
	SendData(k packet.Kind, data []byte) error
}

// Switch reads the call switch.
type Switch interface {
	Read() (port.Reading, error)
}

// Output is an audio output which plays voice and the ring tone.
type Output interface {
	Play(pcm []byte)
	Ring()
	Stop()
}

// Observer is called on every change of the call state.
type Observer func(from, to call.State)

// Options defines the timing of the loop.
type Options struct {
	// ToneInterval is the minimum time between two ring tones.
	ToneInterval time.Duration
	// RetransmitInterval is the minimum time between two Ring or RingAck packets.
	RetransmitInterval time.Duration
	// Nap is the sleep time of an idle tick.
	Nap time.Duration
}

// DefaultOptions are the timings of the intercom.
var DefaultOptions = Options{
	ToneInterval:       debounce.DefaultToneInterval,
	RetransmitInterval: debounce.DefaultRetransmitInterval,
	Nap:                100 * time.Millisecond,
}

// Stats counts the traffic of the loop.
type Stats struct {
	Received      uint64 `json:"received"`
	Sent          uint64 `json:"sent"`
	DecodeErrors  uint64 `json:"decodeErrors"`
	ReceiveErrors uint64 `json:"receiveErrors"`
	SendErrors    uint64 `json:"sendErrors"`
	SwitchErrors  uint64 `json:"switchErrors"`
}

// Loop is the control loop, it is the only writer of the call state.
type Loop struct {
	call      *call.Call
	rx        Receiver
	tx        Sender
	sw        Switch
	headset   Output
	speaker   Output
	opts      Options
	detector  port.Detector
	debouncer *debounce.Debouncer
	observers []Observer
	prev      call.State
	sleep     func(time.Duration)

	received      atomic.Uint64
	sent          atomic.Uint64
	decodeErrors  atomic.Uint64
	receiveErrors atomic.Uint64
	sendErrors    atomic.Uint64
	switchErrors  atomic.Uint64
}

// New returns the control loop of c.
//  headset plays the voice of the peer and the ring tone of an outgoing call.
//  speaker plays the ring tone of an incoming call.
func New(c *call.Call, rx Receiver, tx Sender, sw Switch, headset, speaker Output, opts Options) *Loop {
	return &Loop{
		call:      c,
		rx:        rx,
		tx:        tx,
		sw:        sw,
		headset:   headset,
		speaker:   speaker,
		opts:      opts,
		debouncer: debounce.New(),
		prev:      c.State(),
		sleep:     time.Sleep,
	}
}

// OnChange registers an observer of state changes. It must be called before Run.
func (l *Loop) OnChange(o Observer) {
	l.observers = append(l.observers, o)
}

// Run ticks until quit is closed.
func (l *Loop) Run(quit <-chan struct{}) {
	debug.InfoLog.Printf("control loop started in state %v", l.prev)

	for {
		select {
		case <-quit:
			debug.InfoLog.Print("control loop stopped")
			return
		default:
			l.Tick()
		}
	}
}

// Tick runs one iteration of the loop and returns the new call state.
func (l *Loop) Tick() call.State {
	p, ok := l.poll()

	kind := call.NoPacket
	if ok {
		kind = p.Kind
	}

	edge := port.NoEdge
	if r, err := l.sw.Read(); err != nil {
		l.switchErrors.Add(1)
		debug.ErrorLog.Printf("read call switch: %v", err)
	} else {
		edge = l.detector.Observe(r)
	}

	next := l.call.Dispatch(kind, edge)

	if prev := l.prev; next != prev {
		if next == call.Idle || next == call.InProgressCall {
			switch prev {
			case call.IncomingCall:
				l.speaker.Stop()
			case call.OutgoingCall:
				l.headset.Stop()
			}
		}

		l.debouncer.Reset()
		for _, o := range l.observers {
			o(prev, next)
		}
	}

	switch next {
	case call.InProgressCall:
		if kind == packet.VoiceData {
			l.headset.Play(p.Payload)
		}
	case call.IncomingCall:
		l.debouncer.MaybeFire(debounce.Tone, l.opts.ToneInterval, l.speaker.Ring)
		l.debouncer.MaybeFire(debounce.Retransmit, l.opts.RetransmitInterval, func() { l.send(packet.RingAck) })
	case call.OutgoingCall:
		l.debouncer.MaybeFire(debounce.Tone, l.opts.ToneInterval, l.headset.Ring)
		l.debouncer.MaybeFire(debounce.Retransmit, l.opts.RetransmitInterval, func() { l.send(packet.Ring) })
	case call.Idle:
		l.sleep(l.opts.Nap)
	}

	l.prev = next
	return next
}

// Stats returns the counters of the loop.
func (l *Loop) Stats() Stats {
	return Stats{
		Received:      l.received.Load(),
		Sent:          l.sent.Load(),
		DecodeErrors:  l.decodeErrors.Load(),
		ReceiveErrors: l.receiveErrors.Load(),
		SendErrors:    l.sendErrors.Load(),
		SwitchErrors:  l.switchErrors.Load(),
	}
}

// poll returns the received packet, if any.
// Malformed datagrams and receive errors are logged and count as no packet.
func (l *Loop) poll() (packet.Packet, bool) {
	p, ok, err := l.rx.Poll()

	switch {
	case errors.Is(err, packet.ErrInvalidKind), errors.Is(err, packet.ErrEmpty):
		l.decodeErrors.Add(1)
		debug.DebugLog.Printf("discard datagram: %v", err)
		return p, false
	case err != nil:
		l.receiveErrors.Add(1)
		debug.ErrorLog.Printf("receive: %v", err)
		return p, false
	case ok:
		l.received.Add(1)
		debug.TraceLog.Printf("received %v, %d bytes", p.Kind, len(p.Payload))
	}
	return p, ok
}

func (l *Loop) send(k packet.Kind) {
	if err := l.tx.Send(k); err != nil {
		l.sendErrors.Add(1)
		debug.ErrorLog.Printf("send %v: %v", k, err)
		return
	}
	l.sent.Add(1)
	debug.TraceLog.Printf("sent %v", k)
}
