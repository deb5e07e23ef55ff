// Package packet is the codec of the intercom wire format.
//  Each datagram is one tag byte followed by the payload:
//   1 ... VoiceData, payload holds raw interleaved audio samples
//   2 ... Ring, empty payload
//   3 ... RingAck, empty payload
package packet

import (
	"errors"
	"fmt"
)

var (
	ErrEmpty       = errors.New("empty datagram")
	ErrInvalidKind = errors.New("invalid packet kind")
)

// Kind is the tag byte of a datagram.
type Kind byte

const (
	VoiceData Kind = 1
	Ring      Kind = 2
	RingAck   Kind = 3
)

// Valid reports whether k is one of the known tags.
func (k Kind) Valid() bool {
	return k >= VoiceData && k <= RingAck
}

func (k Kind) String() string {
	switch k {
	case VoiceData:
		return "VoiceData"
	case Ring:
		return "Ring"
	case RingAck:
		return "RingAck"
	default:
		return fmt.Sprintf("Kind(%d)", byte(k))
	}
}

// Packet is a decoded datagram.
// The payload of a received packet refers to the receive buffer and is only valid until the next read.
type Packet struct {
	Kind    Kind
	Payload []byte
}

// Append appends the encoded packet to dst and returns the extended buffer.
// Signaling packets are always encoded without payload.
func Append(dst []byte, p Packet) ([]byte, error) {
	if !p.Kind.Valid() {
		return dst, fmt.Errorf("%w: %d", ErrInvalidKind, byte(p.Kind))
	}

	dst = append(dst, byte(p.Kind))
	if p.Kind == VoiceData {
		dst = append(dst, p.Payload...)
	}
	return dst, nil
}

// Encode returns the datagram of p.
func Encode(p Packet) ([]byte, error) {
	return Append(make([]byte, 0, 1+len(p.Payload)), p)
}

// Decode parses a datagram. The returned payload shares memory with b.
func Decode(b []byte) (Packet, error) {
	if len(b) == 0 {
		return Packet{}, ErrEmpty
	}

	k := Kind(b[0])
	if !k.Valid() {
		return Packet{}, fmt.Errorf("%w: %d", ErrInvalidKind, b[0])
	}

	p := Packet{Kind: k, Payload: b[1:]}
	if k != VoiceData {
		p.Payload = p.Payload[:0]
	}
	return p, nil
}
