package packet

import (
	"errors"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// LayerTypeIntercom is the gopacket layer type of an intercom datagram.
var LayerTypeIntercom = gopacket.RegisterLayerType(2001, gopacket.LayerTypeMetadata{
	Name:    "Intercom",
	Decoder: gopacket.DecodeFunc(decodeIntercom),
})

// Layer is the intercom datagram as gopacket layer.
// It implements gopacket.DecodingLayer, so it can be used with a gopacket.DecodingLayerParser.
type Layer struct {
	layers.BaseLayer
	Kind Kind
}

func (l *Layer) LayerType() gopacket.LayerType { return LayerTypeIntercom }

func (l *Layer) CanDecode() gopacket.LayerClass { return LayerTypeIntercom }

// NextLayerType returns gopacket.LayerTypePayload for voice data and
// gopacket.LayerTypeZero for signaling packets.
func (l *Layer) NextLayerType() gopacket.LayerType {
	if l.Kind == VoiceData && len(l.Payload) > 0 {
		return gopacket.LayerTypePayload
	}
	return gopacket.LayerTypeZero
}

// DecodeFromBytes decodes data into the layer.
func (l *Layer) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	p, err := Decode(data)
	if err != nil {
		if errors.Is(err, ErrEmpty) {
			df.SetTruncated()
		}
		return err
	}

	l.Kind = p.Kind
	l.BaseLayer = layers.BaseLayer{Contents: data[:1], Payload: p.Payload}
	return nil
}

// Packet returns the layer as Packet.
func (l *Layer) Packet() Packet {
	return Packet{Kind: l.Kind, Payload: l.Payload}
}

func decodeIntercom(data []byte, p gopacket.PacketBuilder) error {
	l := &Layer{}
	if err := l.DecodeFromBytes(data, p); err != nil {
		return err
	}

	p.AddLayer(l)
	if next := l.NextLayerType(); next != gopacket.LayerTypeZero {
		return p.NextDecoder(next)
	}
	return nil
}
