package packet

import (
	"fmt"
	"io"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// Frame is an intercom datagram found in a capture file.
type Frame struct {
	Timestamp time.Time
	Src       string
	Dst       string
	Kind      Kind
	Size      int
	// Err is the decode error of a malformed datagram.
	Err error
}

func (f Frame) String() string {
	ts := f.Timestamp.Format("15:04:05.000")
	if f.Err != nil {
		return fmt.Sprintf("%s %s -> %s error: %v", ts, f.Src, f.Dst, f.Err)
	}
	return fmt.Sprintf("%s %s -> %s %s %d bytes", ts, f.Src, f.Dst, f.Kind, f.Size)
}

// Dump reads a pcap capture from r and calls fn for each udp datagram sent to port.
// Malformed datagrams are reported with Frame.Err, they don't stop the dump.
func Dump(r io.Reader, port int, fn func(Frame)) error {
	pr, err := pcapgo.NewReader(r)
	if err != nil {
		return fmt.Errorf("read pcap header: %w", err)
	}

	source := gopacket.NewPacketSource(pr, pr.LinkType())
	source.DecodeOptions = gopacket.DecodeOptions{Lazy: true, NoCopy: true}

	for {
		p, err := source.NextPacket()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read pcap packet: %w", err)
		}

		udp, ok := p.Layer(layers.LayerTypeUDP).(*layers.UDP)
		if !ok || int(udp.DstPort) != port {
			continue
		}

		f := Frame{
			Timestamp: p.Metadata().Timestamp,
			Src:       endpoint(p, udp.SrcPort, true),
			Dst:       endpoint(p, udp.DstPort, false),
		}

		var l Layer
		if err := l.DecodeFromBytes(udp.Payload, gopacket.NilDecodeFeedback); err != nil {
			f.Err = err
		} else {
			f.Kind = l.Kind
			f.Size = len(l.Payload)
		}

		fn(f)
	}
}

func endpoint(p gopacket.Packet, udpPort layers.UDPPort, src bool) string {
	nl := p.NetworkLayer()
	if nl == nil {
		return fmt.Sprintf(":%d", udpPort)
	}

	flow := nl.NetworkFlow()
	if src {
		return fmt.Sprintf("%s:%d", flow.Src(), udpPort)
	}
	return fmt.Sprintf("%s:%d", flow.Dst(), udpPort)
}
