package packet

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   Packet
		want Packet
	}{
		{"ring", Packet{Kind: Ring}, Packet{Kind: Ring}},
		{"ring ack", Packet{Kind: RingAck}, Packet{Kind: RingAck}},
		{"ring drops payload", Packet{Kind: Ring, Payload: []byte{1, 2}}, Packet{Kind: Ring}},
		{"voice data", Packet{Kind: VoiceData, Payload: []byte{0x10, 0x00, 0xf0, 0xff}}, Packet{Kind: VoiceData, Payload: []byte{0x10, 0x00, 0xf0, 0xff}}},
		{"empty voice data", Packet{Kind: VoiceData}, Packet{Kind: VoiceData}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Encode(tt.in)
			require.NoError(t, err)
			assert.Equal(t, byte(tt.in.Kind), b[0])

			got, err := Decode(b)
			require.NoError(t, err)
			assert.Equal(t, tt.want.Kind, got.Kind)
			assert.Len(t, got.Payload, len(tt.want.Payload))
			if len(tt.want.Payload) > 0 {
				assert.Equal(t, tt.want.Payload, got.Payload)
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode(nil)
	assert.ErrorIs(t, err, ErrEmpty)

	for _, tag := range []byte{0, 4, 9, 255} {
		_, err := Decode([]byte{tag, 1, 2})
		assert.ErrorIs(t, err, ErrInvalidKind, "tag %d", tag)
		assert.NotErrorIs(t, err, ErrEmpty)
	}

	// a malformed datagram doesn't affect the next one
	_, err = Decode([]byte{9})
	require.ErrorIs(t, err, ErrInvalidKind)
	p, err := Decode([]byte{2})
	require.NoError(t, err)
	assert.Equal(t, Ring, p.Kind)
}

func TestEncodeInvalidKind(t *testing.T) {
	_, err := Encode(Packet{Kind: 7})
	assert.ErrorIs(t, err, ErrInvalidKind)
}

func TestAppendReusesBuffer(t *testing.T) {
	buf := make([]byte, 0, 16)
	b, err := Append(buf, Packet{Kind: VoiceData, Payload: []byte{1, 2, 3}})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 1, 2, 3}, b)
	assert.Equal(t, 16, cap(b))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "VoiceData", VoiceData.String())
	assert.Equal(t, "Ring", Ring.String())
	assert.Equal(t, "RingAck", RingAck.String())
	assert.Equal(t, "Kind(9)", Kind(9).String())
}

func TestLayer(t *testing.T) {
	p := gopacket.NewPacket([]byte{1, 0xaa, 0xbb}, LayerTypeIntercom, gopacket.Default)
	l, ok := p.Layer(LayerTypeIntercom).(*Layer)
	require.True(t, ok)
	assert.Equal(t, VoiceData, l.Kind)
	assert.Equal(t, []byte{0xaa, 0xbb}, l.LayerPayload())
	assert.NotNil(t, p.Layer(gopacket.LayerTypePayload))

	p = gopacket.NewPacket([]byte{3}, LayerTypeIntercom, gopacket.Default)
	l, ok = p.Layer(LayerTypeIntercom).(*Layer)
	require.True(t, ok)
	assert.Equal(t, Packet{Kind: RingAck, Payload: []byte{}}, l.Packet())
	assert.Nil(t, p.ErrorLayer())

	p = gopacket.NewPacket([]byte{9}, LayerTypeIntercom, gopacket.Default)
	assert.NotNil(t, p.ErrorLayer())
}

func TestDump(t *testing.T) {
	var buf bytes.Buffer
	w := pcapgo.NewWriter(&buf)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	writeUDP(t, w, ts, 5060, []byte{2})
	writeUDP(t, w, ts.Add(time.Millisecond), 5060, []byte{1, 1, 2, 3, 4})
	writeUDP(t, w, ts.Add(2*time.Millisecond), 5060, []byte{9})
	writeUDP(t, w, ts.Add(3*time.Millisecond), 53, []byte{2})

	var frames []Frame
	require.NoError(t, Dump(&buf, 5060, func(f Frame) { frames = append(frames, f) }))
	require.Len(t, frames, 3)

	assert.Equal(t, Ring, frames[0].Kind)
	assert.Equal(t, "10.0.0.1:40000", frames[0].Src)
	assert.Equal(t, "10.0.0.2:5060", frames[0].Dst)
	assert.Equal(t, VoiceData, frames[1].Kind)
	assert.Equal(t, 4, frames[1].Size)
	assert.ErrorIs(t, frames[2].Err, ErrInvalidKind)
	assert.Contains(t, frames[2].String(), "invalid packet kind")
}

func writeUDP(t *testing.T, w *pcapgo.Writer, ts time.Time, dstPort int, payload []byte) {
	t.Helper()

	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
		DstMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 6},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IPv4(10, 0, 0, 1),
		DstIP:    net.IPv4(10, 0, 0, 2),
	}
	udp := &layers.UDP{SrcPort: 40000, DstPort: layers.UDPPort(dstPort)}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

	sb := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(sb, opts, eth, ip, udp, gopacket.Payload(payload)))

	data := sb.Bytes()
	ci := gopacket.CaptureInfo{Timestamp: ts, CaptureLength: len(data), Length: len(data)}
	require.NoError(t, w.WritePacket(ci, data))
}
