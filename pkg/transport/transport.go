// Package transport sends and receives intercom packets over udp.
package transport

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"intercom/pkg/packet"
)

const (
	// maxDatagram is the size of the receive buffer.
	maxDatagram = 32768
	// DefaultPollTimeout is the longest time Poll waits for a datagram.
	DefaultPollTimeout = time.Millisecond
)

// Sender sends packets from an ephemeral local port to one fixed remote peer.
type Sender struct {
	conn   *net.UDPConn
	remote *net.UDPAddr
	// buf is the encode buffer, guarded by mu
	buf []byte
	mu  sync.Mutex
}

// NewSender binds a socket to a random local port for sending to remote (host:port).
func NewSender(remote string) (*Sender, error) {
	addr, err := net.ResolveUDPAddr("udp", remote)
	if err != nil {
		return nil, fmt.Errorf("resolve peer %q: %w", remote, err)
	}

	return newSender(addr)
}

func newSender(addr *net.UDPAddr) (*Sender, error) {
	network := "udp4"
	local := &net.UDPAddr{IP: net.IPv4zero}
	if addr.IP.To4() == nil {
		network = "udp6"
		local = &net.UDPAddr{IP: net.IPv6unspecified}
	}

	conn, err := net.ListenUDP(network, local)
	if err != nil {
		return nil, fmt.Errorf("bind send socket: %w", err)
	}

	return &Sender{
		conn:   conn,
		remote: addr,
		buf:    make([]byte, 0, maxDatagram),
	}, nil
}

// Duplicate creates an independent Sender with its own socket and the same destination.
// It allows a second goroutine to send without sharing the socket.
func (s *Sender) Duplicate() (*Sender, error) {
	return newSender(s.remote)
}

// Remote returns the address of the peer.
func (s *Sender) Remote() string {
	return s.remote.String()
}

// Send sends a signaling packet.
func (s *Sender) Send(k packet.Kind) error {
	return s.SendData(k, nil)
}

// SendData sends a packet with payload.
func (s *Sender) SendData(k packet.Kind, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := packet.Append(s.buf[:0], packet.Packet{Kind: k, Payload: data})
	if err != nil {
		return err
	}
	s.buf = b[:0]

	if _, err = s.conn.WriteToUDP(b, s.remote); err != nil {
		return fmt.Errorf("send %v to %v: %w", k, s.remote, err)
	}
	return nil
}

// Close closes the socket.
func (s *Sender) Close() error {
	return s.conn.Close()
}

// Receiver receives packets on a fixed local port without blocking the caller.
type Receiver struct {
	conn    *net.UDPConn
	buf     []byte
	timeout time.Duration
}

// NewReceiver binds a socket to the local port.
// Poll waits at most timeout for a datagram, a timeout <= 0 uses DefaultPollTimeout.
func NewReceiver(port int, timeout time.Duration) (*Receiver, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, fmt.Errorf("bind receive socket on port %d: %w", port, err)
	}

	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}

	return &Receiver{
		conn:    conn,
		buf:     make([]byte, maxDatagram),
		timeout: timeout,
	}, nil
}

// Port returns the bound local port.
func (r *Receiver) Port() int {
	return r.conn.LocalAddr().(*net.UDPAddr).Port
}

// Poll returns at most one packet.
//  ok is false if no datagram is available.
//  A datagram with an unknown tag returns an error wrapping packet.ErrInvalidKind,
//  every other error is an i/o error.
// The payload refers to the receive buffer and is overwritten by the next Poll.
func (r *Receiver) Poll() (p packet.Packet, ok bool, err error) {
	if err = r.conn.SetReadDeadline(time.Now().Add(r.timeout)); err != nil {
		return p, false, err
	}

	n, _, err := r.conn.ReadFromUDP(r.buf)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return p, false, nil
		}
		return p, false, err
	}

	if p, err = packet.Decode(r.buf[:n]); err != nil {
		return p, false, err
	}
	return p, true, nil
}

// Close closes the socket.
func (r *Receiver) Close() error {
	return r.conn.Close()
}
