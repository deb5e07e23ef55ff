package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/womat/debug"
)

// queueSize is the number of pcm buffers a Player holds before it drops audio.
const queueSize = 64

var ErrNoCommand = errors.New("no audio command defined")

// OpenFunc opens the sink of a Player.
type OpenFunc func() (io.WriteCloser, error)

// Player plays raw pcm on a sink which is opened on the first Play after Stop.
//  Play never blocks, the buffers are written to the sink by a separate go function.
//  Stop closes the sink and drops all queued audio.
type Player struct {
	name string
	open OpenFunc

	mu  sync.Mutex
	out *output
}

type output struct {
	w    io.WriteCloser
	q    chan []byte
	quit chan struct{}
}

// NewPlayer returns a Player for sink.
func NewPlayer(name string, open OpenFunc) *Player {
	return &Player{name: name, open: open}
}

// NewCommandPlayer returns a Player which writes to the stdin of the command line,
// e.g. "aplay -q -t raw -f S16_LE -c 1 -r 48000".
// An empty command line returns a player which discards all audio.
func NewCommandPlayer(name, cmdline string) *Player {
	if strings.TrimSpace(cmdline) == "" {
		return NewPlayer(name, func() (io.WriteCloser, error) { return discard{}, nil })
	}

	return NewPlayer(name, func() (io.WriteCloser, error) {
		return startWriter(cmdline)
	})
}

// Play queues a copy of b.
func (p *Player) Play(b []byte) {
	if len(b) == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.out == nil {
		w, err := p.open()
		if err != nil {
			debug.ErrorLog.Printf("%s: open audio output: %v", p.name, err)
			return
		}

		p.out = &output{w: w, q: make(chan []byte, queueSize), quit: make(chan struct{})}
		go p.run(p.out)
	}

	buf := make([]byte, len(b))
	copy(buf, b)

	select {
	case p.out.q <- buf:
	default:
		debug.DebugLog.Printf("%s: audio queue full, drop %d bytes", p.name, len(b))
	}
}

// Stop stops playing and drops the queued audio.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.out == nil {
		return
	}

	close(p.out.quit)
	if err := p.out.w.Close(); err != nil {
		debug.DebugLog.Printf("%s: close audio output: %v", p.name, err)
	}
	p.out = nil
}

// run writes the queued buffers of o until quit is closed or the sink fails.
// A failed sink is closed and detached, the next Play opens a new one.
func (p *Player) run(o *output) {
	for {
		select {
		case <-o.quit:
			return
		case b := <-o.q:
			if _, err := o.w.Write(b); err != nil {
				p.detach(o, err)
				return
			}
		}
	}
}

// detach drops o after a write error unless Stop already did.
func (p *Player) detach(o *output, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.out != o {
		return
	}
	p.out = nil

	debug.ErrorLog.Printf("%s: write audio: %v, reopen on next play", p.name, err)
	if err := o.w.Close(); err != nil {
		debug.DebugLog.Printf("%s: close audio output: %v", p.name, err)
	}
}

// Ringer plays the ring tone on a Player.
type Ringer struct {
	*Player
	tone []byte
}

// NewRinger returns a Ringer playing tone on p.
func NewRinger(p *Player, tone []byte) *Ringer {
	return &Ringer{Player: p, tone: tone}
}

// Ring queues the ring tone.
func (r *Ringer) Ring() {
	r.Play(r.tone)
}

// OpenCapture starts the capture command line, e.g. "arecord -q -t raw -f S16_LE -c 1 -r 48000",
// and returns its stdout. Closing the reader stops the command.
func OpenCapture(cmdline string) (io.ReadCloser, error) {
	argv := strings.Fields(cmdline)
	if len(argv) == 0 {
		return nil, ErrNoCommand
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stderr = os.Stderr
	r, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err = cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %q: %w", argv[0], err)
	}

	return &process{cmd: cmd, ReadCloser: r}, nil
}

func startWriter(cmdline string) (io.WriteCloser, error) {
	argv := strings.Fields(cmdline)

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stderr = os.Stderr
	w, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	if err = cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %q: %w", argv[0], err)
	}

	return &process{cmd: cmd, WriteCloser: w}, nil
}

// process is the pipe to a running command.
type process struct {
	cmd *exec.Cmd
	io.ReadCloser
	io.WriteCloser
}

// Close kills the command and waits for its termination.
func (p *process) Close() error {
	if p.WriteCloser != nil {
		_ = p.WriteCloser.Close()
	}
	_ = p.cmd.Process.Kill()
	_ = p.cmd.Wait()
	return nil
}

type discard struct{}

func (discard) Write(b []byte) (int, error) { return len(b), nil }
func (discard) Close() error                { return nil }
