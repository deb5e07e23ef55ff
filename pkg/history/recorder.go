package history

import (
	"sync"
	"time"

	"intercom/pkg/call"
	"intercom/pkg/packet"

	"github.com/womat/debug"
)

// queueSize is the number of finished calls which can wait for the writer.
const queueSize = 16

// Recorder turns the state changes of a call into records of the Store.
// Finished calls are written by a separate go function, Observe never waits for the database.
type Recorder struct {
	store *Store
	call  *call.Call
	now   func() time.Time

	mu      sync.Mutex
	current *Record
	resets  uint64
	closed  bool

	queue chan Record
	done  chan struct{}
}

// NewRecorder returns a Recorder of the calls of c and starts its writer.
// Close stops the writer after the queued records are stored.
func NewRecorder(s *Store, c *call.Call) *Recorder {
	r := &Recorder{
		store: s,
		call:  c,
		now:   time.Now,
		queue: make(chan Record, queueSize),
		done:  make(chan struct{}),
	}
	go r.write()
	return r
}

// Close stores the queued records and stops the writer. Later calls are not recorded.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	<-r.done
}

func (r *Recorder) write() {
	defer close(r.done)

	for c := range r.queue {
		if err := r.store.Put(c); err != nil {
			debug.ErrorLog.Printf("call history: %v", err)
		}
	}
}

// Observe records the change of the call state from -> to.
// It is registered as observer of the control loop.
func (r *Recorder) Observe(from, to call.State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()

	switch to {
	case call.OutgoingCall:
		r.start(Outgoing, now)
	case call.IncomingCall:
		r.start(Incoming, now)
	case call.InProgressCall:
		if r.current == nil {
			// both sides called at once, or the call was in progress before a restart
			d := Resumed
			if r.call.Packet() == packet.Ring {
				d = Incoming
			}
			r.start(d, now)
		}
		r.current.Answered = now
	case call.Idle:
		r.end(now)
	}
}

// Current returns a copy of the call in progress.
func (r *Recorder) Current() (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current == nil {
		return Record{}, false
	}
	return *r.current, true
}

func (r *Recorder) start(d Direction, now time.Time) {
	if r.current != nil {
		r.end(now)
	}

	id, err := r.store.NextID()
	if err != nil {
		debug.ErrorLog.Printf("call history: %v", err)
	}

	r.current = &Record{ID: id, Direction: d, Started: now}
	r.resets = r.call.Resets()
}

func (r *Recorder) end(now time.Time) {
	c := r.current
	if c == nil {
		return
	}
	r.current = nil

	c.Ended = now
	switch {
	case r.call.Resets() != r.resets:
		c.Outcome = Reset
	case !c.Answered.IsZero():
		c.Outcome = Answered
	case c.Direction == Outgoing:
		c.Outcome = Cancelled
	default:
		c.Outcome = Missed
	}

	debug.InfoLog.Printf("call %d %v %v, %v", c.ID, c.Direction, c.Outcome, c.Ended.Sub(c.Started).Round(time.Millisecond))
	if r.closed {
		return
	}

	select {
	case r.queue <- *c:
	default:
		debug.ErrorLog.Printf("call history queue is full, drop call %d", c.ID)
	}
}
