// Package debounce rate limits repeated side effects of a call state,
// like the ring tone and the retransmission of signaling packets.
package debounce

import "time"

// Slot selects one of the timers of the Debouncer.
type Slot int

const (
	// Tone spaces repeated ring tones.
	Tone Slot = iota
	// Retransmit spaces repeated Ring and RingAck packets.
	Retransmit
	slots
)

const (
	DefaultToneInterval       = 4 * time.Second
	DefaultRetransmitInterval = 100 * time.Millisecond
)

// Debouncer holds the time of the last action of each slot.
type Debouncer struct {
	last [slots]time.Time
	// now returns the current time
	now func() time.Time
}

// New returns a Debouncer with empty slots.
func New() *Debouncer {
	return NewWithClock(time.Now)
}

// NewWithClock returns a Debouncer which takes the time from now.
func NewWithClock(now func() time.Time) *Debouncer {
	return &Debouncer{now: now}
}

// MaybeFire calls action if the slot is empty or the last action of the slot is older than interval.
// It reports whether action was called.
func (d *Debouncer) MaybeFire(slot Slot, interval time.Duration, action func()) bool {
	now := d.now()

	if last := d.last[slot]; !last.IsZero() && now.Sub(last) <= interval {
		return false
	}

	d.last[slot] = now
	action()
	return true
}

// Reset clears both slots, the next action of each slot fires immediately.
func (d *Debouncer) Reset() {
	d.last = [slots]time.Time{}
}
