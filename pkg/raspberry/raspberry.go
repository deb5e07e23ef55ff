// Package raspberry reads the call switch from a gpio line of the raspberry pi.
package raspberry

import (
	"errors"
	"fmt"
	"sync"

	"intercom/pkg/port"
)

var (
	ErrInvalidParam = errors.New("invalid parameters")
	ErrUnsupported  = errors.New("gpio driver not supported on this platform")
)

const (
	// DriverGpiod uses the gpio character device /dev/gpiochipN.
	DriverGpiod = "gpiod"
	// DriverGpiomem uses the memory mapped gpio registers of /dev/gpiomem.
	DriverGpiomem = "gpiomem"
	// DriverEmulated has no hardware, the switch is set by Press and Release.
	DriverEmulated = "emulated"
)

// Switch is the physical call switch.
type Switch interface {
	// Read returns the current level of the switch.
	Read() (port.Reading, error)
	Close() error
}

// Options defines the gpio line of the switch.
type Options struct {
	Driver string
	// Chip is the gpio chip, only used by DriverGpiod.
	Chip string
	// Pin is the BCM gpio number.
	Pin int
	// Bias is pullup, pulldown or none.
	Bias string
	// ActiveLow inverts the level, e.g. for a switch to ground with pullup.
	ActiveLow bool
}

// Open opens the switch defined by o.
func Open(o Options) (Switch, error) {
	switch o.Bias {
	case "pullup", "pulldown", "none", "":
	default:
		return nil, fmt.Errorf("%w: bias %q", ErrInvalidParam, o.Bias)
	}

	if o.Pin < 0 {
		return nil, fmt.Errorf("%w: pin %d", ErrInvalidParam, o.Pin)
	}

	switch o.Driver {
	case DriverGpiod, "":
		return openLine(o)
	case DriverGpiomem:
		return openMem(o)
	case DriverEmulated:
		return &Emulated{}, nil
	default:
		return nil, fmt.Errorf("%w: driver %q", ErrInvalidParam, o.Driver)
	}
}

// Emulated is a switch without hardware, e.g. for a development machine.
type Emulated struct {
	mu     sync.Mutex
	active bool
}

// Press activates the switch.
func (e *Emulated) Press() {
	e.mu.Lock()
	e.active = true
	e.mu.Unlock()
}

// Release deactivates the switch.
func (e *Emulated) Release() {
	e.mu.Lock()
	e.active = false
	e.mu.Unlock()
}

func (e *Emulated) Read() (port.Reading, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return reading(e.active, false), nil
}

func (e *Emulated) Close() error {
	return nil
}

// reading converts a line level to a switch reading.
func reading(high, activeLow bool) port.Reading {
	if high != activeLow {
		return port.Active
	}
	return port.Inactive
}
