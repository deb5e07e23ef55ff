//go:build !windows

package raspberry

import (
	"fmt"

	"intercom/pkg/port"

	"github.com/warthog618/gpio"
	"github.com/warthog618/gpiod"
)

// Line is a switch on a line requested from a gpio character device.
type Line struct {
	chip *gpiod.Chip
	line *gpiod.Line
}

// openLine requests the pin as input line of the chip.
//  If granted, control is maintained until the Line is closed.
func openLine(o Options) (Switch, error) {
	name := o.Chip
	if name == "" {
		name = "gpiochip0"
	}

	c, err := gpiod.NewChip(name)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %q: %w", name, err)
	}

	opts := []gpiod.LineReqOption{gpiod.AsInput}
	switch o.Bias {
	case "pullup":
		opts = append(opts, gpiod.WithPullUp)
	case "pulldown":
		opts = append(opts, gpiod.WithPullDown)
	}
	if o.ActiveLow {
		opts = append(opts, gpiod.AsActiveLow)
	}

	l, err := c.RequestLine(o.Pin, opts...)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("request gpio line %d: %w", o.Pin, err)
	}

	return &Line{chip: c, line: l}, nil
}

// Read returns the logical value of the line, active low is handled by the kernel.
func (l *Line) Read() (port.Reading, error) {
	v, err := l.line.Value()
	if err != nil {
		return port.Inactive, err
	}
	return reading(v == 1, false), nil
}

// Close releases the line and the chip.
func (l *Line) Close() error {
	err := l.line.Close()
	if e := l.chip.Close(); err == nil {
		err = e
	}
	return err
}

// Mem is a switch on a pin of the memory mapped gpio registers.
type Mem struct {
	pin       *gpio.Pin
	activeLow bool
}

// openMem maps /dev/gpiomem and sets the pin as input.
func openMem(o Options) (Switch, error) {
	if err := gpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpiomem: %w", err)
	}

	p := gpio.NewPin(o.Pin)
	p.Input()
	switch o.Bias {
	case "pullup":
		p.PullUp()
	case "pulldown":
		p.PullDown()
	case "none":
		p.PullNone()
	}

	return &Mem{pin: p, activeLow: o.ActiveLow}, nil
}

// Read pin state (high/low)
func (m *Mem) Read() (port.Reading, error) {
	return reading(bool(m.pin.Read()), m.activeLow), nil
}

// Close unmaps the gpio memory.
func (m *Mem) Close() error {
	return gpio.Close()
}
