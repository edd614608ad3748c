package jtag

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/stianeikeland/go-rpio/v4"
)

// RPIOPins bit-bangs the JTAG lines through /dev/gpiomem on a Raspberry Pi.
// Lines are BCM numbers, optionally written as "GPIO17".
type RPIOPins struct {
	lines [numPins]rpio.Pin
	wired [numPins]bool
}

// ParseBCM converts a pin map line name into a BCM GPIO number.
func ParseBCM(name string) (int, error) {
	s := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(name)), "GPIO")
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 53 {
		return 0, fmt.Errorf("%w: %q is not a BCM pin number", ErrPinConfig, name)
	}
	return n, nil
}

// OpenRPIO maps the GPIO registers and configures the lines in m.
func OpenRPIO(m PinMap) (*RPIOPins, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	r := &RPIOPins{}
	for _, p := range m.sorted() {
		n, err := ParseBCM(m[p])
		if err != nil {
			return nil, err
		}
		r.lines[p] = rpio.Pin(n)
		r.wired[p] = true
	}

	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("jtag: open gpiomem: %w", err)
	}
	for p := range r.lines {
		if !r.wired[p] {
			continue
		}
		line := r.lines[p]
		if Pin(p).Input() {
			line.Input()
			line.PullUp()
		} else {
			line.Output()
			line.Low()
		}
	}
	return r, nil
}

func (r *RPIOPins) Set(p Pin, high bool) {
	if p >= numPins || !r.wired[p] {
		return
	}
	if high {
		r.lines[p].Write(rpio.High)
	} else {
		r.lines[p].Write(rpio.Low)
	}
}

func (r *RPIOPins) Get(p Pin) bool {
	if p >= numPins || !r.wired[p] {
		return false
	}
	return r.lines[p].Read() == rpio.High
}

func (r *RPIOPins) Supports(p Pin) bool {
	return p < numPins && r.wired[p]
}

// Close returns every output to an input and unmaps the registers.
func (r *RPIOPins) Close() error {
	for p := range r.lines {
		if r.wired[p] {
			r.lines[p].Input()
		}
	}
	return rpio.Close()
}
