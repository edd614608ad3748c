package jtag

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// GPIOPins drives the JTAG lines through periph.io GPIO, looking each line
// up by its registry name ("GPIO17", "P1_11", ...).
type GPIOPins struct {
	lines [numPins]gpio.PinIO
	err   error
}

// OpenGPIO initialises the periph host drivers and claims the lines in m.
// Handshake lines are optional.
func OpenGPIO(m PinMap) (*GPIOPins, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("jtag: periph init: %w", err)
	}

	g := &GPIOPins{}
	for _, p := range m.sorted() {
		name := m[p]
		line := gpioreg.ByName(name)
		if line == nil {
			return nil, fmt.Errorf("%w: no GPIO named %q for %s", ErrPinConfig, name, p)
		}
		if err := configureLine(line, p); err != nil {
			return nil, fmt.Errorf("jtag: configure %s (%s): %w", p, name, err)
		}
		g.lines[p] = line
	}
	return g, nil
}

func configureLine(line gpio.PinIO, p Pin) error {
	if p.Input() {
		return line.In(gpio.PullUp, gpio.NoEdge)
	}
	return line.Out(gpio.Low)
}

func (g *GPIOPins) Set(p Pin, high bool) {
	if p >= numPins || g.lines[p] == nil {
		return
	}
	if err := g.lines[p].Out(gpio.Level(high)); err != nil && g.err == nil {
		g.err = fmt.Errorf("jtag: write %s: %w", p, err)
	}
}

func (g *GPIOPins) Get(p Pin) bool {
	if p >= numPins || g.lines[p] == nil {
		return false
	}
	return bool(g.lines[p].Read())
}

func (g *GPIOPins) Supports(p Pin) bool {
	return p < numPins && g.lines[p] != nil
}

// Err returns the first write error.
func (g *GPIOPins) Err() error {
	return g.err
}

// Close parks every output low and releases the lines.
func (g *GPIOPins) Close() error {
	for p, line := range g.lines {
		if line == nil {
			continue
		}
		if !Pin(p).Input() {
			_ = line.Out(gpio.Low)
		}
		if err := line.Halt(); err != nil && g.err == nil {
			g.err = err
		}
	}
	return g.err
}
