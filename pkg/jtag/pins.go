package jtag

import (
	"fmt"
	"sort"
	"strings"
)

// Pin identifies one logical line of the JTAG port or of the fuse hardware
// module handshake.
type Pin uint8

const (
	PinTCK Pin = iota
	PinTMS
	PinTDI
	PinTDO
	PinHWMStart
	PinHWMReady
	PinHWMEnd

	numPins
)

var pinNames = [numPins]string{
	PinTCK:      "tck",
	PinTMS:      "tms",
	PinTDI:      "tdi",
	PinTDO:      "tdo",
	PinHWMStart: "start",
	PinHWMReady: "ready",
	PinHWMEnd:   "end",
}

func (p Pin) String() string {
	if p < numPins {
		return pinNames[p]
	}
	return fmt.Sprintf("Pin(%d)", p)
}

// Input reports whether the line is driven by the target rather than by us.
func (p Pin) Input() bool {
	return p == PinTDO || p == PinHWMReady || p == PinHWMEnd
}

// ParsePin resolves a pin name as used in configuration files.
func ParsePin(name string) (Pin, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for p, n := range pinNames {
		if n == name {
			return Pin(p), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown pin %q", ErrPinConfig, name)
}

// JTAGPins are the lines every backend must provide.
var JTAGPins = []Pin{PinTCK, PinTMS, PinTDI, PinTDO}

// HandshakePins are the lines needed to blow eFUSEs.
var HandshakePins = []Pin{PinHWMStart, PinHWMReady, PinHWMEnd}

// Pins is the pin-level capability the TAP layers drive. Set and Get never
// fail at this level; backends that talk to real hardware latch their first
// error and expose it through ErrorReporter.
type Pins interface {
	Set(p Pin, high bool)
	Get(p Pin) bool
}

// ErrorReporter is implemented by backends whose writes can fail.
type ErrorReporter interface {
	Err() error
}

// Capable is implemented by backends that only wire a subset of the pins.
type Capable interface {
	Supports(p Pin) bool
}

// Supports reports whether pins can drive or sample p. Backends that do not
// implement Capable are assumed to provide every line.
func Supports(pins Pins, p Pin) bool {
	if c, ok := pins.(Capable); ok {
		return c.Supports(p)
	}
	return true
}

// PinErr returns the latched backend error, if any.
func PinErr(pins Pins) error {
	if r, ok := pins.(ErrorReporter); ok {
		return r.Err()
	}
	return nil
}

// RequireHandshake checks that the fuse hardware module lines are present.
func RequireHandshake(pins Pins) error {
	var missing []string
	for _, p := range HandshakePins {
		if !Supports(pins, p) {
			missing = append(missing, p.String())
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: handshake lines not wired: %s", ErrPinConfig, strings.Join(missing, ", "))
	}
	return nil
}

// PinMap assigns logical pins to backend line names (GPIO names, BCM
// numbers, ...).
type PinMap map[Pin]string

// Validate checks that the JTAG lines, plus any extra required lines, are
// assigned and that no backend line is used twice.
func (m PinMap) Validate(required ...Pin) error {
	need := append(append([]Pin{}, JTAGPins...), required...)
	for _, p := range need {
		if strings.TrimSpace(m[p]) == "" {
			return fmt.Errorf("%w: %s not assigned", ErrPinConfig, p)
		}
	}

	owners := make(map[string]Pin, len(m))
	for _, p := range m.sorted() {
		line := strings.TrimSpace(m[p])
		if line == "" {
			continue
		}
		if prev, dup := owners[line]; dup {
			return fmt.Errorf("%w: %s and %s both use line %q", ErrPinConfig, prev, p, line)
		}
		owners[line] = p
	}
	return nil
}

// HasHandshake reports whether all fuse handshake lines are assigned.
func (m PinMap) HasHandshake() bool {
	for _, p := range HandshakePins {
		if strings.TrimSpace(m[p]) == "" {
			return false
		}
	}
	return true
}

func (m PinMap) sorted() []Pin {
	out := make([]Pin, 0, len(m))
	for p := range m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
