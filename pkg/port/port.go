// Package port drives a JTAG test access port one TCK edge at a time over a
// jtag.Pins backend. It owns the host's view of the controller state and the
// pad lengths that place the selected device inside a longer chain.
package port

import (
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/OpenTraceLab/OpenTraceKey/pkg/jtag"
	"github.com/OpenTraceLab/OpenTraceKey/pkg/tap"
	"github.com/OpenTraceLab/OpenTraceKey/pkg/timing"
)

// Dir selects the instruction or data register column.
type Dir uint8

const (
	IR Dir = iota
	DR
)

func (d Dir) String() string {
	if d == IR {
		return "IR"
	}
	return "DR"
}

// ShiftState returns the Shift-IR or Shift-DR state for d.
func (d Dir) ShiftState() tap.State {
	if d == IR {
		return tap.StateShiftIR
	}
	return tap.StateShiftDR
}

var (
	// ErrNotInShift is returned when Shift is called outside the matching
	// shift state.
	ErrNotInShift = errors.New("port: not in shift state")

	// ErrShortBuffer is returned when a TDI or TDO buffer cannot hold the
	// requested bit count.
	ErrShortBuffer = errors.New("port: buffer too short")
)

// Pads is the number of bypass bits around the selected device, split by
// register column.
type Pads struct {
	IRPre, IRPost int
	DRPre, DRPost int
}

// Port is a bit-banged TAP. It is not safe for concurrent use.
type Port struct {
	pins  jtag.Pins
	clock timing.Clock
	half  time.Duration
	log   *log.Logger

	state tap.State
	pads  Pads
}

// Option configures a Port.
type Option func(*Port)

// WithClock replaces the system clock.
func WithClock(c timing.Clock) Option {
	return func(p *Port) { p.clock = c }
}

// WithHalfPeriod sets the delay after each TCK edge. Zero toggles as fast as
// the backend allows.
func WithHalfPeriod(d time.Duration) Option {
	return func(p *Port) { p.half = d }
}

// WithLogger enables trace output.
func WithLogger(l *log.Logger) Option {
	return func(p *Port) {
		if l != nil {
			p.log = l
		}
	}
}

// New returns a port over pins. The controller state is assumed to be
// Test-Logic-Reset; call Reset to make it so.
func New(pins jtag.Pins, opts ...Option) *Port {
	p := &Port{
		pins:  pins,
		clock: timing.System(),
		log:   log.New(io.Discard, "", 0),
		state: tap.StateTestLogicReset,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// HalfPeriod returns the delay applied after each TCK edge.
func (p *Port) HalfPeriod() time.Duration {
	return p.half
}

// SetHalfPeriod changes the TCK rate between operations.
func (p *Port) SetHalfPeriod(d time.Duration) {
	if d < 0 {
		d = 0
	}
	p.half = d
}

// State returns the tracked controller state.
func (p *Port) State() tap.State {
	return p.state
}

// Pins returns the backend.
func (p *Port) Pins() jtag.Pins {
	return p.pins
}

// Clock returns the time source used for edge delays.
func (p *Port) Clock() timing.Clock {
	return p.clock
}

// Logger returns the trace logger.
func (p *Port) Logger() *log.Logger {
	return p.log
}

// Pads returns the current pad lengths.
func (p *Port) Pads() Pads {
	return p.pads
}

// SetPads sets the bypass bits shifted around every padded shift.
func (p *Port) SetPads(pads Pads) {
	p.pads = pads
}

// Err returns any latched backend error.
func (p *Port) Err() error {
	if err := jtag.PinErr(p.pins); err != nil {
		return fmt.Errorf("port: pin driver: %w", err)
	}
	return nil
}

// tick performs one TCK cycle: drop TCK, present TMS and TDI, sample TDO,
// raise TCK. The target samples TMS and TDI on the rising edge.
func (p *Port) tick(tms, tdi bool) bool {
	p.pins.Set(jtag.PinTCK, false)
	p.pins.Set(jtag.PinTMS, tms)
	p.pins.Set(jtag.PinTDI, tdi)
	p.wait()
	tdo := p.pins.Get(jtag.PinTDO)
	p.pins.Set(jtag.PinTCK, true)
	p.wait()
	p.state = tap.NextState(p.state, tms)
	return tdo
}

func (p *Port) wait() {
	if p.half > 0 {
		p.clock.Sleep(p.half)
	}
}
