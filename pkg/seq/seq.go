// Package seq builds JTAG command sequences ahead of time and runs them on a
// port. A Sequence owns the TDI and TDO buffers of its shifts in a single
// pool so a sequence can be reused after Clear without reallocating.
package seq

import (
	"errors"
	"fmt"

	"github.com/OpenTraceLab/OpenTraceKey/pkg/jtag"
	"github.com/OpenTraceLab/OpenTraceKey/pkg/port"
	"github.com/OpenTraceLab/OpenTraceKey/pkg/tap"
)

var (
	// ErrZeroLengthShift is returned by AddShift for bits <= 0.
	ErrZeroLengthShift = fmt.Errorf("%w: zero-length shift", jtag.ErrBuilder)

	// ErrBadIdleOnUnstableState is returned by AddStateChange when idle
	// clocks are requested in a state the controller cannot rest in.
	ErrBadIdleOnUnstableState = fmt.Errorf("%w: idle clocks in unstable state", jtag.ErrBuilder)

	// ErrAfterIrreversible is returned when a command is added after one
	// marked irreversible.
	ErrAfterIrreversible = fmt.Errorf("%w: command after irreversible step", jtag.ErrBuilder)

	// ErrDeleted is returned when a deleted sequence is used.
	ErrDeleted = errors.New("seq: sequence deleted")

	// ErrAlreadyRun is returned when a sequence is run a second time
	// without Clear.
	ErrAlreadyRun = errors.New("seq: sequence already run")
)

// Flags modify a shift.
type Flags uint8

const (
	// FillOnes shifts ones instead of zeros when no TDI buffer was requested.
	FillOnes Flags = 1 << iota
	// NoPad shifts without the port's bypass pads.
	NoPad
)

// Handle names a buffer in a sequence's pool.
type Handle int

// NoBuffer marks an absent TDI or TDO buffer.
const NoBuffer Handle = -1

// Command is either SetState or Shift.
type Command interface {
	isCommand()
}

// SetState navigates to State and then clocks IdleClocks cycles there.
type SetState struct {
	State      tap.State
	IdleClocks int
}

// Shift clocks Bits through the register selected by Dir and leaves the
// controller in Exit.
type Shift struct {
	Dir   port.Dir
	Bits  int
	Flags Flags
	TDI   Handle
	TDO   Handle
	Exit  tap.State
}

func (SetState) isCommand() {}
func (Shift) isCommand()    {}

type span struct {
	off, n int
}

const minSlab = 64

// Sequence is an ordered list of commands plus the buffers they use. A
// Sequence runs at most once between calls to Clear.
type Sequence struct {
	cmds []Command
	bufs []span
	slab []byte
	used int

	irreversible bool
	ran          bool
	deleted      bool
}

// New returns an empty sequence.
func New() *Sequence {
	return &Sequence{}
}

func (s *Sequence) check() error {
	if s.deleted {
		return ErrDeleted
	}
	if s.irreversible {
		return ErrAfterIrreversible
	}
	return nil
}

// AddStateChange appends a navigation to state followed by idle clocks.
func (s *Sequence) AddStateChange(state tap.State, idle int) error {
	if err := s.check(); err != nil {
		return err
	}
	if !state.Valid() {
		return fmt.Errorf("%w: invalid state %d", jtag.ErrBuilder, state)
	}
	if idle < 0 || (idle > 0 && !state.Stable()) {
		return fmt.Errorf("%w: %d clocks in %s", ErrBadIdleOnUnstableState, idle, state)
	}
	s.cmds = append(s.cmds, SetState{State: state, IdleClocks: idle})
	return nil
}

// AddShift appends a shift and allocates the requested buffers, each
// (bits+7)/8 bytes and zeroed.
func (s *Sequence) AddShift(flags Flags, dir port.Dir, bits int, wantTDI, wantTDO bool, exit tap.State) (tdi, tdo Handle, err error) {
	if err := s.check(); err != nil {
		return NoBuffer, NoBuffer, err
	}
	if bits <= 0 {
		return NoBuffer, NoBuffer, fmt.Errorf("%w: %d bits", ErrZeroLengthShift, bits)
	}
	if !exit.Valid() {
		return NoBuffer, NoBuffer, fmt.Errorf("%w: invalid exit state %d", jtag.ErrBuilder, exit)
	}
	tdi, tdo = NoBuffer, NoBuffer
	if wantTDI {
		tdi = s.alloc(jtag.BytesFor(bits))
	}
	if wantTDO {
		tdo = s.alloc(jtag.BytesFor(bits))
	}
	s.cmds = append(s.cmds, Shift{Dir: dir, Bits: bits, Flags: flags, TDI: tdi, TDO: tdo, Exit: exit})
	return tdi, tdo, nil
}

// AddIR appends an instruction load of irLen bits.
func (s *Sequence) AddIR(opcode uint64, irLen int, exit tap.State) error {
	tdi, _, err := s.AddShift(0, port.IR, irLen, true, false, exit)
	if err != nil {
		return err
	}
	putUint64(s.Buf(tdi), irLen, opcode)
	return nil
}

// AddDR appends a data shift of bits taken from data, which may be nil for
// an all-zero shift. With capture set the TDO handle is returned.
func (s *Sequence) AddDR(data []byte, bits int, capture bool, exit tap.State) (Handle, error) {
	tdi, tdo, err := s.AddShift(0, port.DR, bits, data != nil, capture, exit)
	if err != nil {
		return NoBuffer, err
	}
	if data != nil {
		buf := s.Buf(tdi)
		if len(data) < len(buf) {
			return NoBuffer, fmt.Errorf("%w: %d bytes of data for %d bits", jtag.ErrBuilder, len(data), bits)
		}
		copy(buf, data)
	}
	return tdo, nil
}

// AddDRValue appends a data shift of the low bits of v.
func (s *Sequence) AddDRValue(v uint64, bits int, capture bool, exit tap.State) (Handle, error) {
	tdi, tdo, err := s.AddShift(0, port.DR, bits, true, capture, exit)
	if err != nil {
		return NoBuffer, err
	}
	putUint64(s.Buf(tdi), bits, v)
	return tdo, nil
}

// MarkIrreversible flags the last command as one that cannot be undone.
// Nothing may be added after it.
func (s *Sequence) MarkIrreversible() error {
	if err := s.check(); err != nil {
		return err
	}
	if len(s.cmds) == 0 {
		return fmt.Errorf("%w: nothing to mark irreversible", jtag.ErrBuilder)
	}
	s.irreversible = true
	return nil
}

// Irreversible reports whether the sequence ends in an irreversible step.
func (s *Sequence) Irreversible() bool {
	return s.irreversible
}

// Buf returns the bytes behind h. It panics on NoBuffer or a handle from a
// different sequence.
func (s *Sequence) Buf(h Handle) []byte {
	if h < 0 || int(h) >= len(s.bufs) {
		panic(fmt.Sprintf("seq: invalid buffer handle %d", h))
	}
	b := s.bufs[h]
	return s.slab[b.off : b.off+b.n : b.off+b.n]
}

// Commands returns a copy of the command list.
func (s *Sequence) Commands() []Command {
	return append([]Command(nil), s.cmds...)
}

// Len returns the number of commands.
func (s *Sequence) Len() int {
	return len(s.cmds)
}

// Clear drops every command and buffer but keeps the pool's memory, making
// the sequence runnable again.
func (s *Sequence) Clear() {
	s.cmds = s.cmds[:0]
	s.bufs = s.bufs[:0]
	s.used = 0
	s.irreversible = false
	s.ran = false
}

// Delete releases everything. The sequence cannot be used afterwards.
func (s *Sequence) Delete() {
	*s = Sequence{deleted: true}
}

// Cap returns the size of the buffer pool in bytes.
func (s *Sequence) Cap() int {
	return len(s.slab)
}

// alloc bump-allocates n zeroed bytes, doubling the slab when full. Growing
// copies existing buffers; handles stay valid because they are offsets.
func (s *Sequence) alloc(n int) Handle {
	if s.used+n > len(s.slab) {
		size := len(s.slab)
		if size < minSlab {
			size = minSlab
		}
		for size < s.used+n {
			size *= 2
		}
		slab := make([]byte, size)
		copy(slab, s.slab[:s.used])
		s.slab = slab
	}
	buf := s.slab[s.used : s.used+n]
	for i := range buf {
		buf[i] = 0
	}
	s.bufs = append(s.bufs, span{off: s.used, n: n})
	s.used += n
	return Handle(len(s.bufs) - 1)
}

func putUint64(buf []byte, bits int, v uint64) {
	for i := 0; i < bits && i < 64; i++ {
		jtag.SetBit(buf, i, v&(1<<uint(i)) != 0)
	}
}

// Uint64 reads up to 64 bits from an LSB-first buffer.
func Uint64(buf []byte, bits int) uint64 {
	var v uint64
	for i := 0; i < bits && i < 64; i++ {
		if jtag.Bit(buf, i) {
			v |= 1 << uint(i)
		}
	}
	return v
}
