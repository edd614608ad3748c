package port

import (
	"fmt"

	"github.com/OpenTraceLab/OpenTraceKey/pkg/jtag"
	"github.com/OpenTraceLab/OpenTraceKey/pkg/tap"
)

// Shift clocks bits through the register selected by dir, framed by the
// port's pad bits for that column. TDI comes from tdi, LSB of byte 0 first,
// or is held at fill when tdi is nil. When tdo is non-nil the caller's bits
// (never the pads) are captured into it.
//
// If exit differs from the shift state, TMS is raised on the last clock so
// the controller leaves through Exit1. needNav reports whether the caller
// still has to navigate to exit.
func (p *Port) Shift(dir Dir, bits int, tdi, tdo []byte, fill bool, exit tap.State) (needNav bool, err error) {
	return p.shift(dir, bits, tdi, tdo, fill, exit, true)
}

// ShiftRaw is Shift without pads, for whole-chain operations such as
// discovery.
func (p *Port) ShiftRaw(dir Dir, bits int, tdi, tdo []byte, fill bool, exit tap.State) (needNav bool, err error) {
	return p.shift(dir, bits, tdi, tdo, fill, exit, false)
}

func (p *Port) shift(dir Dir, bits int, tdi, tdo []byte, fill bool, exit tap.State, padded bool) (bool, error) {
	if p.state != dir.ShiftState() {
		return false, fmt.Errorf("%w: want %s, in %s", ErrNotInShift, dir.ShiftState(), p.state)
	}
	if bits <= 0 {
		return false, fmt.Errorf("port: shift of %d bits", bits)
	}
	n := jtag.BytesFor(bits)
	if tdi != nil && len(tdi) < n {
		return false, fmt.Errorf("%w: tdi has %d bytes, need %d", ErrShortBuffer, len(tdi), n)
	}
	if tdo != nil && len(tdo) < n {
		return false, fmt.Errorf("%w: tdo has %d bytes, need %d", ErrShortBuffer, len(tdo), n)
	}

	pre, post := 0, 0
	if padded {
		if dir == IR {
			pre, post = p.pads.IRPre, p.pads.IRPost
		} else {
			pre, post = p.pads.DRPre, p.pads.DRPost
		}
	}
	// IR pads load BYPASS (all ones) into the other devices.
	padTDI := dir == IR

	total := pre + bits + post
	leave := exit != dir.ShiftState()
	k := 0
	last := func() bool {
		k++
		return leave && k == total
	}

	for i := 0; i < pre; i++ {
		p.tick(last(), padTDI)
	}
	for i := 0; i < bits; i++ {
		b := fill
		if tdi != nil {
			b = jtag.Bit(tdi, i)
		}
		out := p.tick(last(), b)
		if tdo != nil {
			jtag.SetBit(tdo, i, out)
		}
	}
	for i := 0; i < post; i++ {
		p.tick(last(), padTDI)
	}

	return exit != p.state, p.Err()
}
