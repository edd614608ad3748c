package svf

import (
	"fmt"

	"github.com/OpenTraceLab/OpenTraceKey/pkg/jtag"
	"github.com/OpenTraceLab/OpenTraceKey/pkg/port"
	"github.com/OpenTraceLab/OpenTraceKey/pkg/seq"
	"github.com/OpenTraceLab/OpenTraceKey/pkg/timing"
)

// Play runs the program on p, stopping at the first failure. Scans carry
// their own header and trailer bits, so the port's pads are not applied.
// A FREQUENCY statement changes the port's TCK rate for the rest of the
// run and beyond.
func (pr *Program) Play(p *port.Port) error {
	for _, st := range pr.Steps {
		if err := play(p, st.Op); err != nil {
			return fmt.Errorf("svf: line %d: %w", st.Line, err)
		}
	}
	return nil
}

func play(p *port.Port, op Op) error {
	switch op := op.(type) {
	case PathOp:
		sq := seq.New()
		for _, s := range op.States {
			if err := sq.AddStateChange(s, 0); err != nil {
				return err
			}
		}
		return seq.Run(p, sq)

	case ScanOp:
		return scan(p, op)

	case IdleOp:
		sq := seq.New()
		if err := sq.AddStateChange(op.State, op.Clocks); err != nil {
			return err
		}
		if err := seq.Run(p, sq); err != nil {
			return err
		}
		p.Clock().Sleep(op.Wait)
		sq.Clear()
		if err := sq.AddStateChange(op.End, 0); err != nil {
			return err
		}
		return seq.Run(p, sq)

	case FrequencyOp:
		p.SetHalfPeriod(timing.HalfPeriod(op.Frequency))
		p.Logger().Printf("svf: TCK %s", op.Frequency)
		return nil
	}
	return fmt.Errorf("%w: %T", ErrUnsupported, op)
}

func scan(p *port.Port, op ScanOp) error {
	sq := seq.New()
	tdi, tdo, err := sq.AddShift(seq.NoPad, op.Dir, op.Bits, true, op.TDO != nil, op.Exit)
	if err != nil {
		return err
	}
	copy(sq.Buf(tdi), op.TDI)
	if err := seq.Run(p, sq); err != nil {
		return err
	}
	if op.TDO == nil {
		return nil
	}
	got := sq.Buf(tdo)
	for i := 0; i < op.Bits; i++ {
		if jtag.Bit(op.Mask, i) && jtag.Bit(got, i) != jtag.Bit(op.TDO, i) {
			return fmt.Errorf("%w: %s bit %d: got %s, want %s mask %s", ErrTDOMismatch, op.Dir, i,
				formatHex(got, op.Bits), formatHex(op.TDO, op.Bits), formatHex(op.Mask, op.Bits))
		}
	}
	return nil
}
