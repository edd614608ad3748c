package seq

import (
	"fmt"

	"github.com/OpenTraceLab/OpenTraceKey/pkg/port"
)

// Run executes s on p in order. The first failure stops the sequence; the
// port keeps whatever state it reached so the caller can decide how to
// recover. A sequence runs once; Clear it to build and run again.
func Run(p *port.Port, s *Sequence) error {
	if s.deleted {
		return ErrDeleted
	}
	if s.ran {
		return ErrAlreadyRun
	}
	s.ran = true

	for i, c := range s.cmds {
		if err := s.exec(p, c); err != nil {
			return fmt.Errorf("seq: command %d: %w", i, err)
		}
		if err := p.Err(); err != nil {
			return fmt.Errorf("seq: command %d: %w", i, err)
		}
	}
	return nil
}

func (s *Sequence) exec(p *port.Port, c Command) error {
	switch c := c.(type) {
	case SetState:
		p.Navigate(c.State)
		p.Pulse(c.IdleClocks)
		return nil

	case Shift:
		var tdi, tdo []byte
		if c.TDI != NoBuffer {
			tdi = s.Buf(c.TDI)
		}
		if c.TDO != NoBuffer {
			tdo = s.Buf(c.TDO)
		}
		p.Navigate(c.Dir.ShiftState())
		shift := p.Shift
		if c.Flags&NoPad != 0 {
			shift = p.ShiftRaw
		}
		needNav, err := shift(c.Dir, c.Bits, tdi, tdo, c.Flags&FillOnes != 0, c.Exit)
		if err != nil {
			return err
		}
		if needNav {
			p.Navigate(c.Exit)
		}
		return nil
	}
	return fmt.Errorf("seq: unknown command %T", c)
}
