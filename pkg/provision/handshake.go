package provision

import (
	"fmt"
	"time"

	"github.com/OpenTraceLab/OpenTraceKey/pkg/jtag"
	"github.com/OpenTraceLab/OpenTraceKey/pkg/timing"
)

// FuseStateUnknownError reports a fuse whose blow pulse may or may not have
// happened. The fuse must be treated as possibly blown; retrying is unsafe.
type FuseStateUnknownError struct {
	Row int
	Bit int
	Err error
}

func (e *FuseStateUnknownError) Error() string {
	return fmt.Sprintf("provision: fuse row %d bit %d state unknown: %v", e.Row, e.Bit, e.Err)
}

func (e *FuseStateUnknownError) Unwrap() error {
	return e.Err
}

// handshake drives the external hardware module that supplies the fuse
// programming pulse.
type handshake struct {
	pins    jtag.Pins
	clock   timing.Clock
	timeout time.Duration
}

// pulse raises start, waits for ready, holds for FusePulseHold, drops start
// and waits for end.
func (h handshake) pulse() error {
	h.pins.Set(jtag.PinHWMStart, true)
	err := timing.WaitFor(h.clock, h.timeout, func() bool {
		return h.pins.Get(jtag.PinHWMReady)
	})
	if err != nil {
		h.pins.Set(jtag.PinHWMStart, false)
		return fmt.Errorf("%w: waiting for ready: %v", jtag.ErrHandshakeTimeout, err)
	}
	h.clock.Sleep(timing.FusePulseHold)
	h.pins.Set(jtag.PinHWMStart, false)

	err = timing.WaitFor(h.clock, h.timeout, func() bool {
		return h.pins.Get(jtag.PinHWMEnd)
	})
	if err != nil {
		return fmt.Errorf("%w: waiting for end: %v", jtag.ErrHandshakeTimeout, err)
	}
	return nil
}
