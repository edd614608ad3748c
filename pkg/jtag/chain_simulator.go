package jtag

import "github.com/OpenTraceLab/OpenTraceKey/pkg/tap"

// SimTAP simulates one device on a JTAG chain at the bit level. Each device
// tracks its own controller state, instruction register and the data register
// selected by that instruction.
type SimTAP struct {
	// IDCode is captured when IDCODE is selected. Zero models a device
	// without an IDCODE register, which selects BYPASS after reset.
	IDCode uint32

	// IDCodeInstr is the opcode that selects the IDCODE register.
	IDCodeInstr uint64

	IRLen int

	// Capture, when set, supplies the data register for instructions other
	// than IDCODE and BYPASS. Returning ok=false selects BYPASS.
	Capture func(ir uint64) (value []bool, ok bool)

	// Update is called in Update-DR with the shifted register contents.
	Update func(ir uint64, value []bool)

	// OnIR is called in Update-IR with the new instruction.
	OnIR func(ir uint64)

	// OnIdle is called for each clock spent in Run-Test/Idle.
	OnIdle func(ir uint64)

	sm    *tap.StateMachine
	ir    uint64
	shift []bool
}

// NewSimTAP returns a device with the given IDCODE and IR length.
func NewSimTAP(idcode uint32, irLen int, idcodeInstr uint64) *SimTAP {
	t := &SimTAP{IDCode: idcode, IRLen: irLen, IDCodeInstr: idcodeInstr}
	t.init()
	return t
}

// NewBypassTAP returns a device with no IDCODE register.
func NewBypassTAP(irLen int) *SimTAP {
	return NewSimTAP(0, irLen, 0)
}

// State returns the device's controller state.
func (t *SimTAP) State() tap.State {
	t.init()
	return t.sm.State()
}

// IR returns the latched instruction.
func (t *SimTAP) IR() uint64 {
	t.init()
	return t.ir
}

func (t *SimTAP) init() {
	if t.sm == nil {
		t.sm = tap.NewStateMachine()
		t.reset()
	}
}

func (t *SimTAP) bypassInstr() uint64 {
	return uint64(1)<<uint(t.IRLen) - 1
}

func (t *SimTAP) reset() {
	if t.IDCode != 0 {
		t.ir = t.IDCodeInstr
	} else {
		t.ir = t.bypassInstr()
	}
}

func (t *SimTAP) tdo() bool {
	t.init()
	switch t.sm.State() {
	case tap.StateShiftDR, tap.StateShiftIR:
		if len(t.shift) > 0 {
			return t.shift[0]
		}
	}
	return true
}

func (t *SimTAP) clock(tms, tdi bool) {
	t.init()
	state := t.sm.State()
	if state == tap.StateShiftDR || state == tap.StateShiftIR {
		if len(t.shift) > 0 {
			t.shift = append(t.shift[1:], tdi)
		}
	}
	if state == tap.StateRunTestIdle && !tms && t.OnIdle != nil {
		t.OnIdle(t.ir)
	}

	switch t.sm.Clock(tms) {
	case tap.StateTestLogicReset:
		t.reset()
	case tap.StateCaptureIR:
		t.shift = make([]bool, t.IRLen)
		t.shift[0] = true
	case tap.StateUpdateIR:
		t.ir = 0
		for i, b := range t.shift {
			if b {
				t.ir |= 1 << uint(i)
			}
		}
		if t.OnIR != nil {
			t.OnIR(t.ir)
		}
	case tap.StateCaptureDR:
		t.shift = t.captureDR()
	case tap.StateUpdateDR:
		if t.Update != nil && t.ir != t.bypassInstr() {
			t.Update(t.ir, append([]bool(nil), t.shift...))
		}
	}
}

func (t *SimTAP) captureDR() []bool {
	if t.ir == t.bypassInstr() {
		return []bool{false}
	}
	if t.IDCode != 0 && t.ir == t.IDCodeInstr {
		return Uint32ToBools(t.IDCode)
	}
	if t.Capture != nil {
		if v, ok := t.Capture(t.ir); ok && len(v) > 0 {
			return append([]bool(nil), v...)
		}
	}
	return []bool{false}
}

// SimChain wires SimTAPs into one scan chain. TAPs[0] is closest to TDO;
// the last entry receives TDI from the port.
type SimChain struct {
	TAPs []*SimTAP
}

// NewSimChain builds a chain from devices ordered TDO first.
func NewSimChain(taps ...*SimTAP) *SimChain {
	for _, t := range taps {
		t.init()
	}
	return &SimChain{TAPs: taps}
}

// TDO implements SimTarget. An empty chain reads high.
func (c *SimChain) TDO() bool {
	if len(c.TAPs) == 0 {
		return true
	}
	return c.TAPs[0].tdo()
}

// Clock implements SimTarget. Every device samples its TDI from the output
// its neighbour drove before the edge.
func (c *SimChain) Clock(tms, tdi bool) {
	n := len(c.TAPs)
	outs := make([]bool, n)
	for i, t := range c.TAPs {
		outs[i] = t.tdo()
	}
	for i, t := range c.TAPs {
		in := tdi
		if i+1 < n {
			in = outs[i+1]
		}
		t.clock(tms, in)
	}
}
