package tap

// Transition is a precomputed move between two TAP states. TMS holds the
// pattern to clock, bit 0 first; Bits is how many TCK pulses it takes.
type Transition struct {
	From State
	To   State
	TMS  uint8
	Bits int
}

// Bit returns the TMS level for the i-th clock of the transition.
func (t Transition) Bit(i int) bool {
	return t.TMS&(1<<uint(i)) != 0
}

type move struct {
	tms  uint8
	bits uint8
}

// moves is indexed [from][to], columns in State order. Entries on the
// diagonal are empty. Every move into TestLogicReset is the five-clock
// TMS-high reset regardless of the shorter path that may exist.
var moves = [NumStates][NumStates]move{
	// from TestLogicReset
	{{0x00, 0}, {0x00, 1}, {0x02, 2}, {0x02, 3}, {0x02, 4}, {0x0A, 4}, {0x0A, 5}, {0x2A, 6}, {0x1A, 5}, {0x06, 3}, {0x06, 4}, {0x06, 5}, {0x16, 5}, {0x16, 6}, {0x56, 7}, {0x36, 6}},
	// from RunTestIdle
	{{0x1F, 5}, {0x00, 0}, {0x01, 1}, {0x01, 2}, {0x01, 3}, {0x05, 3}, {0x05, 4}, {0x15, 5}, {0x0D, 4}, {0x03, 2}, {0x03, 3}, {0x03, 4}, {0x0B, 4}, {0x0B, 5}, {0x2B, 6}, {0x1B, 5}},
	// from SelectDRScan
	{{0x1F, 5}, {0x03, 3}, {0x00, 0}, {0x00, 1}, {0x00, 2}, {0x02, 2}, {0x02, 3}, {0x0A, 4}, {0x06, 3}, {0x01, 1}, {0x01, 2}, {0x01, 3}, {0x05, 3}, {0x05, 4}, {0x15, 5}, {0x0D, 4}},
	// from CaptureDR
	{{0x1F, 5}, {0x03, 3}, {0x07, 3}, {0x00, 0}, {0x00, 1}, {0x01, 1}, {0x01, 2}, {0x05, 3}, {0x03, 2}, {0x0F, 4}, {0x0F, 5}, {0x0F, 6}, {0x2F, 6}, {0x2F, 7}, {0xAF, 8}, {0x6F, 7}},
	// from ShiftDR
	{{0x1F, 5}, {0x03, 3}, {0x07, 3}, {0x07, 4}, {0x00, 0}, {0x01, 1}, {0x01, 2}, {0x05, 3}, {0x03, 2}, {0x0F, 4}, {0x0F, 5}, {0x0F, 6}, {0x2F, 6}, {0x2F, 7}, {0xAF, 8}, {0x6F, 7}},
	// from Exit1DR
	{{0x1F, 5}, {0x01, 2}, {0x03, 2}, {0x03, 3}, {0x02, 3}, {0x00, 0}, {0x00, 1}, {0x02, 2}, {0x01, 1}, {0x07, 3}, {0x07, 4}, {0x07, 5}, {0x17, 5}, {0x17, 6}, {0x57, 7}, {0x37, 6}},
	// from PauseDR
	{{0x1F, 5}, {0x03, 3}, {0x07, 3}, {0x07, 4}, {0x01, 2}, {0x05, 3}, {0x00, 0}, {0x01, 1}, {0x03, 2}, {0x0F, 4}, {0x0F, 5}, {0x0F, 6}, {0x2F, 6}, {0x2F, 7}, {0xAF, 8}, {0x6F, 7}},
	// from Exit2DR
	{{0x1F, 5}, {0x01, 2}, {0x03, 2}, {0x03, 3}, {0x00, 1}, {0x02, 2}, {0x02, 3}, {0x00, 0}, {0x01, 1}, {0x07, 3}, {0x07, 4}, {0x07, 5}, {0x17, 5}, {0x17, 6}, {0x57, 7}, {0x37, 6}},
	// from UpdateDR
	{{0x1F, 5}, {0x00, 1}, {0x01, 1}, {0x01, 2}, {0x01, 3}, {0x05, 3}, {0x05, 4}, {0x15, 5}, {0x00, 0}, {0x03, 2}, {0x03, 3}, {0x03, 4}, {0x0B, 4}, {0x0B, 5}, {0x2B, 6}, {0x1B, 5}},
	// from SelectIRScan
	{{0x1F, 5}, {0x01, 2}, {0x05, 3}, {0x05, 4}, {0x05, 5}, {0x15, 5}, {0x15, 6}, {0x55, 7}, {0x35, 6}, {0x00, 0}, {0x00, 1}, {0x00, 2}, {0x02, 2}, {0x02, 3}, {0x0A, 4}, {0x06, 3}},
	// from CaptureIR
	{{0x1F, 5}, {0x03, 3}, {0x07, 3}, {0x07, 4}, {0x07, 5}, {0x17, 5}, {0x17, 6}, {0x57, 7}, {0x37, 6}, {0x0F, 4}, {0x00, 0}, {0x00, 1}, {0x01, 1}, {0x01, 2}, {0x05, 3}, {0x03, 2}},
	// from ShiftIR
	{{0x1F, 5}, {0x03, 3}, {0x07, 3}, {0x07, 4}, {0x07, 5}, {0x17, 5}, {0x17, 6}, {0x57, 7}, {0x37, 6}, {0x0F, 4}, {0x0F, 5}, {0x00, 0}, {0x01, 1}, {0x01, 2}, {0x05, 3}, {0x03, 2}},
	// from Exit1IR
	{{0x1F, 5}, {0x01, 2}, {0x03, 2}, {0x03, 3}, {0x03, 4}, {0x0B, 4}, {0x0B, 5}, {0x2B, 6}, {0x1B, 5}, {0x07, 3}, {0x07, 4}, {0x02, 3}, {0x00, 0}, {0x00, 1}, {0x02, 2}, {0x01, 1}},
	// from PauseIR
	{{0x1F, 5}, {0x03, 3}, {0x07, 3}, {0x07, 4}, {0x07, 5}, {0x17, 5}, {0x17, 6}, {0x57, 7}, {0x37, 6}, {0x0F, 4}, {0x0F, 5}, {0x01, 2}, {0x05, 3}, {0x00, 0}, {0x01, 1}, {0x03, 2}},
	// from Exit2IR
	{{0x1F, 5}, {0x01, 2}, {0x03, 2}, {0x03, 3}, {0x03, 4}, {0x0B, 4}, {0x0B, 5}, {0x2B, 6}, {0x1B, 5}, {0x07, 3}, {0x07, 4}, {0x00, 1}, {0x02, 2}, {0x02, 3}, {0x00, 0}, {0x01, 1}},
	// from UpdateIR
	{{0x1F, 5}, {0x00, 1}, {0x01, 1}, {0x01, 2}, {0x01, 3}, {0x05, 3}, {0x05, 4}, {0x15, 5}, {0x0D, 4}, {0x03, 2}, {0x03, 3}, {0x03, 4}, {0x0B, 4}, {0x0B, 5}, {0x2B, 6}, {0x00, 0}},
}

// Lookup returns the compiled-in transition from one state to another.
func Lookup(from, to State) Transition {
	m := moves[from][to]
	return Transition{From: from, To: to, TMS: m.tms, Bits: int(m.bits)}
}

// ResetTransition is the guaranteed reset: five clocks with TMS high reach
// Test-Logic-Reset from any state.
var ResetTransition = Transition{To: StateTestLogicReset, TMS: 0x1F, Bits: 5}
