package port

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/OpenTraceLab/OpenTraceKey/pkg/jtag"
	"github.com/OpenTraceLab/OpenTraceKey/pkg/tap"
	"github.com/OpenTraceLab/OpenTraceKey/pkg/timing"
)

var allStates = func() []tap.State {
	out := make([]tap.State, tap.NumStates)
	for i := range out {
		out[i] = tap.State(i)
	}
	return out
}()

func TestNavigateAllPairs(t *testing.T) {
	for _, from := range allStates {
		for _, to := range allStates {
			sim := jtag.NewLoopbackPins()
			sim.Record = true
			p := New(sim)
			p.Navigate(from)
			sim.ResetCounters()

			p.Navigate(to)
			if p.State() != to {
				t.Fatalf("%s -> %s: port state %s", from, to, p.State())
			}

			want := tap.Lookup(from, to).Bits
			if sim.Clocks() != want {
				t.Fatalf("%s -> %s: %d clocks, want %d", from, to, sim.Clocks(), want)
			}

			state := from
			for _, tms := range sim.TMSBits() {
				state = tap.NextState(state, tms)
			}
			if state != to {
				t.Fatalf("%s -> %s: TMS trace lands in %s", from, to, state)
			}
		}
	}
}

func TestNavigateResetIsFiveOnes(t *testing.T) {
	sim := jtag.NewLoopbackPins()
	sim.Record = true
	p := New(sim)
	p.Navigate(tap.StateShiftDR)
	sim.ResetCounters()

	p.Navigate(tap.StateTestLogicReset)
	tms := sim.TMSBits()
	if len(tms) != 5 {
		t.Fatalf("reset took %d clocks, want 5", len(tms))
	}
	for i, b := range tms {
		if !b {
			t.Fatalf("TMS low on reset clock %d", i)
		}
	}
}

func TestNavigateSameStateIsNoop(t *testing.T) {
	sim := jtag.NewLoopbackPins()
	p := New(sim)
	p.Navigate(tap.StateRunTestIdle)
	sim.ResetCounters()
	p.Navigate(tap.StateRunTestIdle)
	if sim.Clocks() != 0 {
		t.Fatalf("navigating to the current state clocked %d times", sim.Clocks())
	}
}

func TestResetAlwaysClocks(t *testing.T) {
	sim := jtag.NewLoopbackPins()
	p := New(sim)
	p.Reset()
	if sim.Clocks() != 5 || p.State() != tap.StateTestLogicReset {
		t.Fatalf("Reset: clocks=%d state=%s", sim.Clocks(), p.State())
	}
}

func TestPulseHoldsState(t *testing.T) {
	sim := jtag.NewLoopbackPins()
	p := New(sim)
	p.Navigate(tap.StatePauseDR)
	sim.ResetCounters()
	p.Pulse(12)
	if sim.Clocks() != 12 || p.State() != tap.StatePauseDR {
		t.Fatalf("Pulse: clocks=%d state=%s", sim.Clocks(), p.State())
	}
}

func TestPulseHoldsReset(t *testing.T) {
	dev := jtag.NewSimTAP(0x13727093, 6, 0x09)
	sim := jtag.NewSimPins(jtag.NewSimChain(dev))
	sim.Record = true
	p := New(sim)
	p.Navigate(tap.StateRunTestIdle)
	p.Navigate(tap.StateTestLogicReset)
	sim.ResetCounters()

	p.Pulse(5)
	if sim.Clocks() != 5 || p.State() != tap.StateTestLogicReset {
		t.Fatalf("Pulse: clocks=%d state=%s", sim.Clocks(), p.State())
	}
	if dev.State() != tap.StateTestLogicReset {
		t.Fatalf("device left Test-Logic-Reset: %s", dev.State())
	}
	for i, tms := range sim.TMSBits() {
		if !tms {
			t.Fatalf("edge %d: TMS low in Test-Logic-Reset", i)
		}
	}
}

func TestShiftLoopback(t *testing.T) {
	for _, bits := range []int{1, 7, 8, 9, 64, 127} {
		sim := jtag.NewLoopbackPins()
		p := New(sim)
		p.Navigate(tap.StateShiftDR)

		n := jtag.BytesFor(bits)
		tdi := make([]byte, n)
		for i := range tdi {
			tdi[i] = byte(0xA5 ^ i*37)
		}
		// Bits beyond the shift length are not clocked.
		if r := bits % 8; r != 0 {
			tdi[n-1] &= byte(1<<uint(r)) - 1
		}
		tdo := make([]byte, n)
		sim.ResetCounters()

		needNav, err := p.Shift(DR, bits, tdi, tdo, false, tap.StateRunTestIdle)
		if err != nil {
			t.Fatalf("%d bits: %v", bits, err)
		}
		if !bytes.Equal(tdo, tdi) {
			t.Fatalf("%d bits: tdo %X, want %X", bits, tdo, tdi)
		}
		if sim.Clocks() != bits {
			t.Fatalf("%d bits: %d clocks", bits, sim.Clocks())
		}
		if p.State() != tap.StateExit1DR || !needNav {
			t.Fatalf("%d bits: state %s needNav %v", bits, p.State(), needNav)
		}
	}
}

func TestShiftStaysInShift(t *testing.T) {
	sim := jtag.NewLoopbackPins()
	p := New(sim)
	p.Navigate(tap.StateShiftIR)
	needNav, err := p.Shift(IR, 6, nil, nil, true, tap.StateShiftIR)
	if err != nil {
		t.Fatalf("Shift: %v", err)
	}
	if needNav || p.State() != tap.StateShiftIR {
		t.Fatalf("state %s needNav %v", p.State(), needNav)
	}
}

func TestShiftPads(t *testing.T) {
	sim := jtag.NewLoopbackPins()
	sim.Record = true
	p := New(sim)
	p.SetPads(Pads{IRPre: 3, IRPost: 5, DRPre: 3, DRPost: 5})
	p.Navigate(tap.StateShiftIR)
	sim.ResetCounters()

	tdi := []byte{0x00}
	tdo := []byte{0xFF}
	if _, err := p.Shift(IR, 6, tdi, tdo, false, tap.StateUpdateIR); err != nil {
		t.Fatalf("Shift: %v", err)
	}
	if sim.Clocks() != 6+8 {
		t.Fatalf("clocks = %d, want 14", sim.Clocks())
	}
	// Loopback returns the pad TDI (ones) during pads; none of it may leak
	// into the caller's buffer.
	if tdo[0]&0x3F != 0 {
		t.Fatalf("tdo = %08b, pad bits leaked", tdo[0])
	}
	trace := sim.Trace()
	for i, e := range trace {
		inPad := i < 3 || i >= 9
		if inPad && !e.TDI {
			t.Fatalf("IR pad bit %d not BYPASS", i)
		}
		if e.TMS != (i == len(trace)-1) {
			t.Fatalf("TMS=%v on clock %d", e.TMS, i)
		}
	}
	if p.State() != tap.StateExit1IR {
		t.Fatalf("state = %s", p.State())
	}
}

func TestShiftRawIgnoresPads(t *testing.T) {
	sim := jtag.NewLoopbackPins()
	p := New(sim)
	p.SetPads(Pads{DRPre: 2, DRPost: 2})
	p.Navigate(tap.StateShiftDR)
	sim.ResetCounters()
	if _, err := p.ShiftRaw(DR, 8, nil, nil, true, tap.StateShiftDR); err != nil {
		t.Fatalf("ShiftRaw: %v", err)
	}
	if sim.Clocks() != 8 {
		t.Fatalf("clocks = %d, want 8", sim.Clocks())
	}
}

func TestShiftErrors(t *testing.T) {
	p := New(jtag.NewLoopbackPins())
	if _, err := p.Shift(DR, 8, nil, nil, false, tap.StateRunTestIdle); !errors.Is(err, ErrNotInShift) {
		t.Fatalf("shift outside ShiftDR: %v", err)
	}
	p.Navigate(tap.StateShiftIR)
	if _, err := p.Shift(DR, 8, nil, nil, false, tap.StateRunTestIdle); !errors.Is(err, ErrNotInShift) {
		t.Fatalf("DR shift in ShiftIR: %v", err)
	}
	if _, err := p.Shift(IR, 9, make([]byte, 1), nil, false, tap.StateShiftIR); !errors.Is(err, ErrShortBuffer) {
		t.Fatalf("short tdi: %v", err)
	}
	if _, err := p.Shift(IR, 0, nil, nil, false, tap.StateShiftIR); err == nil {
		t.Fatalf("expected error for zero bits")
	}
	if p.State() != tap.StateShiftIR {
		t.Fatalf("failed shifts must not clock, state %s", p.State())
	}
}

func TestHalfPeriodUsesClock(t *testing.T) {
	clk := timing.NewFake(0)
	p := New(jtag.NewLoopbackPins(), WithClock(clk), WithHalfPeriod(5*time.Microsecond))
	p.Pulse(4)
	if got := clk.Slept(); got != 40*time.Microsecond {
		t.Fatalf("slept %v, want 40µs", got)
	}
}
