package jtag

import (
	"testing"

	"github.com/OpenTraceLab/OpenTraceKey/pkg/tap"
)

func clockTMS(p Pins, tms ...bool) {
	for _, b := range tms {
		clock(p, b, false)
	}
}

func TestSimChainIDCodeScan(t *testing.T) {
	const id = 0x13631093
	dev := NewSimTAP(id, 6, 0x09)
	chain := NewSimChain(dev, NewBypassTAP(4))
	pins := NewSimPins(chain)

	clockTMS(pins, false, true, false, false)
	if dev.State() != tap.StateShiftDR {
		t.Fatalf("device state = %s, want ShiftDR", dev.State())
	}

	var got []bool
	for i := 0; i < 36; i++ {
		got = append(got, clock(pins, false, true))
	}
	if v := uint32(BoolsToUint64(got[:32])); v != id {
		t.Fatalf("captured IDCODE %#08x, want %#08x", v, id)
	}
	if got[32] {
		t.Fatalf("bypass bit should capture 0")
	}
	// TDI ones arrive after passing through both devices.
	if !got[33] || !got[34] {
		t.Fatalf("TDI pattern not propagated: %v", got[32:])
	}
}

func TestSimChainIRCaptureAndBypass(t *testing.T) {
	dev := NewSimTAP(0x13631093, 6, 0x09)
	other := NewBypassTAP(4)
	var latched []uint64
	dev.OnIR = func(ir uint64) { latched = append(latched, ir) }
	pins := NewSimPins(NewSimChain(dev, other))

	clockTMS(pins, false, true, true, false, false)
	if dev.State() != tap.StateShiftIR {
		t.Fatalf("state = %s, want ShiftIR", dev.State())
	}

	var captured []bool
	for i := 0; i < 10; i++ {
		captured = append(captured, clock(pins, i == 9, true))
	}
	want := []bool{true, false, false, false, false, false, true, false, false, false}
	for i := range want {
		if captured[i] != want[i] {
			t.Fatalf("IR capture = %v, want %v", captured, want)
		}
	}

	clockTMS(pins, true, false)
	if len(latched) != 1 || latched[0] != 0x3F {
		t.Fatalf("latched IR = %v, want [0x3f]", latched)
	}
	if other.IR() != 0xF {
		t.Fatalf("bypass device IR = %#x", other.IR())
	}

	clockTMS(pins, true, false, false)
	if clock(pins, false, true) || clock(pins, false, true) {
		t.Fatalf("two bypass registers should shift out zeros first")
	}
	if !clock(pins, false, true) {
		t.Fatalf("TDI did not propagate after two bypass bits")
	}
}

func TestSimTAPCaptureHook(t *testing.T) {
	dev := NewSimTAP(0x13631093, 6, 0x09)
	var updated []bool
	dev.Capture = func(ir uint64) ([]bool, bool) {
		if ir != 0x30 {
			return nil, false
		}
		return []bool{true, true, false, true}, true
	}
	dev.Update = func(ir uint64, v []bool) { updated = v }
	pins := NewSimPins(NewSimChain(dev))

	clockTMS(pins, false, true, true, false, false)
	for i := 0; i < 6; i++ {
		clock(pins, i == 5, 0x30&(1<<i) != 0)
	}
	clockTMS(pins, true, true, false, false)

	var got []bool
	for i := 0; i < 4; i++ {
		got = append(got, clock(pins, i == 3, false))
	}
	clockTMS(pins, true)
	if BoolsToUint64(got) != 0xB {
		t.Fatalf("captured %v, want 1101", got)
	}
	if len(updated) != 4 || BoolsToUint64(updated) != 0 {
		t.Fatalf("update saw %v, want four zeros", updated)
	}
}
