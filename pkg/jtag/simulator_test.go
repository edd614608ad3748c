package jtag

import "testing"

// clock drives one TCK pulse the same way the port does.
func clock(p Pins, tms, tdi bool) bool {
	p.Set(PinTCK, false)
	p.Set(PinTMS, tms)
	p.Set(PinTDI, tdi)
	tdo := p.Get(PinTDO)
	p.Set(PinTCK, true)
	return tdo
}

func TestSimPinsLoopback(t *testing.T) {
	sim := NewLoopbackPins()
	sim.Record = true
	pattern := []bool{true, false, false, true, true}
	for _, b := range pattern {
		if got := clock(sim, false, b); got != b {
			t.Fatalf("loopback TDO = %v, want %v", got, b)
		}
	}
	if sim.Clocks() != len(pattern) {
		t.Fatalf("Clocks() = %d, want %d", sim.Clocks(), len(pattern))
	}
	if len(sim.Trace()) != len(pattern) {
		t.Fatalf("trace length = %d", len(sim.Trace()))
	}
	sim.ResetCounters()
	if sim.Clocks() != 0 || len(sim.Trace()) != 0 {
		t.Fatalf("ResetCounters did not clear state")
	}
}

func TestSimPinsFloatingTDO(t *testing.T) {
	sim := NewSimPins(nil)
	if !clock(sim, false, false) {
		t.Fatalf("unconnected TDO should read high")
	}
	if sim.Supports(PinHWMReady) {
		t.Fatalf("handshake lines reported without a fuse module")
	}
}

func TestSimFuseModuleHandshake(t *testing.T) {
	var blown int
	fuse := &SimFuseModule{ReadyAfter: 2, EndAfter: 1, OnPulse: func() { blown++ }}
	sim := NewLoopbackPins()
	sim.Fuse = fuse

	if sim.Get(PinHWMReady) {
		t.Fatalf("ready before start")
	}
	sim.Set(PinHWMStart, true)
	polls := 0
	for !sim.Get(PinHWMReady) {
		polls++
	}
	if polls != 2 {
		t.Fatalf("ready after %d polls, want 2", polls)
	}
	sim.Set(PinHWMStart, false)
	if blown != 1 || fuse.Pulses() != 1 {
		t.Fatalf("pulse not counted: blown=%d pulses=%d", blown, fuse.Pulses())
	}
	if sim.Get(PinHWMEnd) {
		t.Fatalf("end asserted too early")
	}
	if !sim.Get(PinHWMEnd) {
		t.Fatalf("end not asserted")
	}
}

func TestSimFuseModuleAbortedPulse(t *testing.T) {
	fuse := &SimFuseModule{NeverReady: true}
	sim := NewLoopbackPins()
	sim.Fuse = fuse
	sim.Set(PinHWMStart, true)
	if sim.Get(PinHWMReady) {
		t.Fatalf("wedged module reported ready")
	}
	sim.Set(PinHWMStart, false)
	if fuse.Pulses() != 0 || fuse.Starts() != 1 {
		t.Fatalf("pulses=%d starts=%d", fuse.Pulses(), fuse.Starts())
	}
	if sim.Get(PinHWMEnd) {
		t.Fatalf("end asserted without a pulse")
	}
}
