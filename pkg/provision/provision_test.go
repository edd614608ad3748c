package provision

import (
	"errors"
	"testing"
	"time"

	"github.com/OpenTraceLab/OpenTraceKey/pkg/chain"
	"github.com/OpenTraceLab/OpenTraceKey/pkg/jtag"
	"github.com/OpenTraceLab/OpenTraceKey/pkg/port"
	"github.com/OpenTraceLab/OpenTraceKey/pkg/timing"
)

const (
	zynq020 = 0x13727093
	armDAP  = 0x4BA00477
)

type rig struct {
	dev   *SimDevice
	pins  *jtag.SimPins
	clock *timing.Fake
	s     *chain.Session
}

// newRig puts a simulated Zynq PL TAP nearest TDO with the ARM DAP behind
// it, scans the chain and selects the PL.
func newRig(t *testing.T) *rig {
	t.Helper()
	dev := NewSimDevice(zynq020)
	pins := dev.Pins(jtag.NewSimTAP(armDAP, 4, 0x0E))
	clk := timing.NewFake(time.Microsecond)
	s := chain.NewSession(port.New(pins, port.WithClock(clk)))
	if err := s.Scan(); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	n, err := s.SelectProgrammable()
	if err != nil {
		t.Fatalf("SelectProgrammable: %v", err)
	}
	if n.Position != 0 {
		t.Fatalf("selected %v", n)
	}
	return &rig{dev: dev, pins: pins, clock: clk, s: s}
}

func TestSLRInstruction(t *testing.T) {
	tests := []struct {
		op      Opcode
		n, segs int
		want    uint64
	}{
		{FuseCTS, 0, 1, 0x30},
		{ISCProgram, 1, 3, 0x3F47F},
		{ISCRead, 0, 2, 0xFD5},
	}
	for _, tt := range tests {
		if got := SLRInstruction(tt.op, tt.n, tt.segs); got != tt.want {
			t.Fatalf("SLRInstruction(%s, %d, %d) = %#x, want %#x", tt.op, tt.n, tt.segs, got, tt.want)
		}
	}
}

func TestTargetRequiresProgrammableNode(t *testing.T) {
	r := newRig(t)
	if err := r.s.Select(1); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if _, err := NewBBRAM(r.s); !errors.Is(err, ErrNotProgrammable) {
		t.Fatalf("NewBBRAM on the DAP = %v", err)
	}
	if _, err := NewFuseProgrammer(chain.NewSession(port.New(jtag.NewLoopbackPins()))); !errors.Is(err, ErrNoTarget) {
		t.Fatalf("NewFuseProgrammer without selection = %v", err)
	}
}
