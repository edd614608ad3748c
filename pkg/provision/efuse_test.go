package provision

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/OpenTraceLab/OpenTraceKey/pkg/jtag"
	"github.com/OpenTraceLab/OpenTraceKey/pkg/tap"
	"github.com/OpenTraceLab/OpenTraceKey/pkg/timing"
)

func TestFuseCommandLayout(t *testing.T) {
	all := FuseCommand{Row: 31, Bit: 31, Page: 3, Redundant: true, Program: true}
	if got, want := all.Encode(), uint64(0x00003FFFA08A28AC); got != want {
		t.Fatalf("Encode = %#016x, want %#016x", got, want)
	}
	read := FuseCommand{Row: 2, Bit: 0, Page: 1}
	if got, want := read.Encode(), uint64(1)<<42|uint64(2)<<37|uint64(FuseMagic); got != want {
		t.Fatalf("Encode = %#016x, want %#016x", got, want)
	}
	back, ok := DecodeFuseCommand(all.Encode())
	if !ok || back != all {
		t.Fatalf("DecodeFuseCommand = %+v, %v", back, ok)
	}
	if _, ok := DecodeFuseCommand(0); ok {
		t.Fatalf("zero word accepted")
	}
}

func TestReadRow(t *testing.T) {
	r := newRig(t)
	r.dev.Fuses[0][3] = 0xDEADBEEF
	r.dev.Fuses[2][3] = 0x0000F00D
	f, err := NewFuseProgrammer(r.s)
	if err != nil {
		t.Fatalf("NewFuseProgrammer: %v", err)
	}
	got, err := f.ReadRow(3, 0, false)
	if err != nil || got != 0xDEADBEEF {
		t.Fatalf("ReadRow(3, 0) = %#08x, %v", got, err)
	}
	got, err = f.ReadRow(3, 2, false)
	if err != nil || got != 0x0000F00D {
		t.Fatalf("ReadRow(3, 2) = %#08x, %v", got, err)
	}
	if _, err := f.ReadRow(FuseRows, 0, false); !errors.Is(err, jtag.ErrBuilder) {
		t.Fatalf("ReadRow out of range = %v", err)
	}
}

func TestProgramRow(t *testing.T) {
	r := newRig(t)
	f, err := NewFuseProgrammer(r.s)
	if err != nil {
		t.Fatalf("NewFuseProgrammer: %v", err)
	}
	back, err := f.ProgramRow(5, 1, 0x80000005, false)
	if err != nil || back != 0x80000005 {
		t.Fatalf("ProgramRow = %#08x, %v", back, err)
	}
	if got := r.dev.Fuses[1][5]; got != 0x80000005 {
		t.Fatalf("fuse row = %#08x", got)
	}
	if r.dev.Fuse.Pulses() != 3 {
		t.Fatalf("pulses = %d, want 3", r.dev.Fuse.Pulses())
	}
	if r.s.Port.State() != tap.StateTestLogicReset {
		t.Fatalf("port left in %s", r.s.Port.State())
	}
	if r.clock.Slept() < 3*timing.FusePulseHold {
		t.Fatalf("pulse hold not applied: slept %v", r.clock.Slept())
	}
	got, err := f.ReadRow(5, 1, false)
	if err != nil || got != 0x80000005 {
		t.Fatalf("ReadRow after program = %#08x, %v", got, err)
	}
}

func TestProgramRowReportsUnblownBits(t *testing.T) {
	r := newRig(t)
	r.dev.Fuses[2][9] = 0x100
	r.dev.Stuck[2][9] = 0x12
	f, err := NewFuseProgrammer(r.s)
	if err != nil {
		t.Fatalf("NewFuseProgrammer: %v", err)
	}
	back, err := f.ProgramRow(9, 2, 0x113, false)

	var verify *FuseVerifyError
	if !errors.As(err, &verify) {
		t.Fatalf("ProgramRow = %v, want FuseVerifyError", err)
	}
	if !errors.Is(err, jtag.ErrVerificationMismatch) {
		t.Fatalf("error does not wrap ErrVerificationMismatch: %v", err)
	}
	if back != 0x101 || verify.Got != 0x101 || verify.Want != 0x113 {
		t.Fatalf("readback = %#08x, error = %+v", back, verify)
	}
	if diff := cmp.Diff([]int{1, 4}, verify.Missing); diff != "" {
		t.Fatalf("unblown bits (-want +got):\n%s", diff)
	}
	if r.dev.Fuse.Pulses() != 4 {
		t.Fatalf("pulses = %d, want 4", r.dev.Fuse.Pulses())
	}
	if r.s.Port.State() != tap.StateTestLogicReset {
		t.Fatalf("port left in %s", r.s.Port.State())
	}
}

func TestProgramBitReadyTimeout(t *testing.T) {
	r := newRig(t)
	r.dev.Fuse.NeverReady = true
	f, err := NewFuseProgrammer(r.s)
	if err != nil {
		t.Fatalf("NewFuseProgrammer: %v", err)
	}
	_, err = f.ProgramRow(7, 0, 0x6, false)

	var unknown *FuseStateUnknownError
	if !errors.As(err, &unknown) {
		t.Fatalf("ProgramRow = %v, want FuseStateUnknownError", err)
	}
	if unknown.Row != 7 || unknown.Bit != 1 {
		t.Fatalf("unknown fuse = row %d bit %d", unknown.Row, unknown.Bit)
	}
	if !errors.Is(err, jtag.ErrHandshakeTimeout) {
		t.Fatalf("error does not wrap ErrHandshakeTimeout: %v", err)
	}
	if r.dev.Fuse.Starts() != 1 {
		t.Fatalf("programming continued after a timeout: %d starts", r.dev.Fuse.Starts())
	}
	if r.pins.Get(jtag.PinHWMStart) {
		t.Fatalf("start left high")
	}
	if r.s.Port.State() != tap.StateTestLogicReset {
		t.Fatalf("port left in %s", r.s.Port.State())
	}
}

func TestProgramBitEndTimeout(t *testing.T) {
	r := newRig(t)
	r.dev.Fuse.NeverEnd = true
	f, err := NewFuseProgrammer(r.s)
	if err != nil {
		t.Fatalf("NewFuseProgrammer: %v", err)
	}
	err = f.ProgramBit(1, 4, 0, false)
	var unknown *FuseStateUnknownError
	if !errors.As(err, &unknown) || !errors.Is(err, jtag.ErrHandshakeTimeout) {
		t.Fatalf("ProgramBit = %v", err)
	}
	if r.dev.Fuses[0][1] != 1<<4 {
		t.Fatalf("pulse was delivered, fuse should read blown")
	}
}

func TestProgramBitNeedsHandshakePins(t *testing.T) {
	r := newRig(t)
	r.pins.Fuse = nil
	f, err := NewFuseProgrammer(r.s)
	if err != nil {
		t.Fatalf("NewFuseProgrammer: %v", err)
	}
	r.pins.ResetCounters()
	if err := f.ProgramBit(0, 0, 0, false); !errors.Is(err, jtag.ErrPinConfig) {
		t.Fatalf("ProgramBit without handshake lines = %v", err)
	}
	if r.pins.Clocks() != 0 {
		t.Fatalf("%d clocks issued before the configuration check", r.pins.Clocks())
	}
}
