// Package provision programs AES keys into Xilinx configuration logic: eFUSE
// rows through FUSE_CTS and battery-backed RAM through the ISC instructions.
package provision

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/OpenTraceLab/OpenTraceKey/pkg/chain"
	"github.com/OpenTraceLab/OpenTraceKey/pkg/seq"
	"github.com/OpenTraceLab/OpenTraceKey/pkg/tap"
)

// Opcode is a 6-bit configuration instruction.
type Opcode uint8

const (
	IDCODE        Opcode = 0x09
	JPROGRAM      Opcode = 0x0B
	ISCEnable     Opcode = 0x10
	ISCProgram    Opcode = 0x11
	ISCProgramKey Opcode = 0x12
	ISCNoop       Opcode = 0x14
	ISCRead       Opcode = 0x15
	ISCDisable    Opcode = 0x16
	FuseCTS       Opcode = 0x30
	Bypass        Opcode = 0x3F
)

// SegmentIRLen is the IR length of one configuration segment.
const SegmentIRLen = 6

var opcodeNames = map[Opcode]string{
	IDCODE:        "IDCODE",
	JPROGRAM:      "JPROGRAM",
	ISCEnable:     "ISC_ENABLE",
	ISCProgram:    "ISC_PROGRAM",
	ISCProgramKey: "ISC_PROGRAM_KEY",
	ISCNoop:       "ISC_NOOP",
	ISCRead:       "ISC_READ",
	ISCDisable:    "ISC_DISABLE",
	FuseCTS:       "FUSE_CTS",
	Bypass:        "BYPASS",
}

func (o Opcode) String() string {
	if s, ok := opcodeNames[o]; ok {
		return s
	}
	return fmt.Sprintf("Opcode(%#02x)", uint8(o))
}

// SLRInstruction builds the IR word for an SSI device with the given number
// of segments: op goes to segment n, BYPASS to every other one. Segment 0
// occupies the low bits, which are shifted first.
func SLRInstruction(op Opcode, n, segments int) uint64 {
	var w uint64
	for k := 0; k < segments; k++ {
		v := uint64(Bypass)
		if k == n {
			v = uint64(op)
		}
		w |= v << uint(k*SegmentIRLen)
	}
	return w
}

var (
	// ErrNotProgrammable is returned when the selected node has no key
	// storage.
	ErrNotProgrammable = errors.New("provision: selected device has no key storage")

	// ErrNoTarget is returned when no node is selected.
	ErrNoTarget = errors.New("provision: no device selected")
)

// target is the selected configuration TAP.
type target struct {
	s        *chain.Session
	irLen    int
	segments int
	master   int
	log      *log.Logger
}

func newTarget(s *chain.Session) (*target, error) {
	n, ok := s.Active()
	if !ok {
		return nil, ErrNoTarget
	}
	if n.Identity == nil || !n.Identity.Fuses() {
		return nil, fmt.Errorf("%w: %s", ErrNotProgrammable, n)
	}
	l := s.Log
	if l == nil {
		l = log.New(io.Discard, "", 0)
	}
	return &target{
		s:        s,
		irLen:    n.IRLen,
		segments: n.Identity.SegmentCount(),
		master:   n.Identity.MasterSegment,
		log:      l,
	}, nil
}

// instr returns the IR word loading op into the master segment.
func (t *target) instr(op Opcode) uint64 {
	return SLRInstruction(op, t.master, t.segments)
}

func (t *target) addIR(sq *seq.Sequence, op Opcode) error {
	return sq.AddIR(t.instr(op), t.irLen, tap.StateRunTestIdle)
}

func (t *target) run(sq *seq.Sequence) error {
	return t.s.Run(sq)
}
