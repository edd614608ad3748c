package provision

import (
	"fmt"
	"time"

	"github.com/boljen/go-bitmap"

	"github.com/OpenTraceLab/OpenTraceKey/pkg/chain"
	"github.com/OpenTraceLab/OpenTraceKey/pkg/jtag"
	"github.com/OpenTraceLab/OpenTraceKey/pkg/port"
	"github.com/OpenTraceLab/OpenTraceKey/pkg/seq"
	"github.com/OpenTraceLab/OpenTraceKey/pkg/tap"
	"github.com/OpenTraceLab/OpenTraceKey/pkg/timing"
)

// FUSE_CTS data register layout, LSB first.
const (
	FuseMagic        uint32 = 0xA08A28AC
	FuseDRBits              = 64
	FuseRows                = 32
	FuseRowBits             = 32
	FusePages               = 4
	fuseBitShift            = 32
	fuseRowShift            = 37
	fusePageShift           = 42
	fuseRedundantBit        = 44
	fuseProgramBit          = 45
)

// FuseCommand is one FUSE_CTS data register word.
type FuseCommand struct {
	Row       int
	Bit       int
	Page      int
	Redundant bool
	Program   bool
}

// Encode packs the command into the 64-bit data register.
func (c FuseCommand) Encode() uint64 {
	w := uint64(FuseMagic)
	w |= uint64(c.Bit&0x1F) << fuseBitShift
	w |= uint64(c.Row&0x1F) << fuseRowShift
	w |= uint64(c.Page&0x3) << fusePageShift
	if c.Redundant {
		w |= 1 << fuseRedundantBit
	}
	if c.Program {
		w |= 1 << fuseProgramBit
	}
	return w
}

// DecodeFuseCommand unpacks a data register word. ok is false when the
// magic does not match.
func DecodeFuseCommand(w uint64) (c FuseCommand, ok bool) {
	c = FuseCommand{
		Bit:       int(w>>fuseBitShift) & 0x1F,
		Row:       int(w>>fuseRowShift) & 0x1F,
		Page:      int(w>>fusePageShift) & 0x3,
		Redundant: w&(1<<fuseRedundantBit) != 0,
		Program:   w&(1<<fuseProgramBit) != 0,
	}
	return c, uint32(w) == FuseMagic
}

func (c FuseCommand) validate() error {
	switch {
	case c.Row < 0 || c.Row >= FuseRows:
		return fmt.Errorf("%w: fuse row %d out of range", jtag.ErrBuilder, c.Row)
	case c.Bit < 0 || c.Bit >= FuseRowBits:
		return fmt.Errorf("%w: fuse bit %d out of range", jtag.ErrBuilder, c.Bit)
	case c.Page < 0 || c.Page >= FusePages:
		return fmt.Errorf("%w: fuse page %d out of range", jtag.ErrBuilder, c.Page)
	}
	return nil
}

// FuseProgrammer reads and blows eFUSE rows on the selected device.
type FuseProgrammer struct {
	t *target

	// Timeout bounds each wait on the hardware module.
	Timeout time.Duration
}

// NewFuseProgrammer binds to the session's selected node.
func NewFuseProgrammer(s *chain.Session) (*FuseProgrammer, error) {
	t, err := newTarget(s)
	if err != nil {
		return nil, err
	}
	return &FuseProgrammer{t: t, Timeout: timing.DefaultHandshakeTimeout}, nil
}

func (f *FuseProgrammer) port() *port.Port {
	return f.t.s.Port
}

// ReadRow returns the 32-bit contents of a fuse row. The first shift latches
// the address; the second captures the row in the upper half of the
// register.
func (f *FuseProgrammer) ReadRow(row, page int, redundant bool) (uint32, error) {
	cmd := FuseCommand{Row: row, Page: page, Redundant: redundant}
	if err := cmd.validate(); err != nil {
		return 0, err
	}
	sq := seq.New()
	if err := f.t.addIR(sq, FuseCTS); err != nil {
		return 0, err
	}
	if _, err := sq.AddDRValue(cmd.Encode(), FuseDRBits, false, tap.StateRunTestIdle); err != nil {
		return 0, err
	}
	h, err := sq.AddDRValue(cmd.Encode(), FuseDRBits, true, tap.StateRunTestIdle)
	if err != nil {
		return 0, err
	}
	if err := f.t.run(sq); err != nil {
		return 0, fmt.Errorf("provision: read fuse row %d: %w", row, err)
	}
	v := uint32(seq.Uint64(sq.Buf(h), FuseDRBits) >> 32)
	f.t.log.Printf("fuse row %d page %d = 0x%08X", row, page, v)
	return v, nil
}

// ProgramBit blows one fuse. The pulse comes from the external hardware
// module; if it does not answer in time the error is a
// *FuseStateUnknownError and the bit must be treated as possibly blown.
// The port is returned to Test-Logic-Reset afterwards.
func (f *FuseProgrammer) ProgramBit(row, bit, page int, redundant bool) error {
	cmd := FuseCommand{Row: row, Bit: bit, Page: page, Redundant: redundant, Program: true}
	if err := cmd.validate(); err != nil {
		return err
	}
	p := f.port()
	if err := jtag.RequireHandshake(p.Pins()); err != nil {
		return err
	}

	sq := seq.New()
	if err := f.t.addIR(sq, FuseCTS); err != nil {
		return err
	}
	if _, err := sq.AddDRValue(cmd.Encode(), FuseDRBits, false, tap.StateExit1DR); err != nil {
		return err
	}
	// Capture and Exit1 were walked by the shift; Update-DR latches the command.
	if err := sq.AddStateChange(tap.StateUpdateDR, 0); err != nil {
		return err
	}
	if err := sq.AddStateChange(tap.StateRunTestIdle, 0); err != nil {
		return err
	}
	if err := sq.MarkIrreversible(); err != nil {
		return err
	}
	if err := f.t.run(sq); err != nil {
		return fmt.Errorf("provision: arm fuse row %d bit %d: %w", row, bit, err)
	}

	h := handshake{pins: p.Pins(), clock: p.Clock(), timeout: f.Timeout}
	err := h.pulse()
	p.Reset()
	if err != nil {
		return &FuseStateUnknownError{Row: row, Bit: bit, Err: err}
	}
	f.t.log.Printf("blew fuse row %d bit %d page %d", row, bit, page)
	return p.Err()
}

// ProgramRow blows every set bit of data, lowest first, stopping at the
// first failure. Bits already blown are blown again; fuses only go one way.
// The row is then read back; a set bit that still reads clear is reported
// as a *FuseVerifyError. The readback is returned either way and the port
// is left in Test-Logic-Reset.
func (f *FuseProgrammer) ProgramRow(row, page int, data uint32, redundant bool) (uint32, error) {
	want := rowBitmap(data)
	for i := 0; i < want.Len(); i++ {
		if !want.Get(i) {
			continue
		}
		if err := f.ProgramBit(row, i, page, redundant); err != nil {
			return 0, err
		}
	}

	got, err := f.ReadRow(row, page, redundant)
	f.port().Reset()
	if err != nil {
		return 0, err
	}
	if missing := unblown(want, rowBitmap(got)); len(missing) > 0 {
		return got, &FuseVerifyError{Row: row, Page: page, Want: data, Got: got, Missing: missing}
	}
	return got, nil
}

// FuseVerifyError lists the bits of a programmed row that read back clear.
type FuseVerifyError struct {
	Row     int
	Page    int
	Want    uint32
	Got     uint32
	Missing []int
}

func (e *FuseVerifyError) Error() string {
	return fmt.Sprintf("provision: fuse row %d page %d reads 0x%08X after blowing 0x%08X, bits %v clear",
		e.Row, e.Page, e.Got, e.Want, e.Missing)
}

func (e *FuseVerifyError) Unwrap() error {
	return jtag.ErrVerificationMismatch
}

func rowBitmap(v uint32) bitmap.Bitmap {
	bm := bitmap.New(FuseRowBits)
	for i := 0; i < FuseRowBits; i++ {
		bm.Set(i, v&(1<<uint(i)) != 0)
	}
	return bm
}

// unblown returns the bits set in want and clear in got.
func unblown(want, got bitmap.Bitmap) []int {
	var out []int
	for i := 0; i < want.Len(); i++ {
		if want.Get(i) && !got.Get(i) {
			out = append(out, i)
		}
	}
	return out
}
