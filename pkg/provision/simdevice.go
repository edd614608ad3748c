package provision

import (
	"github.com/OpenTraceLab/OpenTraceKey/pkg/jtag"
)

// SimDevice is a simulated configuration TAP with an eFUSE array and a
// BBRAM key store. It backs the "sim" backend and the tests.
type SimDevice struct {
	TAP  *jtag.SimTAP
	Fuse *jtag.SimFuseModule

	// Fuses holds the rows per page; [page][row].
	Fuses [FusePages][FuseRows]uint32

	// Stuck marks fuses that never blow; [page][row].
	Stuck [FusePages][FuseRows]uint32

	// Key and CRC are the BBRAM contents; Words counts programmed words.
	Key   [KeyWords + 1]uint32
	Words int

	// CorruptRead, if set, rewrites each word returned by ISC_READ.
	CorruptRead func(i int, w uint32) uint32

	// ReadStatus is reported in ISC_READ's status bits.
	ReadStatus uint8

	// Cleared counts JPROGRAM instructions.
	Cleared int

	enabled  bool
	keyMode  bool
	readIdx  int
	readAddr FuseCommand
	pending  *FuseCommand
}

// NewSimDevice returns a device answering to idcode with a 6-bit IR.
func NewSimDevice(idcode uint32) *SimDevice {
	d := &SimDevice{
		TAP:  jtag.NewSimTAP(idcode, SegmentIRLen, uint64(IDCODE)),
		Fuse: &jtag.SimFuseModule{ReadyAfter: 1, EndAfter: 1},
	}
	d.TAP.Capture = d.capture
	d.TAP.Update = d.update
	d.TAP.OnIR = d.onIR
	d.Fuse.OnPulse = d.blow
	return d
}

// Pins returns a pin driver with the device alone on the chain and the fuse
// module wired to the handshake lines.
func (d *SimDevice) Pins(others ...*jtag.SimTAP) *jtag.SimPins {
	taps := append([]*jtag.SimTAP{d.TAP}, others...)
	pins := jtag.NewSimPins(jtag.NewSimChain(taps...))
	pins.Fuse = d.Fuse
	return pins
}

func (d *SimDevice) onIR(ir uint64) {
	switch Opcode(ir) {
	case JPROGRAM:
		d.Cleared++
		d.enabled = false
		d.keyMode = false
	case ISCDisable:
		d.enabled = false
		d.keyMode = false
	}
}

func (d *SimDevice) capture(ir uint64) ([]bool, bool) {
	switch Opcode(ir) {
	case FuseCTS:
		row := d.Fuses[d.readAddr.Page][d.readAddr.Row]
		return boolsOf(uint64(row)<<32|uint64(FuseMagic), FuseDRBits), true
	case ISCEnable:
		return make([]bool, enableDRBits), true
	case ISCProgram, ISCProgramKey:
		return make([]bool, 32), true
	case ISCRead:
		if !d.enabled {
			return boolsOf(uint64(0x1F)<<32, readDRBits), true
		}
		w := d.Key[d.readIdx%len(d.Key)]
		if d.CorruptRead != nil {
			w = d.CorruptRead(d.readIdx, w)
		}
		d.readIdx++
		return boolsOf(uint64(d.ReadStatus&0x1F)<<32|uint64(w), readDRBits), true
	}
	return nil, false
}

func (d *SimDevice) update(ir uint64, v []bool) {
	w := jtag.BoolsToUint64(v)
	switch Opcode(ir) {
	case FuseCTS:
		cmd, ok := DecodeFuseCommand(w)
		if !ok {
			return
		}
		if cmd.Program {
			d.pending = &cmd
		} else {
			d.readAddr = cmd
			d.pending = nil
		}
	case ISCEnable:
		if len(v) == enableDRBits && w == enableDR {
			d.enabled = true
			d.readIdx = 0
		}
	case ISCProgramKey:
		if d.enabled && uint32(w) == 0xFFFFFFFF {
			d.keyMode = true
			d.Words = 0
			d.Key = [KeyWords + 1]uint32{}
		}
	case ISCProgram:
		if d.keyMode && d.Words < len(d.Key) {
			d.Key[d.Words] = uint32(w)
			d.Words++
		}
	}
}

func (d *SimDevice) blow() {
	if d.pending == nil {
		return
	}
	c := d.pending
	d.Fuses[c.Page][c.Row] |= (1 << uint(c.Bit)) &^ d.Stuck[c.Page][c.Row]
	d.pending = nil
}

func boolsOf(v uint64, n int) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = v&(1<<uint(i)) != 0
	}
	return out
}
