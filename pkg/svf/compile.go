// Package svf plays Serial Vector Format scripts on a port. Scripts are
// parsed with participle, compiled into steps and played through seq.
package svf

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"periph.io/x/conn/v3/physic"

	"github.com/OpenTraceLab/OpenTraceKey/pkg/jtag"
	"github.com/OpenTraceLab/OpenTraceKey/pkg/port"
	"github.com/OpenTraceLab/OpenTraceKey/pkg/tap"
)

var (
	// ErrTDOMismatch is returned by Play when captured TDO differs from the
	// expected value under the mask.
	ErrTDOMismatch = fmt.Errorf("%w: svf TDO mismatch", jtag.ErrVerificationMismatch)

	// ErrUnsupported is returned for statements the player cannot honour.
	ErrUnsupported = errors.New("svf: unsupported statement")
)

var stateNames = map[string]tap.State{
	"RESET":     tap.StateTestLogicReset,
	"IDLE":      tap.StateRunTestIdle,
	"DRSELECT":  tap.StateSelectDRScan,
	"DRCAPTURE": tap.StateCaptureDR,
	"DRSHIFT":   tap.StateShiftDR,
	"DREXIT1":   tap.StateExit1DR,
	"DRPAUSE":   tap.StatePauseDR,
	"DREXIT2":   tap.StateExit2DR,
	"DRUPDATE":  tap.StateUpdateDR,
	"IRSELECT":  tap.StateSelectIRScan,
	"IRCAPTURE": tap.StateCaptureIR,
	"IRSHIFT":   tap.StateShiftIR,
	"IREXIT1":   tap.StateExit1IR,
	"IRPAUSE":   tap.StatePauseIR,
	"IREXIT2":   tap.StateExit2IR,
	"IRUPDATE":  tap.StateUpdateIR,
}

func parseState(name string) (tap.State, error) {
	s, ok := stateNames[strings.ToUpper(name)]
	if !ok {
		return 0, fmt.Errorf("%w: unknown state %q", jtag.ErrBuilder, name)
	}
	return s, nil
}

func parseStableState(name string) (tap.State, error) {
	s, err := parseState(name)
	if err != nil {
		return 0, err
	}
	if !s.Stable() {
		return 0, fmt.Errorf("%w: %s is not a stable state", jtag.ErrBuilder, s)
	}
	return s, nil
}

// Program is a compiled script.
type Program struct {
	Steps []Step
}

// Step is one operation with the script line it came from.
type Step struct {
	Line int
	Op   Op
}

// Op is PathOp, ScanOp, IdleOp or FrequencyOp.
type Op interface {
	isOp()
}

// PathOp visits each state in turn.
type PathOp struct {
	States []tap.State
}

// ScanOp is a complete scan including header and trailer bits. TDO is nil
// when the script does not check the result.
type ScanOp struct {
	Dir  port.Dir
	Bits int
	TDI  []byte
	TDO  []byte
	Mask []byte
	Exit tap.State
}

// IdleOp clocks in State, then waits, then moves to End.
type IdleOp struct {
	State  tap.State
	Clocks int
	Wait   time.Duration
	End    tap.State
}

// FrequencyOp changes the TCK rate. Zero is full speed.
type FrequencyOp struct {
	Frequency physic.Frequency
}

func (PathOp) isOp()      {}
func (ScanOp) isOp()      {}
func (IdleOp) isOp()      {}
func (FrequencyOp) isOp() {}

// register is the sticky state of one of SIR, SDR, HIR, HDR, TIR, TDR.
type register struct {
	bits int
	tdi  []byte
	tdo  []byte
	mask []byte
}

type compiler struct {
	endIR, endDR     tap.State
	runState, runEnd tap.State
	regs             map[string]*register
}

// Compile turns a parsed script into steps. Scan values follow the usual
// SVF stickiness: TDI and MASK carry over while the length is unchanged,
// TDO never does.
func Compile(f *File) (*Program, error) {
	c := &compiler{
		endIR:    tap.StateRunTestIdle,
		endDR:    tap.StateRunTestIdle,
		runState: tap.StateRunTestIdle,
		runEnd:   tap.StateRunTestIdle,
		regs:     map[string]*register{},
	}
	for _, k := range []string{"SIR", "SDR", "HIR", "HDR", "TIR", "TDR"} {
		c.regs[k] = &register{}
	}
	prog := &Program{}
	for _, st := range f.Stmts {
		op, err := c.stmt(st)
		if err != nil {
			return nil, fmt.Errorf("svf: line %d: %w", st.Pos.Line, err)
		}
		if op != nil {
			prog.Steps = append(prog.Steps, Step{Line: st.Pos.Line, Op: op})
		}
	}
	return prog, nil
}

func (c *compiler) stmt(st *Stmt) (Op, error) {
	switch {
	case st.End != nil:
		s, err := parseStableState(st.End.State)
		if err != nil {
			return nil, err
		}
		if strings.EqualFold(st.End.Kind, "ENDIR") {
			c.endIR = s
		} else {
			c.endDR = s
		}
		return nil, nil

	case st.State != nil:
		op := PathOp{}
		for _, name := range st.State.Path {
			s, err := parseState(name)
			if err != nil {
				return nil, err
			}
			op.States = append(op.States, s)
		}
		if last := op.States[len(op.States)-1]; !last.Stable() {
			return nil, fmt.Errorf("%w: STATE ends in %s", jtag.ErrBuilder, last)
		}
		return op, nil

	case st.Scan != nil:
		return c.scan(st.Scan)

	case st.RunTest != nil:
		return c.runTest(st.RunTest)

	case st.TRST != nil:
		switch strings.ToUpper(st.TRST.Mode) {
		case "OFF", "Z", "ABSENT":
			return nil, nil
		}
		return nil, fmt.Errorf("%w: TRST %s (no reset line)", ErrUnsupported, st.TRST.Mode)

	case st.Frequency != nil:
		var f physic.Frequency
		if st.Frequency.Hz != nil {
			f = physic.Frequency(*st.Frequency.Hz * float64(physic.Hertz))
		}
		return FrequencyOp{Frequency: f}, nil
	}
	return nil, fmt.Errorf("%w: empty statement", ErrUnsupported)
}

func (c *compiler) scan(s *Scan) (Op, error) {
	kind := strings.ToUpper(s.Kind)
	r := c.regs[kind]
	if s.Length < 0 {
		return nil, fmt.Errorf("%w: %s length %d", jtag.ErrBuilder, kind, s.Length)
	}

	values := map[string][]byte{}
	for _, p := range s.Params {
		name := strings.ToUpper(p.Name)
		v, err := parseHex(p.Value, s.Length)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", kind, name, err)
		}
		values[name] = v
	}

	if s.Length != r.bits {
		r.bits = s.Length
		r.tdi = nil
		r.mask = ones(s.Length)
	}
	if v, ok := values["TDI"]; ok {
		r.tdi = v
	}
	if v, ok := values["MASK"]; ok {
		r.mask = v
	}
	r.tdo = values["TDO"]
	if r.bits > 0 && r.tdi == nil {
		return nil, fmt.Errorf("%w: %s length changed without TDI", jtag.ErrBuilder, kind)
	}

	var head, tail *register
	var op ScanOp
	switch kind {
	case "SIR":
		head, tail = c.regs["HIR"], c.regs["TIR"]
		op.Dir, op.Exit = port.IR, c.endIR
	case "SDR":
		head, tail = c.regs["HDR"], c.regs["TDR"]
		op.Dir, op.Exit = port.DR, c.endDR
	default:
		return nil, nil
	}

	op.Bits = head.bits + r.bits + tail.bits
	if op.Bits == 0 {
		return nil, fmt.Errorf("%w: %s with no bits", jtag.ErrBuilder, kind)
	}
	op.TDI = join(op.Bits, head.tdi, head.bits, r.tdi, r.bits, tail.tdi, tail.bits)
	if r.tdo != nil {
		op.TDO = join(op.Bits, nil, head.bits, r.tdo, r.bits, nil, tail.bits)
		op.Mask = join(op.Bits, nil, head.bits, r.mask, r.bits, nil, tail.bits)
	}
	return op, nil
}

func (c *compiler) runTest(rt *RunTest) (Op, error) {
	if rt.RunState != "" {
		s, err := parseStableState(rt.RunState)
		if err != nil {
			return nil, err
		}
		c.runState = s
	}
	if rt.EndState != "" {
		s, err := parseStableState(rt.EndState)
		if err != nil {
			return nil, err
		}
		c.runEnd = s
	}

	op := IdleOp{State: c.runState, End: c.runEnd}
	switch strings.ToUpper(rt.Unit) {
	case "TCK":
		op.Clocks = int(rt.Count)
	case "SEC":
		op.Wait = seconds(rt.Count)
	default:
		return nil, fmt.Errorf("%w: RUNTEST in %s", ErrUnsupported, rt.Unit)
	}
	if rt.MinTime != nil {
		if w := seconds(*rt.MinTime); w > op.Wait {
			op.Wait = w
		}
	}
	return op, nil
}

func seconds(v float64) time.Duration {
	return time.Duration(math.Round(v * float64(time.Second)))
}

// parseHex reads a parenthesised hex token into an LSB-first buffer of bits
// bits. The rightmost digit holds bits 0..3.
func parseHex(tok string, bits int) ([]byte, error) {
	digits := strings.Map(func(r rune) rune {
		switch r {
		case '(', ')', ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, tok)
	buf := make([]byte, jtag.BytesFor(bits))
	for i := 0; i < len(digits); i++ {
		d := digits[len(digits)-1-i]
		v, err := strconv.ParseUint(string(d), 16, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: bad hex digit %q", jtag.ErrBuilder, d)
		}
		for b := 0; b < 4; b++ {
			if v&(1<<uint(b)) == 0 {
				continue
			}
			pos := i*4 + b
			if pos >= bits {
				return nil, fmt.Errorf("%w: value wider than %d bits", jtag.ErrBuilder, bits)
			}
			jtag.SetBit(buf, pos, true)
		}
	}
	return buf, nil
}

// formatHex renders an LSB-first buffer the way SVF writes it.
func formatHex(buf []byte, bits int) string {
	var sb strings.Builder
	for d := (bits+3)/4 - 1; d >= 0; d-- {
		var v uint
		for b := 0; b < 4; b++ {
			if pos := d*4 + b; pos < bits && jtag.Bit(buf, pos) {
				v |= 1 << uint(b)
			}
		}
		sb.WriteString(strconv.FormatUint(uint64(v), 16))
	}
	return strings.ToUpper(sb.String())
}

func ones(bits int) []byte {
	buf := make([]byte, jtag.BytesFor(bits))
	for i := 0; i < bits; i++ {
		jtag.SetBit(buf, i, true)
	}
	return buf
}

// join concatenates header, body and trailer, header first. A nil part
// contributes zeros.
func join(total int, head []byte, hn int, body []byte, bn int, tail []byte, tn int) []byte {
	out := make([]byte, jtag.BytesFor(total))
	off := 0
	for _, part := range []struct {
		buf []byte
		n   int
	}{{head, hn}, {body, bn}, {tail, tn}} {
		for i := 0; i < part.n; i++ {
			if part.buf != nil && jtag.Bit(part.buf, i) {
				jtag.SetBit(out, off+i, true)
			}
		}
		off += part.n
	}
	return out
}
