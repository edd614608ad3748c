package provision

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"zappem.net/pub/debug/xcrc32"

	"github.com/OpenTraceLab/OpenTraceKey/pkg/chain"
	"github.com/OpenTraceLab/OpenTraceKey/pkg/jtag"
	"github.com/OpenTraceLab/OpenTraceKey/pkg/port"
	"github.com/OpenTraceLab/OpenTraceKey/pkg/seq"
	"github.com/OpenTraceLab/OpenTraceKey/pkg/tap"
	"github.com/OpenTraceLab/OpenTraceKey/pkg/timing"
)

const (
	// KeyWords is the number of 32-bit words in an AES-256 key.
	KeyWords = 8

	// ReadyStatus is the status field ISC_READ reports once the key logic
	// has settled.
	ReadyStatus = 0b00000

	enableDR       = 0x15
	enableDRBits   = 5
	enableIdle     = 12
	programKeyIdle = 9
	wordIdle       = 1
	readDRBits     = 37
)

var (
	// ErrNotReady is returned when ISC_READ reports a non-ready status.
	ErrNotReady = errors.New("provision: BBRAM not ready")

	// ErrAlreadyVerified is returned by a second Verify on the same token.
	ErrAlreadyVerified = errors.New("provision: BBRAM programming already verified")
)

// Key is a 256-bit AES key. Word 0 is bytes 0..3, big-endian.
type Key [32]byte

// ParseKey decodes 64 hex digits, ignoring spaces and underscores.
func ParseKey(s string) (Key, error) {
	var k Key
	s = strings.NewReplacer(" ", "", "_", "", "\t", "").Replace(strings.TrimPrefix(s, "0x"))
	b, err := hex.DecodeString(s)
	if err != nil {
		return k, fmt.Errorf("%w: key: %v", jtag.ErrConfiguration, err)
	}
	if len(b) != len(k) {
		return k, fmt.Errorf("%w: key is %d bytes, want %d", jtag.ErrConfiguration, len(b), len(k))
	}
	copy(k[:], b)
	return k, nil
}

// KeyFromWords assembles a key from its eight words.
func KeyFromWords(w [KeyWords]uint32) Key {
	var k Key
	for i, v := range w {
		binary.BigEndian.PutUint32(k[i*4:], v)
	}
	return k
}

// Words splits the key into the order it is programmed.
func (k Key) Words() [KeyWords]uint32 {
	var w [KeyWords]uint32
	for i := range w {
		w[i] = binary.BigEndian.Uint32(k[i*4:])
	}
	return w
}

func (k Key) String() string {
	return strings.ToUpper(hex.EncodeToString(k[:]))
}

// KeyCRC is the check word that may be programmed after the key.
func KeyCRC(k Key) uint32 {
	_, crc := xcrc32.NewCRC32(k[:])
	return crc
}

// BBRAM programs the battery-backed AES key of the selected device.
type BBRAM struct {
	t *target

	// JProgram clears the configuration before programming. The key
	// logic is unreachable while a bitstream is loaded.
	JProgram bool
}

// NewBBRAM binds to the session's selected node.
func NewBBRAM(s *chain.Session) (*BBRAM, error) {
	t, err := newTarget(s)
	if err != nil {
		return nil, err
	}
	return &BBRAM{t: t, JProgram: true}, nil
}

func (b *BBRAM) port() *port.Port {
	return b.t.s.Port
}

// Programmed is returned by a successful Program. Verification is only
// reachable through it.
type Programmed struct {
	b        *BBRAM
	key      Key
	crc      *uint32
	verified bool
	readback Key
}

// Program writes key and, if crc is non-nil, the check word after it.
func (b *BBRAM) Program(key Key, crc *uint32) (*Programmed, error) {
	if b.JProgram {
		sq := seq.New()
		if err := b.t.addIR(sq, JPROGRAM); err != nil {
			return nil, err
		}
		if err := b.t.run(sq); err != nil {
			return nil, fmt.Errorf("provision: jprogram: %w", err)
		}
		b.port().Clock().Sleep(timing.ProgramSettle)
	}

	sq := seq.New()
	if b.JProgram {
		if err := b.t.addIR(sq, ISCNoop); err != nil {
			return nil, err
		}
	}
	if err := b.enable(sq); err != nil {
		return nil, err
	}
	if err := b.t.addIR(sq, ISCProgramKey); err != nil {
		return nil, err
	}
	if _, err := sq.AddDRValue(0xFFFFFFFF, 32, false, tap.StateRunTestIdle); err != nil {
		return nil, err
	}
	if err := sq.AddStateChange(tap.StateRunTestIdle, programKeyIdle); err != nil {
		return nil, err
	}
	words := key.Words()
	payload := words[:]
	if crc != nil {
		payload = append(payload, *crc)
	}
	for _, w := range payload {
		if err := b.t.addIR(sq, ISCProgram); err != nil {
			return nil, err
		}
		if _, err := sq.AddDRValue(uint64(w), 32, false, tap.StateRunTestIdle); err != nil {
			return nil, err
		}
		if err := sq.AddStateChange(tap.StateRunTestIdle, wordIdle); err != nil {
			return nil, err
		}
	}
	if err := sq.MarkIrreversible(); err != nil {
		return nil, err
	}
	if err := b.t.run(sq); err != nil {
		return nil, fmt.Errorf("provision: program BBRAM: %w", err)
	}
	b.t.log.Printf("programmed BBRAM key (%d words)", len(payload))

	pr := &Programmed{b: b, key: key}
	if crc != nil {
		c := *crc
		pr.crc = &c
	}
	return pr, nil
}

func (b *BBRAM) enable(sq *seq.Sequence) error {
	if err := b.t.addIR(sq, ISCEnable); err != nil {
		return err
	}
	if _, err := sq.AddDRValue(enableDR, enableDRBits, false, tap.StateRunTestIdle); err != nil {
		return err
	}
	return sq.AddStateChange(tap.StateRunTestIdle, enableIdle)
}

// Verify reads the key back and compares it with what was programmed. It
// consumes the token: a second call returns ErrAlreadyVerified.
func (p *Programmed) Verify() (Key, error) {
	if p.verified {
		return Key{}, ErrAlreadyVerified
	}
	p.verified = true
	b := p.b

	n := KeyWords
	if p.crc != nil {
		n++
	}
	sq := seq.New()
	if err := b.enable(sq); err != nil {
		return Key{}, err
	}
	handles := make([]seq.Handle, n)
	for i := range handles {
		if err := b.t.addIR(sq, ISCRead); err != nil {
			return Key{}, err
		}
		_, h, err := sq.AddShift(0, port.DR, readDRBits, false, true, tap.StateRunTestIdle)
		if err != nil {
			return Key{}, err
		}
		handles[i] = h
	}
	runErr := b.t.run(sq)
	if runErr == nil {
		runErr = p.decode(sq, handles)
	}
	if err := b.disable(); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		return p.readback, runErr
	}
	b.t.log.Printf("verified BBRAM key")
	return p.readback, nil
}

func (p *Programmed) decode(sq *seq.Sequence, handles []seq.Handle) error {
	var words [KeyWords]uint32
	var crc uint32
	for i, h := range handles {
		v := seq.Uint64(sq.Buf(h), readDRBits)
		if status := (v >> 32) & 0x1F; status != ReadyStatus {
			return fmt.Errorf("%w: word %d status %05b", ErrNotReady, i, status)
		}
		if i < KeyWords {
			words[i] = uint32(v)
		} else {
			crc = uint32(v)
		}
	}
	p.readback = KeyFromWords(words)

	want := p.key.Words()
	for i := range words {
		if words[i] != want[i] {
			return fmt.Errorf("%w: key word %d read 0x%08X, wrote 0x%08X", jtag.ErrVerificationMismatch, i, words[i], want[i])
		}
	}
	if p.crc != nil && crc != *p.crc {
		return fmt.Errorf("%w: crc read 0x%08X, wrote 0x%08X", jtag.ErrVerificationMismatch, crc, *p.crc)
	}
	return nil
}

func (b *BBRAM) disable() error {
	sq := seq.New()
	if err := b.t.addIR(sq, ISCDisable); err != nil {
		return err
	}
	if err := b.t.addIR(sq, Bypass); err != nil {
		return err
	}
	if err := sq.AddStateChange(tap.StateRunTestIdle, 0); err != nil {
		return err
	}
	if err := b.t.run(sq); err != nil {
		return fmt.Errorf("provision: leave ISC mode: %w", err)
	}
	return nil
}

// Key returns the key that was programmed.
func (p *Programmed) Key() Key {
	return p.key
}

// ReadKey returns the key read back by the last Verify.
func (p *Programmed) ReadKey() Key {
	return p.readback
}
