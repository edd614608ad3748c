package provision

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/OpenTraceLab/OpenTraceKey/pkg/jtag"
	"github.com/OpenTraceLab/OpenTraceKey/pkg/tap"
	"github.com/OpenTraceLab/OpenTraceKey/pkg/timing"
)

var testWords = [KeyWords]uint32{
	0x00112233, 0x44556677, 0x8899AABB, 0xCCDDEEFF,
	0x01234567, 0x89ABCDEF, 0xFEDCBA98, 0x76543210,
}

func TestKeyWordsBigEndian(t *testing.T) {
	k := KeyFromWords(testWords)
	if k[0] != 0x00 || k[3] != 0x33 || k[4] != 0x44 {
		t.Fatalf("key bytes % X", k[:8])
	}
	if k.Words() != testWords {
		t.Fatalf("Words() = %08X", k.Words())
	}
}

func TestParseKey(t *testing.T) {
	k, err := ParseKey("00112233 44556677 8899aabb ccddeeff 01234567 89abcdef fedcba98 76543210")
	if err != nil {
		t.Fatalf("ParseKey: %v", err)
	}
	if k != KeyFromWords(testWords) {
		t.Fatalf("ParseKey = %s", k)
	}
	for _, bad := range []string{"0011", "zz112233445566778899aabbccddeeff0123456789abcdeffedcba9876543210"} {
		if _, err := ParseKey(bad); !errors.Is(err, jtag.ErrConfiguration) {
			t.Fatalf("ParseKey(%q) = %v", bad, err)
		}
	}
}

func TestKeyCRC(t *testing.T) {
	k := KeyFromWords(testWords)
	if KeyCRC(k) != KeyCRC(k) {
		t.Fatalf("KeyCRC not deterministic")
	}
	other := k
	other[31] ^= 1
	if KeyCRC(k) == KeyCRC(other) {
		t.Fatalf("KeyCRC ignores the last byte")
	}
}

func TestBBRAMProgramVerify(t *testing.T) {
	r := newRig(t)
	b, err := NewBBRAM(r.s)
	if err != nil {
		t.Fatalf("NewBBRAM: %v", err)
	}
	key := KeyFromWords(testWords)
	pr, err := b.Program(key, nil)
	if err != nil {
		t.Fatalf("Program: %v", err)
	}
	if r.dev.Cleared != 1 {
		t.Fatalf("JPROGRAM issued %d times", r.dev.Cleared)
	}
	if r.clock.Slept() < timing.ProgramSettle {
		t.Fatalf("settle delay missing: slept %v", r.clock.Slept())
	}
	if r.dev.Words != KeyWords {
		t.Fatalf("device received %d words", r.dev.Words)
	}
	if diff := cmp.Diff(testWords[:], r.dev.Key[:KeyWords]); diff != "" {
		t.Fatalf("stored key mismatch (-want +got):\n%s", diff)
	}

	got, err := pr.Verify()
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got != key || pr.ReadKey() != key {
		t.Fatalf("readback %s, want %s", got, key)
	}
	if r.s.Port.State() != tap.StateRunTestIdle {
		t.Fatalf("port left in %s", r.s.Port.State())
	}
	if _, err := pr.Verify(); !errors.Is(err, ErrAlreadyVerified) {
		t.Fatalf("second Verify = %v", err)
	}
}

func TestBBRAMWithCRC(t *testing.T) {
	r := newRig(t)
	b, _ := NewBBRAM(r.s)
	b.JProgram = false
	key := KeyFromWords(testWords)
	crc := KeyCRC(key)
	pr, err := b.Program(key, &crc)
	if err != nil {
		t.Fatalf("Program: %v", err)
	}
	if r.dev.Cleared != 0 || r.dev.Words != KeyWords+1 || r.dev.Key[KeyWords] != crc {
		t.Fatalf("cleared=%d words=%d crc=%08X", r.dev.Cleared, r.dev.Words, r.dev.Key[KeyWords])
	}
	if _, err := pr.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestBBRAMVerifyMismatch(t *testing.T) {
	r := newRig(t)
	r.dev.CorruptRead = func(i int, w uint32) uint32 {
		if i == 0 {
			return w & 0xFFFFFFFE
		}
		return w
	}
	b, _ := NewBBRAM(r.s)
	pr, err := b.Program(KeyFromWords(testWords), nil)
	if err != nil {
		t.Fatalf("Program: %v", err)
	}
	_, err = pr.Verify()
	if !errors.Is(err, jtag.ErrVerificationMismatch) {
		t.Fatalf("Verify = %v, want mismatch", err)
	}
	if pr.ReadKey().Words()[0] != 0x00112232 {
		t.Fatalf("readback word 0 = %08X", pr.ReadKey().Words()[0])
	}
	if r.s.Port.State() != tap.StateRunTestIdle {
		t.Fatalf("ISC mode not left: port in %s", r.s.Port.State())
	}
}

func TestBBRAMCRCMismatch(t *testing.T) {
	r := newRig(t)
	r.dev.CorruptRead = func(i int, w uint32) uint32 {
		if i == KeyWords {
			return ^w
		}
		return w
	}
	b, _ := NewBBRAM(r.s)
	key := KeyFromWords(testWords)
	crc := KeyCRC(key)
	pr, err := b.Program(key, &crc)
	if err != nil {
		t.Fatalf("Program: %v", err)
	}
	if _, err := pr.Verify(); !errors.Is(err, jtag.ErrVerificationMismatch) {
		t.Fatalf("Verify = %v, want CRC mismatch", err)
	}
}

func TestBBRAMNotReady(t *testing.T) {
	r := newRig(t)
	r.dev.ReadStatus = 0b00100
	b, _ := NewBBRAM(r.s)
	pr, err := b.Program(KeyFromWords(testWords), nil)
	if err != nil {
		t.Fatalf("Program: %v", err)
	}
	if _, err := pr.Verify(); !errors.Is(err, ErrNotReady) {
		t.Fatalf("Verify = %v, want not ready", err)
	}
}
