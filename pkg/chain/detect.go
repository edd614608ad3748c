// Package chain discovers the devices on a JTAG scan chain and positions a
// port on one of them.
package chain

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/OpenTraceLab/OpenTraceKey/pkg/idcode"
	"github.com/OpenTraceLab/OpenTraceKey/pkg/jtag"
	"github.com/OpenTraceLab/OpenTraceKey/pkg/port"
	"github.com/OpenTraceLab/OpenTraceKey/pkg/tap"
)

const (
	// MaxTAPs bounds discovery.
	MaxTAPs = 16

	// SentinelID is flushed through the chain to find its end. Bit 0 is set
	// so it frames as an IDCODE, and its manufacturer field is the JEP106
	// continuation code, which no real part carries.
	SentinelID uint32 = 0x000000FF
)

var (
	// ErrNoChain means TDO read all ones: nothing is driving it.
	ErrNoChain = errors.New("chain: no devices detected (TDO stuck high)")

	// ErrChainTooLong means more than MaxTAPs devices were decoded, or the
	// sentinel never came back.
	ErrChainTooLong = fmt.Errorf("chain: more than %d devices or broken chain", MaxTAPs)

	// ErrUnknownDevice is returned by Scan for an IDCODE missing from the
	// identity table.
	ErrUnknownDevice = fmt.Errorf("%w: unrecognised device", jtag.ErrConfiguration)
)

// ChainEntry is one TAP as seen by discovery: either an IDCODE or a device
// that came up in BYPASS.
type ChainEntry struct {
	IDCode uint32
	Bypass bool
}

func (e ChainEntry) String() string {
	if e.Bypass {
		return "BYPASS"
	}
	return idcode.Parse(e.IDCode).String()
}

// DetectTAPs resets the chain and reads back every device's reset-time DR.
// Entries are ordered from the device nearest TDO.
func DetectTAPs(p *port.Port) ([]ChainEntry, error) {
	const words = MaxTAPs + 1
	bits := 2 * words * 32

	tdi := make([]byte, bits/8)
	for i := 0; i < words; i++ {
		binary.LittleEndian.PutUint32(tdi[i*4:], SentinelID)
	}
	for i := words * 4; i < len(tdi); i++ {
		tdi[i] = 0xFF
	}
	tdo := make([]byte, len(tdi))

	p.Reset()
	p.Navigate(tap.StateShiftDR)
	needNav, err := p.ShiftRaw(port.DR, bits, tdi, tdo, false, tap.StateRunTestIdle)
	if err != nil {
		return nil, fmt.Errorf("chain: idcode scan: %w", err)
	}
	if needNav {
		p.Navigate(tap.StateRunTestIdle)
	}

	if binary.LittleEndian.Uint32(tdo) == 0xFFFFFFFF {
		return nil, ErrNoChain
	}
	return decode(tdo, bits)
}

func decode(tdo []byte, bits int) ([]ChainEntry, error) {
	var entries []ChainEntry
	for pos := 0; pos < bits; {
		if !jtag.Bit(tdo, pos) {
			entries = append(entries, ChainEntry{Bypass: true})
			pos++
		} else {
			if pos+32 > bits {
				break
			}
			var v uint32
			for i := 0; i < 32; i++ {
				if jtag.Bit(tdo, pos+i) {
					v |= 1 << uint(i)
				}
			}
			if v == SentinelID {
				return entries, nil
			}
			entries = append(entries, ChainEntry{IDCode: v})
			pos += 32
		}
		if len(entries) > MaxTAPs {
			return nil, ErrChainTooLong
		}
	}
	return nil, ErrChainTooLong
}
