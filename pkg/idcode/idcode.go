// Package idcode decodes IEEE 1149.1 IDCODE register values.
package idcode

import "fmt"

// ContinuationCode is the JEP106 low byte reserved for bank continuation.
// No manufacturer is assigned it, so an IDCODE carrying it in bits [7:1]
// never comes from real silicon.
const ContinuationCode = 0x7F

// IDCode represents a parsed IEEE 1149.1 JTAG IDCODE.
type IDCode struct {
	Raw              uint32 // full IDCODE
	Version          uint8  // [31:28]
	PartNumber       uint16 // [27:12]
	ManufacturerCode uint16 // [11:1] JEP106 bank and code
	HasIDCode        bool   // bit 0 == 1
}

// Manufacturer represents a JEP106 manufacturer entry.
type Manufacturer struct {
	Code         uint16
	Name         string
	Abbreviation string
}

// Parse splits a raw 32-bit IDCODE into its fields.
func Parse(raw uint32) IDCode {
	return IDCode{
		Raw:              raw,
		Version:          uint8((raw >> 28) & 0xF),
		PartNumber:       uint16((raw >> 12) & 0xFFFF),
		ManufacturerCode: uint16((raw >> 1) & 0x7FF),
		HasIDCode:        raw&1 == 1,
	}
}

// Bank returns the zero-based JEP106 bank.
func (id IDCode) Bank() int {
	return int(id.ManufacturerCode >> 7)
}

// Valid reports whether the value is framed like an IDCODE and names a
// possible manufacturer.
func (id IDCode) Valid() bool {
	return id.HasIDCode && id.ManufacturerCode&0x7F != ContinuationCode
}

func (id IDCode) String() string {
	m, _ := LookupManufacturer(id.ManufacturerCode)
	return fmt.Sprintf("0x%08X (%s part 0x%04X rev %d)", id.Raw, m.Abbreviation, id.PartNumber, id.Version)
}
