package deviceinfo

import "github.com/OpenTraceLab/OpenTraceKey/pkg/idcode"

// DeviceInfo is the display view of a JTAG device.
type DeviceInfo struct {
	IDCode       idcode.IDCode
	Manufacturer idcode.Manufacturer

	Name        string // "XC7Z020"
	Family      string // "Zynq-7000"
	Description string

	HasARMCore bool
	IsFPGA     bool
	IsSoC      bool

	IRLength int
}

// Family groups devices that share a provisioning flow.
type Family uint8

const (
	FamilyUnknown Family = iota
	FamilyZynq7000
	FamilySeries7
	FamilyUltraScale
	FamilyUltraScalePlus
	FamilyZynqMPSoC
	FamilyARMDAP
)

var familyNames = map[Family]string{
	FamilyUnknown:        "unknown",
	FamilyZynq7000:       "Zynq-7000",
	FamilySeries7:        "7 Series",
	FamilyUltraScale:     "UltraScale",
	FamilyUltraScalePlus: "UltraScale+",
	FamilyZynqMPSoC:      "Zynq UltraScale+ MPSoC",
	FamilyARMDAP:         "ARM DAP",
}

func (f Family) String() string {
	if s, ok := familyNames[f]; ok {
		return s
	}
	return "unknown"
}

// Identity is an entry of the provisioning identity table. IDCode holds the
// value with the version nibble cleared.
type Identity struct {
	IDCode uint32
	Name   string
	Family Family

	// IRLen is the instruction register length of the whole TAP.
	IRLen int

	// Segments is the number of super logic regions (SLRs) chained inside
	// the package; each contributes its own IR segment. Zero means one.
	Segments int

	// MasterSegment is the SLR that owns the configuration logic.
	MasterSegment int
}

// SegmentCount returns Segments, treating zero as one.
func (id Identity) SegmentCount() int {
	if id.Segments <= 0 {
		return 1
	}
	return id.Segments
}

// SegmentIRLen returns the IR bits contributed by each segment.
func (id Identity) SegmentIRLen() int {
	return id.IRLen / id.SegmentCount()
}

// Fuses reports whether the device has the eFUSE/BBRAM key logic.
func (id Identity) Fuses() bool {
	return id.Family != FamilyARMDAP && id.Family != FamilyUnknown
}
