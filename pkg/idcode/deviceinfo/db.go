package deviceinfo

import (
	"sync"

	"github.com/OpenTraceLab/OpenTraceKey/pkg/idcode"
)

// VersionMask clears the IDCODE version nibble. Silicon revisions share an
// identity.
const VersionMask = 0x0FFFFFFF

var (
	mu         sync.RWMutex
	identities []Identity
)

// Register appends an identity. Earlier entries win, so registration order
// is match priority.
func Register(id Identity) {
	mu.Lock()
	defer mu.Unlock()
	id.IDCode &= VersionMask
	identities = append(identities, id)
}

// Identify returns the first identity whose masked IDCODE equals raw with
// the version bits cleared.
func Identify(raw uint32) (Identity, bool) {
	key := raw & VersionMask
	mu.RLock()
	defer mu.RUnlock()
	for _, id := range identities {
		if id.IDCode == key {
			return id, true
		}
	}
	return Identity{}, false
}

// Identities returns a copy of the table in match order.
func Identities() []Identity {
	mu.RLock()
	defer mu.RUnlock()
	return append([]Identity(nil), identities...)
}

// Lookup returns display information for an IDCODE, falling back to generic
// info for devices missing from the table.
func Lookup(raw uint32) DeviceInfo {
	id := idcode.Parse(raw)
	m, _ := idcode.LookupManufacturer(id.ManufacturerCode)

	info := DeviceInfo{
		IDCode:       id,
		Manufacturer: m,
		Name:         "Unknown device",
		Description:  "No entry in device database",
	}
	if ident, ok := Identify(raw); ok {
		info.Name = ident.Name
		info.Family = ident.Family.String()
		info.Description = describe(ident)
		info.IRLength = ident.IRLen
		info.IsFPGA = ident.Family != FamilyARMDAP
		info.IsSoC = ident.Family == FamilyZynq7000 || ident.Family == FamilyZynqMPSoC
		info.HasARMCore = info.IsSoC || ident.Family == FamilyARMDAP
	}
	return info
}

func describe(id Identity) string {
	switch {
	case id.Family == FamilyARMDAP:
		return "ARM debug access port"
	case id.SegmentCount() > 1:
		return "SSI FPGA"
	case id.Family == FamilyZynq7000 || id.Family == FamilyZynqMPSoC:
		return "SoC programmable logic"
	}
	return "FPGA"
}
