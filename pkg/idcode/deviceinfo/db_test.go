package deviceinfo

import "testing"

func TestIdentifyIgnoresVersion(t *testing.T) {
	for _, raw := range []uint32{0x03727093, 0x13727093, 0xF3727093} {
		id, ok := Identify(raw)
		if !ok || id.Name != "XC7Z020" || id.IRLen != 6 {
			t.Fatalf("Identify(%#08x) = %+v, %v", raw, id, ok)
		}
	}
}

func TestIdentifyUnknown(t *testing.T) {
	if id, ok := Identify(0x0BADC0DE); ok {
		t.Fatalf("unexpected match %+v", id)
	}
}

func TestRegisterMasksAndMatches(t *testing.T) {
	Register(Identity{IDCode: 0x02345678, Name: "test part", Family: FamilySeries7, IRLen: 6})
	id, ok := Identify(0x12345678)
	if !ok || id.Name != "test part" {
		t.Fatalf("Identify(0x12345678) = %+v, %v", id, ok)
	}
}

func TestFirstMatchWins(t *testing.T) {
	Register(Identity{IDCode: 0x03727093, Name: "shadow", IRLen: 6})
	if id, _ := Identify(0x03727093); id.Name != "XC7Z020" {
		t.Fatalf("later registration overrode %q", id.Name)
	}
}

func TestSegments(t *testing.T) {
	id, ok := Identify(0x04B31093)
	if !ok {
		t.Fatalf("VU9P missing")
	}
	if id.SegmentCount() != 3 || id.SegmentIRLen() != 6 || id.MasterSegment != 1 {
		t.Fatalf("VU9P segments = %+v", id)
	}
	z, _ := Identify(0x03722093)
	if z.SegmentCount() != 1 || !z.Fuses() {
		t.Fatalf("Zynq segments = %+v", z)
	}
	dap, _ := Identify(0x4BA00477)
	if dap.Fuses() {
		t.Fatalf("DAP has no fuses")
	}
}

func TestLookupDisplay(t *testing.T) {
	info := Lookup(0x23727093)
	if info.Name != "XC7Z020" || info.Manufacturer.Abbreviation != "Xilinx" || !info.IsSoC {
		t.Fatalf("Lookup = %+v", info)
	}
	if Lookup(0x0BADC0DE).Name != "Unknown device" {
		t.Fatalf("unknown device not labelled")
	}
}
