package deviceinfo

// Xilinx configuration TAPs and the ARM DAP that shares the chain on Zynq.
func init() {
	zynq := []struct {
		id   uint32
		name string
	}{
		{0x03722093, "XC7Z010"},
		{0x03727093, "XC7Z020"},
		{0x0373B093, "XC7Z015"},
		{0x0372C093, "XC7Z030"},
		{0x03731093, "XC7Z045"},
		{0x03736093, "XC7Z100"},
	}
	for _, d := range zynq {
		Register(Identity{IDCode: d.id, Name: d.name, Family: FamilyZynq7000, IRLen: 6})
	}

	Register(Identity{IDCode: 0x4BA00477, Name: "ARM DAP", Family: FamilyARMDAP, IRLen: 4})

	series7 := []struct {
		id   uint32
		name string
	}{
		{0x0362D093, "XC7A35T"},
		{0x03631093, "XC7A100T"},
		{0x03636093, "XC7A200T"},
		{0x03651093, "XC7K325T"},
		{0x03656093, "XC7K410T"},
		{0x03671093, "XC7V585T"},
		{0x03687093, "XC7VX485T"},
	}
	for _, d := range series7 {
		Register(Identity{IDCode: d.id, Name: d.name, Family: FamilySeries7, IRLen: 6})
	}
	Register(Identity{IDCode: 0x036B3093, Name: "XC7V2000T", Family: FamilySeries7, IRLen: 24, Segments: 4})

	Register(Identity{IDCode: 0x03822093, Name: "XCKU040", Family: FamilyUltraScale, IRLen: 6})
	Register(Identity{IDCode: 0x03842093, Name: "XCVU095", Family: FamilyUltraScale, IRLen: 6})
	Register(Identity{IDCode: 0x0390D093, Name: "XCKU115", Family: FamilyUltraScale, IRLen: 12, Segments: 2})
	Register(Identity{IDCode: 0x0396D093, Name: "XCVU440", Family: FamilyUltraScale, IRLen: 18, Segments: 3})

	Register(Identity{IDCode: 0x04B31093, Name: "XCVU9P", Family: FamilyUltraScalePlus, IRLen: 18, Segments: 3, MasterSegment: 1})
	Register(Identity{IDCode: 0x04A62093, Name: "XCKU5P", Family: FamilyUltraScalePlus, IRLen: 6})
	Register(Identity{IDCode: 0x04B51093, Name: "XCVU13P", Family: FamilyUltraScalePlus, IRLen: 24, Segments: 4, MasterSegment: 1})

	Register(Identity{IDCode: 0x04738093, Name: "XCZU9EG", Family: FamilyZynqMPSoC, IRLen: 12, Segments: 2, MasterSegment: 1})
}
