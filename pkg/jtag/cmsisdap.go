package jtag

import "fmt"

// AdapterInfo describes the probe behind a pin driver.
type AdapterInfo struct {
	Name         string
	Vendor       string
	Model        string
	SerialNumber string
	Firmware     string
}

var swjBits = map[Pin]byte{
	PinTCK: SWJTCK,
	PinTMS: SWJTMS,
	PinTDI: SWJTDI,
	PinTDO: SWJTDO,
}

// CMSISDAPPins drives the JTAG lines of a CMSIS-DAP probe one pin at a time
// with DAP_SWJ_Pins. It is slow, one USB round trip per edge, but works on
// any compliant probe. The probe has no fuse handshake lines.
type CMSISDAPPins struct {
	link     DAPLink
	protocol *CMSISDAPProtocol
	out      byte
	err      error
}

// OpenCMSISDAP opens a USB probe and connects it in JTAG mode.
func OpenCMSISDAP(vid, pid uint16) (*CMSISDAPPins, error) {
	t, err := NewUSBTransport(vid, pid)
	if err != nil {
		return nil, err
	}
	c, err := NewCMSISDAPPins(t)
	if err != nil {
		t.Close()
		return nil, err
	}
	return c, nil
}

// NewCMSISDAPPins connects the probe behind link in JTAG mode.
func NewCMSISDAPPins(link DAPLink) (*CMSISDAPPins, error) {
	c := &CMSISDAPPins{link: link, protocol: NewCMSISDAPProtocol(link.PacketSize())}
	resp, err := link.WriteRead(c.protocol.EncodeConnect(PortJTAG))
	if err != nil {
		return nil, err
	}
	port, err := c.protocol.DecodeConnect(resp)
	if err != nil {
		return nil, err
	}
	if port != PortJTAG {
		return nil, fmt.Errorf("jtag: probe connected on port %d, not JTAG", port)
	}
	return c, nil
}

// Info queries the probe's identification strings.
func (c *CMSISDAPPins) Info() (AdapterInfo, error) {
	var info AdapterInfo
	fields := []struct {
		id  byte
		dst *string
	}{
		{InfoVendorID, &info.Vendor},
		{InfoProductID, &info.Model},
		{InfoSerialNum, &info.SerialNumber},
		{InfoFirmwareVer, &info.Firmware},
	}
	for _, f := range fields {
		resp, err := c.link.WriteRead(c.protocol.EncodeInfo(f.id))
		if err != nil {
			return info, err
		}
		s, err := c.protocol.DecodeInfo(resp)
		if err != nil {
			return info, err
		}
		*f.dst = s
	}
	info.Name = "CMSIS-DAP"
	return info, nil
}

// SetClock programs the probe's SWJ clock. It only affects the probe's own
// sequences; pin toggling speed is bounded by USB latency.
func (c *CMSISDAPPins) SetClock(hz uint32) error {
	resp, err := c.link.WriteRead(c.protocol.EncodeSWJClock(hz))
	if err != nil {
		return err
	}
	return c.protocol.DecodeStatus(resp, CmdSWJClock)
}

func (c *CMSISDAPPins) pins(out, sel byte) byte {
	if c.err != nil {
		return 0
	}
	resp, err := c.link.WriteRead(c.protocol.EncodeSWJPins(out, sel, 0))
	if err == nil {
		var in byte
		if in, err = c.protocol.DecodeSWJPins(resp); err == nil {
			return in
		}
	}
	c.err = err
	return 0
}

func (c *CMSISDAPPins) Set(p Pin, high bool) {
	bit, ok := swjBits[p]
	if !ok || p.Input() {
		return
	}
	if high {
		c.out |= bit
	} else {
		c.out &^= bit
	}
	c.pins(c.out, bit)
}

func (c *CMSISDAPPins) Get(p Pin) bool {
	bit, ok := swjBits[p]
	if !ok {
		return false
	}
	return c.pins(0, 0)&bit != 0
}

func (c *CMSISDAPPins) Supports(p Pin) bool {
	_, ok := swjBits[p]
	return ok
}

// Err returns the first USB or protocol error.
func (c *CMSISDAPPins) Err() error {
	return c.err
}

// Close disconnects the probe and releases the link.
func (c *CMSISDAPPins) Close() error {
	if resp, err := c.link.WriteRead(c.protocol.EncodeDisconnect()); err == nil {
		_ = c.protocol.DecodeStatus(resp, CmdDisconnect)
	}
	return c.link.Close()
}
