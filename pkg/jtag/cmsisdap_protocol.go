package jtag

import (
	"encoding/binary"
	"fmt"
)

// CMSIS-DAP command IDs used for pin-level access.
const (
	CmdInfo        = 0x00
	CmdConnect     = 0x02
	CmdDisconnect  = 0x03
	CmdResetTarget = 0x0A
	CmdSWJPins     = 0x10
	CmdSWJClock    = 0x11
)

// DAP_Info IDs.
const (
	InfoVendorID    = 0x01
	InfoProductID   = 0x02
	InfoSerialNum   = 0x03
	InfoFirmwareVer = 0x04
	InfoPacketSize  = 0xFF
)

// Connection ports.
const (
	PortDefault = 0
	PortSWD     = 1
	PortJTAG    = 2
)

const (
	StatusOK    = 0x00
	StatusError = 0xFF
)

// DAP_SWJ_Pins bit positions.
const (
	SWJTCK    = 1 << 0
	SWJTMS    = 1 << 1
	SWJTDI    = 1 << 2
	SWJTDO    = 1 << 3
	SWJnTRST  = 1 << 5
	SWJnRESET = 1 << 7
)

// CMSISDAPProtocol encodes and decodes the CMSIS-DAP commands the pin driver
// needs.
type CMSISDAPProtocol struct {
	PacketSize int
}

// NewCMSISDAPProtocol creates a protocol handler for the given packet size.
func NewCMSISDAPProtocol(packetSize int) *CMSISDAPProtocol {
	return &CMSISDAPProtocol{PacketSize: packetSize}
}

func checkReply(resp []byte, cmd byte, min int) error {
	if len(resp) < min {
		return fmt.Errorf("jtag: cmsis-dap reply to %#02x too short (%d bytes)", cmd, len(resp))
	}
	if resp[0] != cmd {
		return fmt.Errorf("jtag: cmsis-dap reply id %#02x, want %#02x", resp[0], cmd)
	}
	return nil
}

// EncodeInfo builds a DAP_Info command.
func (p *CMSISDAPProtocol) EncodeInfo(infoID byte) []byte {
	return []byte{CmdInfo, infoID}
}

// DecodeInfo returns the string payload of a DAP_Info reply.
func (p *CMSISDAPProtocol) DecodeInfo(resp []byte) (string, error) {
	if err := checkReply(resp, CmdInfo, 2); err != nil {
		return "", err
	}
	length := int(resp[1])
	if len(resp) < 2+length {
		return "", fmt.Errorf("jtag: cmsis-dap info string truncated")
	}
	return string(resp[2 : 2+length]), nil
}

// EncodeConnect builds a DAP_Connect command.
func (p *CMSISDAPProtocol) EncodeConnect(port byte) []byte {
	return []byte{CmdConnect, port}
}

// DecodeConnect returns the port the probe connected on.
func (p *CMSISDAPProtocol) DecodeConnect(resp []byte) (byte, error) {
	if err := checkReply(resp, CmdConnect, 2); err != nil {
		return 0, err
	}
	if resp[1] == PortDefault {
		return 0, fmt.Errorf("jtag: cmsis-dap connect refused")
	}
	return resp[1], nil
}

// EncodeDisconnect builds a DAP_Disconnect command.
func (p *CMSISDAPProtocol) EncodeDisconnect() []byte {
	return []byte{CmdDisconnect}
}

// DecodeStatus checks the status byte of a simple command reply.
func (p *CMSISDAPProtocol) DecodeStatus(resp []byte, cmd byte) error {
	if err := checkReply(resp, cmd, 2); err != nil {
		return err
	}
	if resp[1] != StatusOK {
		return fmt.Errorf("jtag: cmsis-dap command %#02x failed", cmd)
	}
	return nil
}

// EncodeSWJClock builds a DAP_SWJ_Clock command.
func (p *CMSISDAPProtocol) EncodeSWJClock(hz uint32) []byte {
	cmd := make([]byte, 5)
	cmd[0] = CmdSWJClock
	binary.LittleEndian.PutUint32(cmd[1:], hz)
	return cmd
}

// EncodeSWJPins builds a DAP_SWJ_Pins command writing the pins in sel to the
// levels in out. waitUS is how long the probe waits for the selected pins to
// settle before sampling.
func (p *CMSISDAPProtocol) EncodeSWJPins(out, sel byte, waitUS uint32) []byte {
	cmd := make([]byte, 7)
	cmd[0] = CmdSWJPins
	cmd[1] = out
	cmd[2] = sel
	binary.LittleEndian.PutUint32(cmd[3:], waitUS)
	return cmd
}

// DecodeSWJPins returns the sampled pin levels.
func (p *CMSISDAPProtocol) DecodeSWJPins(resp []byte) (byte, error) {
	if err := checkReply(resp, CmdSWJPins, 2); err != nil {
		return 0, err
	}
	return resp[1], nil
}
