package jtag

import (
	"context"
	"errors"
	"fmt"

	"github.com/albenik/go-serial/v2"
	"github.com/google/gousb"
)

// InterfaceKind names a pin driver backend.
type InterfaceKind string

const (
	InterfaceKindCMSISDAP  InterfaceKind = "cmsis-dap"
	InterfaceKindBusPirate InterfaceKind = "buspirate"
	InterfaceKindGPIO      InterfaceKind = "gpio"
	InterfaceKindRPIO      InterfaceKind = "rpio"
	InterfaceKindSim       InterfaceKind = "sim"
)

// ParseInterfaceKind validates a backend name from flags or config.
func ParseInterfaceKind(s string) (InterfaceKind, error) {
	switch k := InterfaceKind(s); k {
	case InterfaceKindCMSISDAP, InterfaceKindBusPirate, InterfaceKindGPIO, InterfaceKindRPIO, InterfaceKindSim:
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown backend %q", ErrConfiguration, s)
}

// InterfaceInfo describes a detected adapter.
type InterfaceInfo struct {
	Kind        InterfaceKind
	Description string
	VendorID    uint16
	ProductID   uint16
	Path        string
}

// Label returns a user-friendly description for the interface.
func (i InterfaceInfo) Label() string {
	switch {
	case i.Description != "" && i.Path != "":
		return fmt.Sprintf("%s (%s)", i.Description, i.Path)
	case i.Description != "":
		return i.Description
	case i.Path != "":
		return fmt.Sprintf("%s %s", i.Kind, i.Path)
	}
	return fmt.Sprintf("%s (%04X:%04X)", i.Kind, i.VendorID, i.ProductID)
}

// DiscoverInterfaces lists CMSIS-DAP probes on USB and serial ports that may
// host a Bus Pirate. The simulator is always listed last so there is
// something to select without hardware.
func DiscoverInterfaces(ctx context.Context) ([]InterfaceInfo, error) {
	var results []InterfaceInfo
	usb := gousb.NewContext()
	defer usb.Close()

	devs, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		if info, ok := classifyUSBDevice(desc); ok {
			results = append(results, info)
		}
		return false
	})
	for _, d := range devs {
		d.Close()
	}
	if err != nil && !errors.Is(err, gousb.ErrorAccess) {
		return results, fmt.Errorf("jtag: usb enumerate: %w", err)
	}

	ports, err := serial.GetPortsList()
	if err != nil {
		return results, fmt.Errorf("jtag: list serial ports: %w", err)
	}
	for _, p := range ports {
		results = append(results, InterfaceInfo{
			Kind:        InterfaceKindBusPirate,
			Description: "Serial port",
			Path:        p,
		})
	}

	results = append(results, InterfaceInfo{
		Kind:        InterfaceKindSim,
		Description: "Simulator (no hardware)",
	})
	return results, nil
}

func classifyUSBDevice(desc *gousb.DeviceDesc) (InterfaceInfo, bool) {
	for _, known := range knownCMSISDAPProbes {
		if uint16(desc.Vendor) == known.VendorID && uint16(desc.Product) == known.ProductID {
			return InterfaceInfo{
				Kind:        InterfaceKindCMSISDAP,
				Description: known.Description,
				VendorID:    known.VendorID,
				ProductID:   known.ProductID,
			}, true
		}
	}
	return InterfaceInfo{}, false
}

type knownUSBDevice struct {
	VendorID    uint16
	ProductID   uint16
	Description string
}

var knownCMSISDAPProbes = []knownUSBDevice{
	{VendorID: VendorIDRaspberryPi, ProductID: ProductIDCMSISDAP, Description: "Raspberry Pi Debug Probe"},
	{VendorID: 0x0d28, ProductID: 0x0204, Description: "DAPLink CMSIS-DAP"},
	{VendorID: 0x1366, ProductID: 0x0101, Description: "SEGGER J-Link CMSIS-DAP"},
}
