package cmd

import (
	"fmt"
	"io"

	"periph.io/x/conn/v3/physic"

	"github.com/OpenTraceLab/OpenTraceKey/internal/config"
	"github.com/OpenTraceLab/OpenTraceKey/pkg/chain"
	"github.com/OpenTraceLab/OpenTraceKey/pkg/idcode/deviceinfo"
	"github.com/OpenTraceLab/OpenTraceKey/pkg/jtag"
	"github.com/OpenTraceLab/OpenTraceKey/pkg/port"
	"github.com/OpenTraceLab/OpenTraceKey/pkg/provision"
	"github.com/OpenTraceLab/OpenTraceKey/pkg/timing"
)

// zynqDAP is the ARM debug port that shares the chain with a Zynq PL TAP.
const zynqDAP = 0x4BA00477

// simDevice, when set, is used by the sim backend instead of a fresh
// device. Tests preload it.
var simDevice *provision.SimDevice

// backend is an open pin driver.
type backend struct {
	kind   jtag.InterfaceKind
	pins   jtag.Pins
	closer io.Closer
}

func (b *backend) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer.Close()
}

// loadConfig reads the configuration file and applies command-line
// overrides.
func loadConfig() (*config.Config, error) {
	c, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if backendFlag != "" {
		c.Backend = backendFlag
	}
	if tckFlag != "" {
		if err := c.TCK.Set(tckFlag); err != nil {
			return nil, fmt.Errorf("%w: --tck: %v", jtag.ErrConfiguration, err)
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func openBackend(c *config.Config) (*backend, error) {
	kind, err := c.Kind()
	if err != nil {
		return nil, err
	}
	b := &backend{kind: kind}

	switch kind {
	case jtag.InterfaceKindSim:
		dev := simDevice
		if dev == nil {
			dev = provision.NewSimDevice(c.Sim.IDCode)
		}
		var others []*jtag.SimTAP
		if id, ok := deviceinfo.Identify(c.Sim.IDCode); ok &&
			(id.Family == deviceinfo.FamilyZynq7000 || id.Family == deviceinfo.FamilyZynqMPSoC) {
			others = append(others, jtag.NewSimTAP(zynqDAP, 4, 0x0E))
		}
		b.pins = dev.Pins(others...)

	case jtag.InterfaceKindGPIO:
		m, err := c.PinMap()
		if err != nil {
			return nil, err
		}
		g, err := jtag.OpenGPIO(m)
		if err != nil {
			return nil, err
		}
		b.pins, b.closer = g, g

	case jtag.InterfaceKindRPIO:
		m, err := c.PinMap()
		if err != nil {
			return nil, err
		}
		r, err := jtag.OpenRPIO(m)
		if err != nil {
			return nil, err
		}
		b.pins, b.closer = r, r

	case jtag.InterfaceKindBusPirate:
		bp, err := jtag.OpenBusPirate(c.Serial.Device, c.Serial.Baud)
		if err != nil {
			return nil, err
		}
		b.pins, b.closer = bp, bp

	case jtag.InterfaceKindCMSISDAP:
		dap, err := jtag.OpenCMSISDAP(c.USB.VID, c.USB.PID)
		if err != nil {
			return nil, err
		}
		if hz := c.TCK.Frequency / physic.Hertz; hz > 0 {
			if err := dap.SetClock(uint32(hz)); err != nil {
				dap.Close()
				return nil, err
			}
		}
		b.pins, b.closer = dap, dap
	}
	return b, nil
}

// openPort opens the configured backend and wraps it in a port.
func openPort() (*port.Port, *backend, *config.Config, error) {
	c, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	b, err := openBackend(c)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open %s: %w", c.Backend, err)
	}
	half := timing.HalfPeriod(c.TCK.Frequency)
	if b.kind == jtag.InterfaceKindSim || b.kind == jtag.InterfaceKindCMSISDAP {
		// The simulator needs no pacing and the probe paces itself.
		half = 0
	}
	logger().Printf("backend %s, TCK %s", b.kind, c.TCK)
	p := port.New(b.pins, port.WithHalfPeriod(half), port.WithLogger(logger()))
	return p, b, c, nil
}

// openSession opens the port, resets the TAP and scans the chain.
func openSession() (*chain.Session, *backend, *config.Config, error) {
	p, b, c, err := openPort()
	if err != nil {
		return nil, nil, nil, err
	}
	s := chain.NewSession(p)
	s.Log = logger()
	if err := s.Scan(); err != nil {
		b.Close()
		return nil, nil, nil, err
	}
	return s, b, c, nil
}

// openTarget scans and selects the configuration TAP.
func openTarget() (*chain.Session, *backend, *config.Config, error) {
	s, b, c, err := openSession()
	if err != nil {
		return nil, nil, nil, err
	}
	n, err := s.SelectProgrammable()
	if err != nil {
		b.Close()
		return nil, nil, nil, err
	}
	logger().Printf("target %s", n)
	return s, b, c, nil
}
