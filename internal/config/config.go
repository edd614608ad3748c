// Package config loads the otk configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"

	"github.com/OpenTraceLab/OpenTraceKey/pkg/jtag"
	"github.com/OpenTraceLab/OpenTraceKey/pkg/timing"
)

// Config is the on-disk configuration.
type Config struct {
	Backend          string            `yaml:"backend"`
	Pins             map[string]string `yaml:"pins"`
	TCK              Frequency         `yaml:"tck"`
	HandshakeTimeout time.Duration     `yaml:"handshake_timeout"`
	Serial           Serial            `yaml:"serial"`
	USB              USB               `yaml:"usb"`
	Sim              Sim               `yaml:"sim"`
}

// Serial selects the Bus Pirate port.
type Serial struct {
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
}

// USB selects a CMSIS-DAP probe. Zero IDs match the first known probe.
type USB struct {
	VID uint16 `yaml:"vid"`
	PID uint16 `yaml:"pid"`
}

// Sim configures the simulated backend.
type Sim struct {
	IDCode uint32 `yaml:"idcode"`
}

// Frequency is a TCK rate written as "1MHz", "400kHz" and so on.
type Frequency struct {
	physic.Frequency
}

func (f *Frequency) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	if err := f.Set(s); err != nil {
		return fmt.Errorf("tck: %w", err)
	}
	return nil
}

func (f Frequency) MarshalYAML() (interface{}, error) {
	return f.String(), nil
}

// Default returns the settings used when no file exists.
func Default() *Config {
	return &Config{
		Backend:          string(jtag.InterfaceKindSim),
		TCK:              Frequency{physic.MegaHertz},
		HandshakeTimeout: timing.DefaultHandshakeTimeout,
		Serial:           Serial{Device: "/dev/ttyUSB0", Baud: 115200},
		Sim:              Sim{IDCode: 0x13727093},
	}
}

// DefaultPath returns the per-user configuration file location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: %w", err)
	}
	return filepath.Join(dir, "opentracekey", "config.yaml"), nil
}

// Load reads path over the defaults. An empty path means DefaultPath, and
// a missing default file is not an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return Default(), nil
		}
		path = p
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("config: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("%w: %v", jtag.ErrConfiguration, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Kind returns the configured backend.
func (c *Config) Kind() (jtag.InterfaceKind, error) {
	return jtag.ParseInterfaceKind(c.Backend)
}

// PinMap resolves the pins section. Handshake lines are optional; when any
// is given, all three must be.
func (c *Config) PinMap() (jtag.PinMap, error) {
	m := make(jtag.PinMap, len(c.Pins))
	for name, line := range c.Pins {
		p, err := jtag.ParsePin(name)
		if err != nil {
			return nil, err
		}
		m[p] = line
	}
	var extra []jtag.Pin
	for _, p := range jtag.HandshakePins {
		if m[p] != "" {
			extra = jtag.HandshakePins
			break
		}
	}
	if err := m.Validate(extra...); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks the settings the selected backend depends on.
func (c *Config) Validate() error {
	kind, err := c.Kind()
	if err != nil {
		return err
	}
	if c.HandshakeTimeout <= 0 {
		return fmt.Errorf("%w: handshake_timeout must be positive", jtag.ErrConfiguration)
	}
	if c.TCK.Frequency < 0 {
		return fmt.Errorf("%w: negative tck", jtag.ErrConfiguration)
	}
	switch kind {
	case jtag.InterfaceKindGPIO, jtag.InterfaceKindRPIO:
		m, err := c.PinMap()
		if err != nil {
			return err
		}
		if kind == jtag.InterfaceKindRPIO {
			for _, line := range m {
				if _, err := jtag.ParseBCM(line); err != nil {
					return err
				}
			}
		}
	case jtag.InterfaceKindBusPirate:
		if c.Serial.Device == "" {
			return fmt.Errorf("%w: serial.device not set", jtag.ErrConfiguration)
		}
		if c.Serial.Baud <= 0 {
			return fmt.Errorf("%w: serial.baud must be positive", jtag.ErrConfiguration)
		}
	}
	return nil
}
