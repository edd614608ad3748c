package jtag

import (
	"errors"
	"fmt"
)

// Root error kinds. Packages above jtag wrap one of these so callers can
// classify a failure with errors.Is without knowing which layer raised it.
var (
	// ErrConfiguration covers bad pin assignments and unrecognised devices.
	ErrConfiguration = errors.New("configuration error")

	// ErrBuilder covers sequences that were assembled incorrectly.
	ErrBuilder = errors.New("sequence builder error")

	// ErrHandshakeTimeout reports that the fuse hardware module did not
	// answer within the allotted time.
	ErrHandshakeTimeout = errors.New("hardware handshake timeout")

	// ErrVerificationMismatch reports that a readback differed from what was
	// written.
	ErrVerificationMismatch = errors.New("verification mismatch")
)

// ErrPinConfig is returned when a pin map is incomplete, overlapping or names
// a line the backend cannot drive.
var ErrPinConfig = fmt.Errorf("%w: invalid pin assignment", ErrConfiguration)
