package jtag

import (
	"errors"
	"fmt"
	"io"

	"github.com/albenik/go-serial/v2"
)

// Bus Pirate raw bit-bang (BBIO1) pin bits, shared by the direction and the
// pin-state commands.
const (
	bpCS     = 1 << 0
	bpMISO   = 1 << 1
	bpCLK    = 1 << 2
	bpMOSI   = 1 << 3
	bpAUX    = 1 << 4
	bpPullup = 1 << 5
	bpPower  = 1 << 6

	bpCmdReset     = 0x00
	bpCmdDirection = 0x40
	bpCmdPins      = 0x80
	bpCmdExit      = 0x0F

	bpResetAttempts = 20
	bpBaudrate      = 115200
)

var bpLines = map[Pin]byte{
	PinTCK:      bpCLK,
	PinTMS:      bpCS,
	PinTDI:      bpMOSI,
	PinTDO:      bpMISO,
	PinHWMStart: bpAUX,
}

var errNoBBIO = errors.New("jtag: bus pirate did not enter bit-bang mode")

// BusPiratePins drives JTAG through a Bus Pirate in raw bit-bang mode. Every
// pin update is one command byte; the reply carries the sampled pin states.
// The fuse ready/end lines are not available on this adapter.
type BusPiratePins struct {
	rw     io.ReadWriteCloser
	out    byte
	in     byte
	err    error
	buf    [1]byte
	header [5]byte
}

// OpenBusPirate opens the serial device and switches the Bus Pirate into
// bit-bang mode. A zero baud rate selects 115200.
func OpenBusPirate(device string, baud int) (*BusPiratePins, error) {
	if baud == 0 {
		baud = bpBaudrate
	}
	port, err := serial.Open(device,
		serial.WithBaudrate(baud),
		serial.WithReadTimeout(100),
	)
	if err != nil {
		return nil, fmt.Errorf("jtag: open %s: %w", device, err)
	}
	bp, err := NewBusPirate(port)
	if err != nil {
		port.Close()
		return nil, err
	}
	return bp, nil
}

// NewBusPirate performs the BBIO1 handshake over an already open stream.
func NewBusPirate(rw io.ReadWriteCloser) (*BusPiratePins, error) {
	bp := &BusPiratePins{rw: rw}
	if err := bp.enterBitbang(); err != nil {
		return nil, err
	}
	// MISO is the only input; everything else drives.
	if _, err := bp.command(bpCmdDirection | bpMISO); err != nil {
		return nil, err
	}
	bp.out = bpPower | bpPullup
	if _, err := bp.command(bpCmdPins | bp.out); err != nil {
		return nil, err
	}
	return bp, nil
}

func (bp *BusPiratePins) enterBitbang() error {
	for i := 0; i < bpResetAttempts; i++ {
		if _, err := bp.rw.Write([]byte{bpCmdReset}); err != nil {
			return fmt.Errorf("jtag: bus pirate write: %w", err)
		}
		n, err := readSome(bp.rw, bp.header[:])
		if err != nil {
			return fmt.Errorf("jtag: bus pirate read: %w", err)
		}
		if string(bp.header[:n]) == "BBIO1" {
			return nil
		}
	}
	return errNoBBIO
}

// readSome fills buf, tolerating reads that return nothing on timeout. It
// gives up after a few empty reads.
func readSome(r io.Reader, buf []byte) (int, error) {
	n, empty := 0, 0
	for n < len(buf) && empty < 3 {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			if errors.Is(err, io.EOF) {
				return n, nil
			}
			return n, err
		}
		if m == 0 {
			empty++
		}
	}
	return n, nil
}

func (bp *BusPiratePins) command(b byte) (byte, error) {
	if _, err := bp.rw.Write([]byte{b}); err != nil {
		return 0, fmt.Errorf("jtag: bus pirate write: %w", err)
	}
	n, err := readSome(bp.rw, bp.buf[:])
	if err != nil {
		return 0, fmt.Errorf("jtag: bus pirate read: %w", err)
	}
	if n != 1 {
		return 0, fmt.Errorf("jtag: bus pirate did not answer command %#02x", b)
	}
	return bp.buf[0], nil
}

func (bp *BusPiratePins) update() {
	if bp.err != nil {
		return
	}
	in, err := bp.command(bpCmdPins | bp.out)
	if err != nil {
		bp.err = err
		return
	}
	bp.in = in
}

func (bp *BusPiratePins) Set(p Pin, high bool) {
	bit, ok := bpLines[p]
	if !ok || p.Input() {
		return
	}
	if high {
		bp.out |= bit
	} else {
		bp.out &^= bit
	}
	bp.update()
}

func (bp *BusPiratePins) Get(p Pin) bool {
	bit, ok := bpLines[p]
	if !ok {
		return false
	}
	if p.Input() {
		bp.update()
		return bp.in&bit != 0
	}
	return bp.out&bit != 0
}

func (bp *BusPiratePins) Supports(p Pin) bool {
	_, ok := bpLines[p]
	return ok
}

// Err returns the first serial error.
func (bp *BusPiratePins) Err() error {
	return bp.err
}

// Close powers the target side down, returns the Bus Pirate to its terminal
// and closes the port.
func (bp *BusPiratePins) Close() error {
	bp.out = 0
	bp.update()
	_, _ = bp.rw.Write([]byte{bpCmdReset, bpCmdExit})
	if err := bp.rw.Close(); err != nil {
		return err
	}
	return bp.err
}
