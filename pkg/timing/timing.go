// Package timing supplies the clock used for JTAG pulse widths, settle delays
// and handshake timeouts. Everything that waits goes through a Clock so tests
// can substitute Fake.
package timing

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/physic"
)

const (
	// FusePulseHold is how long the fuse-blow request is held once the
	// hardware module reports ready.
	FusePulseHold = 12 * time.Microsecond

	// ProgramSettle is the wait after JPROGRAM before the configuration
	// logic accepts further ISC instructions.
	ProgramSettle = 100 * time.Millisecond

	// DefaultHandshakeTimeout bounds each wait on the fuse hardware module.
	DefaultHandshakeTimeout = 5 * time.Millisecond

	// spinThreshold is the longest delay served by spinning rather than
	// parking the goroutine.
	spinThreshold = time.Millisecond
)

// ErrTimeout is returned by WaitFor when the condition did not hold in time.
var ErrTimeout = errors.New("timing: timed out")

// Clock is a monotonic time source with a blocking delay.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

// System returns the wall clock. Sleeps shorter than a millisecond busy-wait
// so microsecond holds are not stretched by the scheduler.
func System() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	if d >= spinThreshold {
		time.Sleep(d)
		return
	}
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
	}
}

// Fake is a manually driven clock. Each call to Now advances time by Step,
// which lets polling loops reach their deadline without real waiting.
type Fake struct {
	mu    sync.Mutex
	now   time.Time
	Step  time.Duration
	slept time.Duration
}

// NewFake returns a fake clock starting at an arbitrary fixed instant.
func NewFake(step time.Duration) *Fake {
	return &Fake{now: time.Unix(0, 0), Step: step}
}

// Now implements Clock.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.now
	f.now = f.now.Add(f.Step)
	return t
}

// Sleep implements Clock by advancing time.
func (f *Fake) Sleep(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d > 0 {
		f.now = f.now.Add(d)
		f.slept += d
	}
}

// Advance moves the clock forward without counting it as sleep.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// Slept reports the total duration passed to Sleep.
func (f *Fake) Slept() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.slept
}

// WaitFor polls cond until it returns true or timeout elapses on clk. The
// condition is always evaluated at least once.
func WaitFor(clk Clock, timeout time.Duration, cond func() bool) error {
	start := clk.Now()
	for {
		if cond() {
			return nil
		}
		if elapsed := clk.Now().Sub(start); elapsed >= timeout {
			return fmt.Errorf("%w after %s", ErrTimeout, elapsed)
		}
	}
}

// HalfPeriod converts a TCK frequency to the delay between edges. Zero
// means unthrottled.
func HalfPeriod(f physic.Frequency) time.Duration {
	if f <= 0 {
		return 0
	}
	return f.Period() / 2
}
