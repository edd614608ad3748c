package timing

import (
	"errors"
	"testing"
	"time"

	"periph.io/x/conn/v3/physic"
)

func TestWaitForSucceedsWhenConditionTurnsTrue(t *testing.T) {
	clk := NewFake(time.Microsecond)
	polls := 0
	err := WaitFor(clk, time.Millisecond, func() bool {
		polls++
		return polls == 3
	})
	if err != nil {
		t.Fatalf("WaitFor returned error: %v", err)
	}
	if polls != 3 {
		t.Fatalf("polls = %d, want 3", polls)
	}
}

func TestWaitForTimesOut(t *testing.T) {
	clk := NewFake(100 * time.Microsecond)
	err := WaitFor(clk, time.Millisecond, func() bool { return false })
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("WaitFor error = %v, want ErrTimeout", err)
	}
}

func TestFakeSleepAccumulates(t *testing.T) {
	clk := NewFake(0)
	before := clk.Now()
	clk.Sleep(FusePulseHold)
	clk.Sleep(ProgramSettle)
	clk.Advance(time.Second)
	if got := clk.Slept(); got != FusePulseHold+ProgramSettle {
		t.Fatalf("Slept() = %s", got)
	}
	if got := clk.Now().Sub(before); got != time.Second+FusePulseHold+ProgramSettle {
		t.Fatalf("elapsed = %s", got)
	}
}

func TestSystemSleepShortSpin(t *testing.T) {
	clk := System()
	start := clk.Now()
	clk.Sleep(50 * time.Microsecond)
	if elapsed := time.Since(start); elapsed < 50*time.Microsecond {
		t.Fatalf("slept only %s", elapsed)
	}
}

func TestHalfPeriod(t *testing.T) {
	tests := []struct {
		f    physic.Frequency
		want time.Duration
	}{
		{0, 0},
		{physic.MegaHertz, 500 * time.Nanosecond},
		{100 * physic.KiloHertz, 5 * time.Microsecond},
	}
	for _, tt := range tests {
		if got := HalfPeriod(tt.f); got != tt.want {
			t.Fatalf("HalfPeriod(%s) = %v, want %v", tt.f, got, tt.want)
		}
	}
}
