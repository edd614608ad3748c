package port

import "github.com/OpenTraceLab/OpenTraceKey/pkg/tap"

// Navigate walks the controller to target using the compiled-in transition
// table. Moving to the current state clocks nothing; moving to
// Test-Logic-Reset always clocks five TMS-high cycles.
func (p *Port) Navigate(target tap.State) {
	t := tap.Lookup(p.state, target)
	for i := 0; i < t.Bits; i++ {
		p.tick(t.Bit(i), false)
	}
}

// Reset forces the controller into Test-Logic-Reset regardless of the
// tracked state.
func (p *Port) Reset() {
	t := tap.ResetTransition
	for i := 0; i < t.Bits; i++ {
		p.tick(t.Bit(i), false)
	}
	p.state = tap.StateTestLogicReset
	p.log.Printf("tap reset")
}

// Pulse clocks n cycles without leaving the current stable state: TMS is
// held high in Test-Logic-Reset and low in Run-Test/Idle and the pause
// states.
func (p *Port) Pulse(n int) {
	tms := p.state == tap.StateTestLogicReset
	for i := 0; i < n; i++ {
		p.tick(tms, false)
	}
}
