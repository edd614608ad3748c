package jtag

// SimTarget models whatever sits on the far side of a simulated JTAG port.
// Clock is called on each rising TCK edge with the levels of TMS and TDI at
// that moment; TDO reports the level the target drives before the edge.
type SimTarget interface {
	TDO() bool
	Clock(tms, tdi bool)
}

// Edge is one rising TCK edge as seen by SimPins.
type Edge struct {
	TMS bool
	TDI bool
	TDO bool
}

// SimPins is an in-memory pin driver useful for unit tests. It counts TCK
// pulses, optionally records every edge and forwards edges to a SimTarget.
// With no target attached TDO reads high, like a floating line with a
// pull-up.
type SimPins struct {
	// Target receives TCK edges. Nil means nothing is connected.
	Target SimTarget

	// Loopback makes TDO echo the most recently written TDI, overriding
	// Target.
	Loopback bool

	// Fuse models the eFUSE hardware module. Nil means the handshake lines
	// are not wired.
	Fuse *SimFuseModule

	// Record enables the edge trace.
	Record bool

	levels [numPins]bool
	clocks int
	trace  []Edge
}

// NewSimPins returns a driver attached to target.
func NewSimPins(target SimTarget) *SimPins {
	return &SimPins{Target: target}
}

// NewLoopbackPins returns a driver whose TDO follows TDI.
func NewLoopbackPins() *SimPins {
	return &SimPins{Loopback: true}
}

func (s *SimPins) Set(p Pin, high bool) {
	if p >= numPins {
		return
	}
	prev := s.levels[p]
	s.levels[p] = high

	switch p {
	case PinTCK:
		if high && !prev {
			s.rise()
		}
	case PinHWMStart:
		if s.Fuse != nil {
			s.Fuse.setStart(high)
		}
	}
}

func (s *SimPins) Get(p Pin) bool {
	switch p {
	case PinTDO:
		return s.tdo()
	case PinHWMReady:
		return s.Fuse != nil && s.Fuse.ready()
	case PinHWMEnd:
		return s.Fuse != nil && s.Fuse.end()
	}
	if p < numPins {
		return s.levels[p]
	}
	return false
}

// Supports reports false for the handshake lines unless a fuse module is
// attached.
func (s *SimPins) Supports(p Pin) bool {
	switch p {
	case PinHWMStart, PinHWMReady, PinHWMEnd:
		return s.Fuse != nil
	}
	return p < numPins
}

// Clocks returns the number of rising TCK edges seen since the last
// ResetCounters.
func (s *SimPins) Clocks() int {
	return s.clocks
}

// Trace returns a copy of the recorded edges.
func (s *SimPins) Trace() []Edge {
	return append([]Edge(nil), s.trace...)
}

// TMSBits returns the TMS level of each recorded edge.
func (s *SimPins) TMSBits() []bool {
	out := make([]bool, len(s.trace))
	for i, e := range s.trace {
		out[i] = e.TMS
	}
	return out
}

// ResetCounters clears the clock count and the trace.
func (s *SimPins) ResetCounters() {
	s.clocks = 0
	s.trace = s.trace[:0]
}

func (s *SimPins) tdo() bool {
	if s.Loopback {
		return s.levels[PinTDI]
	}
	if s.Target != nil {
		return s.Target.TDO()
	}
	return true
}

func (s *SimPins) rise() {
	s.clocks++
	tms, tdi := s.levels[PinTMS], s.levels[PinTDI]
	if s.Record {
		s.trace = append(s.trace, Edge{TMS: tms, TDI: tdi, TDO: s.tdo()})
	}
	if s.Target != nil && !s.Loopback {
		s.Target.Clock(tms, tdi)
	}
}

// SimFuseModule stands in for the fuse-blowing hardware: raising start arms
// it, ready asserts after ReadyAfter polls, dropping start counts a pulse and
// end asserts after EndAfter further polls.
type SimFuseModule struct {
	ReadyAfter int
	EndAfter   int

	// NeverReady and NeverEnd wedge the module to exercise timeouts.
	NeverReady bool
	NeverEnd   bool

	// OnPulse is called once per completed blow request.
	OnPulse func()

	armed      bool
	pulsed     bool
	readyPolls int
	endPolls   int
	pulses     int
	started    int
}

// Pulses returns how many blow requests completed (start dropped after
// ready).
func (f *SimFuseModule) Pulses() int {
	return f.pulses
}

// Starts returns how many times start was raised.
func (f *SimFuseModule) Starts() int {
	return f.started
}

func (f *SimFuseModule) setStart(high bool) {
	switch {
	case high && !f.armed:
		f.armed = true
		f.pulsed = false
		f.readyPolls = 0
		f.endPolls = 0
		f.started++
	case !high && f.armed:
		f.armed = false
		if f.readyPolls > f.ReadyAfter && !f.NeverReady {
			f.pulsed = true
			f.pulses++
			if f.OnPulse != nil {
				f.OnPulse()
			}
		}
	}
}

func (f *SimFuseModule) ready() bool {
	if !f.armed || f.NeverReady {
		return false
	}
	f.readyPolls++
	return f.readyPolls > f.ReadyAfter
}

func (f *SimFuseModule) end() bool {
	if !f.pulsed || f.NeverEnd {
		return false
	}
	f.endPolls++
	return f.endPolls > f.EndAfter
}
