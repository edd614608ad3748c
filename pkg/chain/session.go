package chain

import (
	"fmt"
	"io"
	"log"

	"github.com/OpenTraceLab/OpenTraceKey/pkg/idcode/deviceinfo"
	"github.com/OpenTraceLab/OpenTraceKey/pkg/port"
	"github.com/OpenTraceLab/OpenTraceKey/pkg/seq"
)

// Node is a device on the scanned chain. Position 0 is nearest TDO.
type Node struct {
	Position int
	IDCode   uint32
	IRLen    int
	Bypass   bool
	Active   bool
	Identity *deviceinfo.Identity
}

func (n *Node) String() string {
	switch {
	case n.Bypass:
		return fmt.Sprintf("#%d BYPASS", n.Position)
	case n.Identity != nil:
		return fmt.Sprintf("#%d %s (0x%08X, IR %d)", n.Position, n.Identity.Name, n.IDCode, n.IRLen)
	}
	return fmt.Sprintf("#%d 0x%08X", n.Position, n.IDCode)
}

// Session owns a port and the chain behind it. Only one node is active at a
// time; the port's pads place every shift on that node.
type Session struct {
	Port *port.Port
	Log  *log.Logger

	nodes  []*Node
	active int
}

// NewSession wraps p. Call Scan before selecting a node.
func NewSession(p *port.Port) *Session {
	return &Session{Port: p, Log: log.New(io.Discard, "", 0), active: -1}
}

// Scan discovers the chain and identifies each device. Any IDCODE missing
// from the identity table fails the scan, since its IR length is unknown
// and no pads can be computed around it.
func (s *Session) Scan() error {
	entries, err := DetectTAPs(s.Port)
	if err != nil {
		return err
	}
	nodes := make([]*Node, len(entries))
	for i, e := range entries {
		n := &Node{Position: i, IDCode: e.IDCode, Bypass: e.Bypass}
		if e.Bypass {
			n.IRLen = 1
		} else {
			id, ok := deviceinfo.Identify(e.IDCode)
			if !ok {
				return fmt.Errorf("%w: 0x%08X at position %d", ErrUnknownDevice, e.IDCode, i)
			}
			n.IRLen = id.IRLen
			n.Identity = &id
		}
		nodes[i] = n
		s.Log.Printf("found %s", n)
	}
	s.nodes = nodes
	s.active = -1
	s.Port.SetPads(port.Pads{})
	return nil
}

// Nodes returns the scanned chain.
func (s *Session) Nodes() []*Node {
	return append([]*Node(nil), s.nodes...)
}

// Select makes node i the target of every following shift. IR pads load
// BYPASS into the other devices, so each of them adds one DR pad bit. On
// multi-SLR devices the segments other than the master are in BYPASS too.
func (s *Session) Select(i int) error {
	if i < 0 || i >= len(s.nodes) {
		return fmt.Errorf("chain: no node %d (chain has %d)", i, len(s.nodes))
	}
	var pads port.Pads
	for j, n := range s.nodes {
		switch {
		case j < i:
			pads.IRPre += n.IRLen
			pads.DRPre++
		case j > i:
			pads.IRPost += n.IRLen
			pads.DRPost++
		}
		n.Active = j == i
	}
	if id := s.nodes[i].Identity; id != nil && id.SegmentCount() > 1 {
		pads.DRPre += id.MasterSegment
		pads.DRPost += id.SegmentCount() - 1 - id.MasterSegment
	}
	s.active = i
	s.Port.SetPads(pads)
	s.Log.Printf("selected %s pads %+v", s.nodes[i], pads)
	return nil
}

// SelectProgrammable selects the first device that carries key storage.
func (s *Session) SelectProgrammable() (*Node, error) {
	for i, n := range s.nodes {
		if n.Identity != nil && n.Identity.Fuses() {
			return n, s.Select(i)
		}
	}
	return nil, fmt.Errorf("%w: no programmable device on the chain", ErrUnknownDevice)
}

// Active returns the selected node.
func (s *Session) Active() (*Node, bool) {
	if s.active < 0 {
		return nil, false
	}
	return s.nodes[s.active], true
}

// Run executes sq against the selected node.
func (s *Session) Run(sq *seq.Sequence) error {
	if err := seq.Run(s.Port, sq); err != nil {
		s.Log.Printf("sequence failed in %s: %v", s.Port.State(), err)
		return err
	}
	return nil
}
