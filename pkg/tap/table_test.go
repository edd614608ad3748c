package tap

import "testing"

func TestLookupReachesTargetForAllPairs(t *testing.T) {
	for from := State(0); from < NumStates; from++ {
		for to := State(0); to < NumStates; to++ {
			tr := Lookup(from, to)
			if tr.From != from || tr.To != to {
				t.Fatalf("Lookup(%s, %s) endpoints = %s -> %s", from, to, tr.From, tr.To)
			}
			if from == to {
				if tr.Bits != 0 {
					t.Fatalf("Lookup(%s, %s).Bits = %d, want 0", from, to, tr.Bits)
				}
				continue
			}
			if tr.Bits < 1 || tr.Bits > 8 {
				t.Fatalf("Lookup(%s, %s).Bits = %d out of range", from, to, tr.Bits)
			}

			state := from
			for i := 0; i < tr.Bits; i++ {
				state = NextState(state, tr.Bit(i))
			}
			if state != to {
				t.Fatalf("Lookup(%s, %s) lands on %s", from, to, state)
			}
		}
	}
}

func TestLookupMatchesShortestPath(t *testing.T) {
	for from := State(0); from < NumStates; from++ {
		for to := State(1); to < NumStates; to++ {
			if from == to {
				continue
			}
			path, err := ShortestPath(from, to)
			if err != nil {
				t.Fatalf("ShortestPath(%s, %s): %v", from, to, err)
			}
			tr := Lookup(from, to)
			if tr.Bits != len(path.TMS) {
				t.Fatalf("Lookup(%s, %s).Bits = %d, BFS says %d", from, to, tr.Bits, len(path.TMS))
			}
			for i, bit := range path.TMS {
				if tr.Bit(i) != bit {
					t.Fatalf("Lookup(%s, %s) bit %d = %v, want %v", from, to, i, tr.Bit(i), bit)
				}
			}
		}
	}
}

func TestLookupResetIsFiveOnes(t *testing.T) {
	for from := State(1); from < NumStates; from++ {
		tr := Lookup(from, StateTestLogicReset)
		if tr.Bits != 5 || tr.TMS != 0x1F {
			t.Fatalf("Lookup(%s, reset) = %#x/%d, want 0x1F/5", from, tr.TMS, tr.Bits)
		}
	}
}
