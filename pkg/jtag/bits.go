package jtag

// Bit returns bit i of an LSB-first byte buffer.
func Bit(buf []byte, i int) bool {
	return buf[i/8]&(1<<uint(i%8)) != 0
}

// SetBit sets or clears bit i of an LSB-first byte buffer.
func SetBit(buf []byte, i int, v bool) {
	if v {
		buf[i/8] |= 1 << uint(i%8)
	} else {
		buf[i/8] &^= 1 << uint(i%8)
	}
}

// BytesFor returns the number of bytes needed to hold bits.
func BytesFor(bits int) int {
	return (bits + 7) / 8
}

// Uint32ToBools expands v LSB first.
func Uint32ToBools(v uint32) []bool {
	out := make([]bool, 32)
	for i := range out {
		out[i] = v&(1<<uint(i)) != 0
	}
	return out
}

// BoolsToUint64 packs up to 64 bits, LSB first.
func BoolsToUint64(bits []bool) uint64 {
	var v uint64
	for i, b := range bits {
		if i >= 64 {
			break
		}
		if b {
			v |= 1 << uint(i)
		}
	}
	return v
}

// BoolsToBytes packs bits LSB first.
func BoolsToBytes(bits []bool) []byte {
	out := make([]byte, BytesFor(len(bits)))
	for i, b := range bits {
		if b {
			out[i/8] |= 1 << uint(i%8)
		}
	}
	return out
}

// BytesToBools expands the first n bits of buf.
func BytesToBools(buf []byte, n int) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = Bit(buf, i)
	}
	return out
}
