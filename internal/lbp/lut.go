package lbp

import "math/bits"

func maxLabel(c Config) int {
	p := c.Neighbors
	var n int
	switch {
	case c.Uniform && c.RotationInvariant:
		n = p + 2
	case c.Uniform:
		n = p*(p-1) + 3
	case c.RotationInvariant:
		n = rotationClasses(p)
	default:
		n = 1 << p
	}
	if c.AddAverageBit {
		n *= 2
	}
	return n
}

// lookupTable maps raw P bit codes to labels; nil means identity.
func lookupTable(c Config) []uint16 {
	if !c.Uniform && !c.RotationInvariant {
		return nil
	}
	p := c.Neighbors
	lut := make([]uint16, 1<<p)
	switch {
	case c.Uniform && c.RotationInvariant:
		// non-uniform codes stay 0
		for code := range lut {
			if transitions(code, p) <= 2 {
				lut[code] = uint16(bits.OnesCount(uint(code)) + 1)
			}
		}
	case c.Uniform:
		next := uint16(1)
		for code := range lut {
			if transitions(code, p) <= 2 {
				lut[code] = next
				next++
			}
		}
	default:
		label := make(map[int]uint16)
		for code := range lut {
			m := minRotation(code, p)
			l, ok := label[m]
			if !ok {
				l = uint16(len(label))
				label[m] = l
			}
			lut[code] = l
		}
	}
	return lut
}

// transitions counts 0/1 changes when walking the P bits circularly.
func transitions(code, p int) int {
	mask := 1<<p - 1
	rot := ((code >> 1) | (code << (p - 1))) & mask
	return bits.OnesCount(uint(code ^ rot))
}

func minRotation(code, p int) int {
	mask := 1<<p - 1
	best := code
	c := code
	for i := 1; i < p; i++ {
		c = ((c >> 1) | (c << (p - 1))) & mask
		if c < best {
			best = c
		}
	}
	return best
}

func rotationClasses(p int) int {
	seen := make(map[int]struct{})
	for code := 0; code < 1<<p; code++ {
		seen[minRotation(code, p)] = struct{}{}
	}
	return len(seen)
}
