// Package lbp implements local binary pattern operators: classic (pixel
// based, rectangular or circular neighborhoods) and multi-block LBP, with
// the uniform, rotation invariant, modified census and extended coding
// variants.
package lbp

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Type selects how neighbor comparisons are turned into bits.
type Type int

const (
	// Regular compares every neighbor with the center.
	Regular Type = iota
	// Transitional compares every neighbor with its clockwise successor.
	Transitional
	// DirectionCoded encodes sign and magnitude relations of opposite neighbor pairs.
	DirectionCoded
)

var typeNames = [...]string{"regular", "transitional", "direction_coded"}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return typeNames[t]
}

// ParseType converts a type name back into a Type.
func ParseType(s string) (Type, error) {
	for i, n := range typeNames {
		if strings.EqualFold(s, n) {
			return Type(i), nil
		}
	}
	return Regular, fmt.Errorf("unknown LBP type %q", s)
}

// ErrConfig is wrapped by every configuration error returned by New.
var ErrConfig = errors.New("invalid LBP configuration")

// Source is the image an operator is evaluated on.
type Source interface {
	Dims() (rows, cols int)
	At(y, x int) float64
	// BlockSum returns the sum of the pixels in the given window.
	BlockSum(top, left, height, width int) float64
}

// Config describes an operator. A positive BlockHeight selects a
// multi-block operator; the radius fields are ignored in that case.
type Config struct {
	Neighbors int
	RadiusY   float64
	RadiusX   float64
	Circular  bool

	BlockHeight int
	BlockWidth  int
	OverlapY    int
	OverlapX    int

	Uniform           bool
	RotationInvariant bool
	ToAverage         bool
	AddAverageBit     bool
	Type              Type
}

// MultiBlock reports whether the configuration describes an MB-LBP operator.
func (c Config) MultiBlock() bool { return c.BlockHeight > 0 || c.BlockWidth > 0 }

// Validate checks the configuration.
func (c Config) Validate() error {
	switch c.Neighbors {
	case 4, 8, 16:
	default:
		return fmt.Errorf("%w: %d neighbors, want 4, 8 or 16", ErrConfig, c.Neighbors)
	}
	if c.Type < Regular || c.Type > DirectionCoded {
		return fmt.Errorf("%w: unknown type %d", ErrConfig, int(c.Type))
	}
	if c.MultiBlock() {
		if c.Neighbors != 8 {
			return fmt.Errorf("%w: multi-block operators use 8 neighbors", ErrConfig)
		}
		if c.Circular {
			return fmt.Errorf("%w: multi-block operators cannot be circular", ErrConfig)
		}
		if c.BlockHeight < 1 || c.BlockWidth < 1 {
			return fmt.Errorf("%w: block size %dx%d", ErrConfig, c.BlockHeight, c.BlockWidth)
		}
		if c.OverlapY < 0 || c.OverlapX < 0 || c.OverlapY >= c.BlockHeight || c.OverlapX >= c.BlockWidth {
			return fmt.Errorf("%w: overlap %dx%d for block %dx%d", ErrConfig,
				c.OverlapY, c.OverlapX, c.BlockHeight, c.BlockWidth)
		}
	} else {
		if !(c.RadiusY > 0) || !(c.RadiusX > 0) || math.IsInf(c.RadiusY, 0) || math.IsInf(c.RadiusX, 0) {
			return fmt.Errorf("%w: radius %gx%g", ErrConfig, c.RadiusY, c.RadiusX)
		}
		if !c.Circular {
			if c.Neighbors == 16 {
				return fmt.Errorf("%w: 16 neighbors require a circular operator", ErrConfig)
			}
			if c.RadiusY != math.Trunc(c.RadiusY) || c.RadiusX != math.Trunc(c.RadiusX) {
				return fmt.Errorf("%w: rectangular operators need integral radii, got %gx%g",
					ErrConfig, c.RadiusY, c.RadiusX)
			}
		}
	}
	if n := maxLabel(c); n > math.MaxUint16+1 {
		return fmt.Errorf("%w: %d labels do not fit into 16 bit codes", ErrConfig, n)
	}
	return nil
}

type point struct{ y, x float64 }

// LBP is an immutable operator. Use New or NewMultiBlock.
type LBP struct {
	cfg       Config
	lut       []uint16
	maxLabel  int
	neighbors []point
	// support window and evaluation point inside it
	height, width int
	cy, cx        int
}

// New builds an operator from cfg.
func New(cfg Config) (*LBP, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	op := &LBP{cfg: cfg, maxLabel: maxLabel(cfg), lut: lookupTable(cfg)}
	if cfg.MultiBlock() {
		stepY, stepX := cfg.BlockHeight-cfg.OverlapY, cfg.BlockWidth-cfg.OverlapX
		op.height = 2*stepY + cfg.BlockHeight
		op.width = 2*stepX + cfg.BlockWidth
		op.cy, op.cx = stepY, stepX
		return op, nil
	}
	ry, rx := int(math.Ceil(cfg.RadiusY)), int(math.Ceil(cfg.RadiusX))
	op.height, op.width = 2*ry+1, 2*rx+1
	op.cy, op.cx = ry, rx
	op.neighbors = neighborhood(cfg)
	return op, nil
}

// NewRadius is a shorthand for a regular 8 neighbor operator with radius r.
func NewRadius(r float64, circular bool) (*LBP, error) {
	return New(Config{Neighbors: 8, RadiusY: r, RadiusX: r, Circular: circular})
}

// NewMultiBlock is a shorthand for an MB-LBP operator with the given block
// size and overlap.
func NewMultiBlock(blockHeight, blockWidth, overlapY, overlapX int) (*LBP, error) {
	return New(Config{
		Neighbors:   8,
		BlockHeight: blockHeight,
		BlockWidth:  blockWidth,
		OverlapY:    overlapY,
		OverlapX:    overlapX,
	})
}

// neighborhood returns the sample offsets relative to the center, starting
// at the top-left neighbor and going clockwise.
func neighborhood(cfg Config) []point {
	ry, rx := cfg.RadiusY, cfg.RadiusX
	if !cfg.Circular {
		if cfg.Neighbors == 4 {
			return []point{{-ry, 0}, {0, rx}, {ry, 0}, {0, -rx}}
		}
		return []point{{-ry, -rx}, {-ry, 0}, {-ry, rx}, {0, rx}, {ry, rx}, {ry, 0}, {ry, -rx}, {0, -rx}}
	}
	out := make([]point, cfg.Neighbors)
	start := 0.0
	if cfg.Neighbors != 4 {
		// begin at the top-left diagonal like the rectangular layout
		start = -math.Pi / 4
	}
	for k := range out {
		a := start + 2*math.Pi*float64(k)/float64(cfg.Neighbors)
		out[k] = point{y: snap(-ry * math.Cos(a)), x: snap(rx * math.Sin(a))}
	}
	return out
}

func snap(v float64) float64 {
	if r := math.Round(v); math.Abs(v-r) < 1e-9 {
		return r
	}
	return v
}

// Config returns the operator's configuration.
func (l *LBP) Config() Config { return l.cfg }

// MaxLabel returns the exclusive upper bound of the codes Extract returns.
func (l *LBP) MaxLabel() int { return l.maxLabel }

// Shape returns the size of the support window.
func (l *LBP) Shape() (h, w int) { return l.height, l.width }

// Center returns the position of the evaluation point inside the support window.
func (l *LBP) Center() (dy, dx int) { return l.cy, l.cx }

// Resized returns the operator of the same kind with size (h, w): the block
// size for multi-block operators, the radii otherwise. A block overlap that
// no longer fits is reduced to the largest valid one.
func (l *LBP) Resized(h, w int) (*LBP, error) {
	cfg := l.cfg
	if cfg.MultiBlock() {
		cfg.BlockHeight, cfg.BlockWidth = h, w
		cfg.OverlapY = min(cfg.OverlapY, max(h-1, 0))
		cfg.OverlapX = min(cfg.OverlapX, max(w-1, 0))
	} else {
		cfg.RadiusY, cfg.RadiusX = float64(h), float64(w)
	}
	return New(cfg)
}

// Equal reports whether both operators have the same configuration.
func (l *LBP) Equal(o *LBP) bool {
	if l == nil || o == nil {
		return l == o
	}
	return l.cfg == o.cfg
}

// Extract computes the code at evaluation point (y, x). The caller makes sure
// the support window around (y, x) lies inside src.
func (l *LBP) Extract(src Source, y, x int) uint16 {
	var buf [16]float64
	vals := buf[:l.cfg.Neighbors]
	var center float64
	if l.cfg.MultiBlock() {
		center = l.blocks(src, y, x, vals)
	} else {
		center = src.At(y, x)
		for k, p := range l.neighbors {
			vals[k] = bilinear(src, float64(y)+p.y, float64(x)+p.x)
		}
	}

	ref := center
	avg := center
	if l.cfg.ToAverage || l.cfg.AddAverageBit {
		sum := center
		for _, v := range vals {
			sum += v
		}
		avg = sum / float64(len(vals)+1)
	}
	if l.cfg.ToAverage {
		ref = avg
	}

	code := l.bits(vals, ref)
	if l.lut != nil {
		code = int(l.lut[code])
	}
	if l.cfg.AddAverageBit {
		code <<= 1
		if center >= avg {
			code |= 1
		}
	}
	return uint16(code)
}

func (l *LBP) bits(vals []float64, ref float64) int {
	n := len(vals)
	code := 0
	switch l.cfg.Type {
	case Transitional:
		for k := 0; k < n; k++ {
			code <<= 1
			if vals[k] >= vals[(k+1)%n] {
				code |= 1
			}
		}
	case DirectionCoded:
		half := n / 2
		for k := 0; k < half; k++ {
			a, b := vals[k]-ref, vals[k+half]-ref
			code <<= 2
			if a*b >= 0 {
				code |= 2
			}
			if math.Abs(a) >= math.Abs(b) {
				code |= 1
			}
		}
	default:
		for _, v := range vals {
			code <<= 1
			if v >= ref {
				code |= 1
			}
		}
	}
	return code
}

// blocks fills vals with the clockwise neighbor block sums and returns the
// center block sum. All blocks have the same area, so sums compare like means.
func (l *LBP) blocks(src Source, y, x int, vals []float64) float64 {
	bh, bw := l.cfg.BlockHeight, l.cfg.BlockWidth
	sy, sx := l.cfg.BlockHeight-l.cfg.OverlapY, l.cfg.BlockWidth-l.cfg.OverlapX
	top, left := y-l.cy, x-l.cx
	sum := func(i, j int) float64 { return src.BlockSum(top+i*sy, left+j*sx, bh, bw) }
	vals[0] = sum(0, 0)
	vals[1] = sum(0, 1)
	vals[2] = sum(0, 2)
	vals[3] = sum(1, 2)
	vals[4] = sum(2, 2)
	vals[5] = sum(2, 1)
	vals[6] = sum(2, 0)
	vals[7] = sum(1, 0)
	return sum(1, 1)
}

func bilinear(src Source, fy, fx float64) float64 {
	y0, x0 := math.Floor(fy), math.Floor(fx)
	wy, wx := fy-y0, fx-x0
	iy, ix := int(y0), int(x0)
	v := src.At(iy, ix) * (1 - wy) * (1 - wx)
	if wx > 0 {
		v += src.At(iy, ix+1) * (1 - wy) * wx
	}
	if wy > 0 {
		v += src.At(iy+1, ix) * wy * (1 - wx)
		if wx > 0 {
			v += src.At(iy+1, ix+1) * wy * wx
		}
	}
	return v
}

func (l *LBP) String() string {
	var b strings.Builder
	if l.cfg.MultiBlock() {
		fmt.Fprintf(&b, "MBLBP%d(block=%dx%d, overlap=%dx%d", l.cfg.Neighbors,
			l.cfg.BlockHeight, l.cfg.BlockWidth, l.cfg.OverlapY, l.cfg.OverlapX)
	} else {
		fmt.Fprintf(&b, "LBP%d(radius=%gx%g", l.cfg.Neighbors, l.cfg.RadiusY, l.cfg.RadiusX)
		if l.cfg.Circular {
			b.WriteString(", circular")
		}
	}
	if l.cfg.Uniform {
		b.WriteString(", uniform")
	}
	if l.cfg.RotationInvariant {
		b.WriteString(", rotation_invariant")
	}
	if l.cfg.ToAverage {
		b.WriteString(", to_average")
	}
	if l.cfg.AddAverageBit {
		b.WriteString(", add_average_bit")
	}
	if l.cfg.Type != Regular {
		b.WriteString(", " + l.cfg.Type.String())
	}
	fmt.Fprintf(&b, ", labels=%d)", l.maxLabel)
	return b.String()
}
