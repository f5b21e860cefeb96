package lbp

import (
	"fmt"

	"github.com/MeKo-Tech/lbpfeat/internal/store"
)

// Save writes the operator configuration into g.
func (l *LBP) Save(g store.Writer) error {
	c := l.cfg
	g.SetInt("neighbors", c.Neighbors)
	g.SetBool("multi_block", c.MultiBlock())
	if c.MultiBlock() {
		if err := g.SetArray("block_size", pair(c.BlockHeight, c.BlockWidth)); err != nil {
			return err
		}
		if err := g.SetArray("block_overlap", pair(c.OverlapY, c.OverlapX)); err != nil {
			return err
		}
	} else {
		g.SetFloat("radius_y", c.RadiusY)
		g.SetFloat("radius_x", c.RadiusX)
		g.SetBool("circular", c.Circular)
	}
	g.SetBool("uniform", c.Uniform)
	g.SetBool("rotation_invariant", c.RotationInvariant)
	g.SetBool("to_average", c.ToAverage)
	g.SetBool("add_average_bit", c.AddAverageBit)
	g.SetString("type", c.Type.String())
	return nil
}

// Load reads an operator written by Save.
func Load(r store.Reader) (*LBP, error) {
	var (
		c   Config
		err error
	)
	rd := reader{r: r}
	c.Neighbors = rd.int("neighbors")
	if rd.bool("multi_block") {
		c.BlockHeight, c.BlockWidth = rd.pair("block_size")
		c.OverlapY, c.OverlapX = rd.pair("block_overlap")
	} else {
		c.RadiusY = rd.float("radius_y")
		c.RadiusX = rd.float("radius_x")
		c.Circular = rd.bool("circular")
	}
	c.Uniform = rd.bool("uniform")
	c.RotationInvariant = rd.bool("rotation_invariant")
	c.ToAverage = rd.bool("to_average")
	c.AddAverageBit = rd.bool("add_average_bit")
	typ := rd.string("type")
	if rd.err != nil {
		return nil, fmt.Errorf("load LBP: %w", rd.err)
	}
	if c.Type, err = ParseType(typ); err != nil {
		return nil, fmt.Errorf("load LBP: %w", err)
	}
	op, err := New(c)
	if err != nil {
		return nil, fmt.Errorf("load LBP: %w", err)
	}
	return op, nil
}

func pair(a, b int) store.Array {
	arr := store.NewArray(2)
	arr.Data[0], arr.Data[1] = int32(a), int32(b)
	return arr
}

// reader keeps the first error so Load can read all fields in a row.
type reader struct {
	r   store.Reader
	err error
}

func (rd *reader) int(name string) int {
	if rd.err != nil {
		return 0
	}
	v, err := rd.r.Int(name)
	rd.err = err
	return v
}

func (rd *reader) float(name string) float64 {
	if rd.err != nil {
		return 0
	}
	v, err := rd.r.Float(name)
	rd.err = err
	return v
}

func (rd *reader) bool(name string) bool {
	if rd.err != nil {
		return false
	}
	v, err := rd.r.Bool(name)
	rd.err = err
	return v
}

func (rd *reader) string(name string) string {
	if rd.err != nil {
		return ""
	}
	v, err := rd.r.String(name)
	rd.err = err
	return v
}

func (rd *reader) pair(name string) (int, int) {
	if rd.err != nil {
		return 0, 0
	}
	a, err := rd.r.Array(name)
	if err != nil {
		rd.err = err
		return 0, 0
	}
	if a.Len() != 2 {
		rd.err = fmt.Errorf("%w: %q has %d elements, want 2", store.ErrType, name, a.Len())
		return 0, 0
	}
	return int(a.Data[0]), int(a.Data[1])
}
