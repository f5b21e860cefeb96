package store

import (
	"errors"
	"fmt"
)

// Array is a row-major int32 dataset with an explicit shape.
type Array struct {
	Shape []int
	Data  []int32
}

// NewArray allocates a zeroed array of the given shape.
func NewArray(shape ...int) Array {
	n := 1
	for _, d := range shape {
		n *= d
	}
	if n < 0 {
		n = 0
	}
	s := make([]int, len(shape))
	copy(s, shape)
	return Array{Shape: s, Data: make([]int32, n)}
}

// Len returns the number of elements implied by the shape.
func (a Array) Len() int {
	if len(a.Shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range a.Shape {
		n *= d
	}
	return n
}

// Validate checks that the shape is non-negative and matches the data length.
func (a Array) Validate() error {
	if len(a.Shape) == 0 {
		return errors.New("array has no shape")
	}
	for i, d := range a.Shape {
		if d < 0 {
			return fmt.Errorf("array dimension %d is negative (%d)", i, d)
		}
	}
	if a.Len() != len(a.Data) {
		return fmt.Errorf("array shape %v needs %d elements, have %d", a.Shape, a.Len(), len(a.Data))
	}
	return nil
}

// At2 returns element (i, j) of a 2D array.
func (a Array) At2(i, j int) int32 {
	return a.Data[i*a.Shape[1]+j]
}

// Set2 sets element (i, j) of a 2D array.
func (a Array) Set2(i, j int, v int32) {
	a.Data[i*a.Shape[1]+j] = v
}

// Clone returns a deep copy.
func (a Array) Clone() Array {
	s := make([]int, len(a.Shape))
	copy(s, a.Shape)
	d := make([]int32, len(a.Data))
	copy(d, a.Data)
	return Array{Shape: s, Data: d}
}

func (a Array) String() string {
	return fmt.Sprintf("int32%v%v", a.Shape, a.Data)
}
