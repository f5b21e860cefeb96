// Package integral computes summed-area tables (integral images) over a
// float64 image plane, giving O(1) sums, means and variances of rectangles.
package integral

import (
	"gonum.org/v1/gonum/mat"
)

// Image holds the integral image of a plane and, optionally, the integral of
// its squared values. Both tables have one extra leading row and column of
// zeros so that window queries need no special cases at the border.
type Image struct {
	rows, cols int
	stride     int
	sum        []float64
	sq         []float64
}

// New builds the integral image of m. When squares is true the integral
// square image is built as well.
func New(m mat.Matrix, squares bool) *Image {
	rows, cols := m.Dims()
	stride := cols + 1
	ii := &Image{
		rows:   rows,
		cols:   cols,
		stride: stride,
		sum:    make([]float64, (rows+1)*stride),
	}
	if squares {
		ii.sq = make([]float64, (rows+1)*stride)
	}

	var raw []float64
	rawStride := 0
	if d, ok := m.(*mat.Dense); ok {
		r := d.RawMatrix()
		raw, rawStride = r.Data, r.Stride
	}

	for y := 0; y < rows; y++ {
		var rowSum, rowSq float64
		above := y * stride
		cur := (y + 1) * stride
		for x := 0; x < cols; x++ {
			var v float64
			if raw != nil {
				v = raw[y*rawStride+x]
			} else {
				v = m.At(y, x)
			}
			rowSum += v
			ii.sum[cur+x+1] = ii.sum[above+x+1] + rowSum
			if ii.sq != nil {
				rowSq += v * v
				ii.sq[cur+x+1] = ii.sq[above+x+1] + rowSq
			}
		}
	}
	return ii
}

// Dims returns the size of the source plane.
func (ii *Image) Dims() (rows, cols int) { return ii.rows, ii.cols }

// HasSquares reports whether the integral square image was built.
func (ii *Image) HasSquares() bool { return ii.sq != nil }

// Contains reports whether the window lies inside the source plane.
func (ii *Image) Contains(top, left, height, width int) bool {
	return top >= 0 && left >= 0 && height >= 0 && width >= 0 &&
		top+height <= ii.rows && left+width <= ii.cols
}

// Sum returns the sum of the window. The window must be inside the plane.
func (ii *Image) Sum(top, left, height, width int) float64 {
	return ii.window(ii.sum, top, left, height, width)
}

// SquareSum returns the sum of squared values of the window; ok is false
// when the integral square image was not built.
func (ii *Image) SquareSum(top, left, height, width int) (s float64, ok bool) {
	if ii.sq == nil {
		return 0, false
	}
	return ii.window(ii.sq, top, left, height, width), true
}

// Mean returns the mean value of a non-empty window.
func (ii *Image) Mean(top, left, height, width int) float64 {
	n := float64(height * width)
	if n == 0 {
		return 0
	}
	return ii.Sum(top, left, height, width) / n
}

// MeanVariance returns the mean and the population variance of the window.
// ok is false when the integral square image was not built.
func (ii *Image) MeanVariance(top, left, height, width int) (mean, variance float64, ok bool) {
	sq, ok := ii.SquareSum(top, left, height, width)
	if !ok {
		return 0, 0, false
	}
	n := float64(height * width)
	if n == 0 {
		return 0, 0, true
	}
	mean = ii.Sum(top, left, height, width) / n
	variance = sq/n - mean*mean
	if variance < 0 {
		// rounding on flat windows
		variance = 0
	}
	return mean, variance, true
}

func (ii *Image) window(t []float64, top, left, height, width int) float64 {
	y0, x0 := top, left
	y1, x1 := top+height, left+width
	s := ii.stride
	return t[y1*s+x1] - t[y0*s+x1] - t[y1*s+x0] + t[y0*s+x0]
}
