package extractor

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/mat"

	"github.com/MeKo-Tech/lbpfeat/internal/integral"
)

// Pixels is an image that can be prepared: either GrayPixels or FloatPixels.
type Pixels interface {
	size() (rows, cols int)
	// resample returns the image scaled to rows x cols as a float64 plane.
	resample(rows, cols int) *mat.Dense
}

// GrayPixels wraps an 8 bit image.
type GrayPixels struct {
	*image.Gray
}

func (g GrayPixels) size() (int, int) {
	if g.Gray == nil {
		return 0, 0
	}
	b := g.Bounds()
	return b.Dy(), b.Dx()
}

func (g GrayPixels) resample(rows, cols int) *mat.Dense {
	src := g.Gray
	if h, w := g.size(); h != rows || w != cols {
		scaled := imaging.Resize(g.Gray, cols, rows, imaging.Linear)
		plane := mat.NewDense(rows, cols, nil)
		for y := 0; y < rows; y++ {
			row := scaled.Pix[y*scaled.Stride:]
			for x := 0; x < cols; x++ {
				plane.Set(y, x, float64(row[4*x]))
			}
		}
		return plane
	}
	b := src.Bounds()
	plane := mat.NewDense(rows, cols, nil)
	for y := 0; y < rows; y++ {
		row := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
		for x := 0; x < cols; x++ {
			plane.Set(y, x, float64(row[x]))
		}
	}
	return plane
}

// FloatPixels wraps a floating point image.
type FloatPixels struct {
	mat.Matrix
}

func (f FloatPixels) size() (int, int) {
	if f.Matrix == nil {
		return 0, 0
	}
	return f.Dims()
}

func (f FloatPixels) resample(rows, cols int) *mat.Dense {
	h, w := f.Dims()
	if h == rows && w == cols {
		return mat.DenseCopyOf(f.Matrix)
	}
	return bilinear(f.Matrix, rows, cols)
}

// bilinear resizes m to rows x cols, mapping pixel centers onto each other.
func bilinear(m mat.Matrix, rows, cols int) *mat.Dense {
	h, w := m.Dims()
	out := mat.NewDense(rows, cols, nil)
	fy, fx := float64(h)/float64(rows), float64(w)/float64(cols)
	for y := 0; y < rows; y++ {
		sy := clamp((float64(y)+0.5)*fy-0.5, float64(h-1))
		y0 := int(sy)
		y1 := min(y0+1, h-1)
		wy := sy - float64(y0)
		for x := 0; x < cols; x++ {
			sx := clamp((float64(x)+0.5)*fx-0.5, float64(w-1))
			x0 := int(sx)
			x1 := min(x0+1, w-1)
			wx := sx - float64(x0)
			top := m.At(y0, x0)*(1-wx) + m.At(y0, x1)*wx
			bottom := m.At(y1, x0)*(1-wx) + m.At(y1, x1)*wx
			out.Set(y, x, top*(1-wy)+bottom*wy)
		}
	}
	return out
}

func clamp(v, hi float64) float64 {
	return math.Max(0, math.Min(v, hi))
}

// PixelsFromImage converts a decoded image to GrayPixels.
func PixelsFromImage(img image.Image) (Pixels, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, newError(ErrInvalidArgument, "pixels", "empty image")
	}
	if g, ok := img.(*image.Gray); ok {
		return GrayPixels{g}, nil
	}
	gray := imaging.Grayscale(img)
	b := gray.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		src := gray.Pix[y*gray.Stride:]
		dst := out.Pix[y*out.Stride:]
		for x := 0; x < b.Dx(); x++ {
			dst[x] = src[4*x]
		}
	}
	return GrayPixels{out}, nil
}

// PixelsFromRows builds FloatPixels from equally long rows.
func PixelsFromRows(rows [][]float64) (Pixels, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, newError(ErrInvalidArgument, "pixels", "empty image")
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return nil, newError(ErrInvalidArgument, "pixels", "row %d has %d values, want %d", i, len(r), cols)
		}
		data = append(data, r...)
	}
	return FloatPixels{mat.NewDense(len(rows), cols, data)}, nil
}

// imageContext is the prepared image of one scale. It implements lbp.Source.
type imageContext struct {
	plane   *mat.Dense
	raw     []float64
	stride  int
	rows    int
	cols    int
	scale   float64
	sums    *integral.Image
	squares bool
}

func (c *imageContext) Dims() (int, int) { return c.rows, c.cols }

func (c *imageContext) At(y, x int) float64 { return c.raw[y*c.stride+x] }

func (c *imageContext) BlockSum(top, left, height, width int) float64 {
	return c.sums.Sum(top, left, height, width)
}

// Prepare scales img by scale and makes it the image all following
// extractions read from. The integral image is always computed; the integral
// square image only when withSquares is set, which MeanVariance requires.
// On error the extractor is left without a prepared image.
func (e *Extractor) Prepare(img Pixels, scale float64, withSquares bool) error {
	e.ctx = nil
	if img == nil {
		return newError(ErrInvalidArgument, "prepare", "nil image")
	}
	h, w := img.size()
	if h <= 0 || w <= 0 {
		return newError(ErrInvalidArgument, "prepare", "image has size %dx%d", h, w)
	}
	if !(scale > 0) || math.IsInf(scale, 0) {
		return newError(ErrInvalidArgument, "prepare", "scale %g must be positive and finite", scale)
	}

	rows := max(1, int(math.Round(float64(h)*scale)))
	cols := max(1, int(math.Round(float64(w)*scale)))
	plane := img.resample(rows, cols)
	raw := plane.RawMatrix()
	e.ctx = &imageContext{
		plane:   plane,
		raw:     raw.Data,
		stride:  raw.Stride,
		rows:    rows,
		cols:    cols,
		scale:   scale,
		sums:    integral.New(plane, withSquares),
		squares: withSquares,
	}
	return nil
}

// Prepared reports whether an image has been prepared.
func (e *Extractor) Prepared() bool { return e.ctx != nil }

// Image returns the prepared image, nil before Prepare. The matrix must not
// be modified.
func (e *Extractor) Image() mat.Matrix {
	if e.ctx == nil {
		return nil
	}
	return e.ctx.plane
}

// Scale returns the scale of the prepared image, 0 before Prepare.
func (e *Extractor) Scale() float64 {
	if e.ctx == nil {
		return 0
	}
	return e.ctx.scale
}
