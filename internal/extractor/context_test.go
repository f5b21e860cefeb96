package extractor

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/MeKo-Tech/lbpfeat/internal/testutil"
)

func TestPrepareRejectsInvalidInput(t *testing.T) {
	e, err := New(Size{24, 20})
	require.NoError(t, err)
	img := GrayPixels{testutil.NoiseGray(testutil.SmallSize, 1)}

	for _, scale := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		require.NoError(t, e.Prepare(img, 1, false))
		err := e.Prepare(img, scale, false)
		require.ErrorIs(t, err, ErrInvalidArgument, "scale %g", scale)
		assert.False(t, e.Prepared())
		assert.Nil(t, e.Image())
	}

	require.ErrorIs(t, e.Prepare(nil, 1, false), ErrInvalidArgument)
	require.ErrorIs(t, e.Prepare(GrayPixels{}, 1, false), ErrInvalidArgument)
	require.ErrorIs(t, e.Prepare(FloatPixels{}, 1, false), ErrInvalidArgument)
}

func TestPrepareScalesImage(t *testing.T) {
	e, err := New(Size{24, 20})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, e.Scale(), 0)

	img := GrayPixels{testutil.NoiseGray(testutil.ImageSize{Width: 8, Height: 10}, 2)}
	require.NoError(t, e.Prepare(img, 0.5, false))
	rows, cols := e.Image().Dims()
	assert.Equal(t, 5, rows)
	assert.Equal(t, 4, cols)
	assert.InDelta(t, 0.5, e.Scale(), 0)

	require.NoError(t, e.Prepare(img, 0.01, false))
	rows, cols = e.Image().Dims()
	assert.Equal(t, [2]int{1, 1}, [2]int{rows, cols})

	require.NoError(t, e.Prepare(img, 1.5, false))
	rows, cols = e.Image().Dims()
	assert.Equal(t, [2]int{15, 12}, [2]int{rows, cols})
}

func TestGrayAndFloatAgreeAtUnitScale(t *testing.T) {
	gray := testutil.NoiseGray(testutil.SmallSize, 5)
	floats, err := PixelsFromRows(testutil.FloatRows(gray))
	require.NoError(t, err)

	a, err := New(Size{24, 20})
	require.NoError(t, err)
	b := a.Clone()
	require.NoError(t, a.Prepare(GrayPixels{gray}, 1, false))
	require.NoError(t, b.Prepare(floats, 1, false))
	assert.True(t, mat.Equal(a.Image(), b.Image()))
	assert.InDelta(t, float64(gray.GrayAt(3, 2).Y), a.Image().At(2, 3), 0)
}

func TestFloatPixelsKeepPrecision(t *testing.T) {
	rows := [][]float64{
		{0.25, 0.5, 0.75, 1},
		{0.25, 0.5, 0.75, 1},
	}
	pixels, err := PixelsFromRows(rows)
	require.NoError(t, err)

	e, err := New(Size{2, 2})
	require.NoError(t, err)
	require.NoError(t, e.Prepare(pixels, 1, false))
	assert.InDelta(t, 0.75, e.Image().At(1, 2), 0)

	// a constant plane stays constant under resampling
	flat := mat.NewDense(7, 9, nil)
	for i := 0; i < 7; i++ {
		for j := 0; j < 9; j++ {
			flat.Set(i, j, 0.125)
		}
	}
	require.NoError(t, e.Prepare(FloatPixels{flat}, 1.7, false))
	r, c := e.Image().Dims()
	assert.Equal(t, [2]int{12, 15}, [2]int{r, c})
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			require.InDelta(t, 0.125, e.Image().At(i, j), 1e-12)
		}
	}
}

func TestBilinearDownscale(t *testing.T) {
	m := mat.NewDense(2, 4, []float64{
		0, 2, 4, 6,
		0, 2, 4, 6,
	})
	out := bilinear(m, 1, 2)
	assert.InDelta(t, 1.0, out.At(0, 0), 1e-12)
	assert.InDelta(t, 5.0, out.At(0, 1), 1e-12)
}

func TestGraySubImage(t *testing.T) {
	full := testutil.NoiseGray(testutil.SmallSize, 9)
	sub := full.SubImage(image.Rect(10, 5, 20, 25)).(*image.Gray)

	e, err := New(Size{4, 4})
	require.NoError(t, err)
	require.NoError(t, e.Prepare(GrayPixels{sub}, 1, false))
	rows, cols := e.Image().Dims()
	assert.Equal(t, [2]int{20, 10}, [2]int{rows, cols})
	assert.InDelta(t, float64(full.GrayAt(10, 5).Y), e.Image().At(0, 0), 0)
	assert.InDelta(t, float64(full.GrayAt(19, 24).Y), e.Image().At(19, 9), 0)
}

func TestPixelsFromImage(t *testing.T) {
	_, err := PixelsFromImage(nil)
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = PixelsFromImage(image.NewRGBA(image.Rect(0, 0, 0, 5)))
	require.ErrorIs(t, err, ErrInvalidArgument)

	rgba := image.NewRGBA(image.Rect(0, 0, 6, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 6; x++ {
			rgba.Set(x, y, color.RGBA{R: 100, G: 100, B: 100, A: 255})
		}
	}
	p, err := PixelsFromImage(rgba)
	require.NoError(t, err)
	gray, ok := p.(GrayPixels)
	require.True(t, ok)
	assert.Equal(t, image.Rect(0, 0, 6, 4), gray.Bounds())
	assert.InDelta(t, 100, int(gray.GrayAt(2, 2).Y), 1)

	g := image.NewGray(image.Rect(0, 0, 3, 3))
	p, err = PixelsFromImage(g)
	require.NoError(t, err)
	assert.Same(t, g, p.(GrayPixels).Gray)
}

func TestPixelsFromRows(t *testing.T) {
	_, err := PixelsFromRows(nil)
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = PixelsFromRows([][]float64{{}})
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = PixelsFromRows([][]float64{{1, 2}, {3}})
	require.ErrorIs(t, err, ErrInvalidArgument)
}
