package extractor

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/MeKo-Tech/lbpfeat/internal/bbox"
	"github.com/MeKo-Tech/lbpfeat/internal/lbp"
	"github.com/MeKo-Tech/lbpfeat/internal/testutil"
)

// detector builds the extractor the training tool uses: MB-LBP over a 24x20
// patch with all block sizes.
func detector(t *testing.T) *Extractor {
	t.Helper()
	tmpl := mustLBP(t, lbp.Config{Neighbors: 8, BlockHeight: 1, BlockWidth: 1})
	e, err := NewFromTemplate(Size{24, 20}, tmpl, DefaultTemplateOptions())
	require.NoError(t, err)
	r1 := mustLBP(t, lbp.Config{Neighbors: 8, RadiusY: 1, RadiusX: 1, Circular: true, Uniform: true})
	require.NoError(t, e.AppendOperator(r1, []Offset{{0, 0}, {10, 8}, {21, 17}}))
	return e
}

func prepared(t *testing.T, e *Extractor, squares bool) {
	t.Helper()
	img := testutil.NoiseGray(testutil.MediumSize, 11)
	require.NoError(t, e.Prepare(GrayPixels{img}, 1, squares))
}

func TestNotPrepared(t *testing.T) {
	e := detector(t)
	box := bbox.New(0, 0, 24, 20)

	err := e.ExtractAll(box, NewDataset(1, e.NumberOfFeatures()), 0)
	require.ErrorIs(t, err, ErrNotPrepared)
	err = e.ExtractIndexed(box, make([]uint16, 1), []int32{0})
	require.ErrorIs(t, err, ErrNotPrepared)
	_, err = e.Extract(box)
	require.ErrorIs(t, err, ErrNotPrepared)
	_, err = e.Mean(box)
	require.ErrorIs(t, err, ErrNotPrepared)
	_, _, err = e.MeanVariance(box)
	require.ErrorIs(t, err, ErrNotPrepared)
}

func TestExtractAllMatchesIndexed(t *testing.T) {
	e := detector(t)
	prepared(t, e, false)
	n := e.NumberOfFeatures()
	all := make([]int32, n)
	for i := range all {
		all[i] = int32(i)
	}
	ds := NewDataset(3, n)

	properties := gopter.NewProperties(nil)
	properties.Property("extract all equals indexed extraction of every feature", prop.ForAll(
		func(top, left, row int) bool {
			box := bbox.New(top, left, 24, 20)
			if err := e.ExtractAll(box, ds, row); err != nil {
				return false
			}
			out := make([]uint16, n)
			if err := e.ExtractIndexed(box, out, all); err != nil {
				return false
			}
			for i, code := range ds.Row(row) {
				if out[i] != code {
					return false
				}
				op, _ := e.Extractor(i)
				if int(code) >= op.MaxLabel() {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, testutil.MediumSize.Height-24),
		gen.IntRange(0, testutil.MediumSize.Width-20),
		gen.IntRange(0, 2),
	))
	properties.TestingRun(t)
}

func TestExtractMatchesOperator(t *testing.T) {
	e := detector(t)
	prepared(t, e, false)
	box := bbox.New(30, 40, 24, 20)
	codes, err := e.Extract(box)
	require.NoError(t, err)
	require.Len(t, codes, e.NumberOfFeatures())

	for _, i := range []int{0, 17, e.NumberOfFeatures() - 1} {
		op, err := e.Extractor(i)
		require.NoError(t, err)
		off, err := e.Offset(i)
		require.NoError(t, err)
		dy, dx := op.Center()
		want := op.Extract(e.ctx, box.Top+off.Y+dy, box.Left+off.X+dx)
		assert.Equal(t, want, codes[i], "feature %d", i)
	}
}

func TestExtractIndexedOrdering(t *testing.T) {
	e := detector(t)
	prepared(t, e, false)
	box := bbox.New(5, 5, 24, 20)
	codes, err := e.Extract(box)
	require.NoError(t, err)

	last := int32(e.NumberOfFeatures() - 1)
	out := make([]uint16, 3)
	require.NoError(t, e.ExtractIndexed(box, out, []int32{last, 0, 7}))
	assert.Equal(t, []uint16{codes[last], codes[0], codes[7]}, out)

	err = e.ExtractIndexed(box, out, nil)
	require.ErrorIs(t, err, ErrNotConfigured)

	require.NoError(t, e.SetModelIndices([]int32{7, last}))
	model := make([]uint16, 2)
	require.NoError(t, e.ExtractIndexed(box, model, nil))
	assert.Equal(t, []uint16{codes[7], codes[last]}, model)

	require.ErrorIs(t, e.ExtractIndexed(box, out, nil), ErrDimensionMismatch)
	require.ErrorIs(t, e.ExtractIndexed(box, out, []int32{0, 1}), ErrDimensionMismatch)
	require.ErrorIs(t, e.ExtractIndexed(box, out[:1], []int32{last + 1}), ErrIndexOutOfRange)
	require.ErrorIs(t, e.ExtractIndexed(box, out[:1], []int32{-1}), ErrIndexOutOfRange)
	require.NoError(t, e.ExtractIndexed(box, nil, []int32{}))
}

func TestExtractAllDimensions(t *testing.T) {
	e := detector(t)
	prepared(t, e, false)
	box := bbox.New(0, 0, 24, 20)
	n := e.NumberOfFeatures()

	require.ErrorIs(t, e.ExtractAll(box, NewDataset(2, n-1), 0), ErrDimensionMismatch)
	require.ErrorIs(t, e.ExtractAll(box, &Dataset{Rows: 2, Cols: n, Data: make([]uint16, n)}, 0), ErrDimensionMismatch)
	require.ErrorIs(t, e.ExtractAll(box, NewDataset(2, n), 2), ErrIndexOutOfRange)
	require.ErrorIs(t, e.ExtractAll(box, NewDataset(2, n), -1), ErrIndexOutOfRange)
	require.ErrorIs(t, e.ExtractAll(box, nil, 0), ErrInvalidArgument)
}

func TestExtractOutOfBoundsLeavesBufferUntouched(t *testing.T) {
	e := detector(t)
	prepared(t, e, false)
	n := e.NumberOfFeatures()
	ds := NewDataset(2, n)
	for i := range ds.Data {
		ds.Data[i] = 0xffff
	}

	rows, cols := e.Image().Dims()
	for _, box := range []bbox.Box{
		bbox.New(-1, 0, 24, 20),
		bbox.New(0, -1, 24, 20),
		bbox.New(rows-23, 0, 24, 20),
		bbox.New(0, cols-19, 24, 20),
	} {
		err := e.ExtractAll(box, ds, 1)
		require.ErrorIs(t, err, ErrOutOfBounds, box.String())
		var ee *Error
		require.ErrorAs(t, err, &ee)
		assert.GreaterOrEqual(t, ee.Index, 0)
	}
	for _, v := range ds.Data {
		require.Equal(t, uint16(0xffff), v)
	}

	out := []uint16{1, 2}
	err := e.ExtractIndexed(bbox.New(rows-1, 0, 24, 20), out, []int32{0, int32(n - 1)})
	require.ErrorIs(t, err, ErrOutOfBounds)
	assert.Equal(t, []uint16{1, 2}, out)

	// the last row and column that still fit
	require.NoError(t, e.ExtractAll(bbox.New(rows-24, cols-20, 24, 20), ds, 1))
}

func TestRowIsAView(t *testing.T) {
	ds := NewDataset(3, 4)
	ds.Row(1)[2] = 9
	assert.Equal(t, uint16(9), ds.Data[6])
	assert.Len(t, ds.Row(2), 4)
	assert.Equal(t, 4, cap(ds.Row(0)))
}

func TestMeanVarianceUniform(t *testing.T) {
	e, err := New(Size{24, 20})
	require.NoError(t, err)
	require.NoError(t, e.Prepare(GrayPixels{testutil.UniformGray(testutil.SmallSize, 77)}, 1, true))

	box := bbox.New(3, 4, 24, 20)
	mean, err := e.Mean(box)
	require.NoError(t, err)
	assert.InDelta(t, 77.0, mean, 1e-9)

	mean, variance, err := e.MeanVariance(box)
	require.NoError(t, err)
	assert.InDelta(t, 77.0, mean, 1e-9)
	assert.InDelta(t, 0.0, variance, 1e-9)
}

func TestMeanVarianceMatchesStat(t *testing.T) {
	rows := testutil.FloatRows(testutil.NoiseGray(testutil.SmallSize, 4))
	for y := range rows {
		for x := range rows[y] {
			rows[y][x] /= 255
		}
	}
	pixels, err := PixelsFromRows(rows)
	require.NoError(t, err)
	e, err := New(Size{24, 20})
	require.NoError(t, err)
	require.NoError(t, e.Prepare(pixels, 1, true))

	box := bbox.New(10, 7, 13, 21)
	var vals []float64
	for y := box.Top; y < box.Bottom(); y++ {
		vals = append(vals, rows[y][box.Left:box.Right()]...)
	}
	wantMean, wantVar := stat.PopMeanVariance(vals, nil)
	mean, variance, err := e.MeanVariance(box)
	require.NoError(t, err)
	assert.InDelta(t, wantMean, mean, 1e-9)
	assert.InDelta(t, wantVar, variance, 1e-9)
}

func TestMeanVarianceErrors(t *testing.T) {
	e, err := New(Size{24, 20})
	require.NoError(t, err)
	require.NoError(t, e.Prepare(GrayPixels{testutil.UniformGray(testutil.SmallSize, 10)}, 1, false))

	box := bbox.New(0, 0, 24, 20)
	_, err = e.Mean(box)
	require.NoError(t, err)
	_, _, err = e.MeanVariance(box)
	require.ErrorIs(t, err, ErrNotConfigured)

	_, err = e.Mean(bbox.New(40, 0, 24, 20))
	require.ErrorIs(t, err, ErrOutOfBounds)
	_, err = e.Mean(bbox.New(0, 0, 0, 20))
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestPrepareReplacesContext(t *testing.T) {
	e := detector(t)
	require.NoError(t, e.Prepare(GrayPixels{testutil.UniformGray(testutil.SmallSize, 50)}, 1, true))
	mean, err := e.Mean(bbox.New(0, 0, 10, 10))
	require.NoError(t, err)
	assert.InDelta(t, 50.0, mean, 1e-9)

	require.NoError(t, e.Prepare(GrayPixels{testutil.UniformGray(testutil.MediumSize, 120)}, 0.5, false))
	mean, err = e.Mean(bbox.New(0, 0, 10, 10))
	require.NoError(t, err)
	assert.InDelta(t, 120.0, mean, 1e-9)
	_, _, err = e.MeanVariance(bbox.New(0, 0, 10, 10))
	require.ErrorIs(t, err, ErrNotConfigured)

	rows, cols := e.Image().Dims()
	assert.Equal(t, [2]int{60, 80}, [2]int{rows, cols})
	assert.True(t, mat.Equal(e.Image(), e.Image()))
}

func TestConcurrentClonesWriteDisjointRows(t *testing.T) {
	model := detector(t)
	img := GrayPixels{testutil.NoiseGray(testutil.MediumSize, 3)}
	n := model.NumberOfFeatures()
	ds := NewDataset(4, n)

	done := make(chan error, 4)
	for w := 0; w < 4; w++ {
		go func(row int) {
			e := model.Clone()
			if err := e.Prepare(img, 1, false); err != nil {
				done <- err
				return
			}
			done <- e.ExtractAll(bbox.New(row*10, row*5, 24, 20), ds, row)
		}(w)
	}
	for w := 0; w < 4; w++ {
		require.NoError(t, <-done)
	}

	require.NoError(t, model.Prepare(img, 1, false))
	for row := 0; row < 4; row++ {
		codes, err := model.Extract(bbox.New(row*10, row*5, 24, 20))
		require.NoError(t, err)
		assert.Equal(t, codes, ds.Row(row))
	}
}
