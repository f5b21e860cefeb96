package extractor

import (
	"github.com/MeKo-Tech/lbpfeat/internal/bbox"
)

// Dataset is a row-major matrix of feature codes, one row per patch.
type Dataset struct {
	Rows int
	Cols int
	Data []uint16
}

// NewDataset allocates a zeroed rows x cols dataset.
func NewDataset(rows, cols int) *Dataset {
	return &Dataset{Rows: rows, Cols: cols, Data: make([]uint16, rows*cols)}
}

// Row returns row i as a view into Data.
func (d *Dataset) Row(i int) []uint16 {
	lo, hi := i*d.Cols, (i+1)*d.Cols
	return d.Data[lo:hi:hi]
}

// checkWindow reports an error when the window of feature f, placed
// relative to box, leaves the prepared image.
func (e *Extractor) checkWindow(op string, box bbox.Box, f int) error {
	ref := e.features[f]
	en := e.entries[ref.entry]
	off := en.offsets[ref.offset]
	top, left := box.Top+off.Y, box.Left+off.X
	sh, sw := en.op.Shape()
	if top < 0 || left < 0 || top+sh > e.ctx.rows || left+sw > e.ctx.cols {
		return indexError(ErrOutOfBounds, op, f,
			"window %dx%d at offset %s of box %s leaves image %dx%d",
			sh, sw, off, box, e.ctx.rows, e.ctx.cols)
	}
	return nil
}

func (e *Extractor) code(box bbox.Box, f int) uint16 {
	ref := e.features[f]
	en := e.entries[ref.entry]
	off := en.offsets[ref.offset]
	dy, dx := en.op.Center()
	return en.op.Extract(e.ctx, box.Top+off.Y+dy, box.Left+off.X+dx)
}

// ExtractAll writes the codes of all features for box into row of ds.
// All windows are checked before the row is written.
func (e *Extractor) ExtractAll(box bbox.Box, ds *Dataset, row int) error {
	const op = "extract all"
	if e.ctx == nil {
		return newError(ErrNotPrepared, op, "call Prepare first")
	}
	if ds == nil {
		return newError(ErrInvalidArgument, op, "nil dataset")
	}
	if ds.Cols != len(e.features) || len(ds.Data) != ds.Rows*ds.Cols {
		return newError(ErrDimensionMismatch, op, "dataset is %dx%d with %d values, extractor has %d features",
			ds.Rows, ds.Cols, len(ds.Data), len(e.features))
	}
	if row < 0 || row >= ds.Rows {
		return indexError(ErrIndexOutOfRange, op, row, "dataset has %d rows", ds.Rows)
	}
	for f := range e.features {
		if err := e.checkWindow(op, box, f); err != nil {
			return err
		}
	}

	out := ds.Row(row)
	f := 0
	for _, en := range e.entries {
		dy, dx := en.op.Center()
		for _, off := range en.offsets {
			out[f] = en.op.Extract(e.ctx, box.Top+off.Y+dy, box.Left+off.X+dx)
			f++
		}
	}
	return nil
}

// ExtractIndexed writes the code of feature indices[k] to out[k]. With nil
// indices the model indices are used.
func (e *Extractor) ExtractIndexed(box bbox.Box, out []uint16, indices []int32) error {
	const op = "extract indexed"
	if e.ctx == nil {
		return newError(ErrNotPrepared, op, "call Prepare first")
	}
	if indices == nil {
		if len(e.modelIndices) == 0 {
			return newError(ErrNotConfigured, op, "no indices given and no model indices set")
		}
		indices = e.modelIndices
	}
	if len(out) != len(indices) {
		return newError(ErrDimensionMismatch, op, "feature vector has %d values for %d indices", len(out), len(indices))
	}
	for _, i := range indices {
		if i < 0 || int(i) >= len(e.features) {
			return indexError(ErrIndexOutOfRange, op, int(i), "extractor has %d features", len(e.features))
		}
		if err := e.checkWindow(op, box, int(i)); err != nil {
			return err
		}
	}
	for k, i := range indices {
		out[k] = e.code(box, int(i))
	}
	return nil
}

// Extract returns the codes of all features for box.
func (e *Extractor) Extract(box bbox.Box) ([]uint16, error) {
	ds := NewDataset(1, len(e.features))
	if err := e.ExtractAll(box, ds, 0); err != nil {
		return nil, err
	}
	return ds.Data, nil
}

// Mean returns the mean pixel value of box in the prepared image.
func (e *Extractor) Mean(box bbox.Box) (float64, error) {
	if err := e.checkStats("mean", box); err != nil {
		return 0, err
	}
	return e.ctx.sums.Mean(box.Top, box.Left, box.Height, box.Width), nil
}

// MeanVariance returns the mean and the population variance of box in the
// prepared image. The image must have been prepared with squares.
func (e *Extractor) MeanVariance(box bbox.Box) (mean, variance float64, err error) {
	const op = "mean variance"
	if err := e.checkStats(op, box); err != nil {
		return 0, 0, err
	}
	mean, variance, ok := e.ctx.sums.MeanVariance(box.Top, box.Left, box.Height, box.Width)
	if !ok {
		return 0, 0, newError(ErrNotConfigured, op, "image was prepared without integral square image")
	}
	return mean, variance, nil
}

func (e *Extractor) checkStats(op string, box bbox.Box) error {
	if e.ctx == nil {
		return newError(ErrNotPrepared, op, "call Prepare first")
	}
	if box.Empty() {
		return newError(ErrInvalidArgument, op, "empty box %s", box)
	}
	if !e.ctx.sums.Contains(box.Top, box.Left, box.Height, box.Width) {
		return newError(ErrOutOfBounds, op, "box %s leaves image %dx%d", box, e.ctx.rows, e.ctx.cols)
	}
	return nil
}
