package batch

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/MeKo-Tech/lbpfeat/internal/bbox"
	"github.com/MeKo-Tech/lbpfeat/internal/extractor"
)

// plan assigns dataset rows to jobs: every box of every image at every scale
// factor gets one row, in annotation order.
func plan(groups []imageGroup, factors []float64) ([]job, int) {
	jobs := make([]job, len(groups))
	row := 0
	for i, g := range groups {
		jobs[i] = job{index: i, group: g, firstRow: row}
		row += len(g.boxes) * len(factors)
	}
	return jobs, row
}

// patchScale returns the scale that maps box onto a patch of the given
// height, multiplied by factor.
func patchScale(box bbox.Box, patch extractor.Size, factor float64) float64 {
	return float64(patch.Height) / float64(box.Height) * factor
}

// patchBox centers a patch-sized box on box after scaling it by scale.
func patchBox(box bbox.Box, patch extractor.Size, scale float64) bbox.Box {
	cy := (float64(box.Top) + float64(box.Height)/2) * scale
	cx := (float64(box.Left) + float64(box.Width)/2) * scale
	top := int(math.Round(cy - float64(patch.Height)/2))
	left := int(math.Round(cx - float64(patch.Width)/2))
	return bbox.New(top, left, patch.Height, patch.Width)
}

// processImage extracts all rows of one job with e, which the calling
// worker owns. Rows that cannot be extracted are reported as failures and
// left unmarked in ok.
func processImage(e *extractor.Extractor, j job, cfg *Config, out *output) ([]Failure, error) {
	img, _, err := LoadImage(j.group.path)
	if err != nil {
		return nil, err
	}
	pixels, err := extractor.PixelsFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("convert %s: %w", j.group.path, err)
	}

	patch := e.PatchSize()
	var failures []Failure
	row := j.firstRow
	prepared := math.NaN()
	for _, box := range j.group.boxes {
		for _, factor := range cfg.Scales {
			scale := patchScale(box, patch, factor)
			if scale != prepared {
				if err := e.Prepare(pixels, scale, cfg.Squares); err != nil {
					return failures, fmt.Errorf("prepare %s at scale %g: %w", j.group.path, scale, err)
				}
				prepared = scale
			}
			pb := patchBox(box, patch, scale)
			if err := e.ExtractAll(pb, out.dataset, row); err != nil {
				slog.Debug("skipping sample", "image", j.group.path, "box", box.String(), "factor", factor, "error", err)
				failures = append(failures, Failure{Image: j.group.path, Box: box, Factor: factor, Err: err})
			} else {
				out.samples[row] = Sample{Image: j.group.path, Box: box, Factor: factor, Scale: scale, Patch: pb}
				out.ok[row] = true
			}
			row++
		}
	}
	return failures, nil
}

// output is shared by all workers; each job writes only its own rows.
type output struct {
	dataset *extractor.Dataset
	samples []Sample
	ok      []bool
}

// compact drops rows that were not extracted, keeping the order of the rest.
func (o *output) compact() ([]Sample, *extractor.Dataset) {
	kept := 0
	for r := range o.ok {
		if !o.ok[r] {
			continue
		}
		if kept != r {
			copy(o.dataset.Row(kept), o.dataset.Row(r))
			o.samples[kept] = o.samples[r]
		}
		kept++
	}
	ds := &extractor.Dataset{Rows: kept, Cols: o.dataset.Cols, Data: o.dataset.Data[:kept*o.dataset.Cols]}
	return o.samples[:kept], ds
}

func observe(m *metrics, start time.Time, samples int, failures []Failure, err error) {
	m.imageDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		m.imagesTotal.WithLabelValues("failed").Inc()
		return
	}
	m.imagesTotal.WithLabelValues("ok").Inc()
	m.samplesTotal.WithLabelValues("ok").Add(float64(samples - len(failures)))
	m.samplesTotal.WithLabelValues("failed").Add(float64(len(failures)))
}
