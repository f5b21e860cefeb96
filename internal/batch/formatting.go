package batch

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/MeKo-Tech/lbpfeat/internal/extractor"
	"github.com/MeKo-Tech/lbpfeat/internal/store"
)

// Output formats.
const (
	FormatYAML = "yaml"
	FormatCSV  = "csv"
)

// Stats holds statistics about a batch run.
type Stats struct {
	Images           int           `json:"images"`
	Samples          int           `json:"samples"`
	Failed           int           `json:"failed"`
	Features         int           `json:"features"`
	WorkerCount      int           `json:"worker_count"`
	Duration         time.Duration `json:"duration_ns"`
	ThroughputPerSec float64       `json:"throughput_per_sec"`
	// LabelEntropy is the entropy in nats of the label histogram over all codes.
	LabelEntropy float64 `json:"label_entropy"`
}

// Stats calculates statistics for the result.
func (r *Result) Stats() Stats {
	s := Stats{
		Images:       r.Images,
		Samples:      len(r.Samples),
		Failed:       len(r.Failures),
		WorkerCount:  r.WorkerCount,
		Duration:     r.Duration,
		LabelEntropy: LabelEntropy(r.Dataset, r.Labels),
	}
	if r.Dataset != nil {
		s.Features = r.Dataset.Cols
	}
	if r.Duration > 0 {
		s.ThroughputPerSec = float64(s.Samples) / r.Duration.Seconds()
	}
	return s
}

// LabelEntropy returns the entropy of the distribution of codes in ds over
// labels bins, or 0 for an empty dataset.
func LabelEntropy(ds *extractor.Dataset, labels int) float64 {
	if ds == nil || len(ds.Data) == 0 || labels <= 0 {
		return 0
	}
	hist := make([]float64, labels)
	for _, c := range ds.Data {
		if int(c) < labels {
			hist[c]++
		}
	}
	n := float64(len(ds.Data))
	for i := range hist {
		hist[i] /= n
	}
	return stat.Entropy(hist)
}

// Write writes the result in the given format.
func (r *Result) Write(w io.Writer, format string) error {
	switch format {
	case FormatCSV:
		return r.writeCSV(w)
	case FormatYAML, "":
		g, err := r.Group()
		if err != nil {
			return err
		}
		return store.Encode(w, g)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// Group stores the result, including the extractor that produced it, in a
// new store group.
func (r *Result) Group() (*store.Group, error) {
	g := store.NewGroup()
	if r.Extractor != nil {
		sub, err := g.Create("extractor")
		if err != nil {
			return nil, err
		}
		if err := r.Extractor.Save(sub); err != nil {
			return nil, fmt.Errorf("save extractor: %w", err)
		}
	}

	rows, cols := len(r.Samples), 0
	if r.Dataset != nil {
		cols = r.Dataset.Cols
	}
	g.SetInt("number_of_labels", r.Labels)
	g.SetInt("number_of_samples", rows)
	g.SetInt("number_of_features", cols)

	data := store.NewArray(rows, cols)
	if r.Dataset != nil {
		for i, c := range r.Dataset.Data[:rows*cols] {
			data.Data[i] = int32(c)
		}
	}
	if err := g.SetArray("dataset", data); err != nil {
		return nil, err
	}

	for i, f := range r.Factors {
		g.SetFloat(fmt.Sprintf("factors/factor_%d", i), f)
	}
	g.SetInt("factors/number_of_factors", len(r.Factors))

	images := make(map[string]int)
	imageIndex := store.NewArray(rows)
	factorIndex := store.NewArray(rows)
	boxes := store.NewArray(rows, 4)
	patches := store.NewArray(rows, 4)
	for i, s := range r.Samples {
		idx, ok := images[s.Image]
		if !ok {
			idx = len(images)
			images[s.Image] = idx
			g.SetString(fmt.Sprintf("images/image_%d", idx), s.Image)
		}
		imageIndex.Data[i] = int32(idx)
		factorIndex.Data[i] = int32(indexOf(r.Factors, s.Factor))
		for j, v := range []int{s.Box.Top, s.Box.Left, s.Box.Height, s.Box.Width} {
			boxes.Set2(i, j, int32(v))
		}
		for j, v := range []int{s.Patch.Top, s.Patch.Left, s.Patch.Height, s.Patch.Width} {
			patches.Set2(i, j, int32(v))
		}
	}
	g.SetInt("images/number_of_images", len(images))
	for _, a := range []struct {
		name string
		data store.Array
	}{
		{"image_index", imageIndex},
		{"factor_index", factorIndex},
		{"boxes", boxes},
		{"patches", patches},
	} {
		if err := g.SetArray(a.name, a.data); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func indexOf(values []float64, v float64) int {
	for i, x := range values {
		if x == v {
			return i
		}
	}
	return -1
}

// LoadDataset reads the dataset matrix and label count written by Group.
func LoadDataset(r store.Reader) (*extractor.Dataset, int, error) {
	labels, err := r.Int("number_of_labels")
	if err != nil {
		return nil, 0, fmt.Errorf("read number_of_labels: %w", err)
	}
	a, err := r.Array("dataset")
	if err != nil {
		return nil, 0, fmt.Errorf("read dataset: %w", err)
	}
	if len(a.Shape) != 2 {
		return nil, 0, fmt.Errorf("dataset has shape %v, want 2 dimensions", a.Shape)
	}
	ds := extractor.NewDataset(a.Shape[0], a.Shape[1])
	for i, v := range a.Data {
		if v < 0 || int(v) >= max(labels, 1) {
			return nil, 0, fmt.Errorf("dataset value %d at %d outside [0, %d)", v, i, labels)
		}
		ds.Data[i] = uint16(v)
	}
	return ds, labels, nil
}

func (r *Result) writeCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	cols := 0
	if r.Dataset != nil {
		cols = r.Dataset.Cols
	}
	header := []string{"image", "top", "left", "height", "width", "factor", "scale"}
	for f := 0; f < cols; f++ {
		header = append(header, "f"+strconv.Itoa(f))
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	rec := make([]string, 0, len(header))
	for i, s := range r.Samples {
		rec = append(rec[:0],
			s.Image,
			strconv.Itoa(s.Box.Top),
			strconv.Itoa(s.Box.Left),
			strconv.Itoa(s.Box.Height),
			strconv.Itoa(s.Box.Width),
			strconv.FormatFloat(s.Factor, 'g', -1, 64),
			strconv.FormatFloat(s.Scale, 'g', 6, 64),
		)
		for _, c := range r.Dataset.Row(i) {
			rec = append(rec, strconv.Itoa(int(c)))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
