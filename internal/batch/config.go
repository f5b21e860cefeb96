package batch

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/MeKo-Tech/lbpfeat/internal/bbox"
	"github.com/MeKo-Tech/lbpfeat/internal/extractor"
)

// Config holds all configuration for batch extraction.
type Config struct {
	// Extractor is the model; every worker extracts with its own clone.
	Extractor *extractor.Extractor

	// Scales are factors applied on top of the scale that maps an
	// annotated box onto the patch.
	Scales  []float64
	Squares bool

	// Parallel processing settings
	Workers         int
	ContinueOnError bool

	// File discovery settings
	IncludePatterns []string
	ExcludePatterns []string

	// Metrics are written to MetricsFile in the Prometheus text format when set.
	MetricsFile string

	// Progress is notified as images complete; nil disables reporting.
	Progress Progress
}

// Validate checks the configuration and fills in defaults.
func (c *Config) Validate() error {
	if c.Extractor == nil {
		return errors.New("no extractor configured")
	}
	if c.Extractor.NumberOfFeatures() == 0 {
		return errors.New("extractor has no features")
	}
	if len(c.Scales) == 0 {
		c.Scales = []float64{1}
	}
	for _, s := range c.Scales {
		if !(s > 0) {
			return fmt.Errorf("invalid scale %g", s)
		}
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	return nil
}

// Sample describes one dataset row.
type Sample struct {
	Image string
	// Box is the annotated box in original image coordinates.
	Box bbox.Box
	// Factor is the entry of Config.Scales this row was extracted at and
	// Scale the resulting scale the image was prepared at.
	Factor float64
	Scale  float64
	// Patch is the extracted patch in prepared image coordinates.
	Patch bbox.Box
}

// Failure records a sample or image that could not be extracted.
type Failure struct {
	Image  string
	Box    bbox.Box
	Factor float64
	Err    error
}

// Result holds the result of batch extraction. Row i of Dataset belongs to Samples[i].
type Result struct {
	Extractor   *extractor.Extractor
	Factors     []float64
	Samples     []Sample
	Dataset     *extractor.Dataset
	Labels      int
	Failures    []Failure
	Images      int
	Duration    time.Duration
	WorkerCount int
}

// SaveResults writes the dataset to outputFile, or to stdout when it is empty.
func (r *Result) SaveResults(format, outputFile string) error {
	var w io.Writer = os.Stdout
	if outputFile != "" {
		f, err := os.Create(outputFile) //nolint:gosec // G304: output path is user provided
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() { _ = f.Close() }()
		w = f
	}
	if err := r.Write(w, format); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	return nil
}

// PrintStats writes processing statistics to w.
func (r *Result) PrintStats(w io.Writer) {
	stats := r.Stats()
	_, _ = fmt.Fprintf(w, "\nExtraction Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Images: %d\n", stats.Images)
	_, _ = fmt.Fprintf(w, "  Samples: %d\n", stats.Samples)
	_, _ = fmt.Fprintf(w, "  Failed: %d\n", stats.Failed)
	_, _ = fmt.Fprintf(w, "  Features per sample: %d\n", stats.Features)
	_, _ = fmt.Fprintf(w, "  Workers: %d\n", stats.WorkerCount)
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", stats.Duration.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  Throughput: %.1f samples/sec\n", stats.ThroughputPerSec)
	_, _ = fmt.Fprintf(w, "  Label entropy: %.3f nats\n", stats.LabelEntropy)
}
