// Package batch extracts LBP feature datasets from annotated images.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/lbpfeat/internal/extractor"
)

// ProcessAnnotations extracts one dataset row per annotated box and scale
// factor listed in the annotation file.
func ProcessAnnotations(ctx context.Context, annotationsPath string, cfg *Config) (*Result, error) {
	annotations, err := ReadAnnotations(annotationsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read annotations: %w", err)
	}
	return Process(ctx, annotations, cfg)
}

// Process extracts one dataset row per annotation and scale factor. Rows
// whose patch leaves the image are dropped and reported in Result.Failures.
// Images that cannot be loaded abort the run unless cfg.ContinueOnError is set.
func Process(ctx context.Context, annotations []Annotation, cfg *Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid batch configuration: %w", err)
	}
	groups := groupByImage(annotations, cfg.IncludePatterns, cfg.ExcludePatterns)
	if len(groups) == 0 {
		return nil, errors.New("no annotated images found")
	}

	jobs, rows := plan(groups, cfg.Scales)
	out := &output{
		dataset: extractor.NewDataset(rows, cfg.Extractor.NumberOfFeatures()),
		samples: make([]Sample, rows),
		ok:      make([]bool, rows),
	}
	m := newMetrics()
	m.featuresPerRow.Set(float64(cfg.Extractor.NumberOfFeatures()))
	m.workers.Set(float64(min(cfg.Workers, len(jobs))))

	slog.Debug("starting batch extraction",
		"images", len(groups), "rows", rows, "features", cfg.Extractor.NumberOfFeatures(), "workers", cfg.Workers)

	start := time.Now()
	results, err := processParallel(ctx, jobs, cfg, out, m)
	duration := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("batch extraction failed: %w", err)
	}

	var failures []Failure
	for _, r := range results {
		if r.err != nil {
			if !cfg.ContinueOnError {
				return nil, r.err
			}
			slog.Warn("skipping image", "image", jobs[r.index].group.path, "error", r.err)
			failures = append(failures, Failure{Image: jobs[r.index].group.path, Err: r.err})
		}
		failures = append(failures, r.failures...)
	}

	samples, ds := out.compact()
	if cfg.MetricsFile != "" {
		if err := m.writeTo(cfg.MetricsFile); err != nil {
			return nil, fmt.Errorf("failed to write metrics: %w", err)
		}
	}

	slog.Debug("batch extraction finished", "samples", len(samples), "failed", len(failures), "duration", duration)

	return &Result{
		Extractor:   cfg.Extractor,
		Factors:     cfg.Scales,
		Samples:     samples,
		Dataset:     ds,
		Labels:      cfg.Extractor.NumberOfLabels(),
		Failures:    failures,
		Images:      len(groups),
		Duration:    duration,
		WorkerCount: min(cfg.Workers, len(jobs)),
	}, nil
}
