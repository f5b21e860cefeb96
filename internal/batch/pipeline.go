package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MeKo-Tech/lbpfeat/internal/extractor"
)

// job is one image with all its boxes.
type job struct {
	index    int
	group    imageGroup
	firstRow int
}

// jobResult is the outcome of one job.
type jobResult struct {
	index    int
	failures []Failure
	err      error
}

// processParallel runs jobs on cfg.Workers workers. Each worker extracts
// with its own clone of the model extractor; jobs write disjoint rows of out.
// It returns per-job results in job order.
func processParallel(ctx context.Context, jobs []job, cfg *Config, out *output, m *metrics) ([]jobResult, error) {
	workers := min(cfg.Workers, len(jobs))
	queue := make(chan job, len(jobs))
	results := make(chan jobResult, len(jobs))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go worker(ctx, cfg.Extractor.Clone(), queue, results, &wg, cfg, out, m)
	}

	go func() {
		defer close(queue)
		for _, j := range jobs {
			select {
			case queue <- j:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	progress := cfg.Progress
	if progress == nil {
		progress = noProgress{}
	}
	progress.OnStart(len(jobs))
	ordered := make([]jobResult, len(jobs))
	done := 0
	for r := range results {
		ordered[r.index] = r
		done++
		if r.err != nil {
			progress.OnError(done, jobs[r.index].group.path, r.err)
		}
		progress.OnProgress(done, len(jobs))
	}
	progress.OnComplete()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ordered, nil
}

// worker processes jobs until the queue is drained or ctx is cancelled.
func worker(
	ctx context.Context,
	e *extractor.Extractor,
	queue <-chan job,
	results chan<- jobResult,
	wg *sync.WaitGroup,
	cfg *Config,
	out *output,
	m *metrics,
) {
	defer wg.Done()

	for {
		select {
		case j, ok := <-queue:
			if !ok {
				return
			}
			start := time.Now()
			failures, err := processImage(e, j, cfg, out)
			observe(m, start, len(j.group.boxes)*len(cfg.Scales), failures, err)
			if err != nil {
				err = fmt.Errorf("image %d: %w", j.index, err)
			}

			select {
			case results <- jobResult{index: j.index, failures: failures, err: err}:
			case <-ctx.Done():
				return
			}

		case <-ctx.Done():
			return
		}
	}
}
