package propagation

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/star/trajevent/internal/transform"
)

// searchJob is a unit of work for the worker pool.
type searchJob struct {
	index int
	job   Job
	prop  *SGP4Propagator
}

// searchResult pairs a Result with its position in the batch.
type searchResult struct {
	index  int
	result Result
}

// WorkerPool manages a fixed number of goroutines for parallel stop searches.
type WorkerPool struct {
	workers int
	logger  *slog.Logger
}

// NewWorkerPool creates a worker pool with the given number of workers.
func NewWorkerPool(workers int, logger *slog.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		workers: workers,
		logger:  logger,
	}
}

// RunBatch runs every job using the worker pool. props maps NORAD IDs to
// propagators; jobs without one fail individually. Results are returned in
// job order. Failed jobs are logged and carry Err.
func (wp *WorkerPool) RunBatch(ctx context.Context, jobs []Job, props map[int]*SGP4Propagator,
	step, span time.Duration, observer *transform.Observer) ([]Result, int, int) {
	if len(jobs) == 0 {
		return nil, 0, 0
	}

	work := make(chan searchJob, wp.workers*2)
	results := make(chan searchResult, wp.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < wp.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sj := range work {
				r := wp.searchSingle(ctx, sj, step, span, observer)
				select {
				case results <- searchResult{index: sj.index, result: r}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(work)
		for i, j := range jobs {
			sj := searchJob{index: i, job: j, prop: props[j.NORADID]}
			select {
			case work <- sj:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([]Result, len(jobs))
	done := make([]bool, len(jobs))
	for sr := range results {
		out[sr.index] = sr.result
		done[sr.index] = true
	}

	var successCount, errorCount int
	for i, r := range out {
		if !done[i] {
			r = Result{NORADID: jobs[i].NORADID, Err: fmt.Errorf("search not run: %w", context.Cause(ctx))}
			out[i] = r
		}
		if r.Err != nil {
			errorCount++
			wp.logger.Warn("stop search failed",
				"norad_id", r.NORADID,
				"error", r.Err,
			)
			continue
		}
		successCount++
	}
	return out, successCount, errorCount
}

// searchSingle runs one job. A panic inside the search fails that job only.
func (wp *WorkerPool) searchSingle(ctx context.Context, sj searchJob, step, span time.Duration,
	observer *transform.Observer) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			wp.logger.Error("stop search panicked",
				"norad_id", sj.job.NORADID,
				"panic", p,
				"stack", string(debug.Stack()),
			)
			res = Result{NORADID: sj.job.NORADID, Err: fmt.Errorf("search panicked: %v", p)}
		}
	}()

	if sj.prop == nil {
		return Result{NORADID: sj.job.NORADID, Err: fmt.Errorf("NORAD %d %w", sj.job.NORADID, ErrNotInCatalog)}
	}

	d := &Driver{
		Prop:     sj.prop,
		Step:     step,
		Span:     span,
		Observer: observer,
		Logger:   wp.logger.With("norad_id", sj.job.NORADID),
	}
	crossings, err := d.Search(ctx, sj.job.Start, sj.job.Stops)
	return Result{
		NORADID:   sj.job.NORADID,
		Name:      sj.prop.Name(),
		Crossings: crossings,
		Err:       err,
	}
}
