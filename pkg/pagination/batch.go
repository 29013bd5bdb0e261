package pagination

import (
	"context"
	"sync"
	"time"
)

// BatchConfig holds batch search configuration.
type BatchConfig struct {
	// MaxConcurrency is the number of logical searches run in parallel.
	// Pages within one search are always fetched sequentially.
	MaxConcurrency int
}

// DefaultBatchConfig returns a configuration sized for the default
// admission gate of 4 requests per second.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		MaxConcurrency: 4,
	}
}

// BatchQuery is one logical search of a batch.
type BatchQuery[Q any] struct {
	Query    Q
	PageSize int
	Mark     string
}

// BatchResult is the outcome of one query of a batch.
type BatchResult struct {
	Index   int
	Mark    string
	Records []Record
	Err     error
}

// Batch runs independent searches concurrently with a worker pool. The
// shared admission gate behind the fetcher bounds the combined call rate.
type Batch[Q any] struct {
	exec   *Executor[Q]
	config BatchConfig
}

// NewBatch creates a batch runner on top of exec.
func NewBatch[Q any](exec *Executor[Q], config BatchConfig) *Batch[Q] {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = DefaultBatchConfig().MaxConcurrency
	}
	return &Batch[Q]{
		exec:   exec,
		config: config,
	}
}

// SearchAll runs every query to completion and returns one result per query
// in input order. A failed query does not stop the others; queries not
// started before ctx is cancelled report the context error.
func (b *Batch[Q]) SearchAll(ctx context.Context, queries []BatchQuery[Q]) []BatchResult {
	start := time.Now()
	results := make([]BatchResult, len(queries))
	if len(queries) == 0 {
		return results
	}

	queue := make(chan int, len(queries))
	for i := range queries {
		queue <- i
	}
	close(queue)

	workers := b.config.MaxConcurrency
	if workers > len(queries) {
		workers = len(queries)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go b.worker(ctx, queries, queue, results, &wg, w)
	}
	wg.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	b.exec.logger.Info().
		Int("searches", len(queries)).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("Batch search complete")

	return results
}

// worker drains the queue. Each slot of results is written by exactly one
// worker.
func (b *Batch[Q]) worker(ctx context.Context, queries []BatchQuery[Q], queue <-chan int, results []BatchResult, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	processed := 0

	for i := range queue {
		q := queries[i]
		results[i] = BatchResult{Index: i, Mark: q.Mark}

		if err := ctx.Err(); err != nil {
			results[i].Err = &SearchError{Mark: q.Mark, State: PageState{PageIndex: 1, PageSize: q.PageSize}, Err: err}
			continue
		}

		records, err := b.exec.Search(ctx, q.Query, q.PageSize, q.Mark).Collect()
		results[i].Records = records
		results[i].Err = err
		processed++
	}

	if processed > 0 {
		b.exec.logger.Debug().
			Int("worker_id", workerID).
			Int("searches_processed", processed).
			Msg("Batch worker completed")
	}
}
