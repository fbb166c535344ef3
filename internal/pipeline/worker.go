package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Worker runs independent jobs over a fixed pool of goroutines. Jobs share
// nothing; one failing job does not stop the others.
type Worker struct {
	processor Processor
	config    WorkerConfig
}

// NewWorker creates a new pipeline worker
func NewWorker(processor Processor, config WorkerConfig) *Worker {
	return &Worker{processor: processor, config: config}
}

// ProcessBatch processes every job and returns one result per job in input
// order. It returns early only when ctx is cancelled.
func (w *Worker) ProcessBatch(ctx context.Context, jobs []Job) ([]JobResult, error) {
	log.Info().Int("jobs", len(jobs)).Msg("starting batch")
	start := time.Now()

	workerCount := w.config.WorkerCount
	if workerCount < 1 {
		workerCount = 1
	}
	if workerCount > len(jobs) {
		workerCount = len(jobs)
	}

	results := make([]JobResult, len(jobs))
	jobChan := make(chan int, len(jobs))
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for idx := range jobChan {
				results[idx] = w.processJob(ctx, workerID, jobs[idx])
			}
		}(i)
	}

	for i := range jobs {
		jobChan <- i
	}
	close(jobChan)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return results, fmt.Errorf("batch cancelled: %w", err)
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	log.Info().Int("jobs", len(jobs)).Int("failed", failed).Dur("took", time.Since(start)).Msg("batch completed")
	return results, nil
}

func (w *Worker) processJob(ctx context.Context, workerID int, job Job) JobResult {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return JobResult{Job: job, Err: err}
	}

	res, err := w.processor.Process(ctx, job)
	if res == nil {
		res = &JobResult{}
	}
	res.Job = job
	res.Duration = time.Since(start)
	if err != nil {
		res.Err = err
		log.Error().Err(err).Int("worker", workerID).Str("file", job.FileName).Msg("job failed")
		return *res
	}

	log.Debug().Int("worker", workerID).Str("file", job.FileName).Str("session_key", res.SessionKey).
		Dur("took", res.Duration).Msg("job completed")
	return *res
}
