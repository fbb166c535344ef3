package pipeline

import (
	"context"
	"time"

	"github.com/andresuchdata/inventariate/backend-go/internal/domain"
	"github.com/andresuchdata/inventariate/backend-go/internal/pipeline/inventory"
)

// Job is one upload queued for processing.
type Job struct {
	FileName       string
	Data           []byte
	Budget         string
	GenerateCharts bool
	Username       string
}

// JobResult is the outcome of one job. Err is set when the run failed.
type JobResult struct {
	Job        Job
	SessionKey string
	Summary    *inventory.RunSummary
	Err        error
	Duration   time.Duration
}

// Processor runs a single job end to end.
type Processor interface {
	Process(ctx context.Context, job Job) (*JobResult, error)
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, job Job) (*JobResult, error)

func (f ProcessorFunc) Process(ctx context.Context, job Job) (*JobResult, error) {
	return f(ctx, job)
}

// PipelineRun is the log entry of one finished run. It is written once,
// after the run completed or failed.
type PipelineRun struct {
	ID           int64            `db:"id" json:"id"`
	SessionKey   string           `db:"session_key" json:"session_key"`
	FileName     string           `db:"file_name" json:"file_name"`
	Status       domain.RunStatus `db:"status" json:"status"`
	TotalRows    int              `db:"total_rows" json:"total_rows"`
	ErrorMessage *string          `db:"error_message" json:"error_message,omitempty"`
	StartedAt    time.Time        `db:"started_at" json:"started_at"`
	CompletedAt  time.Time        `db:"completed_at" json:"completed_at"`
}

// WorkerConfig holds configuration for a batch of jobs.
type WorkerConfig struct {
	WorkerCount int
}

// DefaultWorkerConfig returns sensible defaults
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{WorkerCount: 4}
}
