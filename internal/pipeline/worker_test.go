package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/inventariate/backend-go/internal/pipeline/inventory"
)

func TestWorker_ProcessBatchKeepsOrder(t *testing.T) {
	var calls int32
	proc := ProcessorFunc(func(ctx context.Context, job Job) (*JobResult, error) {
		atomic.AddInt32(&calls, 1)
		if job.FileName == "bad.xlsx" {
			return nil, errors.New("unreadable")
		}
		return &JobResult{SessionKey: "key-" + job.FileName, Summary: &inventory.RunSummary{RowCount: 1}}, nil
	})

	jobs := []Job{{FileName: "a.xlsx"}, {FileName: "bad.xlsx"}, {FileName: "c.xlsx"}, {FileName: "d.xlsx"}, {FileName: "e.xlsx"}}
	results, err := NewWorker(proc, WorkerConfig{WorkerCount: 3}).ProcessBatch(context.Background(), jobs)
	require.NoError(t, err)

	require.Len(t, results, len(jobs))
	assert.Equal(t, int32(len(jobs)), atomic.LoadInt32(&calls))
	for i, r := range results {
		assert.Equal(t, jobs[i].FileName, r.Job.FileName)
	}
	assert.Equal(t, "key-a.xlsx", results[0].SessionKey)
	assert.EqualError(t, results[1].Err, "unreadable")
	assert.NoError(t, results[4].Err)
}

func TestWorker_EmptyBatch(t *testing.T) {
	results, err := NewWorker(ProcessorFunc(func(ctx context.Context, job Job) (*JobResult, error) {
		t.Fatal("processor must not be called")
		return nil, nil
	}), DefaultWorkerConfig()).ProcessBatch(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestWorker_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := NewWorker(ProcessorFunc(func(ctx context.Context, job Job) (*JobResult, error) {
		return &JobResult{}, nil
	}), WorkerConfig{}).ProcessBatch(ctx, []Job{{FileName: "a"}})

	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
}
