package batch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/surveillance-tracker/internal/pipeline"
)

type countingProcessor struct {
	active, peak atomic.Int32
}

func (p *countingProcessor) ProcessDocument(ctx context.Context, path string) pipeline.DocumentResult {
	n := p.active.Add(1)
	for {
		old := p.peak.Load()
		if n <= old || p.peak.CompareAndSwap(old, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	p.active.Add(-1)
	return pipeline.DocumentResult{DocumentID: path}
}

func TestQueue_BoundedWorkers(t *testing.T) {
	proc := &countingProcessor{}
	var mu sync.Mutex
	seen := map[int]string{}

	q := NewQueue(context.Background(), proc, func(job Job, res pipeline.DocumentResult) {
		mu.Lock()
		defer mu.Unlock()
		seen[job.Index] = res.DocumentID
	}, nil, WithWorkers(2), WithQueueSize(1))

	for i := 0; i < 10; i++ {
		require.NoError(t, q.Enqueue(context.Background(), Job{Index: i, Path: string(rune('a' + i))}))
	}
	require.NoError(t, q.Shutdown(context.Background()))

	assert.Len(t, seen, 10)
	assert.Equal(t, "c", seen[2])
	assert.LessOrEqual(t, proc.peak.Load(), int32(2))
}

func TestQueue_EnqueueAfterShutdown(t *testing.T) {
	q := NewQueue(context.Background(), &countingProcessor{}, nil, nil)
	require.NoError(t, q.Shutdown(context.Background()))
	assert.ErrorIs(t, q.Enqueue(context.Background(), Job{Path: "x"}), ErrQueueClosed)
	assert.NoError(t, q.Shutdown(context.Background()))
}

type ctxProcessor struct{}

func (ctxProcessor) ProcessDocument(ctx context.Context, path string) pipeline.DocumentResult {
	<-ctx.Done()
	return pipeline.DocumentResult{DocumentID: path, Error: ctx.Err().Error()}
}

func TestQueue_DocTimeout(t *testing.T) {
	var got pipeline.DocumentResult
	q := NewQueue(context.Background(), ctxProcessor{}, func(_ Job, res pipeline.DocumentResult) { got = res }, nil,
		WithWorkers(1), WithDocTimeout(10*time.Millisecond))
	require.NoError(t, q.Enqueue(context.Background(), Job{Path: "slow"}))
	require.NoError(t, q.Shutdown(context.Background()))
	assert.Equal(t, context.DeadlineExceeded.Error(), got.Error)
}
