package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/surveillance-tracker/constants"
	"github.com/joseph-ayodele/surveillance-tracker/internal/pipeline"
	"github.com/joseph-ayodele/surveillance-tracker/internal/pipeline/textextract"
)

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = errors.New("queue is shutting down")

// DocumentProcessor turns one document path into a result. It must not panic,
// but the queue recovers if it does.
type DocumentProcessor interface {
	ProcessDocument(ctx context.Context, path string) pipeline.DocumentResult
}

// Job is one document of a run. Index is its position in the sorted input.
type Job struct {
	Index       int
	Path        string
	SubmittedAt time.Time
}

// ResultFunc receives each finished job. It is called from worker goroutines.
type ResultFunc func(job Job, res pipeline.DocumentResult)

// Queue is a bounded worker pool over a DocumentProcessor.
type Queue struct {
	proc     DocumentProcessor
	onResult ResultFunc
	logger   *slog.Logger
	base     context.Context
	workers  int
	timeout  time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*Queue)

func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

// WithDocTimeout bounds the whole processing of one document.
func WithDocTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// NewQueue starts the workers. Jobs run under contexts derived from ctx.
func NewQueue(ctx context.Context, proc DocumentProcessor, onResult ResultFunc, logger *slog.Logger, opts ...Option) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		proc:     proc,
		onResult: onResult,
		logger:   logger,
		base:     ctx,
		workers:  4,
		timeout:  2 * time.Minute,
		ch:       make(chan Job, 64),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *Queue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("batch.worker.started", "worker_id", workerID)

				for job := range q.ch {
					res := q.handle(workerID, job)
					if q.onResult != nil {
						q.onResult(job, res)
					}
				}

				q.logger.Debug("batch.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *Queue) handle(workerID int, job Job) (res pipeline.DocumentResult) {
	ctx, cancel := context.WithTimeout(q.base, q.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			res = pipeline.DocumentResult{
				DocumentID: textextract.DocumentID(job.Path),
				Path:       job.Path,
				Status:     constants.DocumentStatusFailed,
				ErrorKind:  "Internal",
				Error:      fmt.Sprintf("panic: %v", r),
			}
			q.logger.Error("batch.worker.panic", "worker_id", workerID, "path", job.Path, "panic", r)
		}
	}()
	return q.proc.ProcessDocument(ctx, job.Path)
}

// Enqueue blocks while the queue is full.
func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("batch.enqueue.closed", "path", job.Path)
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		return nil
	default:
	}
	q.logger.Debug("batch.enqueue.backpressure", "path", job.Path)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops intake and waits for queued jobs to drain or ctx to end.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("batch.queue.shutdown_interrupted")
		return ctx.Err()
	case <-done:
		return nil
	}
}
