// ABOUTME: Bounded background queue for score recalculation jobs
// ABOUTME: Fixed worker pool, non-blocking enqueue, per-job status tracking and retry
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/harperreed/kith/metrics"
)

// Job statuses.
const (
	JobQueued  = "queued"
	JobRunning = "running"
	JobDone    = "done"
	JobFailed  = "failed"
)

const (
	DefaultQueueSize = 256
	DefaultWorkers   = 2

	// maxFinishedJobs bounds how many done/failed jobs stay inspectable.
	maxFinishedJobs = 1024
)

var (
	ErrJobNotFound  = errors.New("job not found")
	ErrNotRetryable = errors.New("job is not in a retryable state")
	ErrQueueFull    = errors.New("recalculation queue is full")
	ErrQueueStopped = errors.New("recalculation queue is stopped")
)

// Job is one recalculation request for a (user, contact) pair.
type Job struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	ContactID  string     `json:"contact_id"`
	Status     string     `json:"status"`
	Attempts   int        `json:"attempts"`
	Error      string     `json:"error,omitempty"`
	EnqueuedAt time.Time  `json:"enqueued_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// ProcessFunc handles one job. A returned error marks the job failed.
type ProcessFunc func(ctx context.Context, job Job) error

// Queue runs recalculation jobs on a fixed pool of workers.
type Queue struct {
	jobs     chan string
	process  ProcessFunc
	workers  int
	logger   *zap.Logger
	now      func() time.Time
	wg       sync.WaitGroup
	mu       sync.Mutex
	status   map[string]*Job
	finished []string
	started  bool
	stopped  bool
}

// NewQueue creates a queue. Non-positive sizes fall back to defaults.
func NewQueue(size, workers int, process ProcessFunc, logger *zap.Logger) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		jobs:    make(chan string, size),
		process: process,
		workers: workers,
		logger:  logger,
		now:     time.Now,
		status:  make(map[string]*Job),
	}
}

// Start launches the workers. Calling it twice is a no-op.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.started || q.stopped {
		return
	}
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
	q.started = true
	q.logger.Debug("recalculation queue started", zap.Int("workers", q.workers))
}

// Stop closes the queue and waits for workers to drain what was already queued.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	close(q.jobs)
	started := q.started
	q.mu.Unlock()

	if started {
		q.wg.Wait()
	}
	q.logger.Debug("recalculation queue stopped")
}

// Enqueue schedules a recalculation without blocking. It returns ErrQueueFull
// when the buffer is full; the job is dropped in that case.
func (q *Queue) Enqueue(userID, contactID string) (string, error) {
	job := &Job{
		ID:         ulid.Make().String(),
		UserID:     userID,
		ContactID:  contactID,
		Status:     JobQueued,
		EnqueuedAt: q.now(),
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.pushLocked(job); err != nil {
		return "", err
	}
	q.status[job.ID] = job
	return job.ID, nil
}

func (q *Queue) pushLocked(job *Job) error {
	if q.stopped {
		return ErrQueueStopped
	}
	select {
	case q.jobs <- job.ID:
		metrics.RecalcQueueDepth.Set(float64(len(q.jobs)))
		return nil
	default:
		metrics.RecalcJobs.WithLabelValues("dropped").Inc()
		q.logger.Warn("recalculation queue full, dropping job",
			zap.String("user_id", job.UserID),
			zap.String("contact_id", job.ContactID),
		)
		return ErrQueueFull
	}
}

// Status returns a snapshot of a job.
func (q *Queue) Status(jobID string) (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.status[jobID]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// Retry re-queues a failed job. Any other state is rejected.
func (q *Queue) Retry(jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.status[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if job.Status != JobFailed {
		return fmt.Errorf("%w: %s is %s", ErrNotRetryable, jobID, job.Status)
	}

	job.Status = JobQueued
	job.Error = ""
	job.FinishedAt = nil
	if err := q.pushLocked(job); err != nil {
		job.Status = JobFailed
		job.Error = err.Error()
		return err
	}
	return nil
}

// Depth returns the number of jobs waiting for a worker.
func (q *Queue) Depth() int {
	return len(q.jobs)
}

func (q *Queue) worker(ctx context.Context, id int) {
	defer q.wg.Done()

	for jobID := range q.jobs {
		metrics.RecalcQueueDepth.Set(float64(len(q.jobs)))
		q.run(ctx, jobID)
	}
	q.logger.Debug("recalculation worker stopped", zap.Int("worker", id))
}

func (q *Queue) run(ctx context.Context, jobID string) {
	q.mu.Lock()
	job, ok := q.status[jobID]
	if !ok {
		q.mu.Unlock()
		return
	}
	job.Status = JobRunning
	job.Attempts++
	snapshot := *job
	q.mu.Unlock()

	err := q.process(ctx, snapshot)

	q.mu.Lock()
	defer q.mu.Unlock()

	finished := q.now()
	job.FinishedAt = &finished
	if err != nil {
		job.Status = JobFailed
		job.Error = err.Error()
		metrics.RecalcJobs.WithLabelValues("failed").Inc()
		q.logger.Error("recalculation job failed",
			zap.String("job_id", job.ID),
			zap.String("user_id", job.UserID),
			zap.String("contact_id", job.ContactID),
			zap.Error(err),
		)
	} else {
		job.Status = JobDone
		metrics.RecalcJobs.WithLabelValues("done").Inc()
	}
	q.rememberFinishedLocked(job.ID)
}

// rememberFinishedLocked forgets the oldest finished jobs past maxFinishedJobs.
// Jobs that were re-queued in the meantime are left alone.
func (q *Queue) rememberFinishedLocked(jobID string) {
	q.finished = append(q.finished, jobID)
	for len(q.finished) > maxFinishedJobs {
		oldest := q.finished[0]
		q.finished = q.finished[1:]
		if j, ok := q.status[oldest]; ok && (j.Status == JobDone || j.Status == JobFailed) {
			delete(q.status, oldest)
		}
	}
}
