// ABOUTME: Tests for the recalculation queue
// ABOUTME: Covers non-blocking enqueue, drain on stop, status tracking and retry rules
package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestQueueEnqueueNeverBlocks(t *testing.T) {
	q := NewQueue(1, 1, func(context.Context, Job) error { return nil }, zaptest.NewLogger(t))

	_, err := q.Enqueue("u1", "c1")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := q.Enqueue("u1", "c2")
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrQueueFull)
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on a full queue")
	}
	assert.Equal(t, 1, q.Depth())
}

func TestQueueStopDrainsQueuedJobs(t *testing.T) {
	var processed atomic.Int32
	q := NewQueue(10, 2, func(context.Context, Job) error {
		processed.Add(1)
		return nil
	}, zaptest.NewLogger(t))

	var ids []string
	for i := 0; i < 5; i++ {
		id, err := q.Enqueue("u1", "c1")
		require.NoError(t, err)
		ids = append(ids, id)
	}
	q.Start(context.Background())
	q.Stop()

	assert.Equal(t, int32(5), processed.Load())
	for _, id := range ids {
		job, ok := q.Status(id)
		require.True(t, ok)
		assert.Equal(t, JobDone, job.Status)
		assert.Equal(t, 1, job.Attempts)
		assert.NotNil(t, job.FinishedAt)
	}

	_, err := q.Enqueue("u1", "c1")
	assert.ErrorIs(t, err, ErrQueueStopped)
}

func TestQueueRetryFailedJob(t *testing.T) {
	var mu sync.Mutex
	fail := true
	q := NewQueue(10, 1, func(context.Context, Job) error {
		mu.Lock()
		defer mu.Unlock()
		if fail {
			return errors.New("store unavailable")
		}
		return nil
	}, zaptest.NewLogger(t))
	q.Start(context.Background())
	defer q.Stop()

	id, err := q.Enqueue("u1", "c1")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		job, _ := q.Status(id)
		return job.Status == JobFailed
	}, time.Second, 5*time.Millisecond)

	job, _ := q.Status(id)
	assert.Equal(t, "store unavailable", job.Error)

	mu.Lock()
	fail = false
	mu.Unlock()

	require.NoError(t, q.Retry(id))
	require.Eventually(t, func() bool {
		job, _ := q.Status(id)
		return job.Status == JobDone
	}, time.Second, 5*time.Millisecond)

	job, _ = q.Status(id)
	assert.Equal(t, 2, job.Attempts)
	assert.Empty(t, job.Error)
}

func TestQueueRetryRejectsNonFailedJobs(t *testing.T) {
	release := make(chan struct{})
	q := NewQueue(10, 1, func(context.Context, Job) error {
		<-release
		return nil
	}, zaptest.NewLogger(t))

	id, err := q.Enqueue("u1", "c1")
	require.NoError(t, err)

	err = q.Retry(id)
	assert.ErrorIs(t, err, ErrNotRetryable)

	q.Start(context.Background())
	close(release)
	q.Stop()

	err = q.Retry(id)
	assert.ErrorIs(t, err, ErrNotRetryable)

	assert.ErrorIs(t, q.Retry("missing"), ErrJobNotFound)
}

func TestQueueStartTwiceIsNoop(t *testing.T) {
	var processed atomic.Int32
	q := NewQueue(4, 1, func(context.Context, Job) error {
		processed.Add(1)
		return nil
	}, nil)
	q.Start(context.Background())
	q.Start(context.Background())

	_, err := q.Enqueue("u1", "c1")
	require.NoError(t, err)
	q.Stop()
	q.Stop()

	assert.Equal(t, int32(1), processed.Load())
}
