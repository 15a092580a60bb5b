package queue_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vetlabhq/vetnotify/pkg/queue"
)

type workerTestPayload struct {
	Message string `json:"message"`
}

func enqueueFor(t *testing.T, ms *queue.MemoryStorage, payload any) *queue.Task {
	t.Helper()
	enq, err := queue.NewEnqueuer(ms)
	require.NoError(t, err)
	task, err := enq.Enqueue(context.Background(), payload)
	require.NoError(t, err)
	return task
}

func fastWorker(t *testing.T, ms *queue.MemoryStorage, handlers ...queue.Handler) *queue.Worker {
	t.Helper()
	w, err := queue.NewWorker(ms,
		queue.WithPullInterval(10*time.Millisecond),
		queue.WithMaxConcurrentTasks(2),
	)
	require.NoError(t, err)
	w.RegisterHandlers(handlers...)
	return w
}

func TestNewWorker(t *testing.T) {
	t.Parallel()

	t.Run("nil repository", func(t *testing.T) {
		t.Parallel()

		w, err := queue.NewWorker(nil)
		assert.ErrorIs(t, err, queue.ErrRepositoryNil)
		assert.Nil(t, w)
	})

	t.Run("start without handlers", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage()
		defer ms.Close()

		w, err := queue.NewWorker(ms)
		require.NoError(t, err)

		assert.ErrorIs(t, w.Start(context.Background()), queue.ErrNoHandlers)
	})
}

func TestWorkerProcessing(t *testing.T) {
	t.Parallel()

	t.Run("successful task completes", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage()
		defer ms.Close()

		var handled atomic.Int32
		handler := queue.NewTaskHandler(func(ctx context.Context, p workerTestPayload) error {
			handled.Add(1)
			return nil
		})

		task := enqueueFor(t, ms, workerTestPayload{Message: "ok"})

		w := fastWorker(t, ms, handler)
		require.NoError(t, w.Start(context.Background()))
		defer func() { _ = w.Stop() }()

		require.Eventually(t, func() bool {
			stored, ok := ms.GetTask(task.ID)
			return ok && stored.Status == queue.TaskStatusCompleted
		}, 5*time.Second, 20*time.Millisecond)

		assert.Equal(t, int32(1), handled.Load())
	})

	t.Run("failing task retries then succeeds", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage()
		ms.SetBackoff(queue.Backoff{BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Factor: 1})
		defer ms.Close()

		var attempts atomic.Int32
		handler := queue.NewTaskHandler(func(ctx context.Context, p workerTestPayload) error {
			if attempts.Add(1) < 3 {
				return errors.New("transient failure")
			}
			return nil
		})

		task := enqueueFor(t, ms, workerTestPayload{})

		w := fastWorker(t, ms, handler)
		require.NoError(t, w.Start(context.Background()))
		defer func() { _ = w.Stop() }()

		require.Eventually(t, func() bool {
			stored, ok := ms.GetTask(task.ID)
			return ok && stored.Status == queue.TaskStatusCompleted
		}, 5*time.Second, 20*time.Millisecond)

		assert.Equal(t, int32(3), attempts.Load())
	})

	t.Run("task exhausts attempts and settles failed", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage()
		ms.SetBackoff(queue.Backoff{BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Factor: 1})
		defer ms.Close()

		var attempts atomic.Int32
		handler := queue.NewTaskHandler(func(ctx context.Context, p workerTestPayload) error {
			attempts.Add(1)
			return errors.New("permanent-looking failure")
		})

		task := enqueueFor(t, ms, workerTestPayload{})

		w := fastWorker(t, ms, handler)
		require.NoError(t, w.Start(context.Background()))
		defer func() { _ = w.Stop() }()

		require.Eventually(t, func() bool {
			stored, ok := ms.GetTask(task.ID)
			return ok && stored.Status == queue.TaskStatusFailed
		}, 5*time.Second, 20*time.Millisecond)

		// No fourth attempt after the bound.
		time.Sleep(100 * time.Millisecond)
		assert.Equal(t, int32(3), attempts.Load())

		stored, ok := ms.GetTask(task.ID)
		require.True(t, ok)
		require.NotNil(t, stored.Error)
		assert.Equal(t, "permanent-looking failure", *stored.Error)
	})

	t.Run("panicking handler counts as failure", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage()
		ms.SetBackoff(queue.Backoff{BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Factor: 1})
		defer ms.Close()

		handler := queue.NewTaskHandler(func(ctx context.Context, p workerTestPayload) error {
			panic("boom")
		})

		task := enqueueFor(t, ms, workerTestPayload{})

		w := fastWorker(t, ms, handler)
		require.NoError(t, w.Start(context.Background()))
		defer func() { _ = w.Stop() }()

		require.Eventually(t, func() bool {
			stored, ok := ms.GetTask(task.ID)
			return ok && stored.Status == queue.TaskStatusFailed
		}, 5*time.Second, 20*time.Millisecond)
	})

	t.Run("unroutable task fails permanently without retries", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage()
		defer ms.Close()

		// Register a handler for a different payload name so the worker
		// starts, then enqueue under an unknown name.
		known := queue.NewTaskHandler(func(ctx context.Context, p workerTestPayload) error { return nil })

		enq, err := queue.NewEnqueuer(ms)
		require.NoError(t, err)
		task, err := enq.Enqueue(context.Background(), workerTestPayload{}, queue.WithTaskName("nobody.handles.this"))
		require.NoError(t, err)

		w := fastWorker(t, ms, known)
		require.NoError(t, w.Start(context.Background()))
		defer func() { _ = w.Stop() }()

		require.Eventually(t, func() bool {
			stored, ok := ms.GetTask(task.ID)
			return ok && stored.Status == queue.TaskStatusFailed
		}, 5*time.Second, 20*time.Millisecond)

		stored, _ := ms.GetTask(task.ID)
		assert.Equal(t, int8(0), stored.RetryCount)
	})
}

func TestWorkerStop(t *testing.T) {
	t.Parallel()

	ms := queue.NewMemoryStorage()
	defer ms.Close()

	started := make(chan struct{})
	release := make(chan struct{})
	handler := queue.NewTaskHandler(func(ctx context.Context, p workerTestPayload) error {
		close(started)
		<-release
		return nil
	})

	task := enqueueFor(t, ms, workerTestPayload{})

	w := fastWorker(t, ms, handler)
	require.NoError(t, w.Start(context.Background()))

	<-started

	done := make(chan error, 1)
	go func() { done <- w.Stop() }()

	// Stop must wait for the in-flight task.
	select {
	case <-done:
		t.Fatal("Stop returned before the active task finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-done)

	stored, ok := ms.GetTask(task.ID)
	require.True(t, ok)
	assert.Equal(t, queue.TaskStatusCompleted, stored.Status)
}

func TestTaskHandlerDecoding(t *testing.T) {
	t.Parallel()

	handler := queue.NewTaskHandler(func(ctx context.Context, p workerTestPayload) error {
		assert.Equal(t, "decoded", p.Message)
		return nil
	})

	assert.Equal(t, "queue_test.workerTestPayload", handler.Name())

	payload, err := json.Marshal(workerTestPayload{Message: "decoded"})
	require.NoError(t, err)
	require.NoError(t, handler.Handle(context.Background(), payload))

	assert.Error(t, handler.Handle(context.Background(), []byte("not json")))
}
