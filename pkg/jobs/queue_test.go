package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRunsSubmittedTasks(t *testing.T) {
	done := make(chan string, 1)
	q := New("test", func(_ context.Context, task Task[string]) error {
		done <- task.Payload
		return nil
	}, Config{Workers: 1})
	q.Start(context.Background())
	defer q.Stop()

	id, err := q.Submit("greeting", "hello")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	select {
	case got := <-done:
		assert.Equal(t, "hello", got)
	case <-time.After(time.Second):
		t.Fatal("task was not processed")
	}
}

func TestQueueRetriesFailedTasks(t *testing.T) {
	var calls int32
	done := make(chan struct{})
	q := New("retry", func(_ context.Context, task Task[int]) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}, Config{Workers: 1, MaxRetries: 3, RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	_, err := q.Submit("count", 1)
	require.NoError(t, err)

	select {
	case <-done:
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	case <-time.After(2 * time.Second):
		t.Fatal("task was not retried")
	}
}

func TestQueueRejectsWhenStopped(t *testing.T) {
	q := New("stopped", func(context.Context, Task[int]) error { return nil }, Config{})

	_, err := q.Submit("noop", 1)
	assert.ErrorIs(t, err, ErrQueueClosed)
}
