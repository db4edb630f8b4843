package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrQueueClosed is returned when submitting to a queue that is not running.
var ErrQueueClosed = errors.New("queue not running")

// Task is a unit of background work carrying a typed payload.
type Task[T any] struct {
	ID       string
	Kind     string
	Payload  T
	Attempt  int
	Enqueued time.Time
}

// Handler processes a task.
type Handler[T any] func(context.Context, Task[T]) error

// Config configures worker pool behaviour.
type Config struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Queue dispatches tasks to a fixed pool of goroutines and retries failures
// with a linear backoff.
type Queue[T any] struct {
	name    string
	handler Handler[T]
	cfg     Config

	tasks   chan Task[T]
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	running bool
}

// New builds a queue with the provided handler.
func New[T any](name string, handler Handler[T], cfg Config) *Queue[T] {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 16
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Queue[T]{
		name:    name,
		handler: handler,
		cfg:     cfg,
		tasks:   make(chan Task[T], cfg.BufferSize),
	}
}

// Start launches the workers. Calling it twice is a no-op.
func (q *Queue[T]) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.work()
	}
	q.running = true
	q.cfg.Logger.Info("queue started", zap.String("queue", q.name), zap.Int("workers", q.cfg.Workers))
}

// Stop cancels the workers and waits for in-flight tasks to return.
func (q *Queue[T]) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()
	q.cfg.Logger.Info("queue stopped", zap.String("queue", q.name))
}

// Submit enqueues a payload and returns the task id. It fails fast when the
// buffer is full instead of blocking the caller.
func (q *Queue[T]) Submit(kind string, payload T) (string, error) {
	task := Task[T]{ID: uuid.NewString(), Kind: kind, Payload: payload, Enqueued: time.Now().UTC()}
	if err := q.push(task); err != nil {
		return "", err
	}
	return task.ID, nil
}

func (q *Queue[T]) push(task Task[T]) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if !q.running {
		return fmt.Errorf("%s: %w", q.name, ErrQueueClosed)
	}
	select {
	case q.tasks <- task:
		return nil
	default:
		return fmt.Errorf("%s: queue full", q.name)
	}
}

func (q *Queue[T]) work() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case task := <-q.tasks:
			if err := q.handler(q.ctx, task); err != nil {
				q.retry(task, err)
			}
		}
	}
}

func (q *Queue[T]) retry(task Task[T], cause error) {
	task.Attempt++
	fields := []zap.Field{
		zap.String("queue", q.name),
		zap.String("task_id", task.ID),
		zap.String("kind", task.Kind),
		zap.Int("attempt", task.Attempt),
		zap.Error(cause),
	}
	if task.Attempt > q.cfg.MaxRetries {
		q.cfg.Logger.Error("task dropped after retries", fields...)
		return
	}
	q.cfg.Logger.Warn("task failed, retrying", fields...)

	delay := q.cfg.RetryDelay * time.Duration(task.Attempt)
	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
		case <-timer.C:
			if err := q.push(task); err != nil {
				q.cfg.Logger.Error("task requeue failed", zap.String("queue", q.name), zap.String("task_id", task.ID), zap.Error(err))
			}
		}
	}()
}
