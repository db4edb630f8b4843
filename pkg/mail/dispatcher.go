package mail

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/school-api/pkg/jobs"
)

// Dispatcher delivers messages in the background with retries.
type Dispatcher struct {
	queue *jobs.Queue[Message]
}

// NewDispatcher wires a mailer behind a worker queue.
func NewDispatcher(mailer Mailer, workers, maxRetries int, logger *zap.Logger) *Dispatcher {
	handler := func(ctx context.Context, task jobs.Task[Message]) error {
		sendCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		return mailer.Send(sendCtx, task.Payload)
	}
	return &Dispatcher{queue: jobs.New("mail", handler, jobs.Config{
		Workers:    workers,
		MaxRetries: maxRetries,
		RetryDelay: 2 * time.Second,
		Logger:     logger,
	})}
}

// Start launches the delivery workers.
func (d *Dispatcher) Start(ctx context.Context) { d.queue.Start(ctx) }

// Stop waits for in-flight deliveries.
func (d *Dispatcher) Stop() { d.queue.Stop() }

// Enqueue schedules msg for delivery.
func (d *Dispatcher) Enqueue(kind string, msg Message) error {
	_, err := d.queue.Submit(kind, msg)
	return err
}
