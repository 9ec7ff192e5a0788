package audit

import (
	"context"
	"log/slog"
)

// Queue decouples request paths from slow sinks. Emit never blocks: when
// the buffer is full the event is dropped and logged.
type Queue struct {
	inbox  chan Event
	logger *slog.Logger
}

func NewQueue(size int, logger *slog.Logger) *Queue {
	return &Queue{inbox: make(chan Event, size), logger: logger}
}

func (q *Queue) Append(ctx context.Context, event Event) error {
	select {
	case q.inbox <- event:
	default:
		if q.logger != nil {
			q.logger.WarnContext(ctx, "audit queue full, dropping event", "action", event.Action)
		}
	}
	return nil
}

// Worker drains a Queue into a sink until ctx is cancelled.
type Worker struct {
	sink   Sink
	queue  *Queue
	logger *slog.Logger
}

func NewWorker(sink Sink, queue *Queue, logger *slog.Logger) *Worker {
	return &Worker{sink: sink, queue: queue, logger: logger}
}

// Run forwards events; sink failures are logged and the worker keeps going.
// Buffered events are flushed once ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.flush()
			return ctx.Err()
		case event := <-w.queue.inbox:
			w.forward(ctx, event)
		}
	}
}

func (w *Worker) flush() {
	for {
		select {
		case event := <-w.queue.inbox:
			w.forward(context.Background(), event)
		default:
			return
		}
	}
}

func (w *Worker) forward(ctx context.Context, event Event) {
	if err := w.sink.Append(ctx, event); err != nil && w.logger != nil {
		w.logger.ErrorContext(ctx, "failed to forward audit event", "action", event.Action, "error", err)
	}
}
