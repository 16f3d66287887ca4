package pipeline

import (
	"context"
	"log/slog"
	"time"

	"chaptercast/internal/logging"
	"chaptercast/internal/queue"
	"chaptercast/internal/records"
	"chaptercast/internal/services"
	"chaptercast/internal/stage"
)

// Worker polls one queue channel and drives its stage handler. Failure
// handling follows the error taxonomy: transient failures re-publish with
// exponential backoff against the unit's retry budget, permanent failures
// mark the unit failed, contention re-publishes with a fixed delay without
// touching the budget, and store outages release the task for redelivery.
type Worker struct {
	env     *Env
	handler Handler
	logger  *slog.Logger

	pollInterval time.Duration
	lease        time.Duration
}

// NewWorker builds a worker for one channel.
func NewWorker(env *Env, handler Handler) *Worker {
	return &Worker{
		env:          env,
		handler:      handler,
		logger:       logging.WithComponent(env.Logger, "worker."+string(handler.Channel())),
		pollInterval: time.Duration(env.Cfg.Workflow.QueuePollInterval) * time.Second,
		lease:        time.Duration(env.Cfg.Workflow.TaskLeaseSeconds) * time.Second,
	}
}

// Run polls until the context is canceled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		// Drain everything currently ready before sleeping.
		for {
			if ctx.Err() != nil {
				return
			}
			processed, err := w.ProcessOne(ctx)
			if err != nil {
				w.logger.Error("task processing error", slog.Any("error", err))
				break
			}
			if !processed {
				break
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ProcessOne claims and handles a single task. Returns false when the channel
// had nothing ready. The returned error covers only queue-level failures;
// handler failures are absorbed into the unit's retry accounting.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	task, err := w.env.Broker.Dequeue(ctx, w.handler.Channel(), w.lease)
	if err != nil {
		return false, err
	}
	if task == nil {
		return false, nil
	}

	logger := w.logger.With(
		slog.String("unit_id", task.UnitID),
		slog.Int64("task_id", task.ID))

	if target := w.handler.Target(); target != "" {
		status, err := unitStatus(ctx, w.env, w.handler.Kind(), task.UnitID)
		switch {
		case err != nil && isNotFound(err):
			logger.Warn("task for unknown unit, dropping")
			return true, w.env.Broker.Ack(ctx, task)
		case err != nil:
			logger.Warn("status check failed, releasing task", slog.Any("error", err))
			return true, w.env.Broker.Release(ctx, task, w.pollInterval)
		case status.AtOrPast(target):
			logger.Info("unit already processed, skipping",
				slog.String("status", string(status)))
			return true, w.env.Broker.Ack(ctx, task)
		}
	}

	execErr := w.handler.Execute(ctx, task.UnitID)
	if execErr == nil {
		return true, w.env.Broker.Ack(ctx, task)
	}
	return true, w.dispatchFailure(ctx, task, execErr, logger)
}

func (w *Worker) dispatchFailure(ctx context.Context, task *queue.Task, execErr error, logger *slog.Logger) error {
	switch services.Classify(execErr) {
	case services.DispositionRelease:
		logger.Warn("store unavailable, releasing task", slog.Any("error", execErr))
		return w.env.Broker.Release(ctx, task, w.pollInterval)

	case services.DispositionContention:
		delay := time.Duration(w.env.Cfg.Sync.ContentionDelaySeconds) * time.Second
		logger.Info("resource busy, backing off",
			slog.Duration("delay", delay),
			slog.Any("error", execErr))
		if err := w.env.Broker.Publish(ctx, task.Channel, task.UnitID, delay); err != nil {
			return w.env.Broker.Release(ctx, task, w.pollInterval)
		}
		return w.env.Broker.Ack(ctx, task)

	case services.DispositionFail:
		logger.Error("permanent failure", slog.Any("error", execErr))
		if err := w.markFailed(ctx, task.UnitID, execErr.Error()); err != nil {
			if isNotFound(err) {
				return w.env.Broker.Ack(ctx, task)
			}
			return w.env.Broker.Release(ctx, task, w.pollInterval)
		}
		return w.env.Broker.Ack(ctx, task)

	default: // DispositionRetry
		return w.retryOrFail(ctx, task, execErr, logger)
	}
}

func (w *Worker) retryOrFail(ctx context.Context, task *queue.Task, execErr error, logger *slog.Logger) error {
	failures, err := w.registerFailure(ctx, task.UnitID, execErr.Error())
	if err != nil {
		if isNotFound(err) {
			logger.Warn("failure for unknown unit, dropping", slog.Any("error", execErr))
			return w.env.Broker.Ack(ctx, task)
		}
		logger.Warn("failure bookkeeping unavailable, releasing task", slog.Any("error", err))
		return w.env.Broker.Release(ctx, task, w.pollInterval)
	}

	if w.env.Policy.Exhausted(failures) {
		logger.Error("retry budget exhausted, failing unit",
			slog.Int("failures", failures),
			slog.Any("error", execErr))
		if err := w.markFailed(ctx, task.UnitID, execErr.Error()); err != nil {
			if isNotFound(err) {
				return w.env.Broker.Ack(ctx, task)
			}
			return w.env.Broker.Release(ctx, task, w.pollInterval)
		}
		return w.env.Broker.Ack(ctx, task)
	}

	delay := w.env.Policy.Delay(failures - 1)
	logger.Warn("transient failure, retrying",
		slog.Int("failures", failures),
		slog.Duration("delay", delay),
		slog.Any("error", execErr))
	if err := w.env.Broker.Publish(ctx, task.Channel, task.UnitID, delay); err != nil {
		return w.env.Broker.Release(ctx, task, w.pollInterval)
	}
	return w.env.Broker.Ack(ctx, task)
}

// registerFailure increments the unit's retry count and records the failure
// detail, returning the new count.
func (w *Worker) registerFailure(ctx context.Context, unitID, message string) (int, error) {
	switch w.handler.Kind() {
	case records.KindBook:
		book, err := w.env.Store.UpdateBook(ctx, unitID, func(b *records.Book) error {
			b.RetryCount++
			b.LastError = message
			return nil
		})
		if err != nil {
			return 0, err
		}
		return book.RetryCount, nil
	default:
		chapter, err := w.env.Store.UpdateChapter(ctx, unitID, func(c *records.Chapter) error {
			c.RetryCount++
			c.LastError = message
			return nil
		})
		if err != nil {
			return 0, err
		}
		return chapter.RetryCount, nil
	}
}

func (w *Worker) markFailed(ctx context.Context, unitID, message string) error {
	switch w.handler.Kind() {
	case records.KindBook:
		_, err := w.env.Store.UpdateBook(ctx, unitID, func(b *records.Book) error {
			b.Status = stage.StatusFailed
			b.LastError = message
			return nil
		})
		return err
	default:
		_, err := w.env.Store.UpdateChapter(ctx, unitID, func(c *records.Chapter) error {
			c.Fail(message)
			return nil
		})
		return err
	}
}
