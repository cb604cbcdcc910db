package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Kanet1105/linkdrive/app/schedule"
)

// Runner fires registered maintenance tasks on a daily cron schedule and
// retries failed executions in place with exponential backoff.
type Runner struct {
	cron      *cron.Cron
	retryBase time.Duration
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewRunner(location *time.Location) *Runner {
	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		cron:      cron.New(cron.WithLocation(location)),
		retryBase: time.Second,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// AddDaily schedules a task to run every day at the given HH:MM clock time.
// A factory is registered rather than a task instance because every firing
// needs a fresh retry budget.
func (r *Runner) AddDaily(clock string, factory func() TaskInterface) error {
	hour, minute, err := schedule.ParseClock(clock)
	if err != nil {
		return fmt.Errorf("failed to parse task time: %w", err)
	}

	spec := fmt.Sprintf("%d %d * * *", minute, hour)
	if _, err := r.cron.AddFunc(spec, func() { r.execute(factory()) }); err != nil {
		return fmt.Errorf("failed to register task: %w", err)
	}

	return nil
}

func (r *Runner) Start() {
	r.cron.Start()
	slog.Debug("Task runner started", "tasks", len(r.cron.Entries()))
}

// Stop cancels retries in progress and waits for running tasks to finish.
func (r *Runner) Stop() {
	r.cancel()
	<-r.cron.Stop().Done()
}

func (r *Runner) execute(task TaskInterface) {
	for {
		task.Start()

		taskCtx, cancel := context.WithTimeout(r.ctx, 5*time.Minute)
		err := task.Execute(taskCtx)
		cancel()

		if err == nil {
			return
		}

		slog.Error("Task execution failed", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

		if !task.CanRetry() {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
			return
		}

		task.IncrementRetryCount()
		retryDelay := r.retryBase << uint(task.GetRetryCount()-1)
		if retryDelay > 30*time.Second {
			retryDelay = 30 * time.Second
		}

		slog.Warn("Task retry scheduled", "type", string(task.GetType()), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

		select {
		case <-r.ctx.Done():
			slog.Debug("Task runner stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
			return
		case <-time.After(retryDelay):
		}
	}
}
