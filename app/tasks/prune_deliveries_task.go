package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// PruneDeliveriesTask deletes delivery records older than the configured
// retention window.
type PruneDeliveriesTask struct {
	Task
	store     DeliveryPruner
	retention time.Duration
}

func NewPruneDeliveriesTask(store DeliveryPruner, retention time.Duration) *PruneDeliveriesTask {
	return &PruneDeliveriesTask{
		Task:      NewTask(TaskTypePruneDeliveries),
		store:     store,
		retention: retention,
	}
}

func (t *PruneDeliveriesTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	cutoff := time.Now().UTC().Add(-t.retention)

	deleted, err := t.store.DeleteDeliveriesBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune deliveries: %w", err)
	}

	slog.Info("Task completed",
		"type", "PruneDeliveries",
		"duration", t.GetDuration(),
		"cutoff", cutoff,
		"deleted", deleted)

	return nil
}
