package api

import (
	"context"
	"time"

	"github.com/Kanet1105/linkdrive/app/database"
	"github.com/Kanet1105/linkdrive/app/scheduler"
)

// SchedulerInterface is the slice of the scheduler the API needs: a
// monitoring snapshot and a manual trigger for the current period.
type SchedulerInterface interface {
	Snapshot() scheduler.Snapshot
	RunOnce(ctx context.Context, fireAt time.Time) (scheduler.Outcome, error)
}

var _ SchedulerInterface = (*scheduler.Scheduler)(nil)

type Handler struct {
	store     database.DeliveryStore
	scheduler SchedulerInterface
	version   string
}
