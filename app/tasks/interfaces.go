package tasks

import (
	"context"
	"time"
)

// DeliveryPruner is the slice of the delivery store the maintenance tasks
// need. Both store backends implement it; the Redis one as a no-op because
// its records carry TTLs.
type DeliveryPruner interface {
	DeleteDeliveriesBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
