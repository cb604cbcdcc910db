package database

import (
	"context"
	"time"
)

// DeliveryStore persists one delivery outcome per period key.
// PutDeliveryIfAbsent is the at-most-once primitive: it returns false when
// a record already existed, in which case nothing is written.
type DeliveryStore interface {
	GetDelivery(ctx context.Context, periodKey string) (*Delivery, error)
	PutDeliveryIfAbsent(ctx context.Context, delivery Delivery) (bool, error)

	ListDeliveries(ctx context.Context, limit int) ([]Delivery, error)
	DeleteDeliveriesBefore(ctx context.Context, cutoff time.Time) (int64, error)
	GetDeliveryStats(ctx context.Context) (total int, succeeded int, failed int, err error)

	Close() error
}
