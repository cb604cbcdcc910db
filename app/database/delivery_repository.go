package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DeliveryRepository handles database operations for delivery records
type DeliveryRepository struct {
	db *DB
}

// NewDeliveryRepository creates a new delivery repository
func NewDeliveryRepository(db *DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

// GetDelivery retrieves the recorded delivery for a period, or nil when
// none exists
func (r *DeliveryRepository) GetDelivery(ctx context.Context, periodKey string) (*Delivery, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT period_key, status, recipient, subject, item_count, attempts, note, sent_at, created_at
		FROM deliveries
		WHERE period_key = ?
	`, periodKey)

	delivery, err := scanDelivery(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get delivery: %w", err)
	}

	return &delivery, nil
}

// PutDeliveryIfAbsent inserts the record unless one already exists for the
// period. The primary key plus ON CONFLICT DO NOTHING make this safe under
// concurrent writers: exactly one insert wins.
func (r *DeliveryRepository) PutDeliveryIfAbsent(ctx context.Context, delivery Delivery) (bool, error) {
	if delivery.CreatedAt.IsZero() {
		delivery.CreatedAt = time.Now().UTC()
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO deliveries (period_key, status, recipient, subject, item_count, attempts, note, sent_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (period_key) DO NOTHING
	`, delivery.PeriodKey, string(delivery.Status), delivery.Recipient, delivery.Subject,
		delivery.ItemCount, delivery.Attempts, delivery.Note,
		delivery.SentAt.UnixMilli(), delivery.CreatedAt.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("failed to put delivery: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return affected > 0, nil
}

// ListDeliveries returns the most recent deliveries, newest first
func (r *DeliveryRepository) ListDeliveries(ctx context.Context, limit int) ([]Delivery, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT period_key, status, recipient, subject, item_count, attempts, note, sent_at, created_at
		FROM deliveries
		ORDER BY sent_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []Delivery
	for rows.Next() {
		delivery, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery row: %w", err)
		}
		deliveries = append(deliveries, delivery)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating delivery rows: %w", err)
	}

	return deliveries, nil
}

// DeleteDeliveriesBefore removes records sent before the cutoff and
// returns how many were deleted
func (r *DeliveryRepository) DeleteDeliveriesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM deliveries WHERE sent_at < ?
	`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to delete deliveries: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return deleted, nil
}

// GetDeliveryStats returns total, succeeded, and failed delivery counts
func (r *DeliveryRepository) GetDeliveryStats(ctx context.Context) (int, int, int, error) {
	var total, succeeded, failed int

	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0)
		FROM deliveries
	`).Scan(&total, &succeeded, &failed)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to get delivery stats: %w", err)
	}

	return total, succeeded, failed, nil
}

// Close closes the underlying database handle
func (r *DeliveryRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDelivery(row rowScanner) (Delivery, error) {
	var delivery Delivery
	var sentAt, createdAt int64

	err := row.Scan(
		&delivery.PeriodKey, &delivery.Status, &delivery.Recipient, &delivery.Subject,
		&delivery.ItemCount, &delivery.Attempts, &delivery.Note, &sentAt, &createdAt,
	)
	if err != nil {
		return Delivery{}, err
	}

	delivery.SentAt = time.UnixMilli(sentAt).UTC()
	delivery.CreatedAt = time.UnixMilli(createdAt).UTC()

	return delivery, nil
}
