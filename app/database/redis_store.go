package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

const deliveryKeyPrefix = "delivery:"

// RedisDeliveryStore is the Redis-backed DeliveryStore for multi-instance
// deployments. SetNX provides the put-if-absent primitive and keys expire
// after the retention window, so there is no prune pass.
type RedisDeliveryStore struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedisDeliveryStore connects to Redis and verifies the connection.
func NewRedisDeliveryStore(addr string, retention time.Duration) (*RedisDeliveryStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Debug("Connected to Redis", "addr", addr)

	return &RedisDeliveryStore{
		client:    client,
		retention: retention,
	}, nil
}

// GenerateDeliveryKey generates a consistent key for a period
func (s *RedisDeliveryStore) GenerateDeliveryKey(periodKey string) string {
	return deliveryKeyPrefix + periodKey
}

func (s *RedisDeliveryStore) GetDelivery(ctx context.Context, periodKey string) (*Delivery, error) {
	data, err := s.client.Get(ctx, s.GenerateDeliveryKey(periodKey)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get delivery: %w", err)
	}

	var delivery Delivery
	if err := json.Unmarshal([]byte(data), &delivery); err != nil {
		return nil, fmt.Errorf("failed to unmarshal delivery: %w", err)
	}

	return &delivery, nil
}

func (s *RedisDeliveryStore) PutDeliveryIfAbsent(ctx context.Context, delivery Delivery) (bool, error) {
	if delivery.CreatedAt.IsZero() {
		delivery.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(delivery)
	if err != nil {
		return false, fmt.Errorf("failed to marshal delivery: %w", err)
	}

	inserted, err := s.client.SetNX(ctx, s.GenerateDeliveryKey(delivery.PeriodKey), data, s.retention).Result()
	if err != nil {
		return false, fmt.Errorf("failed to put delivery: %w", err)
	}

	return inserted, nil
}

func (s *RedisDeliveryStore) ListDeliveries(ctx context.Context, limit int) ([]Delivery, error) {
	keys, err := s.scanKeys(ctx)
	if err != nil {
		return nil, err
	}

	var deliveries []Delivery
	for _, key := range keys {
		data, err := s.client.Get(ctx, key).Result()
		if err == redis.Nil {
			continue // expired between SCAN and GET
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get delivery %s: %w", key, err)
		}

		var delivery Delivery
		if err := json.Unmarshal([]byte(data), &delivery); err != nil {
			return nil, fmt.Errorf("failed to unmarshal delivery %s: %w", key, err)
		}
		deliveries = append(deliveries, delivery)
	}

	sort.Slice(deliveries, func(i, j int) bool {
		return deliveries[i].SentAt.After(deliveries[j].SentAt)
	})

	if limit > 0 && len(deliveries) > limit {
		deliveries = deliveries[:limit]
	}

	return deliveries, nil
}

// DeleteDeliveriesBefore is a no-op: records carry a TTL and expire on
// their own.
func (s *RedisDeliveryStore) DeleteDeliveriesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (s *RedisDeliveryStore) GetDeliveryStats(ctx context.Context) (int, int, int, error) {
	deliveries, err := s.ListDeliveries(ctx, 0)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to get delivery stats: %w", err)
	}

	var succeeded, failed int
	for _, delivery := range deliveries {
		switch delivery.Status {
		case DeliverySuccess:
			succeeded++
		case DeliveryFailed:
			failed++
		}
	}

	return len(deliveries), succeeded, failed, nil
}

// Close closes the Redis connection
func (s *RedisDeliveryStore) Close() error {
	return s.client.Close()
}

func (s *RedisDeliveryStore) scanKeys(ctx context.Context) ([]string, error) {
	var keys []string
	var cursor uint64

	for {
		batch, next, err := s.client.Scan(ctx, cursor, deliveryKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery keys: %w", err)
		}

		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}

	return keys, nil
}
