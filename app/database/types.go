package database

import (
	"time"
)

// DeliveryStatus is the recorded outcome for one scheduling period.
type DeliveryStatus string

const (
	DeliverySuccess DeliveryStatus = "success"
	DeliveryFailed  DeliveryStatus = "failed"
)

// Delivery is the durable record guarding at-most-one send per period.
// JSON tags serve the Redis store and the API responses.
type Delivery struct {
	PeriodKey string         `json:"period_key"`
	Status    DeliveryStatus `json:"status"`
	Recipient string         `json:"recipient"`
	Subject   string         `json:"subject"`
	ItemCount int            `json:"item_count"`
	Attempts  int            `json:"attempts"`
	Note      string         `json:"note,omitempty"`
	SentAt    time.Time      `json:"sent_at"`
	CreatedAt time.Time      `json:"created_at"`
}
