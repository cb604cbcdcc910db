package scheduler

import (
	"context"

	"github.com/Kanet1105/linkdrive/app/database"
	"github.com/Kanet1105/linkdrive/app/digest"
)

// ContentFetcher collects the matched items for one digest period.
// Implemented by feed.Fetcher; stubbed in tests.
type ContentFetcher interface {
	Run(ctx context.Context, keywords digest.KeywordSet) ([]digest.Item, error)
}

// DigestMailer delivers a rendered digest message.
// Implemented by mail.Mailer; stubbed in tests.
type DigestMailer interface {
	Send(ctx context.Context, message digest.Message) error
}

// DeliveryLedger is the slice of the delivery store the scheduler needs:
// reading a period's outcome and claiming a period with a conditional write.
type DeliveryLedger interface {
	GetDelivery(ctx context.Context, periodKey string) (*database.Delivery, error)
	PutDeliveryIfAbsent(ctx context.Context, delivery database.Delivery) (bool, error)
}
