package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Kanet1105/linkdrive/app/database"
	"github.com/Kanet1105/linkdrive/app/digest"
	"github.com/Kanet1105/linkdrive/app/schedule"
)

const (
	maxAttempts   = 3
	maxRetryDelay = 30 * time.Second
	cycleTimeout  = 5 * time.Minute
	recordTimeout = 10 * time.Second
)

// Scheduler drives the weekly digest cycle: it waits for the configured
// fire instant, fetches and renders the digest, sends it, and records the
// outcome. A period gets at most one recorded outcome; once a record
// exists the period is never re-sent, regardless of restarts or duplicate
// wake-ups.
type Scheduler struct {
	fetcher   ContentFetcher
	mailer    DigestMailer
	ledger    DeliveryLedger
	builder   *digest.Builder
	spec      schedule.Spec
	keywords  digest.KeywordSet
	recipient string

	// clock and retryBase are fixed in production and overridden in tests.
	clock     func() time.Time
	retryBase time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	runMu  sync.Mutex

	mu          sync.Mutex
	state       State
	nextFireAt  time.Time
	lastPeriod  string
	lastOutcome Outcome
	lastRunAt   *time.Time
}

func NewScheduler(fetcher ContentFetcher, mailer DigestMailer, ledger DeliveryLedger,
	builder *digest.Builder, spec schedule.Spec, keywords digest.KeywordSet, recipient string) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		fetcher:   fetcher,
		mailer:    mailer,
		ledger:    ledger,
		builder:   builder,
		spec:      spec,
		keywords:  keywords,
		recipient: recipient,
		clock:     time.Now,
		retryBase: time.Second,
		ctx:       ctx,
		cancel:    cancel,
		state:     StateIdle,
	}
}

// Start computes the first fire instant and launches the delivery loop.
func (s *Scheduler) Start() {
	now := s.clock()

	// Seed the snapshot from the current period's record, if one exists,
	// so monitoring reflects work done before a restart.
	if record, err := s.ledger.GetDelivery(s.ctx, schedule.PeriodKey(now)); err != nil {
		slog.Warn("Failed to read delivery record on startup", "error", err)
	} else if record != nil {
		sentAt := record.SentAt
		s.mu.Lock()
		s.lastPeriod = record.PeriodKey
		s.lastOutcome = outcomeForStatus(record.Status)
		s.lastRunAt = &sentAt
		s.mu.Unlock()
	}

	fireAt := s.spec.Next(now)
	s.setWaiting(fireAt)
	slog.Info("Scheduler started", "schedule", s.spec.String(), "next_fire_at", fireAt)

	s.wg.Add(1)
	go s.run(fireAt)
}

// Stop cancels the delivery loop and waits for it to finish. A send in
// flight is interrupted at its next retry boundary; the period's record is
// re-checked on the next start before anything is re-sent.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) run(fireAt time.Time) {
	defer s.wg.Done()

	timer := time.NewTimer(fireAt.Sub(s.clock()))
	defer timer.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.setState(StateStopped)
			slog.Info("Scheduler stopped")
			return
		case <-timer.C:
			outcome, err := s.RunOnce(s.ctx, fireAt)
			if err != nil {
				slog.Error("Digest cycle failed", "period", schedule.PeriodKey(fireAt), "outcome", string(outcome), "error", err)
			}

			// The next instant counts from the scheduled fire time, not
			// from the wall clock, so a slow cycle does not drift.
			s.setState(StateCooldown)
			fireAt = s.spec.Next(fireAt)
			s.setWaiting(fireAt)
			slog.Info("Waiting for next digest cycle", "next_fire_at", fireAt)
			timer.Reset(fireAt.Sub(s.clock()))
		}
	}
}

// RunOnce executes a single digest cycle for the period containing fireAt.
// It is shared by the timer loop and the manual trigger endpoint; cycles
// are serialized so two triggers for one period cannot race past the
// record check.
func (s *Scheduler) RunOnce(ctx context.Context, fireAt time.Time) (Outcome, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.mu.Lock()
	prior := s.state
	s.mu.Unlock()

	cycleCtx, cancel := context.WithTimeout(ctx, cycleTimeout)
	defer cancel()

	periodKey := schedule.PeriodKey(fireAt)
	outcome, err := s.runCycle(cycleCtx, periodKey)

	now := s.clock()
	s.mu.Lock()
	s.lastPeriod = periodKey
	s.lastOutcome = outcome
	s.lastRunAt = &now
	if s.state != StateStopped {
		s.state = prior
	}
	s.mu.Unlock()

	return outcome, err
}

func (s *Scheduler) runCycle(ctx context.Context, periodKey string) (Outcome, error) {
	existing, err := s.ledger.GetDelivery(ctx, periodKey)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("failed to check delivery record: %w", err)
	}
	if existing != nil {
		slog.Info("Period already has a recorded outcome, skipping",
			"period", periodKey, "status", string(existing.Status))
		return OutcomeSkipped, nil
	}

	s.setState(StateFetching)
	var items []digest.Item
	attempts, err := s.withRetry(ctx, "fetch", func() error {
		fetched, fetchErr := s.fetcher.Run(ctx, s.keywords)
		if fetchErr != nil {
			return fetchErr
		}
		items = fetched
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return OutcomeFailed, err
		}
		if recordErr := s.recordFailure(ctx, periodKey, "", 0, attempts, "fetch: "+err.Error()); recordErr != nil {
			return OutcomeFailed, recordErr
		}
		return OutcomeFailed, fmt.Errorf("failed to fetch digest items: %w", err)
	}

	s.setState(StateRendering)
	message := s.builder.Run(periodKey, items)

	s.setState(StateSending)
	attempts, err = s.withRetry(ctx, "send", func() error {
		return s.mailer.Send(ctx, message)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return OutcomeFailed, err
		}
		if recordErr := s.recordFailure(ctx, periodKey, message.Subject, message.ItemCount, attempts, "send: "+err.Error()); recordErr != nil {
			return OutcomeFailed, recordErr
		}
		return OutcomeFailed, fmt.Errorf("failed to send digest: %w", err)
	}

	// The record for a sent digest must land even if the cycle was
	// cancelled mid-send, or a restart would deliver the period twice.
	recordCtx, cancelRecord := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancelRecord()

	inserted, err := s.ledger.PutDeliveryIfAbsent(recordCtx, database.Delivery{
		PeriodKey: periodKey,
		Status:    database.DeliverySuccess,
		Recipient: s.recipient,
		Subject:   message.Subject,
		ItemCount: message.ItemCount,
		Attempts:  attempts,
		SentAt:    s.clock().UTC(),
	})
	if err != nil {
		return OutcomeFailed, fmt.Errorf("failed to record delivery: %w", err)
	}
	if !inserted {
		slog.Warn("Delivery record already present after send, keeping the first writer", "period", periodKey)
	}

	slog.Info("Digest delivered", "period", periodKey, "recipient", s.recipient,
		"items", message.ItemCount, "attempts", attempts)

	return OutcomeSent, nil
}

// withRetry runs fn up to maxAttempts times with exponential backoff,
// observing cancellation between attempts. It returns the number of
// attempts made and the last error.
func (s *Scheduler) withRetry(ctx context.Context, op string, fn func() error) (int, error) {
	var lastErr error

	for attempt := 1; ; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return attempt, nil
		}
		if attempt == maxAttempts {
			return attempt, lastErr
		}

		delay := s.retryBase << uint(attempt-1)
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
		slog.Warn("Retry scheduled", "op", op, "attempt", attempt,
			"max_attempts", maxAttempts, "delay", delay.String(), "error", lastErr)

		select {
		case <-ctx.Done():
			return attempt, ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (s *Scheduler) recordFailure(ctx context.Context, periodKey, subject string, itemCount, attempts int, note string) error {
	// A timed-out cycle still gets its outcome recorded, so the write uses
	// a fresh deadline rather than the possibly-expired cycle context.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	inserted, err := s.ledger.PutDeliveryIfAbsent(recordCtx, database.Delivery{
		PeriodKey: periodKey,
		Status:    database.DeliveryFailed,
		Recipient: s.recipient,
		Subject:   subject,
		ItemCount: itemCount,
		Attempts:  attempts,
		Note:      note,
		SentAt:    s.clock().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to record failed delivery: %w", err)
	}
	if !inserted {
		slog.Warn("Delivery record already present, keeping the first writer", "period", periodKey)
	}
	return nil
}

// Snapshot reports the scheduler's current position for monitoring.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := Snapshot{
		State:       s.state,
		LastPeriod:  s.lastPeriod,
		LastOutcome: s.lastOutcome,
	}
	if !s.nextFireAt.IsZero() {
		fireAt := s.nextFireAt
		snapshot.NextFireAt = &fireAt
	}
	if s.lastRunAt != nil {
		runAt := *s.lastRunAt
		snapshot.LastRunAt = &runAt
	}
	return snapshot
}

func (s *Scheduler) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Scheduler) setWaiting(fireAt time.Time) {
	s.mu.Lock()
	s.state = StateWaiting
	s.nextFireAt = fireAt
	s.mu.Unlock()
}

func outcomeForStatus(status database.DeliveryStatus) Outcome {
	if status == database.DeliverySuccess {
		return OutcomeSent
	}
	return OutcomeFailed
}
