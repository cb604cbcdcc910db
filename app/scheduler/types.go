package scheduler

import "time"

// State identifies the scheduler's position in the delivery cycle.
type State string

const (
	StateIdle      State = "idle"
	StateWaiting   State = "waiting"
	StateFetching  State = "fetching"
	StateRendering State = "rendering"
	StateSending   State = "sending"
	StateCooldown  State = "cooldown"
	StateStopped   State = "stopped"
)

// Outcome classifies how a digest cycle ended.
type Outcome string

const (
	// OutcomeSent means a digest was delivered and recorded.
	OutcomeSent Outcome = "sent"
	// OutcomeSkipped means the period already had a recorded outcome.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeFailed means the cycle gave up after exhausting retries.
	OutcomeFailed Outcome = "failed"
)

// Snapshot is a point-in-time view of the scheduler for monitoring.
type Snapshot struct {
	State       State      `json:"state"`
	NextFireAt  *time.Time `json:"next_fire_at,omitempty"`
	LastPeriod  string     `json:"last_period,omitempty"`
	LastOutcome Outcome    `json:"last_outcome,omitempty"`
	LastRunAt   *time.Time `json:"last_run_at,omitempty"`
}
