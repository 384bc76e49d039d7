package worker

import (
	"time"

	"renthaus/internal/config"
)

// Backoff schedules redelivery of outbox tasks. The delay doubles per attempt
// and is capped at Max.
type Backoff struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration
}

func newBackoff(cfg config.OutboxConfig) Backoff {
	b := Backoff{Attempts: cfg.MaxAttempts, Base: cfg.BaseDelay, Max: cfg.MaxDelay}
	if b.Attempts <= 0 {
		b.Attempts = 5
	}
	if b.Base <= 0 {
		b.Base = 2 * time.Second
	}
	if b.Max <= 0 {
		b.Max = time.Minute
	}
	return b
}

// Exhausted reports whether attempt (1-based) was the last one allowed.
func (b Backoff) Exhausted(attempt int) bool {
	return attempt >= b.Attempts
}

// Delay returns the wait before the next delivery after attempt failed.
func (b Backoff) Delay(attempt int) time.Duration {
	d := b.Base
	if d <= 0 {
		d = time.Second
	}
	for i := 1; i < attempt; i++ {
		d *= 2
		if b.Max > 0 && d >= b.Max {
			return b.Max
		}
	}
	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}

// NextAttemptAt is the absolute time the task becomes deliverable again.
func (b Backoff) NextAttemptAt(now time.Time, attempt int) time.Time {
	return now.Add(b.Delay(attempt)).UTC()
}
