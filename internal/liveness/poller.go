package liveness

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultPollInterval = time.Second
	DefaultMaxAttempts  = 30
)

// ErrVerificationTimeout means the verdict did not arrive within the attempt cap.
var ErrVerificationTimeout = errors.New("verification timeout")

// Poller calls a check at a fixed cadence, at most MaxAttempts times.
type Poller struct {
	Interval    time.Duration
	MaxAttempts int
}

// NewPoller returns the standard 1s x 30 poller.
func NewPoller() Poller {
	return Poller{Interval: DefaultPollInterval, MaxAttempts: DefaultMaxAttempts}
}

// Poll runs check until it reports done, returns an error, or the cap is hit.
// Attempts are sequential. Each waits a full interval after the previous
// check returned, the first one after the call.
// It returns the number of attempts made.
func (p Poller) Poll(ctx context.Context, check func(ctx context.Context, attempt int) (bool, error)) (int, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		// a fresh limiter per attempt measures the gap from the end of the previous check
		if err := drained(interval).Wait(ctx); err != nil {
			return attempt - 1, err
		}
		done, err := check(ctx, attempt)
		if err != nil {
			return attempt, err
		}
		if done {
			return attempt, nil
		}
	}
	return maxAttempts, ErrVerificationTimeout
}

// drained returns a limiter whose next token is one interval away.
func drained(interval time.Duration) *rate.Limiter {
	l := rate.NewLimiter(rate.Every(interval), 1)
	l.Allow()
	return l
}
