// Package poll waits for a remote job to leave its in-progress states.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is returned when the job is still in progress after the last attempt.
var ErrTimeout = errors.New("poll: job still in progress after max attempts")

// Default polling cadence used by the job-service client.
const (
	DefaultInterval    = 5 * time.Second
	DefaultMaxAttempts = 60
)

// CheckFunc reports the current status of the job being polled.
type CheckFunc func(ctx context.Context) (string, error)

// Poller checks a status at a fixed interval. No backoff and no jitter.
type Poller struct {
	Interval    time.Duration
	MaxAttempts int
	// InProgress lists the statuses that keep the poller going.
	InProgress map[string]struct{}
	// OnAttempt, when set, is called after every status check.
	OnAttempt func(attempt int, status string)

	sleep func(ctx context.Context, d time.Duration) error
}

// New builds a Poller for the given in-progress statuses, applying defaults
// for non-positive interval or attempt values.
func New(interval time.Duration, maxAttempts int, inProgress ...string) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	set := make(map[string]struct{}, len(inProgress))
	for _, s := range inProgress {
		set[s] = struct{}{}
	}
	return &Poller{
		Interval:    interval,
		MaxAttempts: maxAttempts,
		InProgress:  set,
		sleep:       sleepContext,
	}
}

// Wait sleeps, checks and repeats until check returns a status outside the
// in-progress set. That terminal status is returned as-is; the caller decides
// whether it means success. Check errors end polling immediately.
func (p *Poller) Wait(ctx context.Context, check CheckFunc) (string, error) {
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}
	var status string
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := sleep(ctx, p.Interval); err != nil {
			return status, fmt.Errorf("poll attempt %d: %w", attempt, err)
		}
		var err error
		status, err = check(ctx)
		if err != nil {
			return status, fmt.Errorf("poll attempt %d: %w", attempt, err)
		}
		if p.OnAttempt != nil {
			p.OnAttempt(attempt, status)
		}
		if !p.Pending(status) {
			return status, nil
		}
	}
	return status, fmt.Errorf("%w (last status %q)", ErrTimeout, status)
}

// Pending reports whether status is one of the in-progress statuses.
func (p *Poller) Pending(status string) bool {
	_, ok := p.InProgress[status]
	return ok
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
