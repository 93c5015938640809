package retry

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/cenkalti/backoff/v5"
)

// Config holds retry configuration
type Config struct {
	MaxAttempts  uint
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultConfig returns default retry configuration
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
	}
}

// Do executes a function with exponential backoff retry
func Do(ctx context.Context, cfg Config, fn func() error) error {
	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(cfg.MaxAttempts),
		retry.Delay(cfg.InitialDelay),
		retry.MaxDelay(cfg.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
}

// DoWithResult executes a function with exponential backoff retry and returns a result
func DoWithResult[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func() error {
		var err error
		result, err = fn()
		return err
	})
	return result, err
}

// Stop marks err as not worth retrying; Do returns it immediately.
func Stop(err error) error {
	return retry.Unrecoverable(err)
}

// Schedule computes how long a record waits before its next delivery
// attempt. It is deterministic (no jitter) and never decreases as the
// attempt count grows.
type Schedule struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultSchedule is 30s doubling up to 30m.
func DefaultSchedule() Schedule {
	return Schedule{
		Initial:    30 * time.Second,
		Max:        30 * time.Minute,
		Multiplier: 2.0,
	}
}

// Delay returns the wait after the given number of failed attempts.
// Attempts below 1 are treated as 1.
func (s Schedule) Delay(attempts int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.Initial
	b.MaxInterval = s.Max
	b.Multiplier = s.Multiplier
	b.RandomizationFactor = 0
	if b.Multiplier < 1 {
		b.Multiplier = 1
	}

	delay := b.NextBackOff()
	for i := 1; i < attempts && delay < s.Max; i++ {
		delay = b.NextBackOff()
	}
	if delay > s.Max {
		delay = s.Max
	}
	return delay
}

// Next returns the time of the next attempt.
func (s Schedule) Next(now time.Time, attempts int) time.Time {
	return now.Add(s.Delay(attempts))
}
