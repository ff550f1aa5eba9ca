package tracker

import (
	"time"
)

// Poll loop defaults: 60 attempts ten seconds apart, about ten minutes in total.
const (
	DefaultPollInterval    = 10 * time.Second
	DefaultPollMaxAttempts = 60
)

// PollPolicy controls how often and how long a remote job is polled
type PollPolicy struct {
	Interval          time.Duration
	MaxAttempts       int
	BackoffMultiplier float64
	MaxInterval       time.Duration
}

// DefaultPollPolicy returns the fixed-interval policy used in production
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{
		Interval:          DefaultPollInterval,
		MaxAttempts:       DefaultPollMaxAttempts,
		BackoffMultiplier: 1.0,
	}
}

func (p PollPolicy) withDefaults() PollPolicy {
	if p.Interval <= 0 {
		p.Interval = DefaultPollInterval
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultPollMaxAttempts
	}
	if p.BackoffMultiplier < 1 {
		p.BackoffMultiplier = 1.0
	}
	return p
}

// Delay returns the wait after the given zero-based poll attempt
func (p PollPolicy) Delay(attempt int) time.Duration {
	p = p.withDefaults()

	delay := float64(p.Interval)
	for i := 0; i < attempt; i++ {
		delay *= p.BackoffMultiplier
		if p.MaxInterval > 0 && delay >= float64(p.MaxInterval) {
			return p.MaxInterval
		}
	}

	if p.MaxInterval > 0 && time.Duration(delay) > p.MaxInterval {
		return p.MaxInterval
	}
	return time.Duration(delay)
}

// Clock abstracts time so the poll loop can be driven without real sleeping
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
	// Tick delivers on every interval until stop is called
	Tick(d time.Duration) (ticks <-chan time.Time, stop func())
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

func (realClock) Tick(d time.Duration) (<-chan time.Time, func()) {
	ticker := time.NewTicker(d)
	return ticker.C, ticker.Stop
}
