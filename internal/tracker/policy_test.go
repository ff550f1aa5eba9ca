package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPollPolicy_Delay(t *testing.T) {
	tests := []struct {
		name    string
		policy  PollPolicy
		attempt int
		want    time.Duration
	}{
		{
			name:    "default fixed interval",
			policy:  DefaultPollPolicy(),
			attempt: 30,
			want:    10 * time.Second,
		},
		{
			name:    "zero policy uses defaults",
			policy:  PollPolicy{},
			attempt: 0,
			want:    10 * time.Second,
		},
		{
			name:    "exponential backoff",
			policy:  PollPolicy{Interval: time.Second, BackoffMultiplier: 2},
			attempt: 3,
			want:    8 * time.Second,
		},
		{
			name:    "backoff capped",
			policy:  PollPolicy{Interval: time.Second, BackoffMultiplier: 2, MaxInterval: 5 * time.Second},
			attempt: 10,
			want:    5 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.Delay(tt.attempt))
		})
	}
}

func TestDefaultPollPolicy(t *testing.T) {
	p := DefaultPollPolicy()
	assert.Equal(t, 60, p.MaxAttempts)
	assert.Equal(t, 10*time.Second, p.Interval)
	assert.Equal(t, 10*time.Minute, time.Duration(p.MaxAttempts)*p.Interval)
}

func TestRealClock_Tick(t *testing.T) {
	ticks, stop := realClock{}.Tick(time.Millisecond)
	defer stop()

	select {
	case <-ticks:
	case <-time.After(time.Second):
		t.Fatal("no tick delivered")
	}
}
