package realtime

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// DelayStrategy computes the wait before reconnection attempt n (1-based).
type DelayStrategy interface {
	Next(attempt int) time.Duration
}

// FixedDelay waits the same duration before every attempt.
type FixedDelay time.Duration

// Next satisfies DelayStrategy.
func (d FixedDelay) Next(int) time.Duration { return time.Duration(d) }

// ReconnectPolicy bounds automatic reconnection. MaxAttempts <= 0 disables it
// unless the whole policy is the zero value, which selects
// DefaultReconnectPolicy. A nil Delay selects the default delay.
type ReconnectPolicy struct {
	MaxAttempts int
	Delay       DelayStrategy
}

// DefaultReconnectPolicy retries ten times, one second apart.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		MaxAttempts: 10,
		Delay:       FixedDelay(time.Second),
	}
}

func (p ReconnectPolicy) withDefaults() ReconnectPolicy {
	def := DefaultReconnectPolicy()
	if p.MaxAttempts == 0 && p.Delay == nil {
		return def
	}
	if p.Delay == nil {
		p.Delay = def.Delay
	}
	return p
}

// Clock schedules reconnection delays. Any clockwork.Clock satisfies it;
// tests inject a clockwork fake clock.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

var _ Clock = clockwork.NewRealClock()
