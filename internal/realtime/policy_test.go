package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixedDelay_Next(t *testing.T) {
	d := FixedDelay(250 * time.Millisecond)
	for attempt := 1; attempt <= 10; attempt++ {
		assert.Equal(t, 250*time.Millisecond, d.Next(attempt))
	}
}

func TestReconnectPolicy_WithDefaults(t *testing.T) {
	t.Run("Success - Zero value selects the default policy", func(t *testing.T) {
		assert.Equal(t, DefaultReconnectPolicy(), ReconnectPolicy{}.withDefaults())
	})

	t.Run("Success - Missing delay keeps the caller's attempts", func(t *testing.T) {
		p := ReconnectPolicy{MaxAttempts: 3}.withDefaults()

		assert.Equal(t, 3, p.MaxAttempts)
		assert.Equal(t, FixedDelay(time.Second), p.Delay)
	})

	t.Run("Success - Explicit policy is kept", func(t *testing.T) {
		p := ReconnectPolicy{MaxAttempts: 2, Delay: FixedDelay(5 * time.Second)}.withDefaults()

		assert.Equal(t, 2, p.MaxAttempts)
		assert.Equal(t, FixedDelay(5*time.Second), p.Delay)
	})

	t.Run("Success - Disabled reconnection stays disabled", func(t *testing.T) {
		p := ReconnectPolicy{MaxAttempts: -1}.withDefaults()

		assert.Equal(t, -1, p.MaxAttempts)
		assert.NotNil(t, p.Delay)
	})
}
