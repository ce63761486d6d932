package replay

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Backoff computes the wait before the next attempt of an operation that has failed
// attempts times: initial * 2^(attempts-1), capped at max.
type Backoff struct {
	initial time.Duration
	max     time.Duration
}

// NewBackoff creates a Backoff. A max below initial is raised to initial.
func NewBackoff(initial, max time.Duration) *Backoff {
	if max < initial {
		max = initial
	}
	return &Backoff{initial: initial, max: max}
}

// Delay returns the wait after the given number of failed attempts.
func (b *Backoff) Delay(attempts int) time.Duration {
	if attempts < 1 || b.initial <= 0 {
		return 0
	}

	curve := &backoff.ExponentialBackOff{
		InitialInterval:     b.initial,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         b.max,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	curve.Reset()

	var delay time.Duration
	for range attempts {
		delay = curve.NextBackOff()
		if delay >= b.max {
			return b.max
		}
	}
	return delay
}
