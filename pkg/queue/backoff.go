package queue

import (
	"math"
	"math/rand"
	"time"
)

// Backoff computes delays between retry attempts. Jitter spreads out tasks
// that failed together so their retries do not land on the transport at the
// same instant.
type Backoff struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Factor    float64
	Jitter    float64 // fraction of the delay, e.g. 0.1 for ±10%
}

// DefaultBackoff matches the dispatch retry contract: delays start at one
// minute, double, and never exceed ten minutes.
func DefaultBackoff() Backoff {
	return Backoff{
		BaseDelay: time.Minute,
		MaxDelay:  10 * time.Minute,
		Factor:    2.0,
		Jitter:    0.1,
	}
}

// NextDelay returns the delay before the given retry. retry is 1-based: the
// delay after the first failed attempt is NextDelay(1) == BaseDelay.
func (b Backoff) NextDelay(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}

	delay := float64(b.BaseDelay) * math.Pow(b.Factor, float64(retry-1))
	if delay > float64(b.MaxDelay) {
		delay = float64(b.MaxDelay)
	}

	if b.Jitter > 0 {
		span := delay * b.Jitter
		delay += (rand.Float64() * 2 * span) - span
	}

	if delay < float64(time.Second) {
		delay = float64(time.Second)
	}

	return time.Duration(delay)
}
