package feed

import (
	"math"
	"math/rand"
	"time"
)

// Backoff controls reconnect delays.
type Backoff struct {
	Min    time.Duration
	Max    time.Duration
	Factor float64
	// Jitter spreads each delay by ±Jitter of itself, capped at 1.
	Jitter float64
	// StableAfter is how long a session must last before the delay falls
	// back to Min. Zero uses Max.
	StableAfter time.Duration
}

// DefaultBackoff returns the reconnect delays used when none are configured.
func DefaultBackoff() Backoff {
	return Backoff{
		Min:    250 * time.Millisecond,
		Max:    5 * time.Second,
		Factor: 2,
		Jitter: 0.2,
	}
}

// Delay returns the wait before retry n, counting from 1.
func (b Backoff) Delay(n int) time.Duration {
	lo, hi := b.bounds()
	factor := b.Factor
	if factor <= 1 {
		factor = 2
	}
	if n < 1 {
		n = 1
	}

	wait := float64(lo) * math.Pow(factor, float64(n-1))
	if wait > float64(hi) || math.IsInf(wait, 0) {
		wait = float64(hi)
	}

	if j := math.Min(b.Jitter, 1); j > 0 {
		wait += wait * j * (2*rand.Float64() - 1)
	}
	return time.Duration(wait)
}

func (b Backoff) bounds() (time.Duration, time.Duration) {
	lo, hi := b.Min, b.Max
	if lo <= 0 {
		lo = 100 * time.Millisecond
	}
	if hi <= 0 {
		hi = 5 * time.Second
	}
	return lo, max(lo, hi)
}

func (b Backoff) stableAfter() time.Duration {
	if b.StableAfter > 0 {
		return b.StableAfter
	}
	_, hi := b.bounds()
	return hi
}

// retrier counts consecutive failures. A session that drops before it
// became stable counts as a failure, so a peer that accepts and hangs up
// at once is not redialed at Min forever.
type retrier struct {
	backoff  Backoff
	failures int
}

// dialFailed returns the wait after a failed dial.
func (r *retrier) dialFailed() time.Duration {
	r.failures++
	return r.backoff.Delay(r.failures)
}

// sessionEnded returns the wait after a session that lasted up.
func (r *retrier) sessionEnded(up time.Duration) time.Duration {
	if up >= r.backoff.stableAfter() {
		r.failures = 0
	}
	return r.dialFailed()
}
