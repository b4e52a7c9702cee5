// Package retry implements the exponential-backoff-with-full-jitter policy
// shared by the OCR client and translation client (SPEC_FULL.md §4.3/§4.6):
// base 1s, cap 30s, attempt count configurable.
//
// Grounded on the teacher's downloadFileFromURL backoff loop
// (internal/processor/processor.go), generalized from a fixed
// exponential-without-jitter schedule to full-jitter so retry timing is
// injectable and deterministic in tests.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

const (
	BaseDelay = 1 * time.Second
	CapDelay  = 30 * time.Second
)

// Jitter returns a pseudo-random source for backoff jitter. Tests inject a
// seeded *rand.Rand for determinism; NewPolicy uses a source with the fixed
// seed 1. A nil Jitter makes Delay seed a fresh source from the current
// time on every call.
type Jitter interface {
	Float64() float64
}

// Policy controls how many attempts a retryable operation gets and how
// backoff delays are computed.
type Policy struct {
	MaxAttempts int
	Base        time.Duration
	Cap         time.Duration
	Jitter      Jitter
}

func NewPolicy(maxAttempts int) Policy {
	return Policy{
		MaxAttempts: maxAttempts,
		Base:        BaseDelay,
		Cap:         CapDelay,
		Jitter:      rand.New(rand.NewSource(1)),
	}
}

// Delay computes the full-jitter exponential backoff for the given attempt
// (1-indexed): a random duration in [0, min(cap, base*2^(attempt-1))).
func (p Policy) Delay(attempt int) time.Duration {
	base := p.Base
	if base <= 0 {
		base = BaseDelay
	}
	capDelay := p.Cap
	if capDelay <= 0 {
		capDelay = CapDelay
	}
	backoff := float64(base) * math.Pow(2, float64(attempt-1))
	if backoff > float64(capDelay) {
		backoff = float64(capDelay)
	}
	j := p.Jitter
	if j == nil {
		j = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return time.Duration(j.Float64() * backoff)
}

// Retryable reports whether an error should trigger another attempt.
type Retryable func(error) bool

// Do runs fn up to MaxAttempts times, sleeping with full-jitter exponential
// backoff between attempts, stopping early if shouldRetry returns false or
// ctx is cancelled. It returns the last error if every attempt fails.
func Do(ctx context.Context, p Policy, shouldRetry Retryable, fn func(attempt int) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == maxAttempts || !shouldRetry(err) {
			return lastErr
		}

		select {
		case <-time.After(p.Delay(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
