// Package backoff implements a small exponential backoff helper used
// by the dial monitor to avoid hammering an unreachable target every
// tick.
package backoff

import "time"

// Strategy is an exponential backoff with a cap, in the style of
// distributed-queue's wait.BackoffStrategy.
type Strategy struct {
	base   time.Duration
	factor float64
	cap    time.Duration

	duration       time.Duration
	nextActivation time.Time
}

// New creates a Strategy starting from base, growing by factor on
// every Fail call, never exceeding cap.
func New(base time.Duration, factor float64, cap time.Duration) *Strategy {
	return &Strategy{base: base, factor: factor, cap: cap}
}

// Fail records a failed attempt and grows the backoff window.
func (s *Strategy) Fail() {
	s.duration = s.base + time.Duration(float64(s.duration)*s.factor)
	if s.duration > s.cap {
		s.duration = s.cap
	}
	s.nextActivation = time.Now().Add(s.duration)
}

// Ready reports whether the backoff window has elapsed and it is ok to
// retry.
func (s *Strategy) Ready() bool {
	return time.Now().After(s.nextActivation)
}

// Reset clears the backoff, e.g. after a successful connection.
func (s *Strategy) Reset() {
	s.duration = 0
	s.nextActivation = time.Time{}
}
