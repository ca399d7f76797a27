package session

import (
	"context"
	"errors"
	"time"
)

// Remaining returns the seconds left on the clock.
func (s *Session) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining
}

// Tick advances the countdown by one second. When the clock reaches zero it
// triggers Submit once, unless a submission is already in flight, and
// reports that ticking should stop.
func (s *Session) Tick(ctx context.Context) (stop bool) {
	s.mu.Lock()
	if !s.status.interactive() || s.expired {
		s.mu.Unlock()
		return true
	}
	if s.remaining > 1 {
		s.remaining--
		s.mu.Unlock()
		return false
	}
	s.remaining = 0
	s.expired = true
	auto := s.status == StatusInProgress
	s.mu.Unlock()

	if !auto {
		s.log.Warn("time is up while a submission is in flight")
		return true
	}
	s.log.Info("time is up, submitting automatically")
	if _, err := s.Submit(ctx); err != nil && !errors.Is(err, ErrSubmitInFlight) {
		s.log.Warn("automatic submission failed, manual submit required", "error", err)
	}
	return true
}

// Run ticks once per interval until time runs out, the session reaches a
// terminal state or is closed, or ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	if !s.status.interactive() {
		s.mu.Unlock()
		return ErrNotInProgress
	}
	s.mu.Unlock()

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case <-ticker.C:
			if s.Tick(ctx) {
				return nil
			}
		}
	}
}
