package session

import "github.com/pavelanni/taketest/internal/model"

// RequestExit handles an attempt to leave the exam, such as a back action.
// Before a test is loaded, or after Close, the attempt is not intercepted.
// Otherwise the host is asked to confirm; confirming abandons the session
// without submitting. It reports whether the exit goes ahead.
func (s *Session) RequestExit() bool {
	s.mu.Lock()
	guarded := s.guarded && s.status.interactive()
	s.mu.Unlock()
	if !guarded {
		return true
	}

	if !s.host.ConfirmExit() {
		s.log.Debug("exit declined")
		return false
	}

	// The countdown keeps running while the host prompts, so the session may
	// have been submitted in the meantime. A terminal state is never replaced.
	s.mu.Lock()
	if !s.guarded || !s.status.interactive() {
		st := s.status
		s.mu.Unlock()
		s.log.Debug("exit confirmed after session left the exam", "status", st)
		return true
	}
	s.status = StatusAbandoned
	s.guarded = false
	s.mu.Unlock()
	s.stop()

	s.log.Info("exam abandoned")
	s.host.Navigate(model.DashboardPath)
	return true
}

// Guarded reports whether exit attempts are currently intercepted.
func (s *Session) Guarded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.guarded && s.status.interactive()
}
