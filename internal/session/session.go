// Package session implements the client-side controller for one user's timed
// attempt at a test: loading, answering, navigating, counting down and
// submitting exactly once.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pavelanni/taketest/internal/model"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusLoading          Status = "loading"
	StatusAlreadySubmitted Status = "already_submitted"
	StatusNotFound         Status = "not_found"
	StatusEmpty            Status = "empty"
	StatusInProgress       Status = "in_progress"
	StatusSubmitting       Status = "submitting"
	StatusSubmitted        Status = "submitted"
	StatusAbandoned        Status = "abandoned"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	switch s {
	case StatusAlreadySubmitted, StatusNotFound, StatusEmpty, StatusSubmitted, StatusAbandoned:
		return true
	}
	return false
}

// interactive reports whether answers and navigation are accepted.
func (s Status) interactive() bool {
	return s == StatusInProgress || s == StatusSubmitting
}

var (
	// ErrSubmitInFlight is returned when Submit is called while another
	// submission has not finished. The call has no effect.
	ErrSubmitInFlight = errors.New("submission already in flight")
	// ErrNotInProgress is returned for actions that need a loaded, unsubmitted exam.
	ErrNotInProgress = errors.New("exam is not in progress")
	// ErrIndexOutOfRange is returned for question indices outside the test.
	ErrIndexOutOfRange = errors.New("question index out of range")
)

// TestProvider retrieves test definitions.
type TestProvider interface {
	FetchTest(ctx context.Context, testID string) (*model.Test, error)
}

// ResultProvider checks for and persists submissions.
type ResultProvider interface {
	CheckSubmission(ctx context.Context, userID, testID string) (bool, error)
	SubmitResult(ctx context.Context, req model.SubmitRequest) (*model.SubmitResult, error)
}

// Host is the environment the session is mounted in.
type Host interface {
	// ConfirmExit asks the user whether to abandon the exam.
	ConfirmExit() bool
	// Alert shows a blocking notice for a failed action.
	Alert(err error)
	// Navigate leaves the exam page for path.
	Navigate(path string)
}

// Config identifies the attempt and tunes the countdown.
type Config struct {
	TestID       string
	UserID       string
	Language     model.Language
	TickInterval time.Duration // defaults to one second
}

// Session is one user's attempt at a test. It is safe for concurrent use;
// the countdown goroutine and user actions share a single mutex.
type Session struct {
	tests   TestProvider
	results ResultProvider
	host    Host
	cfg     Config
	log     *slog.Logger

	mu        sync.Mutex
	status    Status
	test      *model.Test
	current   int
	answers   model.AnswerMap
	remaining int
	expired   bool
	lang      model.Language
	resultID  string
	guarded   bool
	closed    bool

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a session in the Loading state.
func New(tests TestProvider, results ResultProvider, host Host, cfg Config) *Session {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.Language == "" {
		cfg.Language = model.LangEnglish
	}
	return &Session{
		tests:   tests,
		results: results,
		host:    host,
		cfg:     cfg,
		log:     slog.Default().With("test_id", cfg.TestID, "user_id", cfg.UserID),
		status:  StatusLoading,
		answers: make(model.AnswerMap),
		lang:    cfg.Language,
		done:    make(chan struct{}),
	}
}

// Load checks for a prior submission and, if there is none, fetches the test.
// Failures leave the session in StatusNotFound; they are not retried.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.status != StatusLoading {
		st := s.status
		s.mu.Unlock()
		return fmt.Errorf("load: session is %s", st)
	}
	s.mu.Unlock()

	if s.cfg.UserID != "" {
		submitted, err := s.results.CheckSubmission(ctx, s.cfg.UserID, s.cfg.TestID)
		if err != nil {
			s.log.Error("failed to check submission", "error", err)
			s.setStatus(StatusNotFound)
			return fmt.Errorf("check submission: %w", err)
		}
		if submitted {
			s.log.Info("test already submitted")
			s.setStatus(StatusAlreadySubmitted)
			return nil
		}
	}

	test, err := s.tests.FetchTest(ctx, s.cfg.TestID)
	if err == nil && test == nil {
		err = errors.New("empty test definition")
	}
	if err != nil {
		s.log.Error("failed to load test", "error", err)
		s.setStatus(StatusNotFound)
		return fmt.Errorf("fetch test: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.test = test
	if len(test.Questions) == 0 {
		s.status = StatusEmpty
		return nil
	}
	s.remaining = test.RemainingSeconds()
	s.status = StatusInProgress
	s.guarded = !s.closed
	s.log.Info("test loaded",
		"questions", len(test.Questions),
		"duration_minutes", test.DurationMinutes,
		"remaining", s.remaining,
	)
	return nil
}

func (s *Session) setStatus(st Status) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Answer records value for question index, replacing any earlier answer.
// The value is not checked against the question's options.
func (s *Session) Answer(index int, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.status.interactive() {
		return ErrNotInProgress
	}
	if index < 0 || index >= len(s.test.Questions) {
		return fmt.Errorf("answer %d: %w", index, ErrIndexOutOfRange)
	}
	s.answers[index] = value
	return nil
}

// AnswerCurrent records value for the question currently shown.
func (s *Session) AnswerCurrent(value string) error {
	s.mu.Lock()
	idx := s.current
	s.mu.Unlock()
	return s.Answer(idx, value)
}

// Next moves forward one question, stopping at the last.
func (s *Session) Next() (int, error) {
	return s.move(1)
}

// Prev moves back one question, stopping at the first.
func (s *Session) Prev() (int, error) {
	return s.move(-1)
}

func (s *Session) move(delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.status.interactive() {
		return s.current, ErrNotInProgress
	}
	last := len(s.test.Questions) - 1
	s.current = min(max(s.current+delta, 0), last)
	return s.current, nil
}

// Jump shows question index directly.
func (s *Session) Jump(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.status.interactive() {
		return ErrNotInProgress
	}
	if index < 0 || index >= len(s.test.Questions) {
		return fmt.Errorf("jump %d: %w", index, ErrIndexOutOfRange)
	}
	s.current = index
	return nil
}

// Advance moves to the next question, or submits when the last one is shown.
func (s *Session) Advance(ctx context.Context) error {
	s.mu.Lock()
	last := s.test != nil && s.current == len(s.test.Questions)-1
	s.mu.Unlock()
	if last {
		_, err := s.Submit(ctx)
		return err
	}
	_, err := s.Next()
	return err
}

// Submit sends the answers as they are at the moment of the call. Only one
// submission may be in flight; a concurrent call returns ErrSubmitInFlight.
// On failure the session returns to InProgress so the user can retry.
func (s *Session) Submit(ctx context.Context) (*model.SubmitResult, error) {
	s.mu.Lock()
	switch s.status {
	case StatusInProgress:
	case StatusSubmitting:
		s.mu.Unlock()
		return nil, ErrSubmitInFlight
	default:
		s.mu.Unlock()
		return nil, ErrNotInProgress
	}
	s.status = StatusSubmitting
	req := model.SubmitRequest{
		TestID:  s.cfg.TestID,
		Answers: s.answers.Clone(),
	}
	s.mu.Unlock()

	s.log.Info("submitting answers", "answered", len(req.Answers))
	res, err := s.results.SubmitResult(ctx, req)
	if err == nil && (res == nil || res.ID == "") {
		err = errors.New("submission returned no result id")
	}

	s.mu.Lock()
	if err != nil {
		if s.status == StatusSubmitting {
			s.status = StatusInProgress
		}
		s.mu.Unlock()
		s.log.Error("submission failed", "error", err)
		s.host.Alert(err)
		return nil, fmt.Errorf("submit result: %w", err)
	}
	abandoned := s.status != StatusSubmitting
	s.resultID = res.ID
	if !abandoned {
		s.status = StatusSubmitted
		s.guarded = false
	}
	s.mu.Unlock()

	s.log.Info("submission accepted", "result_id", res.ID)
	if !abandoned {
		s.stop()
		s.host.Navigate(model.ResultPath(res.ID))
	}
	return res, nil
}

// SetLanguage changes the display language. Stored answers are unaffected.
func (s *Session) SetLanguage(lang model.Language) {
	s.mu.Lock()
	s.lang = lang
	s.mu.Unlock()
}

// ToggleLanguage switches between the two display languages.
func (s *Session) ToggleLanguage() model.Language {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lang = s.lang.Toggle()
	return s.lang
}

// Close unmounts the session: the countdown stops and exit attempts are no
// longer intercepted.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.guarded = false
	s.mu.Unlock()
	s.stop()
}

func (s *Session) stop() {
	s.closeOnce.Do(func() { close(s.done) })
}
