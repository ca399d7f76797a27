package session

import "github.com/pavelanni/taketest/internal/model"

// View is an immutable snapshot of a session for rendering.
type View struct {
	Status    Status
	Title     string
	Index     int
	Total     int
	Question  *model.Question
	Remaining int
	Answers   model.AnswerMap
	Language  model.Language
	ResultID  string
}

// Submitting reports whether a submission is in flight.
func (v View) Submitting() bool {
	return v.Status == StatusSubmitting
}

// IsLast reports whether the last question is shown.
func (v View) IsLast() bool {
	return v.Total > 0 && v.Index == v.Total-1
}

// Selected returns the stored answer for the shown question.
func (v View) Selected() (string, bool) {
	a, ok := v.Answers[v.Index]
	return a, ok
}

// Snapshot captures the current state.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		Status:    s.status,
		Index:     s.current,
		Remaining: s.remaining,
		Answers:   s.answers.Clone(),
		Language:  s.lang,
		ResultID:  s.resultID,
	}
	if s.test != nil {
		v.Title = s.test.Title
		v.Total = len(s.test.Questions)
		if s.current < v.Total {
			q := s.test.Questions[s.current]
			v.Question = &q
		}
	}
	return v
}
