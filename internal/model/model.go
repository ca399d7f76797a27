package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// DefaultDurationMinutes is used when a test carries no usable duration.
const DefaultDurationMinutes = 60

// Language selects which text variant is displayed.
type Language string

const (
	// LangEnglish is the primary language; stored answers always use it.
	LangEnglish Language = "en"
	// LangTelugu is the secondary display language.
	LangTelugu Language = "te"
)

// Toggle returns the other supported language.
func (l Language) Toggle() Language {
	if l == LangTelugu {
		return LangEnglish
	}
	return LangTelugu
}

// ParseLanguage maps a tag to a supported language, defaulting to English.
func ParseLanguage(s string) Language {
	if Language(s) == LangTelugu {
		return LangTelugu
	}
	return LangEnglish
}

// QuestionType tags how a question is answered.
type QuestionType string

const (
	QuestionMCQ       QuestionType = "mcq"
	QuestionTrueFalse QuestionType = "true_false"
)

// Question is a single exam question as delivered to the test taker.
type Question struct {
	ID        string       `json:"id,omitempty"`
	Text      string       `json:"text"`
	TextTe    string       `json:"textTe,omitempty"`
	ImageURL  string       `json:"imageUrl,omitempty"`
	Type      QuestionType `json:"type,omitempty"`
	Options   []string     `json:"options"`
	OptionsTe []string     `json:"optionsTe,omitempty"`
	Points    int          `json:"points"`

	// Grading fields never leave the backend.
	CorrectAnswer string `json:"-"`
	Explanation   string `json:"-"`
	ExplanationTe string `json:"-"`
}

// IsChoice reports whether the question is answered by picking an option.
// An untagged question is multiple choice.
func (q Question) IsChoice() bool {
	return q.Type == "" || q.Type == QuestionMCQ
}

// DisplayText returns the question text for the given language.
func (q Question) DisplayText(lang Language) string {
	if lang == LangTelugu && q.TextTe != "" {
		return q.TextTe
	}
	return q.Text
}

// DisplayOptions returns option labels for the given language. Missing
// translations fall back to the primary option per index.
func (q Question) DisplayOptions(lang Language) []string {
	out := make([]string, len(q.Options))
	for i, opt := range q.Options {
		out[i] = opt
		if lang == LangTelugu && i < len(q.OptionsTe) && q.OptionsTe[i] != "" {
			out[i] = q.OptionsTe[i]
		}
	}
	return out
}

// OptionLabel returns the letter shown for option index i (0 -> "A").
// Indices past "Z" fall back to 1-based numbers.
func OptionLabel(i int) string {
	if i < 0 || i >= 26 {
		return fmt.Sprint(i + 1)
	}
	return string(rune('A' + i))
}

// OptionIndex parses a label typed by the user ("b" or "B") into an index.
func OptionIndex(label string) (int, bool) {
	if len(label) != 1 {
		return 0, false
	}
	c := label[0] | 0x20
	if c < 'a' || c > 'z' {
		return 0, false
	}
	return int(c - 'a'), true
}

// Test is an exam definition: ordered questions and a time limit.
type Test struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	DurationMinutes float64    `json:"durationMinutes"`
	Questions       []Question `json:"questions"`
}

// UnmarshalJSON decodes a test and sanitizes its duration. The duration is
// read from durationMinutes, then duration_minutes; a missing, zero or
// non-numeric value becomes DefaultDurationMinutes.
func (t *Test) UnmarshalJSON(data []byte) error {
	type alias Test
	aux := struct {
		*alias
		Duration      json.RawMessage `json:"durationMinutes"`
		DurationSnake json.RawMessage `json:"duration_minutes"`
	}{alias: (*alias)(t)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	t.DurationMinutes = SanitizeDuration(aux.Duration, aux.DurationSnake)
	return nil
}

// SanitizeDuration picks the first non-empty candidate and returns it when it
// is a finite number. Anything else yields DefaultDurationMinutes.
func SanitizeDuration(candidates ...json.RawMessage) float64 {
	for _, raw := range candidates {
		if isEmptyJSON(raw) {
			continue
		}
		var n float64
		if err := json.Unmarshal(raw, &n); err != nil {
			return DefaultDurationMinutes
		}
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return DefaultDurationMinutes
		}
		return n
	}
	return DefaultDurationMinutes
}

func isEmptyJSON(raw json.RawMessage) bool {
	v := bytes.TrimSpace(raw)
	switch string(v) {
	case "", "null", "false", `""`:
		return true
	}
	var n float64
	if err := json.Unmarshal(v, &n); err == nil && n == 0 {
		return true
	}
	return false
}

// RemainingSeconds is the initial countdown value for the test.
func (t Test) RemainingSeconds() int {
	s := math.Floor(t.DurationMinutes * 60)
	if s < 0 || math.IsNaN(s) {
		return 0
	}
	return int(s)
}

// MaxScore sums the point values of all questions.
func (t Test) MaxScore() int {
	total := 0
	for _, q := range t.Questions {
		total += q.Points
	}
	return total
}

// AnswerMap maps a 0-based question index to the selected option value.
// Absence of a key means the question is unanswered.
type AnswerMap map[int]string

// Clone returns an independent copy.
func (a AnswerMap) Clone() AnswerMap {
	out := make(AnswerMap, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Answered reports whether question i has an answer.
func (a AnswerMap) Answered(i int) bool {
	_, ok := a[i]
	return ok
}

// SubmitRequest is the payload sent to the result provider.
type SubmitRequest struct {
	TestID  string    `json:"test_id" validate:"required"`
	Answers AnswerMap `json:"answers"`
}

// SubmitResult identifies the result created by a submission.
type SubmitResult struct {
	ID string `json:"id"`
}

// SubmissionStatus reports whether a user already submitted a test.
type SubmissionStatus struct {
	Submitted bool `json:"submitted"`
}

// Result is a stored, scored submission.
type Result struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TestID    string    `json:"test_id"`
	Answers   AnswerMap `json:"answers"`
	Score     int       `json:"score"`
	MaxScore  int       `json:"max_score"`
	CreatedAt time.Time `json:"created_at"`
}

// TestSummary is a list entry for available tests.
type TestSummary struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	DurationMinutes float64 `json:"durationMinutes"`
	QuestionCount   int     `json:"question_count"`
}

// FormatRemaining renders seconds as MM:SS, floored at zero.
func FormatRemaining(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// ResultPath is where the host navigates after a successful submission.
func ResultPath(resultID string) string {
	return "/dashboard/result/" + resultID
}

// DashboardPath is where the host navigates when the user leaves an exam.
const DashboardPath = "/dashboard"
