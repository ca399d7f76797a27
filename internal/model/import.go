package model

import "encoding/json"

// TestImport is used for loading tests from JSON files. Unlike Test it
// carries answer keys.
type TestImport struct {
	ID              string           `json:"id" validate:"required,max=64"`
	Title           string           `json:"title" validate:"required"`
	DurationMinutes json.RawMessage  `json:"durationMinutes"`
	DurationSnake   json.RawMessage  `json:"duration_minutes"`
	Questions       []QuestionImport `json:"questions" validate:"dive"`
}

// QuestionImport is a question with its grading fields.
type QuestionImport struct {
	Text          string       `json:"text" validate:"required"`
	TextTe        string       `json:"textTe"`
	ImageURL      string       `json:"imageUrl" validate:"omitempty,url"`
	Type          QuestionType `json:"type" validate:"omitempty,oneof=mcq true_false"`
	Options       []string     `json:"options"`
	OptionsTe     []string     `json:"optionsTe"`
	CorrectAnswer string       `json:"correctAnswer"`
	Explanation   string       `json:"explanation"`
	ExplanationTe string       `json:"explanationTe"`
	Points        *int         `json:"points" validate:"omitempty,min=0"` // nil means 1
}

// ToTest converts an import record into a Test with a sanitized duration.
func (ti TestImport) ToTest() Test {
	t := Test{
		ID:              ti.ID,
		Title:           ti.Title,
		DurationMinutes: SanitizeDuration(ti.DurationMinutes, ti.DurationSnake),
	}
	for _, qi := range ti.Questions {
		points := 1
		if qi.Points != nil {
			points = *qi.Points
		}
		t.Questions = append(t.Questions, Question{
			Text:          qi.Text,
			TextTe:        qi.TextTe,
			ImageURL:      qi.ImageURL,
			Type:          qi.Type,
			Options:       qi.Options,
			OptionsTe:     qi.OptionsTe,
			Points:        points,
			CorrectAnswer: qi.CorrectAnswer,
			Explanation:   qi.Explanation,
			ExplanationTe: qi.ExplanationTe,
		})
	}
	return t
}
