package model

// ResultExport is the top-level JSON structure for result export.
type ResultExport struct {
	TestID       string        `json:"test_id"`
	Title        string        `json:"title"`
	Date         string        `json:"date"`
	NumQuestions int           `json:"num_questions"`
	MaxScore     int           `json:"max_score"`
	Results      []UserResult  `json:"results"`
	Summary      ExportSummary `json:"summary"`
}

// UserResult holds one user's submission for export.
type UserResult struct {
	ResultID    string           `json:"result_id"`
	UserID      string           `json:"user_id"`
	Score       int              `json:"score"`
	SubmittedAt string           `json:"submitted_at"`
	Answers     []QuestionAnswer `json:"answers"`
}

// QuestionAnswer is a per-question line in an exported result.
type QuestionAnswer struct {
	Index         int    `json:"index"`
	Text          string `json:"text"`
	Answer        string `json:"answer,omitempty"`
	CorrectAnswer string `json:"correct_answer"`
	Correct       bool   `json:"correct"`
	Points        int    `json:"points"`
}

// ExportSummary aggregates scores across results.
type ExportSummary struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
	Best    int     `json:"best"`
}
