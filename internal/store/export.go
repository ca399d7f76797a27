package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pavelanni/taketest/internal/model"
)

// ExportResults builds the export document for one test: every result with
// a per-question breakdown, plus summary statistics.
func (s *Store) ExportResults(ctx context.Context, testID string) (*model.ResultExport, error) {
	test, err := s.GetTest(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("get test %s: %w", testID, err)
	}
	results, err := s.ListResults(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}

	export := &model.ResultExport{
		TestID:       test.ID,
		Title:        test.Title,
		Date:         time.Now().Format("2006-01-02"),
		NumQuestions: len(test.Questions),
		MaxScore:     test.MaxScore(),
		Results:      []model.UserResult{},
	}

	total := 0
	for _, r := range results {
		ur := model.UserResult{
			ResultID:    r.ID,
			UserID:      r.UserID,
			Score:       r.Score,
			SubmittedAt: r.CreatedAt.UTC().Format(time.RFC3339),
		}
		for i, q := range test.Questions {
			answer, answered := r.Answers[i]
			correct := answered && q.CorrectAnswer != "" && answer == q.CorrectAnswer
			qa := model.QuestionAnswer{
				Index:         i,
				Text:          q.Text,
				Answer:        answer,
				CorrectAnswer: q.CorrectAnswer,
				Correct:       correct,
			}
			if correct {
				qa.Points = q.Points
			}
			ur.Answers = append(ur.Answers, qa)
		}
		export.Results = append(export.Results, ur)

		total += r.Score
		if r.Score > export.Summary.Best {
			export.Summary.Best = r.Score
		}
	}

	export.Summary.Count = len(results)
	if len(results) > 0 {
		export.Summary.Average = float64(total) / float64(len(results))
	}
	return export, nil
}
