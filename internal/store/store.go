package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/pavelanni/taketest/internal/model"
)

var (
	// ErrNotFound is returned when a test or result does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadySubmitted is returned when the user already has a result
	// for the test.
	ErrAlreadySubmitted = errors.New("already submitted")
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every new connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tests (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		duration_minutes REAL NOT NULL DEFAULT 60,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS questions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		test_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		text TEXT NOT NULL,
		text_te TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL DEFAULT 'mcq',
		options TEXT NOT NULL DEFAULT '[]',
		options_te TEXT NOT NULL DEFAULT '[]',
		points INTEGER NOT NULL DEFAULT 1,
		correct_answer TEXT NOT NULL DEFAULT '',
		explanation TEXT NOT NULL DEFAULT '',
		explanation_te TEXT NOT NULL DEFAULT '',
		FOREIGN KEY (test_id) REFERENCES tests(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_questions_test ON questions(test_id, position);

	CREATE TABLE IF NOT EXISTS results (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		test_id TEXT NOT NULL,
		answers TEXT NOT NULL DEFAULT '{}',
		score INTEGER NOT NULL DEFAULT 0,
		max_score INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (test_id) REFERENCES tests(id)
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_results_one_per_user ON results(user_id, test_id);

	CREATE TABLE IF NOT EXISTS imported_files (
		path TEXT PRIMARY KEY,
		hash TEXT NOT NULL,
		imported_at DATETIME NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// InsertTest stores a test and its questions, replacing any test with the
// same ID. Earlier results for the test are kept.
func (s *Store) InsertTest(ctx context.Context, t model.Test) error {
	if t.ID == "" {
		return errors.New("test id is required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE test_id = ?`, t.ID); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO tests (id, title, duration_minutes, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET title = excluded.title, duration_minutes = excluded.duration_minutes`,
		t.ID, t.Title, t.DurationMinutes, time.Now(),
	)
	if err != nil {
		return err
	}

	for i, q := range t.Questions {
		opts, err := json.Marshal(nonNil(q.Options))
		if err != nil {
			return err
		}
		optsTe, err := json.Marshal(nonNil(q.OptionsTe))
		if err != nil {
			return err
		}
		qType := q.Type
		if qType == "" {
			qType = model.QuestionMCQ
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO questions (test_id, position, text, text_te, image_url, type, options, options_te,
			 points, correct_answer, explanation, explanation_te)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, i, q.Text, q.TextTe, q.ImageURL, qType, string(opts), string(optsTe),
			q.Points, q.CorrectAnswer, q.Explanation, q.ExplanationTe,
		)
		if err != nil {
			return fmt.Errorf("insert question %d: %w", i, err)
		}
	}
	return tx.Commit()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// GetTest returns a test with its questions in order, answer keys included.
func (s *Store) GetTest(ctx context.Context, id string) (*model.Test, error) {
	t := model.Test{ID: id}
	err := s.db.QueryRowContext(ctx,
		`SELECT title, duration_minutes FROM tests WHERE id = ?`, id,
	).Scan(&t.Title, &t.DurationMinutes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, text_te, image_url, type, options, options_te, points,
		 correct_answer, explanation, explanation_te
		 FROM questions WHERE test_id = ? ORDER BY position`, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			q            model.Question
			qid          int64
			opts, optsTe string
		)
		if err := rows.Scan(&qid, &q.Text, &q.TextTe, &q.ImageURL, &q.Type, &opts, &optsTe, &q.Points,
			&q.CorrectAnswer, &q.Explanation, &q.ExplanationTe); err != nil {
			return nil, err
		}
		q.ID = fmt.Sprint(qid)
		if err := json.Unmarshal([]byte(opts), &q.Options); err != nil {
			return nil, fmt.Errorf("decode options: %w", err)
		}
		if err := json.Unmarshal([]byte(optsTe), &q.OptionsTe); err != nil {
			return nil, fmt.Errorf("decode options_te: %w", err)
		}
		if len(q.OptionsTe) == 0 {
			q.OptionsTe = nil
		}
		t.Questions = append(t.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTests returns a summary of every stored test.
func (s *Store) ListTests(ctx context.Context) ([]model.TestSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.id, t.title, t.duration_minutes, COUNT(q.id)
		 FROM tests t LEFT JOIN questions q ON q.test_id = t.id
		 GROUP BY t.id ORDER BY t.created_at, t.id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tests []model.TestSummary
	for rows.Next() {
		var ts model.TestSummary
		if err := rows.Scan(&ts.ID, &ts.Title, &ts.DurationMinutes, &ts.QuestionCount); err != nil {
			return nil, err
		}
		tests = append(tests, ts)
	}
	return tests, rows.Err()
}

// TestCount returns the number of stored tests.
func (s *Store) TestCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tests`).Scan(&count)
	return count, err
}

// HasSubmission reports whether userID already has a result for testID.
func (s *Store) HasSubmission(ctx context.Context, userID, testID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM results WHERE user_id = ? AND test_id = ?)`, userID, testID,
	).Scan(&exists)
	return exists, err
}

// CreateResult scores the answers against the stored answer key and saves
// the result under a new UUID. A second result for the same user and test
// fails with ErrAlreadySubmitted.
func (s *Store) CreateResult(ctx context.Context, userID string, req model.SubmitRequest) (*model.Result, error) {
	test, err := s.GetTest(ctx, req.TestID)
	if err != nil {
		return nil, err
	}
	answers := req.Answers
	if answers == nil {
		answers = model.AnswerMap{}
	}
	score, maxScore := Score(test, answers)

	res := &model.Result{
		ID:        uuid.NewString(),
		UserID:    userID,
		TestID:    req.TestID,
		Answers:   answers,
		Score:     score,
		MaxScore:  maxScore,
		CreatedAt: time.Now().UTC(),
	}
	raw, err := json.Marshal(answers)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO results (id, user_id, test_id, answers, score, max_score, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		res.ID, res.UserID, res.TestID, string(raw), res.Score, res.MaxScore, res.CreatedAt,
	)
	if isConstraintErr(err) {
		return nil, ErrAlreadySubmitted
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// isConstraintErr matches SQLITE_CONSTRAINT and its extended codes.
func isConstraintErr(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}

// Score returns the points earned and the points available. Answers for
// indices outside the test are ignored.
func Score(t *model.Test, answers model.AnswerMap) (score, maxScore int) {
	for i, q := range t.Questions {
		maxScore += q.Points
		if a, ok := answers[i]; ok && q.CorrectAnswer != "" && a == q.CorrectAnswer {
			score += q.Points
		}
	}
	return score, maxScore
}

const resultColumns = `id, user_id, test_id, answers, score, max_score, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(row scanner) (*model.Result, error) {
	var (
		r   model.Result
		raw string
	)
	if err := row.Scan(&r.ID, &r.UserID, &r.TestID, &raw, &r.Score, &r.MaxScore, &r.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(raw), &r.Answers); err != nil {
		return nil, fmt.Errorf("decode answers: %w", err)
	}
	return &r, nil
}

// GetResult returns a result by ID.
func (s *Store) GetResult(ctx context.Context, id string) (*model.Result, error) {
	r, err := scanResult(s.db.QueryRowContext(ctx,
		`SELECT `+resultColumns+` FROM results WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

// ListResults returns results for a test, oldest first. An empty testID
// lists every result.
func (s *Store) ListResults(ctx context.Context, testID string) ([]model.Result, error) {
	query := `SELECT ` + resultColumns + ` FROM results`
	var args []any
	if testID != "" {
		query += ` WHERE test_id = ?`
		args = append(args, testID)
	}
	query += ` ORDER BY created_at, id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.Result
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *r)
	}
	return results, rows.Err()
}
