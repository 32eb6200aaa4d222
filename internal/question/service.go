package question

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"quizdesk/internal/scoring"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrTestNotFound     = errors.New("test not found")
	ErrQuestionNotFound = errors.New("question not found")
)

const defaultTitle = "Untitled Test"

type Service struct {
	db                 *sql.DB
	defaultTestMinutes int
}

type TestSummary struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	DurationMinutes int       `json:"duration"`
	QuestionCount   int       `json:"question_count"`
	Source          string    `json:"source"`
	SourceKey       string    `json:"source_key,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type CreateTestInput struct {
	Title           string
	DurationMinutes int
	Source          string
	SourceKey       string
	Candidates      []scoring.Candidate
}

type OptionInput struct {
	Text      string
	IsCorrect bool
}

type QuestionInput struct {
	Text        string
	Type        string
	Explanation string
	Options     []OptionInput
}

func NewService(db *sql.DB, defaultTestMinutes int) *Service {
	if defaultTestMinutes <= 0 {
		defaultTestMinutes = 60
	}
	return &Service{db: db, defaultTestMinutes: defaultTestMinutes}
}

func (s *Service) ListTests(ctx context.Context) ([]TestSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			t.id,
			t.title,
			t.duration_minutes,
			t.source,
			t.source_key,
			t.created_at,
			(SELECT COUNT(*) FROM questions q WHERE q.test_id = t.id) AS question_count
		FROM tests t
		ORDER BY t.created_at DESC, t.id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query tests: %w", err)
	}
	defer rows.Close()

	out := make([]TestSummary, 0)
	for rows.Next() {
		var (
			item      TestSummary
			createdAt int64
		)
		if err := rows.Scan(&item.ID, &item.Title, &item.DurationMinutes, &item.Source, &item.SourceKey, &createdAt, &item.QuestionCount); err != nil {
			return nil, fmt.Errorf("scan test: %w", err)
		}
		item.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tests: %w", err)
	}
	return out, nil
}

// GetTest loads the full aggregate, correctness flags included.
func (s *Service) GetTest(ctx context.Context, testID int64) (*scoring.Test, error) {
	t := &scoring.Test{}
	if err := s.db.QueryRowContext(ctx, `
		SELECT id, title, duration_minutes
		FROM tests
		WHERE id = $1
	`, testID).Scan(&t.ID, &t.Title, &t.DurationMinutes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("load test: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, question_text, question_type, explanation
		FROM questions
		WHERE test_id = $1
		ORDER BY seq_no, id
	`, testID)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	index := map[int64]int{}
	t.Questions = make([]scoring.Question, 0)
	for rows.Next() {
		var (
			q     scoring.Question
			qType string
		)
		if err := rows.Scan(&q.ID, &q.Text, &qType, &q.Explanation); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q.Type = scoring.QuestionType(qType)
		q.Options = make([]scoring.Option, 0, 4)
		index[q.ID] = len(t.Questions)
		t.Questions = append(t.Questions, q)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	rows.Close()

	optRows, err := s.db.QueryContext(ctx, `
		SELECT o.id, o.question_id, o.option_text, o.is_correct
		FROM options o
		JOIN questions q ON q.id = o.question_id
		WHERE q.test_id = $1
		ORDER BY o.question_id, o.seq_no, o.id
	`, testID)
	if err != nil {
		return nil, fmt.Errorf("query options: %w", err)
	}
	defer optRows.Close()

	for optRows.Next() {
		var (
			o          scoring.Option
			questionID int64
		)
		if err := optRows.Scan(&o.ID, &questionID, &o.Text, &o.IsCorrect); err != nil {
			return nil, fmt.Errorf("scan option: %w", err)
		}
		if i, ok := index[questionID]; ok {
			t.Questions[i].Options = append(t.Questions[i].Options, o)
		}
	}
	if err := optRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate options: %w", err)
	}

	return t, nil
}

func (s *Service) GetTestSourceKey(ctx context.Context, testID int64) (string, error) {
	var key string
	if err := s.db.QueryRowContext(ctx, `SELECT source_key FROM tests WHERE id = $1`, testID).Scan(&key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrTestNotFound
		}
		return "", fmt.Errorf("load source key: %w", err)
	}
	return key, nil
}

func (s *Service) GetQuestion(ctx context.Context, questionID int64) (*scoring.Question, error) {
	var testID int64
	if err := s.db.QueryRowContext(ctx, `SELECT test_id FROM questions WHERE id = $1`, questionID).Scan(&testID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("load question: %w", err)
	}
	t, err := s.GetTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	for i := range t.Questions {
		if t.Questions[i].ID == questionID {
			return &t.Questions[i], nil
		}
	}
	return nil, ErrQuestionNotFound
}

// CreateTest validates the whole candidate set before writing anything, so a
// bad upload never leaves a partial test behind.
func (s *Service) CreateTest(ctx context.Context, in CreateTestInput) (*TestSummary, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		in.Title = defaultTitle
	}
	if in.DurationMinutes == 0 {
		in.DurationMinutes = s.defaultTestMinutes
	}
	if in.DurationMinutes < 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrInvalidInput)
	}
	in.Source = strings.TrimSpace(in.Source)
	if in.Source == "" {
		in.Source = "json"
	}

	if err := scoring.ValidateQuestionSet(in.Candidates); err != nil {
		return nil, err
	}
	questions := scoring.BuildQuestions(in.Candidates)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create test tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	out := &TestSummary{
		Title:           in.Title,
		DurationMinutes: in.DurationMinutes,
		QuestionCount:   len(questions),
		Source:          in.Source,
		SourceKey:       in.SourceKey,
		CreatedAt:       time.Unix(now.Unix(), 0).UTC(),
	}
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO tests (title, duration_minutes, source, source_key, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, in.Title, in.DurationMinutes, in.Source, in.SourceKey, now.Unix()).Scan(&out.ID); err != nil {
		return nil, fmt.Errorf("insert test: %w", err)
	}

	for i, q := range questions {
		if _, err := insertQuestionTx(ctx, tx, out.ID, i+1, q); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create test: %w", err)
	}
	return out, nil
}

func (s *Service) DeleteTest(ctx context.Context, testID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tests WHERE id = $1`, testID)
	if err != nil {
		return fmt.Errorf("delete test: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTestNotFound
	}
	return nil
}

func (s *Service) CreateQuestion(ctx context.Context, testID int64, in QuestionInput) (*scoring.Question, error) {
	q, err := questionFromInput(in)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create question tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var seq int
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(q.seq_no), 0) + 1
		FROM tests t
		LEFT JOIN questions q ON q.test_id = t.id
		WHERE t.id = $1
		GROUP BY t.id
	`, testID).Scan(&seq); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("next question seq: %w", err)
	}

	created, err := insertQuestionTx(ctx, tx, testID, seq, *q)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create question: %w", err)
	}
	return created, nil
}

// UpdateQuestion rewrites the question and replaces all of its options in
// one transaction. Replaced options get new ids.
func (s *Service) UpdateQuestion(ctx context.Context, questionID int64, in QuestionInput) (*scoring.Question, error) {
	q, err := questionFromInput(in)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update question tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE questions
		SET question_text = $2,
			question_type = $3,
			explanation = $4
		WHERE id = $1
	`, questionID, q.Text, string(q.Type), q.Explanation)
	if err != nil {
		return nil, fmt.Errorf("update question: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrQuestionNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM options WHERE question_id = $1`, questionID); err != nil {
		return nil, fmt.Errorf("clear options: %w", err)
	}
	q.ID = questionID
	if err := insertOptionsTx(ctx, tx, q); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update question: %w", err)
	}
	return q, nil
}

func (s *Service) DeleteQuestion(ctx context.Context, questionID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM questions WHERE id = $1`, questionID)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrQuestionNotFound
	}
	return nil
}

func questionFromInput(in QuestionInput) (*scoring.Question, error) {
	q := scoring.Question{
		Text:        in.Text,
		Type:        scoring.QuestionType(in.Type),
		Explanation: in.Explanation,
	}
	for _, o := range in.Options {
		q.Options = append(q.Options, scoring.Option{Text: o.Text, IsCorrect: o.IsCorrect})
	}
	candidates := []scoring.Candidate{scoring.CandidateFromQuestion(q)}
	if err := scoring.ValidateQuestionSet(candidates); err != nil {
		return nil, err
	}
	built := scoring.BuildQuestions(candidates)[0]
	return &built, nil
}

func insertQuestionTx(ctx context.Context, tx *sql.Tx, testID int64, seq int, q scoring.Question) (*scoring.Question, error) {
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO questions (test_id, seq_no, question_text, question_type, explanation)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, testID, seq, q.Text, string(q.Type), q.Explanation).Scan(&q.ID); err != nil {
		return nil, fmt.Errorf("insert question: %w", err)
	}
	if err := insertOptionsTx(ctx, tx, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

func insertOptionsTx(ctx context.Context, tx *sql.Tx, q *scoring.Question) error {
	for i := range q.Options {
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO options (question_id, seq_no, option_text, is_correct)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, q.ID, i+1, q.Options[i].Text, q.Options[i].IsCorrect).Scan(&q.Options[i].ID); err != nil {
			return fmt.Errorf("insert option: %w", err)
		}
	}
	return nil
}
