package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"quizdesk/internal/question"
	"quizdesk/internal/scoring"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrTestNotFound    = question.ErrTestNotFound
	ErrAttemptNotFound = errors.New("attempt not found")
)

const maxUserNameRunes = 100

type TestLoader interface {
	ListTests(ctx context.Context) ([]question.TestSummary, error)
	GetTest(ctx context.Context, testID int64) (*scoring.Test, error)
}

// SubmissionRecorder is told about every stored attempt.
type SubmissionRecorder interface {
	ObserveSubmission(score, total int)
}

type Service struct {
	db       *sql.DB
	tests    TestLoader
	now      func() time.Time
	recorder SubmissionRecorder
}

type AvailableTest struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	Duration      int    `json:"duration"`
	QuestionCount int    `json:"question_count"`
}

type PaperOption struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
}

type PaperQuestion struct {
	ID       int64                `json:"id"`
	Question string               `json:"question"`
	Type     scoring.QuestionType `json:"type"`
	Options  []PaperOption        `json:"options"`
}

// Paper is what a learner sees when starting a test; it never carries
// correctness flags.
type Paper struct {
	TestID    int64           `json:"test_id"`
	Title     string          `json:"title"`
	Duration  int             `json:"duration"`
	Questions []PaperQuestion `json:"questions"`
}

type SubmitInput struct {
	TestID   int64
	UserName string
	Answers  scoring.Answers
}

type SubmitResult struct {
	AttemptID  int64           `json:"attempt_id"`
	Score      int             `json:"score"`
	Total      int             `json:"total"`
	Percentage scoring.Percent `json:"percentage"`
}

func NewService(db *sql.DB, tests TestLoader) *Service {
	return &Service{db: db, tests: tests, now: time.Now}
}

// WithRecorder attaches a recorder for stored submissions.
func (s *Service) WithRecorder(r SubmissionRecorder) *Service {
	s.recorder = r
	return s
}

func (s *Service) ListAvailable(ctx context.Context) ([]AvailableTest, error) {
	items, err := s.tests.ListTests(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]AvailableTest, 0, len(items))
	for _, it := range items {
		out = append(out, AvailableTest{
			ID:            it.ID,
			Title:         it.Title,
			Duration:      it.DurationMinutes,
			QuestionCount: it.QuestionCount,
		})
	}
	return out, nil
}

func (s *Service) StartTest(ctx context.Context, testID int64) (*Paper, error) {
	t, err := s.tests.GetTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	if len(t.Questions) == 0 {
		return nil, scoring.ErrInvalidTestState
	}

	paper := &Paper{
		TestID:    t.ID,
		Title:     t.Title,
		Duration:  t.DurationMinutes,
		Questions: make([]PaperQuestion, 0, len(t.Questions)),
	}
	for _, q := range t.Questions {
		pq := PaperQuestion{
			ID:       q.ID,
			Question: q.Text,
			Type:     q.Type,
			Options:  make([]PaperOption, 0, len(q.Options)),
		}
		for _, o := range q.Options {
			pq.Options = append(pq.Options, PaperOption{ID: o.ID, Text: o.Text})
		}
		paper.Questions = append(paper.Questions, pq)
	}
	return paper, nil
}

// Submit scores the answers and stores the attempt together with a snapshot
// of each question's answer key, all in one transaction.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	in.UserName = strings.TrimSpace(in.UserName)
	if in.UserName == "" {
		return nil, fmt.Errorf("%w: user_name is required", ErrInvalidInput)
	}
	if len([]rune(in.UserName)) > maxUserNameRunes {
		return nil, fmt.Errorf("%w: user_name is too long", ErrInvalidInput)
	}
	if in.TestID <= 0 {
		return nil, fmt.Errorf("%w: test_id is required", ErrInvalidInput)
	}

	t, err := s.tests.GetTest(ctx, in.TestID)
	if err != nil {
		return nil, err
	}
	summary, err := scoring.Score(*t, in.Answers)
	if err != nil {
		return nil, err
	}

	texts := make(map[int64]string, len(t.Questions))
	options := make(map[int64][]scoring.Option, len(t.Questions))
	for _, q := range t.Questions {
		texts[q.ID] = q.Text
		options[q.ID] = q.Options
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin submit tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	out := &SubmitResult{Score: summary.Score, Total: summary.Total, Percentage: summary.Percentage}
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO attempts (
			test_id,
			user_name,
			score,
			total_questions,
			percentage,
			key_fingerprint,
			attempted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, t.ID, in.UserName, summary.Score, summary.Total, float64(summary.Percentage), scoring.KeyFingerprint(*t), s.now().UTC().Unix()).Scan(&out.AttemptID); err != nil {
		return nil, fmt.Errorf("insert attempt: %w", err)
	}

	for i, v := range summary.Verdicts {
		selectedJSON, err := json.Marshal(v.Selected)
		if err != nil {
			return nil, fmt.Errorf("encode selected: %w", err)
		}
		correctJSON, err := json.Marshal(v.Correct)
		if err != nil {
			return nil, fmt.Errorf("encode correct: %w", err)
		}
		optionsJSON, err := json.Marshal(options[v.QuestionID])
		if err != nil {
			return nil, fmt.Errorf("encode options: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO attempt_answers (
				attempt_id,
				question_id,
				seq_no,
				question_text,
				explanation,
				selected_json,
				correct_json,
				options_json,
				is_correct
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, out.AttemptID, v.QuestionID, i+1, texts[v.QuestionID], v.Explanation, string(selectedJSON), string(correctJSON), string(optionsJSON), v.IsCorrect); err != nil {
			return nil, fmt.Errorf("insert attempt answer: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit submit: %w", err)
	}
	if s.recorder != nil {
		s.recorder.ObserveSubmission(out.Score, out.Total)
	}
	return out, nil
}

func (s *Service) GetResult(ctx context.Context, attemptID int64) (*scoring.Result, error) {
	sub, err := s.loadSubmission(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	t, err := s.tests.GetTest(ctx, sub.TestID)
	if err != nil {
		return nil, err
	}
	return scoring.Reconstruct(*t, *sub)
}

func (s *Service) loadSubmission(ctx context.Context, attemptID int64) (*scoring.StoredSubmission, error) {
	var (
		sub         scoring.StoredSubmission
		attemptedAt int64
	)
	if err := s.db.QueryRowContext(ctx, `
		SELECT id, test_id, user_name, key_fingerprint, attempted_at
		FROM attempts
		WHERE id = $1
	`, attemptID).Scan(&sub.AttemptID, &sub.TestID, &sub.UserName, &sub.KeyFingerprint, &attemptedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("load attempt: %w", err)
	}
	sub.AttemptedAt = time.Unix(attemptedAt, 0).UTC()

	rows, err := s.db.QueryContext(ctx, `
		SELECT question_id, question_text, explanation, selected_json, correct_json, options_json
		FROM attempt_answers
		WHERE attempt_id = $1
		ORDER BY seq_no, id
	`, attemptID)
	if err != nil {
		return nil, fmt.Errorf("query attempt answers: %w", err)
	}
	defer rows.Close()

	sub.Answers = make([]scoring.StoredAnswer, 0)
	for rows.Next() {
		var (
			a                                   scoring.StoredAnswer
			selectedRaw, correctRaw, optionsRaw sql.NullString
		)
		if err := rows.Scan(&a.QuestionID, &a.QuestionText, &a.Explanation, &selectedRaw, &correctRaw, &optionsRaw); err != nil {
			return nil, fmt.Errorf("scan attempt answer: %w", err)
		}
		if a.Selected, err = decodeIDs(selectedRaw); err != nil {
			return nil, fmt.Errorf("decode attempt answer %d selected: %w", a.QuestionID, err)
		}
		if correctRaw.Valid && strings.TrimSpace(correctRaw.String) != "" {
			if a.Correct, err = decodeIDs(correctRaw); err != nil {
				return nil, fmt.Errorf("decode attempt answer %d correct: %w", a.QuestionID, err)
			}
		}
		if optionsRaw.Valid && strings.TrimSpace(optionsRaw.String) != "" {
			if err := json.Unmarshal([]byte(optionsRaw.String), &a.Options); err != nil {
				return nil, fmt.Errorf("decode attempt answer %d options: %w", a.QuestionID, err)
			}
		}
		sub.Answers = append(sub.Answers, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempt answers: %w", err)
	}
	return &sub, nil
}

func decodeIDs(raw sql.NullString) ([]int64, error) {
	out := []int64{}
	if !raw.Valid || strings.TrimSpace(raw.String) == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw.String), &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []int64{}
	}
	return out, nil
}
