package report

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"quizdesk/internal/scoring"

	"github.com/xuri/excelize/v2"
)

var ErrTestNotFound = errors.New("test not found")

type Service struct {
	db *sql.DB
}

type AttemptRow struct {
	ID          int64           `json:"id"`
	UserName    string          `json:"user_name"`
	Score       int             `json:"score"`
	Total       int             `json:"total"`
	Percentage  scoring.Percent `json:"percentage"`
	AttemptedAt time.Time       `json:"attempted_at"`
}

type TestAttempts struct {
	TestID    int64        `json:"test_id"`
	TestTitle string       `json:"test_title"`
	Attempts  []AttemptRow `json:"attempts"`
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// ListAttempts returns every stored attempt of a test, newest first.
func (s *Service) ListAttempts(ctx context.Context, testID int64) (*TestAttempts, error) {
	out := &TestAttempts{TestID: testID, Attempts: make([]AttemptRow, 0)}
	if err := s.db.QueryRowContext(ctx, `SELECT title FROM tests WHERE id = $1`, testID).Scan(&out.TestTitle); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("load test: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_name, score, total_questions, percentage, attempted_at
		FROM attempts
		WHERE test_id = $1
		ORDER BY attempted_at DESC, id DESC
	`, testID)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			it          AttemptRow
			percentage  float64
			attemptedAt int64
		)
		if err := rows.Scan(&it.ID, &it.UserName, &it.Score, &it.Total, &percentage, &attemptedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		it.Percentage = scoring.Percent(percentage)
		it.AttemptedAt = time.Unix(attemptedAt, 0).UTC()
		out.Attempts = append(out.Attempts, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return out, nil
}

func (s *Service) ExportAttemptsExcel(ctx context.Context, testID int64) ([]byte, error) {
	data, err := s.ListAttempts(ctx, testID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	sheet := f.GetSheetName(0)
	headers := []string{"attempt_id", "user_name", "score", "total", "percentage", "attempted_at"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for i, it := range data.Attempts {
		row := i + 2
		pct, _ := strconv.ParseFloat(it.Percentage.String(), 64)
		values := []any{
			it.ID,
			it.UserName,
			it.Score,
			it.Total,
			pct,
			it.AttemptedAt.Format("2006-01-02 15:04:05"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	_ = f.SetColWidth(sheet, "A", "F", 20)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write excel: %w", err)
	}
	return buf.Bytes(), nil
}
