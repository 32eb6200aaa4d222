package question

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"quizdesk/internal/scoring"

	"github.com/xuri/excelize/v2"
)

var sheetHeaders = []string{"question", "type", "explanation", "correct_answers", "option_a", "option_b", "option_c", "option_d"}

// ParseQuestionSheet reads the first worksheet of an xlsx upload. Every
// column whose header starts with "option" is an option in column order;
// correct_answers holds option letters ("A, C") or 1-based numbers.
func ParseQuestionSheet(r io.Reader) ([]scoring.Candidate, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &scoring.ValidationError{Message: "File is not a valid xlsx workbook"}
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &scoring.ValidationError{Message: "Workbook has no sheets"}
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, &scoring.ValidationError{Message: "Question set must contain at least one question"}
	}

	header := map[string]int{}
	optionCols := make([]int, 0, 4)
	for i, h := range rows[0] {
		key := strings.ToLower(strings.TrimSpace(h))
		if key == "" {
			continue
		}
		if strings.HasPrefix(key, "option") {
			optionCols = append(optionCols, i)
			continue
		}
		header[key] = i
	}

	out := make([]scoring.Candidate, 0, len(rows)-1)
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if blankRow(row) {
			continue
		}
		pos := len(out) + 1

		get := func(key string) *string {
			idx, ok := header[key]
			if !ok {
				return nil
			}
			v := ""
			if idx < len(row) {
				v = strings.TrimSpace(row[idx])
			}
			return &v
		}

		c := scoring.Candidate{
			Question:    get("question"),
			Type:        get("type"),
			Explanation: get("explanation"),
		}
		if len(optionCols) > 0 {
			// Answer letters name columns, so a gap would shift every later
			// option onto the wrong letter. Only trailing blanks are dropped.
			values := make([]string, 0, len(optionCols))
			for _, idx := range optionCols {
				v := ""
				if idx < len(row) {
					v = strings.TrimSpace(row[idx])
				}
				values = append(values, v)
			}
			for len(values) > 0 && values[len(values)-1] == "" {
				values = values[:len(values)-1]
			}
			for j, v := range values {
				if v == "" {
					return nil, &scoring.ValidationError{
						Position: pos,
						Field:    "options",
						Message:  fmt.Sprintf("Question %d option %c is empty", pos, 'A'+j),
					}
				}
			}
			c.Options = values
		}
		if raw := get("correct_answers"); raw != nil {
			answers, err := parseAnswerRefs(*raw)
			if err != nil {
				return nil, &scoring.ValidationError{
					Position: pos,
					Field:    "correct_answers",
					Message:  fmt.Sprintf("Question %d %s", pos, err.Error()),
				}
			}
			c.CorrectAnswers = answers
		}
		out = append(out, c)
	}
	return out, nil
}

// QuestionSheetTemplate is an empty workbook with the expected header row
// and one example line.
func QuestionSheetTemplate() ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	sheet := f.GetSheetName(0)

	example := []string{"Which of these are prime numbers?", "MSQ", "2 and 3 have no divisors besides 1 and themselves.", "A, B", "2", "3", "4", "6"}
	for i, h := range sheetHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
		cell, _ = excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheet, cell, example[i])
	}
	_ = f.SetColWidth(sheet, "A", "A", 48)
	_ = f.SetColWidth(sheet, "B", "H", 18)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write excel: %w", err)
	}
	return buf.Bytes(), nil
}

// parseAnswerRefs turns "A, C" or "1,3" into 0-based option indices. Range
// checks are left to the question set validation.
func parseAnswerRefs(raw string) ([]int, error) {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == ' '
	})
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		if n, err := strconv.Atoi(f); err == nil {
			out = append(out, n-1)
			continue
		}
		if len(f) == 1 {
			ch := strings.ToUpper(f)[0]
			if ch >= 'A' && ch <= 'Z' {
				out = append(out, int(ch-'A'))
				continue
			}
		}
		return nil, errors.New("correct answer " + strconv.Quote(f) + " is not an option letter or number")
	}
	return out, nil
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
