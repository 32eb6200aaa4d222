package question

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"quizdesk/internal/scoring"

	"github.com/xuri/excelize/v2"
)

func buildSheet(t *testing.T, rows [][]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				t.Fatalf("set cell: %v", err)
			}
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func TestParseQuestionSheet(t *testing.T) {
	data := buildSheet(t, [][]string{
		{"Question", "Type", "Explanation", "Correct_Answers", "Option A", "Option B", "Option C"},
		{"Capital of France?", "MCQ", "", "A", "Paris", "Lyon", "Nice"},
		{"", "", "", "", "", "", ""},
		{"Primes?", "msq", "2 and 3", "1, 2", "2", "3", "4"},
	})

	got, err := ParseQuestionSheet(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("parse sheet: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if err := scoring.ValidateQuestionSet(got); err != nil {
		t.Fatalf("expected valid set, got %v", err)
	}
	if *got[0].Question != "Capital of France?" || len(got[0].Options) != 3 || got[0].CorrectAnswers[0] != 0 {
		t.Fatalf("unexpected first candidate: %+v", got[0])
	}
	if got[1].CorrectAnswers[0] != 0 || got[1].CorrectAnswers[1] != 1 {
		t.Fatalf("unexpected numeric answers: %v", got[1].CorrectAnswers)
	}
}

func TestParseQuestionSheetMissingColumn(t *testing.T) {
	data := buildSheet(t, [][]string{
		{"question", "type", "correct_answers", "option_a", "option_b"},
		{"Q", "MCQ", "B", "x", "y"},
	})
	got, err := ParseQuestionSheet(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("parse sheet: %v", err)
	}
	err = scoring.ValidateQuestionSet(got)
	if err == nil || err.Error() != "Question 1 missing field: explanation" {
		t.Fatalf("expected missing explanation, got %v", err)
	}
}

func TestParseQuestionSheetBadAnswerRef(t *testing.T) {
	data := buildSheet(t, [][]string{
		{"question", "type", "explanation", "correct_answers", "option_a", "option_b"},
		{"Q", "MCQ", "", "AB", "x", "y"},
	})
	_, err := ParseQuestionSheet(bytes.NewReader(data))
	var verr *scoring.ValidationError
	if !errors.As(err, &verr) || verr.Position != 1 || !strings.Contains(verr.Message, `"AB"`) {
		t.Fatalf("expected answer ref error, got %v", err)
	}
}

func TestParseQuestionSheetOptionGaps(t *testing.T) {
	data := buildSheet(t, [][]string{
		{"question", "type", "explanation", "correct_answers", "option_a", "option_b", "option_c", "option_d"},
		{"Pick C", "MCQ", "", "C", "wrong A", "", "right C", "wrong D"},
	})
	_, err := ParseQuestionSheet(bytes.NewReader(data))
	var verr *scoring.ValidationError
	if !errors.As(err, &verr) || verr.Position != 1 || verr.Field != "options" || verr.Message != "Question 1 option B is empty" {
		t.Fatalf("expected empty option B error, got %v", err)
	}

	data = buildSheet(t, [][]string{
		{"question", "type", "explanation", "correct_answers", "option_a", "option_b", "option_c", "option_d"},
		{"Pick B", "MCQ", "", "B", "wrong A", "right B", "", ""},
	})
	got, err := ParseQuestionSheet(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("trailing blanks should be dropped, got %v", err)
	}
	if len(got[0].Options) != 2 || got[0].Options[got[0].CorrectAnswers[0]] != "right B" {
		t.Fatalf("answer letter mapped to the wrong option: %+v", got[0])
	}
}

func TestParseQuestionSheetRejectsNonWorkbook(t *testing.T) {
	_, err := ParseQuestionSheet(strings.NewReader("question,type\n"))
	var verr *scoring.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestQuestionSheetTemplateRoundTrip(t *testing.T) {
	data, err := QuestionSheetTemplate()
	if err != nil {
		t.Fatalf("template: %v", err)
	}
	got, err := ParseQuestionSheet(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("parse template: %v", err)
	}
	if err := scoring.ValidateQuestionSet(got); err != nil {
		t.Fatalf("template example should be valid: %v", err)
	}
}

func TestParseAnswerRefs(t *testing.T) {
	tests := []struct {
		in   string
		want []int
	}{
		{in: "A", want: []int{0}},
		{in: "a, c", want: []int{0, 2}},
		{in: "2;4", want: []int{1, 3}},
		{in: "", want: []int{}},
	}
	for _, tc := range tests {
		got, err := parseAnswerRefs(tc.in)
		if err != nil {
			t.Fatalf("%q: %v", tc.in, err)
		}
		if len(got) != len(tc.want) {
			t.Fatalf("%q: got %v, want %v", tc.in, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("%q: got %v, want %v", tc.in, got, tc.want)
			}
		}
	}
}
