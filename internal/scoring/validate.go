package scoring

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Candidate is one uploaded question before persistence. Pointer and nil
// slice fields distinguish a missing field from an empty one.
type Candidate struct {
	Question       *string  `json:"question"`
	Type           *string  `json:"type"`
	Options        []string `json:"options"`
	CorrectAnswers []int    `json:"correct_answers"`
	Explanation    *string  `json:"explanation"`
}

type ValidationError struct {
	Position int
	Field    string
	Message  string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalidf(pos int, field, format string, args ...any) *ValidationError {
	return &ValidationError{Position: pos, Field: field, Message: fmt.Sprintf(format, args...)}
}

// ParseQuestionSet decodes an uploaded JSON array into candidates. It only
// checks shape; ValidateQuestionSet checks content.
func ParseQuestionSet(raw []byte) ([]Candidate, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &ValidationError{Message: "Data must be an array of questions"}
	}

	out := make([]Candidate, 0, len(items))
	for i, it := range items {
		var c Candidate
		if err := json.Unmarshal(it, &c); err != nil {
			return nil, invalidf(i+1, "", "Question %d has malformed fields", i+1)
		}
		out = append(out, c)
	}
	return out, nil
}

// ValidateQuestionSet stops at the first violation and reports it with the
// 1-indexed question position.
func ValidateQuestionSet(candidates []Candidate) error {
	if len(candidates) == 0 {
		return &ValidationError{Message: "Question set must contain at least one question"}
	}
	for i, c := range candidates {
		if err := validateCandidate(i+1, c); err != nil {
			return err
		}
	}
	return nil
}

func validateCandidate(pos int, c Candidate) *ValidationError {
	switch {
	case c.Question == nil || strings.TrimSpace(*c.Question) == "":
		return invalidf(pos, "question", "Question %d missing field: question", pos)
	case c.Options == nil:
		return invalidf(pos, "options", "Question %d missing field: options", pos)
	case c.CorrectAnswers == nil:
		return invalidf(pos, "correct_answers", "Question %d missing field: correct_answers", pos)
	case c.Explanation == nil:
		return invalidf(pos, "explanation", "Question %d missing field: explanation", pos)
	case c.Type == nil:
		return invalidf(pos, "type", "Question %d missing field: type", pos)
	}

	if len(c.Options) < 2 {
		return invalidf(pos, "options", "Question %d must have at least 2 options", pos)
	}
	for k, opt := range c.Options {
		if strings.TrimSpace(opt) == "" {
			return invalidf(pos, "options", "Question %d option %d is empty", pos, k+1)
		}
	}
	if len(c.CorrectAnswers) == 0 {
		return invalidf(pos, "correct_answers", "Question %d must have at least one correct answer", pos)
	}

	qType, ok := ParseQuestionType(*c.Type)
	if !ok {
		return invalidf(pos, "type", "Question %d type must be MCQ or MSQ", pos)
	}

	distinct := make(map[int]struct{}, len(c.CorrectAnswers))
	for _, idx := range c.CorrectAnswers {
		if idx < 0 || idx >= len(c.Options) {
			return invalidf(pos, "correct_answers", "Question %d correct answer index %d is out of range", pos, idx)
		}
		distinct[idx] = struct{}{}
	}
	if qType == SingleCorrect && len(distinct) != 1 {
		return invalidf(pos, "correct_answers", "Question %d of type MCQ must have exactly one correct answer", pos)
	}
	return nil
}

// BuildQuestions converts validated candidates into questions without ids.
func BuildQuestions(candidates []Candidate) []Question {
	out := make([]Question, 0, len(candidates))
	for _, c := range candidates {
		correct := make(map[int]bool, len(c.CorrectAnswers))
		for _, idx := range c.CorrectAnswers {
			correct[idx] = true
		}
		qType, _ := ParseQuestionType(deref(c.Type))
		q := Question{
			Text:        strings.TrimSpace(deref(c.Question)),
			Type:        qType,
			Explanation: strings.TrimSpace(deref(c.Explanation)),
			Options:     make([]Option, 0, len(c.Options)),
		}
		for k, text := range c.Options {
			q.Options = append(q.Options, Option{Text: strings.TrimSpace(text), IsCorrect: correct[k]})
		}
		out = append(out, q)
	}
	return out
}

// CandidateFromQuestion lets manually edited questions go through the same
// rules as uploads.
func CandidateFromQuestion(q Question) Candidate {
	text := q.Text
	qType := string(q.Type)
	explanation := q.Explanation
	c := Candidate{
		Question:       &text,
		Type:           &qType,
		Explanation:    &explanation,
		Options:        make([]string, 0, len(q.Options)),
		CorrectAnswers: make([]int, 0, len(q.Options)),
	}
	for k, o := range q.Options {
		c.Options = append(c.Options, o.Text)
		if o.IsCorrect {
			c.CorrectAnswers = append(c.CorrectAnswers, k)
		}
	}
	return c
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
