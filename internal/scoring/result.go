package scoring

import "time"

type StoredAnswer struct {
	QuestionID   int64
	QuestionText string
	Explanation  string
	Selected     []int64
	// Correct is the answer key captured at submission time. Nil falls back
	// to the question's current key.
	Correct []int64
	// Options is the option list as the learner saw it.
	Options []Option
}

type StoredSubmission struct {
	AttemptID      int64
	TestID         int64
	UserName       string
	AttemptedAt    time.Time
	KeyFingerprint string
	Answers        []StoredAnswer
}

type ResultOption struct {
	ID          int64  `json:"id"`
	Text        string `json:"text"`
	IsCorrect   bool   `json:"is_correct"`
	WasSelected bool   `json:"was_selected"`
	// Retired options were replaced by a later edit and come from the
	// submission snapshot.
	Retired bool `json:"retired,omitempty"`
}

type ResultItem struct {
	QuestionID    int64          `json:"question_id"`
	Question      string         `json:"question"`
	Type          QuestionType   `json:"type,omitempty"`
	Explanation   string         `json:"explanation"`
	Options       []ResultOption `json:"options"`
	UserAnswer    []int64        `json:"user_answer"`
	CorrectAnswer []int64        `json:"correct_answer"`
	IsCorrect     bool           `json:"is_correct"`
	Removed       bool           `json:"removed,omitempty"`
	KeyChanged    bool           `json:"key_changed,omitempty"`
}

type Result struct {
	AttemptID   int64        `json:"attempt_id"`
	TestID      int64        `json:"test_id"`
	TestTitle   string       `json:"test_title"`
	UserName    string       `json:"user_name"`
	AttemptedAt time.Time    `json:"attempted_at"`
	Score       int          `json:"score"`
	Total       int          `json:"total"`
	Percentage  Percent      `json:"percentage"`
	KeyChanged  bool         `json:"key_changed"`
	Results     []ResultItem `json:"results"`
}

// Reconstruct rebuilds the result view of a stored submission against the
// current state of t. Verdicts use the stored answer key when present, so
// later edits to a question do not rewrite history; such edits are reported
// through KeyChanged instead.
func Reconstruct(t Test, sub StoredSubmission) (*Result, error) {
	if len(sub.Answers) == 0 {
		return nil, ErrInvalidTestState
	}

	byID := make(map[int64]Question, len(t.Questions))
	for _, q := range t.Questions {
		byID[q.ID] = q
	}

	items := make([]ResultItem, 0, len(sub.Answers))
	score := 0
	for _, a := range sub.Answers {
		selected := normalizeIDSet(a.Selected)
		q, live := byID[a.QuestionID]

		var correct []int64
		switch {
		case a.Correct != nil:
			correct = normalizeIDSet(a.Correct)
		case live:
			correct = q.CorrectSet()
		default:
			correct = []int64{}
		}

		item := ResultItem{
			QuestionID:    a.QuestionID,
			UserAnswer:    selected,
			CorrectAnswer: correct,
			IsCorrect:     equalIDSet(selected, correct),
		}
		if live {
			item.Question = q.Text
			item.Type = q.Type
			item.Explanation = q.Explanation
			item.KeyChanged = !equalIDSet(q.CorrectSet(), correct)
			item.Options = make([]ResultOption, 0, len(q.Options))
			current := make(map[int64]bool, len(q.Options))
			for _, o := range q.Options {
				current[o.ID] = true
				item.Options = append(item.Options, ResultOption{
					ID:          o.ID,
					Text:        o.Text,
					IsCorrect:   containsID(correct, o.ID),
					WasSelected: containsID(selected, o.ID),
				})
			}
			for _, o := range a.Options {
				if current[o.ID] || (!containsID(correct, o.ID) && !containsID(selected, o.ID)) {
					continue
				}
				item.Options = append(item.Options, ResultOption{
					ID:          o.ID,
					Text:        o.Text,
					IsCorrect:   containsID(correct, o.ID),
					WasSelected: containsID(selected, o.ID),
					Retired:     true,
				})
			}
		} else {
			item.Question = a.QuestionText
			item.Explanation = a.Explanation
			item.Removed = true
			item.Options = make([]ResultOption, 0, len(a.Options))
			for _, o := range a.Options {
				item.Options = append(item.Options, ResultOption{
					ID:          o.ID,
					Text:        o.Text,
					IsCorrect:   containsID(correct, o.ID),
					WasSelected: containsID(selected, o.ID),
					Retired:     true,
				})
			}
		}

		if item.IsCorrect {
			score++
		}
		items = append(items, item)
	}

	pct, err := Percentage(score, len(items))
	if err != nil {
		return nil, err
	}

	keyChanged := false
	if sub.KeyFingerprint != "" {
		keyChanged = sub.KeyFingerprint != KeyFingerprint(t)
	}

	return &Result{
		AttemptID:   sub.AttemptID,
		TestID:      sub.TestID,
		TestTitle:   t.Title,
		UserName:    sub.UserName,
		AttemptedAt: sub.AttemptedAt.UTC(),
		Score:       score,
		Total:       len(items),
		Percentage:  pct,
		KeyChanged:  keyChanged,
		Results:     items,
	}, nil
}
