// Package scoring judges test submissions with strict set equality and
// rebuilds result views from stored attempts.
package scoring

import (
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"
)

var ErrInvalidTestState = errors.New("invalid test state: test has no questions")

type QuestionType string

const (
	SingleCorrect QuestionType = "MCQ"
	MultiCorrect  QuestionType = "MSQ"
)

func ParseQuestionType(v string) (QuestionType, bool) {
	switch QuestionType(strings.ToUpper(strings.TrimSpace(v))) {
	case SingleCorrect:
		return SingleCorrect, true
	case MultiCorrect:
		return MultiCorrect, true
	default:
		return "", false
	}
}

type Option struct {
	ID        int64  `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

type Question struct {
	ID          int64        `json:"id"`
	Text        string       `json:"question"`
	Type        QuestionType `json:"type"`
	Explanation string       `json:"explanation"`
	Options     []Option     `json:"options"`
}

// CorrectSet returns the sorted ids of the options flagged correct.
func (q Question) CorrectSet() []int64 {
	ids := make([]int64, 0, len(q.Options))
	for _, o := range q.Options {
		if o.IsCorrect {
			ids = append(ids, o.ID)
		}
	}
	return normalizeIDSet(ids)
}

type Test struct {
	ID              int64      `json:"id"`
	Title           string     `json:"title"`
	DurationMinutes int        `json:"duration"`
	Questions       []Question `json:"questions"`
}

// Answers maps a question id to the option ids a learner selected.
type Answers map[int64][]int64

// Percent always renders with exactly two decimals.
type Percent float64

func (p Percent) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(float64(p), 'f', 2, 64)), nil
}

func (p Percent) String() string {
	return strconv.FormatFloat(float64(p), 'f', 2, 64)
}

type Verdict struct {
	QuestionID  int64   `json:"question_id"`
	Selected    []int64 `json:"selected"`
	Correct     []int64 `json:"correct"`
	IsCorrect   bool    `json:"is_correct"`
	Explanation string  `json:"explanation"`
}

type Summary struct {
	Score      int       `json:"score"`
	Total      int       `json:"total"`
	Percentage Percent   `json:"percentage"`
	Verdicts   []Verdict `json:"verdicts"`
}

// Score judges every question of t against answers. A question is correct
// only when the selected set equals the correct set exactly.
func Score(t Test, answers Answers) (*Summary, error) {
	total := len(t.Questions)
	if total == 0 {
		return nil, ErrInvalidTestState
	}

	verdicts := make([]Verdict, 0, total)
	score := 0
	for _, q := range t.Questions {
		selected := normalizeIDSet(answers[q.ID])
		correct := q.CorrectSet()
		ok := equalIDSet(selected, correct)
		if ok {
			score++
		}
		verdicts = append(verdicts, Verdict{
			QuestionID:  q.ID,
			Selected:    selected,
			Correct:     correct,
			IsCorrect:   ok,
			Explanation: q.Explanation,
		})
	}

	pct, err := Percentage(score, total)
	if err != nil {
		return nil, err
	}
	return &Summary{Score: score, Total: total, Percentage: pct, Verdicts: verdicts}, nil
}

func Percentage(score, total int) (Percent, error) {
	if total <= 0 || score < 0 || score > total {
		return 0, ErrInvalidTestState
	}
	return Percent(math.Round(float64(score)/float64(total)*100*100) / 100), nil
}

func normalizeIDSet(in []int64) []int64 {
	set := make(map[int64]struct{}, len(in))
	for _, id := range in {
		set[id] = struct{}{}
	}
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// equalIDSet expects both inputs normalized.
func equalIDSet(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func containsID(sorted []int64, id int64) bool {
	i := sort.Search(len(sorted), func(i int) bool { return sorted[i] >= id })
	return i < len(sorted) && sorted[i] == id
}
