package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultModel         = "gemini-1.5-flash"
	defaultBaseURL       = "https://generativelanguage.googleapis.com"
	defaultQuestionCount = 10
	maxSourceRunes       = 4000
)

var (
	ErrUnavailable  = errors.New("ai not available")
	ErrEmptySource  = errors.New("source text is empty")
	ErrNoQuestions  = errors.New("ai returned no questions")
	ErrUpstreamCall = errors.New("ai request failed")
)

const promptTemplate = `Generate %d multiple choice questions from the following current affairs text.
For each question, provide:
1. Question text
2. 4 options (A, B, C, D)
3. Correct answer(s)
4. Brief explanation
5. Question type (MCQ for single correct, MSQ for multiple correct)

Format as JSON array:
[{
    "question": "Question text here",
    "options": ["Option A", "Option B", "Option C", "Option D"],
    "correct_answers": [0],
    "explanation": "Explanation here",
    "type": "MCQ"
}]
correct_answers holds 0-based indices of the correct options. Reply with the JSON array only.

Text: %s`

type ServiceConfig struct {
	GeminiAPIKey  string
	GeminiModel   string
	BaseURL       string
	QuestionCount int
	HTTPClient    *http.Client
}

type Service struct {
	geminiAPIKey  string
	geminiModel   string
	questionCount int
	client        *resty.Client
}

type Status struct {
	AIAvailable   bool    `json:"ai_available"`
	HasAPIKey     bool    `json:"has_api_key"`
	APIKeyPreview *string `json:"api_key_preview"`
}

func NewService(cfg ServiceConfig) *Service {
	model := strings.TrimSpace(cfg.GeminiModel)
	if model == "" {
		model = defaultModel
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	count := cfg.QuestionCount
	if count <= 0 {
		count = defaultQuestionCount
	}

	var client *resty.Client
	if cfg.HTTPClient != nil {
		client = resty.NewWithClient(cfg.HTTPClient)
	} else {
		client = resty.New().SetTimeout(60 * time.Second)
	}
	client.SetBaseURL(baseURL).SetHeader("Content-Type", "application/json")

	return &Service{
		geminiAPIKey:  strings.TrimSpace(cfg.GeminiAPIKey),
		geminiModel:   model,
		questionCount: count,
		client:        client,
	}
}

func (s *Service) Available() bool {
	return s.geminiAPIKey != ""
}

// Status never exposes more than the first four characters of the key.
func (s *Service) Status() Status {
	st := Status{AIAvailable: s.Available(), HasAPIKey: s.geminiAPIKey != ""}
	if st.HasAPIKey {
		preview := s.geminiAPIKey
		if len(preview) > 4 {
			preview = preview[:4]
		}
		preview += "..."
		st.APIKeyPreview = &preview
	}
	return st
}

// GenerateQuestions asks Gemini for a question set and returns the raw JSON
// array. The caller still has to validate it like any other upload.
func (s *Service) GenerateQuestions(ctx context.Context, sourceText string) ([]byte, error) {
	if !s.Available() {
		return nil, ErrUnavailable
	}
	text := truncateRunes(strings.TrimSpace(sourceText), maxSourceRunes)
	if text == "" {
		return nil, ErrEmptySource
	}

	reqBody := map[string]any{
		"contents": []map[string]any{
			{
				"parts": []map[string]string{
					{"text": fmt.Sprintf(promptTemplate, s.questionCount, text)},
				},
			},
		},
		"generationConfig": map[string]any{
			"temperature":      0.4,
			"responseMimeType": "application/json",
		},
	}

	var out geminiGenerateResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("key", s.geminiAPIKey).
		SetBody(reqBody).
		SetResult(&out).
		Post("/v1beta/models/" + s.geminiModel + ":generateContent")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamCall, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: gemini status %d", ErrUpstreamCall, resp.StatusCode())
	}

	raw := stripCodeFence(out.firstText())
	if raw == "" {
		return nil, ErrNoQuestions
	}
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &items); err != nil || len(items) == 0 {
		return nil, ErrNoQuestions
	}
	return []byte(raw), nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "```json"):
		s = s[len("```json"):]
	case strings.HasPrefix(s, "```"):
		s = s[len("```"):]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

type geminiGenerateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (r geminiGenerateResponse) firstText() string {
	for _, c := range r.Candidates {
		for _, p := range c.Content.Parts {
			if strings.TrimSpace(p.Text) != "" {
				return p.Text
			}
		}
	}
	return ""
}
