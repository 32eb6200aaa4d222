package exam

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"quizdesk/internal/scoring"

	"github.com/go-chi/chi/v5"
)

type mockExamService struct {
	listAvailableFn func(ctx context.Context) ([]AvailableTest, error)
	startTestFn     func(ctx context.Context, testID int64) (*Paper, error)
	submitFn        func(ctx context.Context, in SubmitInput) (*SubmitResult, error)
	getResultFn     func(ctx context.Context, attemptID int64) (*scoring.Result, error)
}

func (m *mockExamService) ListAvailable(ctx context.Context) ([]AvailableTest, error) {
	if m.listAvailableFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.listAvailableFn(ctx)
}

func (m *mockExamService) StartTest(ctx context.Context, testID int64) (*Paper, error) {
	if m.startTestFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.startTestFn(ctx, testID)
}

func (m *mockExamService) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	if m.submitFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.submitFn(ctx, in)
}

func (m *mockExamService) GetResult(ctx context.Context, attemptID int64) (*scoring.Result, error) {
	if m.getResultFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.getResultFn(ctx, attemptID)
}

func withParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestAvailableOK(t *testing.T) {
	h := NewHandler(&mockExamService{
		listAvailableFn: func(ctx context.Context) ([]AvailableTest, error) {
			return []AvailableTest{{ID: 1, Title: "A", Duration: 10, QuestionCount: 3}}, nil
		},
	})
	req := httptest.NewRequest(http.MethodGet, "/api/test/available", nil)
	w := httptest.NewRecorder()
	h.Available(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestStartInvalidID(t *testing.T) {
	h := NewHandler(&mockExamService{})
	req := httptest.NewRequest(http.MethodGet, "/api/test/x/start", nil)
	req = withParam(req, "id", "x")
	w := httptest.NewRecorder()
	h.Start(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestStartNotFound(t *testing.T) {
	h := NewHandler(&mockExamService{
		startTestFn: func(ctx context.Context, testID int64) (*Paper, error) { return nil, ErrTestNotFound },
	})
	req := httptest.NewRequest(http.MethodGet, "/api/test/9/start", nil)
	req = withParam(req, "id", "9")
	w := httptest.NewRecorder()
	h.Start(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestSubmitOK(t *testing.T) {
	h := NewHandler(&mockExamService{
		submitFn: func(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
			if in.TestID != 3 || in.UserName != "Asha" {
				t.Fatalf("unexpected input: %+v", in)
			}
			if got := in.Answers[11]; len(got) != 2 || got[0] != 101 || got[1] != 102 {
				t.Fatalf("unexpected answers for 11: %v", got)
			}
			if got, ok := in.Answers[12]; !ok || len(got) != 0 {
				t.Fatalf("expected empty selection for 12, got %v", got)
			}
			return &SubmitResult{AttemptID: 5, Score: 2, Total: 3, Percentage: 66.67}, nil
		},
	})

	payload := []byte(`{"test_id":3,"user_name":" Asha ","answers":{"11":[101,102],"12":[]}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/test/submit", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	h.Submit(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		OK   bool            `json:"ok"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if want := `{"attempt_id":5,"score":2,"total":3,"percentage":66.67}`; string(body.Data) != want {
		t.Fatalf("unexpected data: %s", body.Data)
	}
}

func TestSubmitBadRequests(t *testing.T) {
	h := NewHandler(&mockExamService{})
	tests := []struct {
		name    string
		payload string
	}{
		{name: "not json", payload: `nope`},
		{name: "missing name", payload: `{"test_id":3,"answers":{}}`},
		{name: "missing test", payload: `{"user_name":"a","answers":{}}`},
		{name: "non integer key", payload: `{"test_id":3,"user_name":"a","answers":{"abc":[1]}}`},
		{name: "non integer option", payload: `{"test_id":3,"user_name":"a","answers":{"1":["x"]}}`},
	}
	for _, tc := range tests {
		req := httptest.NewRequest(http.MethodPost, "/api/test/submit", bytes.NewReader([]byte(tc.payload)))
		w := httptest.NewRecorder()
		h.Submit(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", tc.name, w.Code)
		}
	}
}

func TestSubmitInvalidTestState(t *testing.T) {
	h := NewHandler(&mockExamService{
		submitFn: func(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
			return nil, scoring.ErrInvalidTestState
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/test/submit", bytes.NewReader([]byte(`{"test_id":3,"user_name":"a"}`)))
	w := httptest.NewRecorder()
	h.Submit(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
}

func TestResultNotFound(t *testing.T) {
	h := NewHandler(&mockExamService{
		getResultFn: func(ctx context.Context, attemptID int64) (*scoring.Result, error) {
			return nil, ErrAttemptNotFound
		},
	})
	req := httptest.NewRequest(http.MethodGet, "/api/test/result/8", nil)
	req = withParam(req, "attemptID", "8")
	w := httptest.NewRecorder()
	h.Result(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestResultOK(t *testing.T) {
	h := NewHandler(&mockExamService{
		getResultFn: func(ctx context.Context, attemptID int64) (*scoring.Result, error) {
			return &scoring.Result{AttemptID: attemptID, Score: 1, Total: 3, Percentage: 33.33}, nil
		},
	})
	req := httptest.NewRequest(http.MethodGet, "/api/test/result/8", nil)
	req = withParam(req, "attemptID", "8")
	w := httptest.NewRecorder()
	h.Result(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(`"percentage":33.33`)) {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}
