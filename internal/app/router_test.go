package app

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"quizdesk/internal/db"
	"quizdesk/internal/storage"
)

func newTestRouter(t *testing.T, cfg Config) http.Handler {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := db.Open(ctx, db.DriverSQLite, filepath.Join(t.TempDir(), "router.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	blobs, err := storage.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("blob store: %v", err)
	}
	if cfg.CORSOrigins == nil {
		cfg.CORSOrigins = []string{"*"}
	}
	return NewRouter(cfg, conn, blobs)
}

func TestRouterSmokeRoutes(t *testing.T) {
	router := newTestRouter(t, Config{DefaultTestMinutes: 30})

	tests := []struct {
		name       string
		method     string
		target     string
		wantStatus int
	}{
		{name: "healthz", method: http.MethodGet, target: "/healthz", wantStatus: http.StatusOK},
		{name: "metrics", method: http.MethodGet, target: "/metrics", wantStatus: http.StatusOK},
		{name: "available_empty", method: http.MethodGet, target: "/api/test/available", wantStatus: http.StatusOK},
		{name: "start_missing", method: http.MethodGet, target: "/api/test/7/start", wantStatus: http.StatusNotFound},
		{name: "start_bad_id", method: http.MethodGet, target: "/api/test/abc/start", wantStatus: http.StatusBadRequest},
		{name: "result_missing", method: http.MethodGet, target: "/api/test/result/5", wantStatus: http.StatusNotFound},
		{name: "ai_status", method: http.MethodGet, target: "/api/admin/ai-status", wantStatus: http.StatusOK},
		{name: "admin_tests", method: http.MethodGet, target: "/api/admin/tests", wantStatus: http.StatusOK},
		{name: "xlsx_template", method: http.MethodGet, target: "/api/admin/upload-xlsx/template", wantStatus: http.StatusOK},
		{name: "attempts_missing", method: http.MethodGet, target: "/api/admin/tests/9/attempts", wantStatus: http.StatusNotFound},
		{name: "unknown", method: http.MethodGet, target: "/nope", wantStatus: http.StatusNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.target, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != tc.wantStatus {
				t.Fatalf("%s %s: expected %d, got %d body=%s", tc.method, tc.target, tc.wantStatus, w.Code, w.Body.String())
			}
		})
	}
}

const routerSetJSON = `[
	{"question":"Capital of France?","options":["Paris","Lyon"],"correct_answers":[0],"explanation":"Paris","type":"MCQ"},
	{"question":"Primes?","options":["2","3","4"],"correct_answers":[0,1],"explanation":"2 and 3","type":"MSQ"}
]`

func multipartBody(t *testing.T, filename, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = fw.Write([]byte(content))
	_ = mw.Close()
	return &buf, mw.FormDataContentType()
}

type envelope struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func doJSON(t *testing.T, router http.Handler, req *http.Request, wantStatus int) envelope {
	t.Helper()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != wantStatus {
		t.Fatalf("%s %s: expected %d, got %d body=%s", req.Method, req.URL.Path, wantStatus, w.Code, w.Body.String())
	}
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return env
}

func TestRouterUploadTakeAndScore(t *testing.T) {
	router := newTestRouter(t, Config{DefaultTestMinutes: 30})

	body, contentType := multipartBody(t, "set.json", routerSetJSON, map[string]string{"title": "Quick Check", "duration": "10"})
	req := httptest.NewRequest(http.MethodPost, "/api/admin/upload-json", body)
	req.Header.Set("Content-Type", contentType)
	env := doJSON(t, router, req, http.StatusCreated)
	var created struct {
		TestID        int64 `json:"test_id"`
		QuestionCount int   `json:"question_count"`
	}
	_ = json.Unmarshal(env.Data, &created)
	if created.TestID <= 0 || created.QuestionCount != 2 {
		t.Fatalf("unexpected upload result: %s", env.Data)
	}

	env = doJSON(t, router, httptest.NewRequest(http.MethodGet, "/api/test/"+itoa(created.TestID)+"/start", nil), http.StatusOK)
	var paper struct {
		Questions []struct {
			ID      int64 `json:"id"`
			Options []struct {
				ID int64 `json:"id"`
			} `json:"options"`
		} `json:"questions"`
	}
	_ = json.Unmarshal(env.Data, &paper)
	if len(paper.Questions) != 2 {
		t.Fatalf("unexpected paper: %s", env.Data)
	}
	if strings.Contains(string(env.Data), "is_correct") {
		t.Fatalf("paper leaks correctness: %s", env.Data)
	}

	q1, q2 := paper.Questions[0], paper.Questions[1]
	submit := map[string]any{
		"test_id":   created.TestID,
		"user_name": "Mina",
		"answers": map[string][]int64{
			itoa(q1.ID): {q1.Options[0].ID},
			itoa(q2.ID): {q2.Options[0].ID},
		},
	}
	raw, _ := json.Marshal(submit)
	req = httptest.NewRequest(http.MethodPost, "/api/test/submit", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	env = doJSON(t, router, req, http.StatusOK)
	var scored struct {
		AttemptID  int64   `json:"attempt_id"`
		Score      int     `json:"score"`
		Total      int     `json:"total"`
		Percentage float64 `json:"percentage"`
	}
	_ = json.Unmarshal(env.Data, &scored)
	if scored.Score != 1 || scored.Total != 2 || scored.Percentage != 50 {
		t.Fatalf("unexpected score: %s", env.Data)
	}

	env = doJSON(t, router, httptest.NewRequest(http.MethodGet, "/api/test/result/"+itoa(scored.AttemptID), nil), http.StatusOK)
	if !strings.Contains(string(env.Data), `"user_name":"Mina"`) {
		t.Fatalf("unexpected result: %s", env.Data)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	for _, want := range []string{
		"quizdesk_submissions_total 1",
		`quizdesk_uploads_total{source="json",outcome="created"} 1`,
	} {
		if !strings.Contains(w.Body.String(), want) {
			t.Fatalf("metrics missing %q:\n%s", want, w.Body.String())
		}
	}
}

func TestRouterPDFUploadRateLimited(t *testing.T) {
	router := newTestRouter(t, Config{AIRateLimitPerMin: 1})

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		body, contentType := multipartBody(t, "notes.pdf", "not really a pdf", nil)
		req := httptest.NewRequest(http.MethodPost, "/api/admin/upload-pdf", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	if codes[0] == http.StatusTooManyRequests || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("expected second pdf upload to be rate limited, got %v", codes)
	}
}

func itoa(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
