package report

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

type mockReportService struct {
	listFn   func(ctx context.Context, testID int64) (*TestAttempts, error)
	exportFn func(ctx context.Context, testID int64) ([]byte, error)
}

func (m *mockReportService) ListAttempts(ctx context.Context, testID int64) (*TestAttempts, error) {
	if m.listFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.listFn(ctx, testID)
}

func (m *mockReportService) ExportAttemptsExcel(ctx context.Context, testID int64) ([]byte, error) {
	if m.exportFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.exportFn(ctx, testID)
}

func withParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestAttemptsNotFound(t *testing.T) {
	h := &Handler{svc: &mockReportService{
		listFn: func(ctx context.Context, testID int64) (*TestAttempts, error) { return nil, ErrTestNotFound },
	}}
	req := withParam(httptest.NewRequest(http.MethodGet, "/api/admin/tests/4/attempts", nil), "id", "4")
	w := httptest.NewRecorder()
	h.Attempts(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestExportAttemptsHeaders(t *testing.T) {
	h := &Handler{svc: &mockReportService{
		exportFn: func(ctx context.Context, testID int64) ([]byte, error) { return []byte("xlsx"), nil },
	}}
	req := withParam(httptest.NewRequest(http.MethodGet, "/api/admin/tests/4/attempts.xlsx", nil), "id", "4")
	w := httptest.NewRecorder()
	h.ExportAttempts(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != `attachment; filename="test-4-attempts.xlsx"` {
		t.Fatalf("unexpected disposition: %s", cd)
	}
}

func TestAttemptsInvalidID(t *testing.T) {
	h := &Handler{svc: &mockReportService{}}
	req := withParam(httptest.NewRequest(http.MethodGet, "/api/admin/tests/x/attempts", nil), "id", "x")
	w := httptest.NewRecorder()
	h.Attempts(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
