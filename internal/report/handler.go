package report

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"quizdesk/internal/app/apiresp"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	svc reportService
}

type reportService interface {
	ListAttempts(ctx context.Context, testID int64) (*TestAttempts, error)
	ExportAttemptsExcel(ctx context.Context, testID int64) ([]byte, error)
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Attempts(w http.ResponseWriter, r *http.Request) {
	testID, ok := parseTestID(w, r)
	if !ok {
		return
	}
	out, err := h.svc.ListAttempts(r.Context(), testID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, out)
}

func (h *Handler) ExportAttempts(w http.ResponseWriter, r *http.Request) {
	testID, ok := parseTestID(w, r)
	if !ok {
		return
	}
	data, err := h.svc.ExportAttemptsExcel(r.Context(), testID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="test-%d-attempts.xlsx"`, testID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func parseTestID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	testID, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "id")), 10, 64)
	if err != nil || testID <= 0 {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid test id")
		return 0, false
	}
	return testID, true
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrTestNotFound) {
		apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
		return
	}
	apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
}
