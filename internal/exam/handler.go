package exam

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"quizdesk/internal/app/apiresp"
	"quizdesk/internal/scoring"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	svc examService
}

type examService interface {
	ListAvailable(ctx context.Context) ([]AvailableTest, error)
	StartTest(ctx context.Context, testID int64) (*Paper, error)
	Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error)
	GetResult(ctx context.Context, attemptID int64) (*scoring.Result, error)
}

type response struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

type submitRequest struct {
	TestID   int64              `json:"test_id" validate:"required,gt=0"`
	UserName string             `json:"user_name" validate:"required,max=100"`
	Answers  map[string][]int64 `json:"answers"`
}

func NewHandler(svc examService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Available(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListAvailable(r.Context())
	if err != nil {
		writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: items})
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	testID, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "id")), 10, 64)
	if err != nil || testID <= 0 {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid test id"})
		return
	}

	paper, err := h.svc.StartTest(r.Context(), testID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: paper})
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid request body"})
		return
	}
	req.UserName = strings.TrimSpace(req.UserName)
	if err := apiresp.Validator.Struct(req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: apiresp.ValidationMessage(err)})
		return
	}

	answers, err := parseAnswers(req.Answers)
	if err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: err.Error()})
		return
	}

	out, err := h.svc.Submit(r.Context(), SubmitInput{
		TestID:   req.TestID,
		UserName: req.UserName,
		Answers:  answers,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: out})
}

func (h *Handler) Result(w http.ResponseWriter, r *http.Request) {
	attemptID, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "attemptID")), 10, 64)
	if err != nil || attemptID <= 0 {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid attempt id"})
		return
	}

	res, err := h.svc.GetResult(r.Context(), attemptID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: res})
}

// parseAnswers converts the wire form {"<questionID>": [optionIDs]}.
func parseAnswers(raw map[string][]int64) (scoring.Answers, error) {
	out := make(scoring.Answers, len(raw))
	for k, ids := range raw {
		qid, err := strconv.ParseInt(strings.TrimSpace(k), 10, 64)
		if err != nil || qid <= 0 {
			return nil, errors.New("answers must be keyed by question id")
		}
		if ids == nil {
			ids = []int64{}
		}
		out[qid] = append(out[qid], ids...)
	}
	return out, nil
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: err.Error()})
	case errors.Is(err, ErrTestNotFound), errors.Is(err, ErrAttemptNotFound):
		writeJSON(w, r, http.StatusNotFound, response{OK: false, Error: err.Error()})
	case errors.Is(err, scoring.ErrInvalidTestState):
		writeJSON(w, r, http.StatusUnprocessableEntity, response{OK: false, Error: err.Error()})
	default:
		writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, payload response) {
	if payload.OK {
		apiresp.WriteOK(w, r, code, payload.Data)
		return
	}
	apiresp.WriteError(w, r, code, payload.Error)
}
