package question

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"quizdesk/internal/app/apiresp"
	"quizdesk/internal/scoring"

	"github.com/go-chi/chi/v5"
)

const defaultMaxUploadBytes = 16 << 20

type Handler struct {
	svc            questionService
	imp            importService
	maxUploadBytes int64
}

type questionService interface {
	ListTests(ctx context.Context) ([]TestSummary, error)
	GetTest(ctx context.Context, testID int64) (*scoring.Test, error)
	CreateQuestion(ctx context.Context, testID int64, in QuestionInput) (*scoring.Question, error)
	UpdateQuestion(ctx context.Context, questionID int64, in QuestionInput) (*scoring.Question, error)
	DeleteQuestion(ctx context.Context, questionID int64) error
}

type importService interface {
	ImportJSON(ctx context.Context, up Upload) (*ImportResult, error)
	ImportPDF(ctx context.Context, up Upload) (*ImportResult, error)
	ImportXLSX(ctx context.Context, up Upload) (*ImportResult, error)
	Source(ctx context.Context, testID int64) (io.ReadCloser, string, error)
	DeleteTest(ctx context.Context, testID int64) error
}

type apiResponse struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

type optionRequest struct {
	Text      string `json:"text" validate:"required"`
	IsCorrect bool   `json:"is_correct"`
}

type questionRequest struct {
	QuestionText string          `json:"question_text" validate:"required"`
	QuestionType string          `json:"question_type" validate:"required"`
	Explanation  string          `json:"explanation"`
	Options      []optionRequest `json:"options" validate:"required,min=2,dive"`
}

type createQuestionRequest struct {
	TestID int64 `json:"test_id" validate:"required,gt=0"`
	questionRequest
}

type adminOption struct {
	ID        int64  `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

type adminQuestion struct {
	ID           int64         `json:"id"`
	QuestionText string        `json:"question_text"`
	QuestionType string        `json:"question_type"`
	Explanation  string        `json:"explanation"`
	Options      []adminOption `json:"options"`
}

type adminTestQuestions struct {
	Test struct {
		ID       int64  `json:"id"`
		Title    string `json:"title"`
		Duration int    `json:"duration"`
	} `json:"test"`
	Questions []adminQuestion `json:"questions"`
}

func NewHandler(svc *Service, imp *Importer, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{svc: svc, imp: imp, maxUploadBytes: maxUploadBytes}
}

func (h *Handler) ListTests(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListTests(r.Context())
	if err != nil {
		writeJSON(w, r, http.StatusInternalServerError, apiResponse{OK: false, Error: "internal error"})
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: items})
}

func (h *Handler) DeleteTest(w http.ResponseWriter, r *http.Request) {
	testID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.imp.DeleteTest(r.Context(), testID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: map[string]string{"message": "Test deleted successfully"}})
}

func (h *Handler) GetTestQuestions(w http.ResponseWriter, r *http.Request) {
	testID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	t, err := h.svc.GetTest(r.Context(), testID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	out := adminTestQuestions{Questions: make([]adminQuestion, 0, len(t.Questions))}
	out.Test.ID = t.ID
	out.Test.Title = t.Title
	out.Test.Duration = t.DurationMinutes
	for _, q := range t.Questions {
		item := adminQuestion{
			ID:           q.ID,
			QuestionText: q.Text,
			QuestionType: string(q.Type),
			Explanation:  q.Explanation,
			Options:      make([]adminOption, 0, len(q.Options)),
		}
		for _, o := range q.Options {
			item.Options = append(item.Options, adminOption{ID: o.ID, Text: o.Text, IsCorrect: o.IsCorrect})
		}
		out.Questions = append(out.Questions, item)
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: out})
}

func (h *Handler) DownloadSource(w http.ResponseWriter, r *http.Request) {
	testID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	rc, key, err := h.imp.Source(r.Context(), testID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentTypeForKey(key))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="test-%d-source%s"`, testID, path.Ext(key)))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}

func (h *Handler) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	var req createQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid request body"})
		return
	}
	if err := apiresp.Validator.Struct(req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: apiresp.ValidationMessage(err)})
		return
	}

	q, err := h.svc.CreateQuestion(r.Context(), req.TestID, req.questionRequest.toInput())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, apiResponse{OK: true, Data: map[string]any{
		"message":     "Question created",
		"question_id": q.ID,
	}})
}

func (h *Handler) UpdateQuestion(w http.ResponseWriter, r *http.Request) {
	questionID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	var req questionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid request body"})
		return
	}
	if err := apiresp.Validator.Struct(req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: apiresp.ValidationMessage(err)})
		return
	}

	if _, err := h.svc.UpdateQuestion(r.Context(), questionID, req.toInput()); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: map[string]string{"message": "Question updated successfully"}})
}

func (h *Handler) DeleteQuestion(w http.ResponseWriter, r *http.Request) {
	questionID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteQuestion(r.Context(), questionID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: map[string]string{"message": "Question deleted successfully"}})
}

func (h *Handler) UploadJSON(w http.ResponseWriter, r *http.Request) {
	h.handleUpload(w, r, "No JSON file uploaded", "", h.imp.ImportJSON)
}

func (h *Handler) UploadPDF(w http.ResponseWriter, r *http.Request) {
	h.handleUpload(w, r, "No file uploaded", ".pdf", h.imp.ImportPDF)
}

func (h *Handler) UploadXLSX(w http.ResponseWriter, r *http.Request) {
	h.handleUpload(w, r, "No xlsx file uploaded", ".xlsx", h.imp.ImportXLSX)
}

func (h *Handler) XLSXTemplate(w http.ResponseWriter, r *http.Request) {
	data, err := QuestionSheetTemplate()
	if err != nil {
		writeJSON(w, r, http.StatusInternalServerError, apiResponse{OK: false, Error: "internal error"})
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="question-template.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request, missingMsg, wantExt string, importFn func(context.Context, Upload) (*ImportResult, error)) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			writeJSON(w, r, http.StatusRequestEntityTooLarge, apiResponse{OK: false, Error: "uploaded file is too large"})
			return
		}
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: missingMsg})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: missingMsg})
		return
	}
	defer file.Close()

	if wantExt != "" && !strings.EqualFold(path.Ext(header.Filename), wantExt) {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "Please upload a " + strings.ToUpper(strings.TrimPrefix(wantExt, ".")) + " file"})
		return
	}

	duration := 0
	if raw := strings.TrimSpace(r.FormValue("duration")); raw != "" {
		duration, err = strconv.Atoi(raw)
		if err != nil || duration <= 0 {
			writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "duration must be a positive number of minutes"})
			return
		}
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "failed to read uploaded file"})
		return
	}

	res, err := importFn(r.Context(), Upload{
		Title:           r.FormValue("title"),
		DurationMinutes: duration,
		Filename:        header.Filename,
		Data:            data,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, apiResponse{OK: true, Data: res})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *scoring.ValidationError
	switch {
	case errors.As(err, &verr):
		apiresp.WriteErrorPayload(w, r, http.StatusBadRequest, apiresp.ErrorPayload{
			Message:  verr.Message,
			Position: verr.Position,
			Field:    verr.Field,
		})
	case errors.Is(err, ErrInvalidInput):
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: err.Error()})
	case errors.Is(err, ErrAIUnavailable):
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "AI not available. Please upload questions JSON manually."})
	case errors.Is(err, ErrGenerationFailed):
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "AI failed to generate questions from this PDF"})
	case errors.Is(err, ErrInsufficientText):
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: ErrInsufficientText.Error()})
	case errors.Is(err, ErrTestNotFound), errors.Is(err, ErrQuestionNotFound), errors.Is(err, ErrSourceNotFound):
		writeJSON(w, r, http.StatusNotFound, apiResponse{OK: false, Error: err.Error()})
	default:
		writeJSON(w, r, http.StatusInternalServerError, apiResponse{OK: false, Error: "internal error"})
	}
}

func (req questionRequest) toInput() QuestionInput {
	in := QuestionInput{
		Text:        req.QuestionText,
		Type:        req.QuestionType,
		Explanation: req.Explanation,
		Options:     make([]OptionInput, 0, len(req.Options)),
	}
	for _, o := range req.Options {
		in.Options = append(in.Options, OptionInput{Text: o.Text, IsCorrect: o.IsCorrect})
	}
	return in
}

func parseIDParam(w http.ResponseWriter, r *http.Request, key string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, key)), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid " + key})
		return 0, false
	}
	return id, true
}

func contentTypeForKey(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".pdf":
		return "application/pdf"
	case ".json":
		return "application/json"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, payload apiResponse) {
	if payload.OK {
		apiresp.WriteOK(w, r, code, payload.Data)
		return
	}
	apiresp.WriteError(w, r, code, payload.Error)
}
