package assistant

import (
	"net/http"

	"quizdesk/internal/app/apiresp"
)

type Handler struct {
	svc statusProvider
}

type statusProvider interface {
	Status() Status
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) AIStatus(w http.ResponseWriter, r *http.Request) {
	apiresp.WriteOK(w, r, http.StatusOK, h.svc.Status())
}
