package apiresp

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Position and Field locate a rejected question in an uploaded set.
	Position int    `json:"position,omitempty"`
	Field    string `json:"field,omitempty"`
}

type Meta struct {
	RequestID string `json:"request_id,omitempty"`
}

type Envelope struct {
	OK    bool          `json:"ok"`
	Data  any           `json:"data,omitempty"`
	Error *ErrorPayload `json:"error,omitempty"`
	Meta  Meta          `json:"meta"`
}

func WriteOK(w http.ResponseWriter, r *http.Request, status int, data any) {
	write(w, r, status, Envelope{OK: true, Data: data})
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	WriteErrorPayload(w, r, status, ErrorPayload{Message: msg})
}

// WriteErrorPayload fills in the code and a default message from status.
func WriteErrorPayload(w http.ResponseWriter, r *http.Request, status int, p ErrorPayload) {
	if p.Message == "" {
		p.Message = http.StatusText(status)
	}
	p.Code = codeFromStatus(status)
	write(w, r, status, Envelope{OK: false, Error: &p})
}

func write(w http.ResponseWriter, r *http.Request, status int, res Envelope) {
	res.Meta.RequestID = middleware.GetReqID(r.Context())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(res)
}

func codeFromStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusRequestEntityTooLarge:
		return "payload_too_large"
	case http.StatusUnprocessableEntity:
		return "unprocessable_entity"
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusInternalServerError:
		return "internal_error"
	case http.StatusServiceUnavailable:
		return "unavailable"
	default:
		if status >= 200 && status < 300 {
			return ""
		}
		return "error"
	}
}
