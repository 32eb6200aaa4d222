package apiresp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestWriteOK(t *testing.T) {
	w := httptest.NewRecorder()
	WriteOK(w, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusCreated, map[string]int{"test_id": 4})

	if w.Code != http.StatusCreated || w.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("unexpected response: %d %s", w.Code, w.Header().Get("Content-Type"))
	}
	body := decodeEnvelope(t, w)
	if body["ok"] != true || body["error"] != nil {
		t.Fatalf("unexpected envelope: %v", body)
	}
	if data, _ := body["data"].(map[string]any); data["test_id"] != float64(4) {
		t.Fatalf("unexpected data: %v", body["data"])
	}
}

func TestWriteErrorCodes(t *testing.T) {
	tests := []struct {
		status   int
		msg      string
		wantCode string
		wantMsg  string
	}{
		{status: http.StatusBadRequest, msg: "bad", wantCode: "invalid_request", wantMsg: "bad"},
		{status: http.StatusNotFound, msg: "", wantCode: "not_found", wantMsg: "Not Found"},
		{status: http.StatusRequestEntityTooLarge, msg: "too big", wantCode: "payload_too_large", wantMsg: "too big"},
		{status: http.StatusUnprocessableEntity, msg: "empty test", wantCode: "unprocessable_entity", wantMsg: "empty test"},
		{status: http.StatusTooManyRequests, msg: "slow down", wantCode: "rate_limited", wantMsg: "slow down"},
		{status: http.StatusTeapot, msg: "x", wantCode: "error", wantMsg: "x"},
	}
	for _, tc := range tests {
		w := httptest.NewRecorder()
		WriteError(w, httptest.NewRequest(http.MethodGet, "/", nil), tc.status, tc.msg)
		body := decodeEnvelope(t, w)
		errObj, _ := body["error"].(map[string]any)
		if body["ok"] != false || errObj["code"] != tc.wantCode || errObj["message"] != tc.wantMsg {
			t.Fatalf("status %d: unexpected envelope %v", tc.status, body)
		}
		if _, has := errObj["position"]; has {
			t.Fatalf("status %d: position should be omitted", tc.status)
		}
	}
}

func TestWriteErrorPayloadLocatesQuestion(t *testing.T) {
	w := httptest.NewRecorder()
	WriteErrorPayload(w, httptest.NewRequest(http.MethodPost, "/", nil), http.StatusBadRequest, ErrorPayload{
		Message:  "Question 2 missing field: options",
		Position: 2,
		Field:    "options",
	})
	errObj, _ := decodeEnvelope(t, w)["error"].(map[string]any)
	if errObj["position"] != float64(2) || errObj["field"] != "options" || errObj["code"] != "invalid_request" {
		t.Fatalf("unexpected error payload: %v", errObj)
	}
}

func TestValidationMessage(t *testing.T) {
	type req struct {
		TestID   int64  `json:"test_id" validate:"required,gt=0"`
		UserName string `json:"user_name" validate:"required,max=5"`
	}
	tests := []struct {
		in   req
		want string
	}{
		{in: req{UserName: "ab"}, want: "test_id is required"},
		{in: req{TestID: 1}, want: "user_name is required"},
		{in: req{TestID: 1, UserName: "abcdefg"}, want: "user_name must be at most 5 characters"},
	}
	for _, tc := range tests {
		if got := ValidationMessage(Validator.Struct(tc.in)); got != tc.want {
			t.Fatalf("expected %q, got %q", tc.want, got)
		}
	}
	if got := ValidationMessage(nil); got != "invalid request body" {
		t.Fatalf("unexpected fallback: %q", got)
	}
}
