package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// okHandler は200を返すだけのハンドラー。
var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

// decodeErrorBody はレスポンスを統一エラーフォーマットとしてデコードする。
func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) ErrorResponseBody {
	t.Helper()
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v\nraw: %s", err, w.Body.String())
	}
	return body
}

// assertErrorEnvelope はステータスコードとエラーコードを検証する。
func assertErrorEnvelope(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Errorf("status = %d, want %d", w.Code, status)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	body := decodeErrorBody(t, w)
	if body.Success {
		t.Error("success should be false")
	}
	if body.StatusCode != status {
		t.Errorf("statusCode = %d, want %d", body.StatusCode, status)
	}
	if body.Code != code {
		t.Errorf("code = %q, want %q", body.Code, code)
	}
	if body.Error == "" {
		t.Error("error message should not be empty")
	}
}
