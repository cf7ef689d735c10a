package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/userauth/internal/model"
)

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestCSRFMiddleware_SafeMethods_PassThroughWithoutToken(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		t.Run(method, func(t *testing.T) {
			called := false
			handler := NewCSRFMiddleware(CSRFConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			}))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(method, "/api/user/update", nil))

			if !called {
				t.Fatalf("handler should have been called for %s", method)
			}
			if w.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
			}
		})
	}
}

// 状態変更メソッドはトークンが揃わない限り403になることを検証
func TestCSRFMiddleware_StateChangingMethods_RequireMatchingToken(t *testing.T) {
	tests := []struct {
		name       string
		cookie     string
		header     string
		wantStatus int
	}{
		{"no cookie no header", "", "", http.StatusForbidden},
		{"cookie only", "tok", "", http.StatusForbidden},
		{"header only", "", "tok", http.StatusForbidden},
		{"mismatch", "tok", "other", http.StatusForbidden},
		{"match", "tok", "tok", http.StatusOK},
	}

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		for _, tt := range tests {
			t.Run(method+"/"+tt.name, func(t *testing.T) {
				handler := NewCSRFMiddleware(CSRFConfig{})(okHandler)

				req := httptest.NewRequest(method, "/api/user/update", nil)
				if tt.cookie != "" {
					req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: tt.cookie})
				}
				if tt.header != "" {
					req.Header.Set(csrfHeaderName, tt.header)
				}
				w := httptest.NewRecorder()

				handler.ServeHTTP(w, req)

				if tt.wantStatus == http.StatusForbidden {
					assertErrorEnvelope(t, w, http.StatusForbidden, model.ErrCodeForbidden)
					return
				}
				if w.Code != tt.wantStatus {
					t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
				}
			})
		}
	}
}

func TestCSRFMiddleware_GETRequest_SetsCSRFCookie(t *testing.T) {
	handler := NewCSRFMiddleware(CSRFConfig{CookieSecure: true, CookieDomain: "example.com"})(okHandler)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))

	c := findCookie(w.Result(), csrfCookieName)
	if c == nil {
		t.Fatal("expected csrf_token cookie to be set")
	}
	if len(c.Value) != 64 {
		t.Errorf("token length = %d, want 64 hex chars", len(c.Value))
	}
	if c.HttpOnly {
		t.Error("csrf cookie must be readable from JavaScript")
	}
	if !c.Secure {
		t.Error("csrf cookie should be Secure when configured")
	}
	if c.SameSite != http.SameSiteLaxMode {
		t.Errorf("SameSite = %v, want Lax", c.SameSite)
	}
}

func TestCSRFMiddleware_GETRequest_ExistingCookie_DoesNotReplace(t *testing.T) {
	handler := NewCSRFMiddleware(CSRFConfig{})(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if c := findCookie(w.Result(), csrfCookieName); c != nil {
		t.Errorf("existing csrf cookie should not be replaced, got %q", c.Value)
	}
}

func TestCSRFTokenHandler_SetsTokenCookieAndReturnsJSON(t *testing.T) {
	w := httptest.NewRecorder()
	NewCSRFTokenHandler(CSRFConfig{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	c := findCookie(w.Result(), csrfCookieName)
	if c == nil {
		t.Fatal("expected csrf_token cookie")
	}
	if body.Token == "" || c.Value != body.Token {
		t.Errorf("cookie value = %q, response token = %q; should match", c.Value, body.Token)
	}
}

func TestCSRFTokenHandler_ExistingCookie_ReturnsSameToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing-csrf-token"})
	w := httptest.NewRecorder()

	NewCSRFTokenHandler(CSRFConfig{}).ServeHTTP(w, req)

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Token != "existing-csrf-token" {
		t.Errorf("token = %q, want %q", body.Token, "existing-csrf-token")
	}
}

func TestGenerateCSRFToken_Unique(t *testing.T) {
	a, err := generateCSRFToken()
	if err != nil {
		t.Fatalf("generateCSRFToken() error = %v", err)
	}
	b, _ := generateCSRFToken()
	if a == b {
		t.Error("tokens should be unique")
	}
}
