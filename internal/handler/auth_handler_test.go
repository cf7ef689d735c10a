package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/userauth/internal/auth"
	"github.com/hitoshi/userauth/internal/middleware"
	"github.com/hitoshi/userauth/internal/model"
)

var testAuthConfig = AuthHandlerConfig{
	BaseURL:      "http://localhost:5173",
	CookieSecure: false,
}

func testSigninResult() *auth.SigninResult {
	issuedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &auth.SigninResult{
		User: &model.User{
			ID:       "user-1",
			Name:     "ada",
			Email:    "a@x.com",
			Password: "$2a$10$digest",
		},
		Session: &model.Session{
			Token:     "signed-token",
			UserID:    "user-1",
			IssuedAt:  issuedAt,
			ExpiresAt: issuedAt.Add(auth.SessionTTL),
		},
	}
}

func TestAuthHandler_Signup_Returns201(t *testing.T) {
	var got auth.SignupInput
	svc := &mockAuthService{
		signupFn: func(ctx context.Context, input auth.SignupInput) (*model.User, error) {
			got = input
			return &model.User{ID: "user-1"}, nil
		},
	}
	h := NewAuthHandler(svc, nil, testAuthConfig)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup",
		strings.NewReader(`{"name":"ada","email":"a@x.com","password":"pw1"}`))
	w := httptest.NewRecorder()
	h.Signup(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["message"] != "User Created Successfully" {
		t.Errorf("message = %q", body["message"])
	}
	if got.Name != "ada" || got.Email != "a@x.com" || got.Password != "pw1" {
		t.Errorf("input = %+v", got)
	}
	// サインアップではセッションを発行しない
	if c := findCookie(w.Result(), middleware.SessionCookieName); c != nil {
		t.Error("signup should not set a session cookie")
	}
}

func TestAuthHandler_Signup_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"missing fields", model.NewBadRequestError("All fields are required"), http.StatusBadRequest, model.ErrCodeBadRequest},
		{"duplicate email", model.NewEmailAlreadyExistsError(), http.StatusConflict, model.ErrCodeEmailAlreadyExists},
		{"password too long", model.NewPasswordTooLongError(), http.StatusBadRequest, model.ErrCodePasswordTooLong},
		{"infrastructure", errors.New("db down"), http.StatusInternalServerError, model.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuthService{
				signupFn: func(ctx context.Context, input auth.SignupInput) (*model.User, error) {
					return nil, tt.err
				},
			}
			h := NewAuthHandler(svc, nil, testAuthConfig)

			req := httptest.NewRequest(http.MethodPost, "/api/auth/signup",
				strings.NewReader(`{"name":"ada","email":"a@x.com","password":"pw1"}`))
			w := httptest.NewRecorder()
			h.Signup(w, req)

			assertErrorEnvelope(t, w, tt.wantStatus, tt.wantCode)
		})
	}
}

func TestAuthHandler_Signup_MalformedJSON(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, nil, testAuthConfig)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", strings.NewReader(`{"name":`))
	w := httptest.NewRecorder()
	h.Signup(w, req)

	assertErrorEnvelope(t, w, http.StatusBadRequest, model.ErrCodeBadRequest)
}

// TestAuthHandler_Signin_SetsSessionCookie はサインイン成功時にCookieとユーザー情報を返すことを検証する。
func TestAuthHandler_Signin_SetsSessionCookie(t *testing.T) {
	result := testSigninResult()
	var gotMethod auth.SigninMethod
	svc := &mockAuthService{
		signinFn: func(ctx context.Context, method auth.SigninMethod) (*auth.SigninResult, error) {
			gotMethod = method
			return result, nil
		},
	}
	h := NewAuthHandler(svc, nil, testAuthConfig)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/signin",
		strings.NewReader(`{"email":"a@x.com","password":"pw1"}`))
	w := httptest.NewRecorder()
	h.Signin(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if pw, ok := gotMethod.(auth.ByPassword); !ok || pw.Email != "a@x.com" || pw.Password != "pw1" {
		t.Errorf("method = %#v, want ByPassword", gotMethod)
	}

	cookie := findCookie(w.Result(), middleware.SessionCookieName)
	if cookie == nil {
		t.Fatal("expected session cookie")
	}
	if cookie.Value != "signed-token" {
		t.Errorf("cookie value = %q", cookie.Value)
	}
	if !cookie.HttpOnly {
		t.Error("session cookie should be HttpOnly")
	}
	if !cookie.Expires.Equal(result.Session.ExpiresAt) {
		t.Errorf("cookie Expires = %v, want %v", cookie.Expires, result.Session.ExpiresAt)
	}
	if cookie.Expires.Sub(result.Session.IssuedAt) != time.Hour {
		t.Errorf("cookie lifetime = %v, want 1h", cookie.Expires.Sub(result.Session.IssuedAt))
	}

	raw := w.Body.String()
	if strings.Contains(raw, "password") || strings.Contains(raw, "$2a$") {
		t.Errorf("response leaks password digest: %s", raw)
	}

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			ID    string `json:"_id"`
			Email string `json:"email"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || body.Data.ID != "user-1" || body.Data.Email != "a@x.com" {
		t.Errorf("body = %+v", body)
	}
}

func TestAuthHandler_Signin_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"unknown email", model.NewInvalidCredentialsError(), http.StatusNotFound, model.ErrCodeInvalidCredentials},
		{"wrong password", model.NewInvalidPasswordError(), http.StatusUnauthorized, model.ErrCodeInvalidPassword},
		{"invalid email", model.NewInvalidEmailError("nope"), http.StatusBadRequest, model.ErrCodeInvalidEmail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuthService{
				signinFn: func(ctx context.Context, method auth.SigninMethod) (*auth.SigninResult, error) {
					return nil, tt.err
				},
			}
			h := NewAuthHandler(svc, nil, testAuthConfig)

			req := httptest.NewRequest(http.MethodPost, "/api/auth/signin",
				strings.NewReader(`{"email":"a@x.com","password":"bad"}`))
			w := httptest.NewRecorder()
			h.Signin(w, req)

			assertErrorEnvelope(t, w, tt.wantStatus, tt.wantCode)
			if c := findCookie(w.Result(), middleware.SessionCookieName); c != nil {
				t.Error("failed signin should not set a session cookie")
			}
		})
	}
}

// 作成・再利用のどちらでも200を返すことを検証
func TestAuthHandler_Google_Returns200ForCreatedAndReused(t *testing.T) {
	for _, created := range []bool{true, false} {
		result := testSigninResult()
		result.Created = created
		var gotMethod auth.SigninMethod
		svc := &mockAuthService{
			signinFn: func(ctx context.Context, method auth.SigninMethod) (*auth.SigninResult, error) {
				gotMethod = method
				return result, nil
			},
		}
		h := NewAuthHandler(svc, nil, testAuthConfig)

		req := httptest.NewRequest(http.MethodPost, "/api/auth/google",
			strings.NewReader(`{"email":"a@x.com","name":"Ada L","photoURL":"https://example.com/a.png"}`))
		w := httptest.NewRecorder()
		h.Google(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("created=%v: status = %d, want %d", created, w.Code, http.StatusOK)
		}
		assertion, ok := gotMethod.(auth.ByVerifiedAssertion)
		if !ok {
			t.Fatalf("method = %#v, want ByVerifiedAssertion", gotMethod)
		}
		if assertion.PhotoURL != "https://example.com/a.png" || assertion.Name != "Ada L" {
			t.Errorf("assertion = %+v", assertion)
		}
		if findCookie(w.Result(), middleware.SessionCookieName) == nil {
			t.Error("expected session cookie")
		}
	}
}

func TestAuthHandler_GoogleLogin_RedirectsWithState(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, &mockOAuthProvider{}, testAuthConfig)

	w := httptest.NewRecorder()
	h.GoogleLogin(w, httptest.NewRequest(http.MethodGet, "/api/auth/google/login", nil))

	resp := w.Result()
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusTemporaryRedirect)
	}
	stateCookie := findCookie(resp, oauthStateCookie)
	if stateCookie == nil || stateCookie.Value == "" {
		t.Fatal("expected oauth_state cookie")
	}
	if !strings.Contains(resp.Header.Get("Location"), "state="+stateCookie.Value) {
		t.Errorf("Location %q does not carry state %q", resp.Header.Get("Location"), stateCookie.Value)
	}
}

func TestAuthHandler_GoogleCallback_Success(t *testing.T) {
	provider := &mockOAuthProvider{
		exchangeCodeFn: func(ctx context.Context, code string) (auth.ByVerifiedAssertion, error) {
			if code != "auth-code" {
				t.Errorf("code = %q", code)
			}
			return auth.ByVerifiedAssertion{Email: "a@x.com", Name: "Ada"}, nil
		},
	}
	svc := &mockAuthService{
		signinFn: func(ctx context.Context, method auth.SigninMethod) (*auth.SigninResult, error) {
			if _, ok := method.(auth.ByVerifiedAssertion); !ok {
				t.Errorf("method = %#v", method)
			}
			return testSigninResult(), nil
		},
	}
	h := NewAuthHandler(svc, provider, testAuthConfig)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/google/callback?code=auth-code&state=abc", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "abc"})
	w := httptest.NewRecorder()
	h.GoogleCallback(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusTemporaryRedirect)
	}
	if loc := resp.Header.Get("Location"); loc != testAuthConfig.BaseURL {
		t.Errorf("Location = %q, want %q", loc, testAuthConfig.BaseURL)
	}
	if c := findCookie(resp, middleware.SessionCookieName); c == nil || c.Value != "signed-token" {
		t.Errorf("session cookie = %+v", c)
	}
}

func TestAuthHandler_GoogleCallback_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		cookie     string
		exchange   error
		wantStatus int
	}{
		{"state mismatch", "/api/auth/google/callback?code=c&state=abc", "other", nil, http.StatusBadRequest},
		{"missing state cookie", "/api/auth/google/callback?code=c&state=abc", "", nil, http.StatusBadRequest},
		{"missing code", "/api/auth/google/callback?state=abc", "abc", nil, http.StatusBadRequest},
		{"exchange failure", "/api/auth/google/callback?code=c&state=abc", "abc", errors.New("email not verified"), http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &mockOAuthProvider{
				exchangeCodeFn: func(ctx context.Context, code string) (auth.ByVerifiedAssertion, error) {
					return auth.ByVerifiedAssertion{}, tt.exchange
				},
			}
			svc := &mockAuthService{
				signinFn: func(ctx context.Context, method auth.SigninMethod) (*auth.SigninResult, error) {
					t.Error("Signin should not be called")
					return nil, nil
				},
			}
			h := NewAuthHandler(svc, provider, testAuthConfig)

			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			h.GoogleCallback(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestAuthHandler_Signout_ClearsCookie(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, nil, testAuthConfig)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/signout", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "signed-token"})
	w := httptest.NewRecorder()
	h.Signout(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	cookie := findCookie(w.Result(), middleware.SessionCookieName)
	if cookie == nil {
		t.Fatal("expected cleared session cookie")
	}
	if cookie.Value != "" || cookie.MaxAge >= 0 {
		t.Errorf("cookie = %+v, want cleared", cookie)
	}

	var body messageResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || body.Message == "" {
		t.Errorf("body = %+v", body)
	}
}

func TestAuthHandler_Me(t *testing.T) {
	svc := &mockAuthService{
		currentUserFn: func(ctx context.Context, userID string) (*model.User, error) {
			if userID != "user-1" {
				return nil, model.NewUserNotFoundError()
			}
			return &model.User{ID: "user-1", Name: "ada", Email: "a@x.com"}, nil
		},
	}
	h := NewAuthHandler(svc, nil, testAuthConfig)

	t.Run("authenticated", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Me(w, withUserID(httptest.NewRequest(http.MethodGet, "/api/auth/me", nil), "user-1"))

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}
		var body userDataResponse
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Data.Name != "ada" {
			t.Errorf("name = %q", body.Data.Name)
		}
	})

	t.Run("deleted account", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Me(w, withUserID(httptest.NewRequest(http.MethodGet, "/api/auth/me", nil), "user-gone"))
		assertErrorEnvelope(t, w, http.StatusNotFound, model.ErrCodeUserNotFound)
	})

	t.Run("no session", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Me(w, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
		assertErrorEnvelope(t, w, http.StatusUnauthorized, model.ErrCodeUnauthorized)
	})
}
