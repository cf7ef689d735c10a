package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/userauth/internal/auth"
	"github.com/hitoshi/userauth/internal/middleware"
	"github.com/hitoshi/userauth/internal/model"
	"github.com/hitoshi/userauth/internal/user"
)

// --- モック定義 ---

type mockAuthService struct {
	signupFn      func(ctx context.Context, input auth.SignupInput) (*model.User, error)
	signinFn      func(ctx context.Context, method auth.SigninMethod) (*auth.SigninResult, error)
	currentUserFn func(ctx context.Context, userID string) (*model.User, error)
}

func (m *mockAuthService) Signup(ctx context.Context, input auth.SignupInput) (*model.User, error) {
	if m.signupFn != nil {
		return m.signupFn(ctx, input)
	}
	return &model.User{}, nil
}

func (m *mockAuthService) Signin(ctx context.Context, method auth.SigninMethod) (*auth.SigninResult, error) {
	if m.signinFn != nil {
		return m.signinFn(ctx, method)
	}
	return nil, model.NewInvalidCredentialsError()
}

func (m *mockAuthService) CurrentUser(ctx context.Context, userID string) (*model.User, error) {
	if m.currentUserFn != nil {
		return m.currentUserFn(ctx, userID)
	}
	return nil, model.NewUserNotFoundError()
}

type mockUserService struct {
	updateFn     func(ctx context.Context, input user.UpdateInput) (*model.User, error)
	deleteFn     func(ctx context.Context, input user.DeleteInput) error
	maxImageSize int64
}

func (m *mockUserService) Update(ctx context.Context, input user.UpdateInput) (*model.User, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, input)
	}
	return &model.User{ID: input.UserID}, nil
}

func (m *mockUserService) Delete(ctx context.Context, input user.DeleteInput) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, input)
	}
	return nil
}

func (m *mockUserService) MaxImageSize() int64 {
	if m.maxImageSize > 0 {
		return m.maxImageSize
	}
	return user.DefaultMaxImageSize
}

type mockOAuthProvider struct {
	getLoginURLFn  func(state string) string
	exchangeCodeFn func(ctx context.Context, code string) (auth.ByVerifiedAssertion, error)
}

func (m *mockOAuthProvider) GetLoginURL(state string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return "https://accounts.google.com/o/oauth2/auth?state=" + state
}

func (m *mockOAuthProvider) ExchangeCode(ctx context.Context, code string) (auth.ByVerifiedAssertion, error) {
	if m.exchangeCodeFn != nil {
		return m.exchangeCodeFn(ctx, code)
	}
	return auth.ByVerifiedAssertion{}, nil
}

// --- ヘルパー ---

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode error body: %v\nraw: %s", err, w.Body.String())
	}
	return body
}

// assertErrorEnvelope はステータスコードと統一エラーフォーマットを検証する。
func assertErrorEnvelope(t *testing.T, w *httptest.ResponseRecorder, wantStatus int, wantCode string) {
	t.Helper()
	if w.Code != wantStatus {
		t.Fatalf("status = %d, want %d (body: %s)", w.Code, wantStatus, w.Body.String())
	}
	body := decodeErrorBody(t, w)
	if body.Success {
		t.Error("success should be false")
	}
	if body.StatusCode != wantStatus {
		t.Errorf("statusCode = %d, want %d", body.StatusCode, wantStatus)
	}
	if body.Code != wantCode {
		t.Errorf("code = %q, want %q", body.Code, wantCode)
	}
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// withUserID はセッションミドルウェアを通過した状態のリクエストを作る。
func withUserID(req *http.Request, userID string) *http.Request {
	return req.WithContext(middleware.ContextWithUserID(req.Context(), userID))
}
