package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/userauth/internal/auth"
	"github.com/hitoshi/userauth/internal/middleware"
	"github.com/hitoshi/userauth/internal/model"
)

const (
	oauthStateCookie = "oauth_state"

	// maxJSONBodySize は認証系JSONリクエストボディの上限。
	maxJSONBodySize = 1 << 20
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Signup(ctx context.Context, input auth.SignupInput) (*model.User, error)
	Signin(ctx context.Context, method auth.SigninMethod) (*auth.SigninResult, error)
	CurrentUser(ctx context.Context, userID string) (*model.User, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL      string
	CookieDomain string
	CookieSecure bool
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	oauth   auth.OAuthProvider // nilの場合はサーバー側のGoogle OAuthフローを無効化
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, oauth auth.OAuthProvider, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		oauth:   oauth,
		config:  config,
	}
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type googleSigninRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	PhotoURL string `json:"photoURL"`
}

// Signup はアカウントを作成する。セッションは発行しない。
// POST /api/auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	_, err := h.service.Signup(r.Context(), auth.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"message": "User Created Successfully",
	})
}

// Signin はメールアドレスとパスワードでサインインする。
// POST /api/auth/signin
func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	result, err := h.service.Signin(r.Context(), auth.ByPassword{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.setSessionCookie(w, result.Session)
	writeJSON(w, http.StatusOK, userDataResponse{Success: true, Data: toUserResponse(result.User)})
}

// Google はクライアント側で検証済みのGoogleアカウント情報でサインインする。
// 未登録のメールアドレスの場合はアカウントを作成する。作成時も200を返す。
// POST /api/auth/google
func (h *AuthHandler) Google(w http.ResponseWriter, r *http.Request) {
	var req googleSigninRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	result, err := h.service.Signin(r.Context(), auth.ByVerifiedAssertion{
		Email:    req.Email,
		Name:     req.Name,
		PhotoURL: req.PhotoURL,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.setSessionCookie(w, result.Session)
	writeJSON(w, http.StatusOK, userDataResponse{Success: true, Data: toUserResponse(result.User)})
}

// GoogleLogin はGoogle OAuthフローを開始する。
// GET /api/auth/google/login
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.oauth.GetLoginURL(state), http.StatusTemporaryRedirect)
}

// GoogleCallback はOAuthコールバックを処理する。
// GET /api/auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	// 1. stateの検証（CSRF対策）
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch", slog.String("query_state", state))
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewBadRequestError("Invalid state parameter"))
		return
	}

	// stateクッキーを削除
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// 2. 認可コードの取得
	code := r.URL.Query().Get("code")
	if code == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewBadRequestError("Missing authorization code"))
		return
	}

	// 3. 認可コードを検証済みのアカウント情報に交換
	assertion, err := h.oauth.ExchangeCode(r.Context(), code)
	if err != nil {
		slog.Warn("oauth code exchange failed", slog.String("error", err.Error()))
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	// 4. サインイン（未登録なら作成）
	result, err := h.service.Signin(r.Context(), assertion)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// 5. セッションCookieを設定してフロントエンドにリダイレクト
	h.setSessionCookie(w, result.Session)
	http.Redirect(w, r, h.config.BaseURL, http.StatusTemporaryRedirect)
}

// Signout はセッションCookieを削除する。
// セッションはステートレスなため、発行済みトークンは有効期限まで失効しない。
// POST /api/auth/signout
func (h *AuthHandler) Signout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Signed out successfully"})
}

// Me は現在のログインユーザー情報を返す。
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	user, err := h.service.CurrentUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, userDataResponse{Success: true, Data: toUserResponse(user)})
}

// setSessionCookie はセッショントークンをHTTP Only Cookieに設定する。
// Cookieの有効期限はトークンの有効期限と一致させる。
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, session *model.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    session.Token,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// decodeJSONBody はリクエストボディをJSONとして読み込む。
// 失敗した場合は400を書き込みfalseを返す。
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewBadRequestError("Invalid request body"))
		return false
	}
	return true
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
