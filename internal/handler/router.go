package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/userauth/internal/auth"
	"github.com/hitoshi/userauth/internal/middleware"
	"github.com/hitoshi/userauth/internal/model"
)

// healthCheckTimeout はヘルスチェック時のDB疎通確認のタイムアウト。
const healthCheckTimeout = 2 * time.Second

// HealthChecker はDBの疎通確認のためのインターフェース。*sql.DBが実装する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	TokenValidator    middleware.TokenValidator
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	Metrics           middleware.HTTPMetricsRecorder

	// ヘルスチェック・メトリクス
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// 認証
	AuthService   AuthServiceInterface
	OAuthProvider auth.OAuthProvider // nilの場合は /api/auth/google/login と callback を登録しない
	AuthConfig    AuthHandlerConfig

	// ユーザー
	UserService UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → Metrics → (RateLimit | Session → CSRF)
//
// /api/auth/* はクライアントIPごとのレート制限を受ける。
// /api/user/* はセッションとCSRFトークンの検証を受ける。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	}

	// ルーター由来の404/405も統一エラーフォーマットで返す
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewRouteNotFoundError(r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeAPIErrorResponse(w, http.StatusMethodNotAllowed, model.NewMethodNotAllowedError(r.Method))
	})

	sessionMiddleware := middleware.NewSessionMiddleware(deps.TokenValidator)
	authHandler := NewAuthHandler(deps.AuthService, deps.OAuthProvider, deps.AuthConfig)
	userHandler := NewUserHandler(deps.UserService)

	// --- 認証ルート ---
	r.Route("/api/auth", func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}

		r.Post("/signup", authHandler.Signup)
		r.Post("/signin", authHandler.Signin)
		r.Post("/google", authHandler.Google)
		if deps.OAuthProvider != nil {
			r.Get("/google/login", authHandler.GoogleLogin)
			r.Get("/google/callback", authHandler.GoogleCallback)
		}
		r.Post("/signout", authHandler.Signout)
		r.With(sessionMiddleware).Get("/me", authHandler.Me)
	})

	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → CSRF
	r.Route("/api/user", func(r chi.Router) {
		r.Use(sessionMiddleware)
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		r.Put("/update", userHandler.Update)
		r.Delete("/delete/{id}", userHandler.Delete)
	})

	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	return r
}

// healthHandler はDBの疎通を確認するヘルスチェックハンドラーを返す。
// GET /health
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
