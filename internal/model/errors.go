// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeUserIDRequired     = "USER_ID_REQUIRED"
	ErrCodeInvalidEmail       = "INVALID_EMAIL"
	ErrCodeInvalidImage       = "INVALID_IMAGE"
	ErrCodePasswordTooLong    = "PASSWORD_TOO_LONG"
	ErrCodeDeleteNotConfirmed = "DELETE_NOT_CONFIRMED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeInvalidPassword    = "INVALID_PASSWORD"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeEmailAlreadyExists = "EMAIL_ALREADY_EXISTS"
	ErrCodeImageTooLarge      = "IMAGE_TOO_LARGE"
	ErrCodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal           = "INTERNAL_ERROR"
	ErrCodeRouteNotFound      = "ROUTE_NOT_FOUND"
	ErrCodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
)

// NewBadRequestError は必須項目の欠落など、リクエスト内容の不備を表すエラーを生成する。
func NewBadRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeBadRequest,
		Message:  reason,
		Category: "validation",
		Action:   "Check the request fields and try again.",
	}
}

// NewUserIDRequiredError はuserIdが指定されていない場合のエラーを生成する。
func NewUserIDRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeUserIDRequired,
		Message:  "User ID is required",
		Category: "validation",
		Action:   "Sign in again and retry.",
	}
}

// NewInvalidEmailError はメールアドレスの形式が不正な場合のエラーを生成する。
func NewInvalidEmailError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEmail,
		Message:  fmt.Sprintf("Invalid email address: %s", email),
		Category: "validation",
		Action:   "Enter an address of the form name@example.com.",
	}
}

// NewInvalidImageError は画像以外のファイルがアップロードされた場合のエラーを生成する。
func NewInvalidImageError(contentType string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidImage,
		Message:  fmt.Sprintf("Only image uploads are allowed (got %q)", contentType),
		Category: "validation",
		Action:   "Choose a PNG, JPEG, GIF or WebP image.",
	}
}

// NewImageTooLargeError はアップロード画像がサイズ上限を超えた場合のエラーを生成する。
func NewImageTooLargeError(limit int64) *APIError {
	return &APIError{
		Code:     ErrCodeImageTooLarge,
		Message:  fmt.Sprintf("Image exceeds the %d MiB limit", limit/(1024*1024)),
		Category: "validation",
		Action:   "Choose a smaller image.",
	}
}

// NewPasswordTooLongError はbcryptで扱えない長さのパスワードが指定された場合のエラーを生成する。
func NewPasswordTooLongError() *APIError {
	return &APIError{
		Code:     ErrCodePasswordTooLong,
		Message:  "Password must be at most 72 bytes",
		Category: "validation",
		Action:   "Choose a shorter password.",
	}
}

// NewDeleteNotConfirmedError は削除確認が一致しない場合のエラーを生成する。
func NewDeleteNotConfirmedError() *APIError {
	return &APIError{
		Code:     ErrCodeDeleteNotConfirmed,
		Message:  "Account deletion was not confirmed",
		Category: "validation",
		Action:   "Pass your account email as the confirm parameter.",
	}
}

// NewInvalidCredentialsError は該当メールアドレスのユーザーが存在しない場合のエラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid credentials",
		Category: "auth",
		Action:   "Check your email address or sign up.",
	}
}

// NewInvalidPasswordError はパスワードが一致しない場合のエラーを生成する。
func NewInvalidPasswordError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPassword,
		Message:  "Invalid Password",
		Category: "auth",
		Action:   "Check your password and try again.",
	}
}

// NewUnauthorizedError は有効なセッションがない場合のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Authentication required",
		Category: "auth",
		Action:   "Sign in and retry.",
	}
}

// NewForbiddenError はセッションのユーザー以外のアカウントを操作しようとした場合のエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "You can only modify your own account",
		Category: "auth",
		Action:   "Sign in as the account owner.",
	}
}

// NewCSRFValidationError はCSRFトークンの検証に失敗した場合のエラーを生成する。
func NewCSRFValidationError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "CSRF token validation failed",
		Category: "auth",
		Action:   "Reload the page and retry.",
	}
}

// NewRouteNotFoundError は存在しないパスへのリクエストのエラーを生成する。
func NewRouteNotFoundError(path string) *APIError {
	return &APIError{
		Code:     ErrCodeRouteNotFound,
		Message:  fmt.Sprintf("Route not found: %s", path),
		Category: "validation",
		Action:   "Check the request URL.",
	}
}

// NewMethodNotAllowedError は許可されていないHTTPメソッドのエラーを生成する。
func NewMethodNotAllowedError(method string) *APIError {
	return &APIError{
		Code:     ErrCodeMethodNotAllowed,
		Message:  fmt.Sprintf("Method %s is not allowed", method),
		Category: "validation",
		Action:   "Check the request method.",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User not found",
		Category: "auth",
		Action:   "Sign in again.",
	}
}

// NewEmailAlreadyExistsError はメールアドレスが既に登録済みの場合のエラーを生成する。
func NewEmailAlreadyExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailAlreadyExists,
		Message:  "Email is already registered",
		Category: "validation",
		Action:   "Sign in instead, or use a different email address.",
	}
}

// NewRateLimitExceededError はレート制限超過のエラーを生成する。
func NewRateLimitExceededError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimitExceeded,
		Message:  "Too many requests. Please try again later.",
		Category: "system",
		Action:   "Please wait and retry after the specified time.",
	}
}

// NewInternalError は内部エラーのレスポンス用エラーを生成する。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Internal Server Error",
		Category: "system",
		Action:   "Please wait a moment and try again.",
	}
}
