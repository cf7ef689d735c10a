package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/userauth/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 既存クライアントが参照するsuccess, error, statusCodeに加え、原因カテゴリと対処方法を含む。
type ErrorResponseBody struct {
	Success    bool   `json:"success"`
	Error      string `json:"error"`
	StatusCode int    `json:"statusCode"`
	Code       string `json:"code"`
	Category   string `json:"category"`
	Action     string `json:"action,omitempty"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// すべてのAPIエンドポイントで一貫したエラーレスポンスを提供する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Success:    false,
		Error:      apiErr.Message,
		StatusCode: statusCode,
		Code:       apiErr.Code,
		Category:   apiErr.Category,
		Action:     apiErr.Action,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}
