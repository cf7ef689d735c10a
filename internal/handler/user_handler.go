package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/userauth/internal/middleware"
	"github.com/hitoshi/userauth/internal/model"
	"github.com/hitoshi/userauth/internal/user"
)

const (
	// multipartOverhead は画像以外のフォーム項目とmultipart境界のために許容するサイズ。
	multipartOverhead = 1 << 20

	// multipartMemory はParseMultipartFormがメモリ上に保持する上限。超過分は一時ファイルに書き出される。
	multipartMemory = 8 << 20
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	Update(ctx context.Context, input user.UpdateInput) (*model.User, error)
	Delete(ctx context.Context, input user.DeleteInput) error
	MaxImageSize() int64
}

// UserHandler はプロフィール変更と退会のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

type updateUserResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	User    userResponse `json:"user"`
}

// Update はプロフィールを部分更新する。
// multipartのuserId, name, email, password, imageを受け付け、指定された項目のみ更新する。
// PUT /api/user/update
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	sessionUserID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	maxImageSize := h.service.MaxImageSize()
	r.Body = http.MaxBytesReader(w, r.Body, maxImageSize+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeAPIErrorResponse(w, http.StatusRequestEntityTooLarge, model.NewImageTooLargeError(maxImageSize))
			return
		}
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewBadRequestError("Invalid multipart form"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	var userID string
	if v := formField(r.MultipartForm, "userId"); v != nil {
		userID = *v
	}
	if userID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewUserIDRequiredError())
		return
	}
	if userID != sessionUserID {
		slog.Warn("profile update for another account rejected",
			slog.String("user_id", sessionUserID),
			slog.String("target_user_id", userID),
		)
		writeAPIErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
		return
	}

	input := user.UpdateInput{
		UserID:   userID,
		Name:     formField(r.MultipartForm, "name"),
		Email:    formField(r.MultipartForm, "email"),
		Password: formField(r.MultipartForm, "password"),
	}

	img, err := readImagePart(r.MultipartForm, maxImageSize)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	input.Image = img

	updated, err := h.service.Update(r.Context(), input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, updateUserResponse{
		Success: true,
		Message: "Profile updated successfully",
		User:    toUserResponse(updated),
	})
}

// Delete はアカウントを削除する。
// confirmにはアカウントのメールアドレスを指定する。
// DELETE /api/user/delete/{id}?confirm=<email>
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sessionUserID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	userID := chi.URLParam(r, "id")
	if userID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewUserIDRequiredError())
		return
	}
	if userID != sessionUserID {
		slog.Warn("account deletion for another account rejected",
			slog.String("user_id", sessionUserID),
			slog.String("target_user_id", userID),
		)
		writeAPIErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
		return
	}

	err = h.service.Delete(r.Context(), user.DeleteInput{
		UserID:  userID,
		Confirm: r.URL.Query().Get("confirm"),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "User deleted successfully"})
}

// formField はフォーム項目が送信されていればその値へのポインタを返す。
func formField(form *multipart.Form, key string) *string {
	values, ok := form.Value[key]
	if !ok || len(values) == 0 {
		return nil
	}
	v := values[0]
	return &v
}

// readImagePart はimageパートを読み込む。パートがなければnilを返す。
// 上限を1バイト超えるまで読むことで、サイズ超過をサービス層で判定できるようにする。
func readImagePart(form *multipart.Form, maxSize int64) (*user.ImageUpload, error) {
	files := form.File["image"]
	if len(files) == 0 {
		return nil, nil
	}
	header := files[0]

	f, err := header.Open()
	if err != nil {
		return nil, model.NewBadRequestError("Failed to read uploaded image")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxSize+1))
	if err != nil {
		return nil, model.NewBadRequestError("Failed to read uploaded image")
	}

	return &user.ImageUpload{
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
