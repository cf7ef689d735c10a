// Package user はプロフィール更新と退会のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/userauth/internal/model"
	"github.com/hitoshi/userauth/internal/repository"
	"github.com/hitoshi/userauth/internal/security"
)

// PasswordHasher はパスワードのハッシュ化インターフェース。
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
}

// NameSanitizer は表示名からマークアップを除去するインターフェース。
type NameSanitizer interface {
	Sanitize(name string) string
}

// Recorder はプロフィール操作のメトリクスを記録するインターフェース。
type Recorder interface {
	RecordProfileUpdate(outcome string)
	RecordAccountDeleted()
}

// UpdateInput はプロフィール更新の入力。nilのフィールドは更新しない。
type UpdateInput struct {
	UserID   string
	Name     *string
	Email    *string
	Password *string
	Image    *ImageUpload
}

// DeleteInput は退会の入力。Confirmにはアカウントのメールアドレスを指定する。
type DeleteInput struct {
	UserID  string
	Confirm string
}

// Service はユーザー管理のサービス層。
type Service struct {
	userRepo     repository.UserRepository
	hasher       PasswordHasher
	sanitizer    NameSanitizer
	recorder     Recorder
	maxImageSize int64
}

// NewService はServiceの新しいインスタンスを生成する。
// maxImageSizeが0以下、またはDefaultMaxImageSizeを超える場合はDefaultMaxImageSizeを使用する。
func NewService(
	userRepo repository.UserRepository,
	hasher PasswordHasher,
	sanitizer NameSanitizer,
	recorder Recorder,
	maxImageSize int64,
) *Service {
	if maxImageSize <= 0 || maxImageSize > DefaultMaxImageSize {
		maxImageSize = DefaultMaxImageSize
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Service{
		userRepo:     userRepo,
		hasher:       hasher,
		sanitizer:    sanitizer,
		recorder:     recorder,
		maxImageSize: maxImageSize,
	}
}

// MaxImageSize はアップロード画像のサイズ上限を返す。
func (s *Service) MaxImageSize() int64 {
	return s.maxImageSize
}

// Update は指定されたフィールドのみを更新し、更新後のユーザーを返す。
// 画像の検証はDBへの書き込み前に行うため、不正な画像の場合はレコードは変更されない。
func (s *Service) Update(ctx context.Context, input UpdateInput) (*model.User, error) {
	user, err := s.update(ctx, input)
	outcome := "success"
	if err != nil {
		outcome = "error"
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			outcome = strings.ToLower(apiErr.Code)
		}
	}
	s.recorder.RecordProfileUpdate(outcome)
	return user, err
}

func (s *Service) update(ctx context.Context, input UpdateInput) (*model.User, error) {
	if input.UserID == "" {
		return nil, model.NewUserIDRequiredError()
	}

	patch, err := s.buildPatch(input)
	if err != nil {
		return nil, err
	}

	if patch.IsEmpty() {
		user, err := s.userRepo.FindByID(ctx, input.UserID)
		if err != nil {
			return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
		}
		if user == nil {
			return nil, model.NewUserNotFoundError()
		}
		return user, nil
	}

	user, err := s.userRepo.Update(ctx, input.UserID, patch)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewEmailAlreadyExistsError()
		}
		if errors.Is(err, repository.ErrValueTooLong) {
			return nil, model.NewBadRequestError("Name or email is too long")
		}
		return nil, fmt.Errorf("ユーザーの更新に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	slog.Info("プロフィールを更新しました",
		slog.String("user_id", user.ID),
		slog.Bool("password_changed", patch.Password != nil),
		slog.Bool("picture_changed", patch.ProfilePicture != nil),
	)
	return user, nil
}

// buildPatch は入力を検証し、保存用の差分に変換する。
// 空白のみのフィールドは指定なしとして扱う。
func (s *Service) buildPatch(input UpdateInput) (repository.UserPatch, error) {
	var patch repository.UserPatch

	if input.Image != nil {
		if err := input.Image.Validate(s.maxImageSize); err != nil {
			return patch, err
		}
		uri := input.Image.DataURI()
		patch.ProfilePicture = &uri
	}

	if input.Name != nil && strings.TrimSpace(*input.Name) != "" {
		name := s.sanitizer.Sanitize(*input.Name)
		if name == "" {
			return patch, model.NewBadRequestError("Name must contain visible characters")
		}
		if utf8.RuneCountInString(name) > model.MaxNameLength {
			return patch, model.NewBadRequestError(fmt.Sprintf("Name must be at most %d characters", model.MaxNameLength))
		}
		patch.Name = &name
	}

	if input.Email != nil && strings.TrimSpace(*input.Email) != "" {
		email, err := security.NormalizeEmail(*input.Email)
		if err != nil {
			return patch, model.NewInvalidEmailError(*input.Email)
		}
		patch.Email = &email
	}

	if input.Password != nil && strings.TrimSpace(*input.Password) != "" {
		digest, err := s.hasher.Hash(*input.Password)
		if err != nil {
			return patch, err
		}
		patch.Password = &digest
	}

	return patch, nil
}

// Delete はユーザーを削除する。
// Confirmがアカウントのメールアドレスと一致しない場合は削除しない。
func (s *Service) Delete(ctx context.Context, input DeleteInput) error {
	if input.UserID == "" {
		return model.NewUserIDRequiredError()
	}

	user, err := s.userRepo.FindByID(ctx, input.UserID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	if !strings.EqualFold(strings.TrimSpace(input.Confirm), user.Email) {
		return model.NewDeleteNotConfirmedError()
	}

	if err := s.userRepo.DeleteByID(ctx, input.UserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewUserNotFoundError()
		}
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("退会処理が完了しました",
		slog.String("user_id", input.UserID),
	)
	s.recorder.RecordAccountDeleted()
	return nil
}

type noopRecorder struct{}

func (noopRecorder) RecordProfileUpdate(string) {}
func (noopRecorder) RecordAccountDeleted()      {}
