// Package auth はパスワード認証、連携IdPによる認証、セッション発行を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hitoshi/userauth/internal/model"
	"github.com/hitoshi/userauth/internal/repository"
	"github.com/hitoshi/userauth/internal/security"
)

// SessionIssuer はセッショントークンを発行するインターフェース。
type SessionIssuer interface {
	Issue(userID string) (*model.Session, error)
}

// URLValidator は外部URLの安全性を検証するインターフェース。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// NameSanitizer は表示名からマークアップを除去するインターフェース。
type NameSanitizer interface {
	Sanitize(name string) string
}

// Recorder は認証結果のメトリクスを記録するインターフェース。
type Recorder interface {
	RecordSignup(outcome string)
	RecordSignin(method, outcome string)
	RecordAccountCreated(source string)
}

// SigninMethod はサインインの方式を表す。
// ByPasswordとByVerifiedAssertionのいずれか。
type SigninMethod interface {
	signinMethod() string
}

// ByPassword はメールアドレスとパスワードによるサインイン。
type ByPassword struct {
	Email    string
	Password string
}

// ByVerifiedAssertion は外部IdPが検証済みのメールアドレスによるサインイン。
// パスワードの照合は行わず、未登録の場合はアカウントを自動作成する。
type ByVerifiedAssertion struct {
	Email    string
	Name     string
	PhotoURL string
}

func (ByPassword) signinMethod() string          { return "password" }
func (ByVerifiedAssertion) signinMethod() string { return "google" }

// SignupInput はサインアップの入力。
type SignupInput struct {
	Name     string
	Email    string
	Password string
}

// SigninResult はサインインの結果。
type SigninResult struct {
	User    *model.User
	Session *model.Session
	Created bool // 連携IdPによるサインインでアカウントを新規作成した場合true
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo  repository.UserRepository
	hasher    PasswordHasher
	issuer    SessionIssuer
	urlGuard  URLValidator
	sanitizer NameSanitizer
	recorder  Recorder
}

// NewService はServiceを生成する。recorderがnilの場合はメトリクスを記録しない。
func NewService(
	userRepo repository.UserRepository,
	hasher PasswordHasher,
	issuer SessionIssuer,
	urlGuard URLValidator,
	sanitizer NameSanitizer,
	recorder Recorder,
) *Service {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Service{
		userRepo:  userRepo,
		hasher:    hasher,
		issuer:    issuer,
		urlGuard:  urlGuard,
		sanitizer: sanitizer,
		recorder:  recorder,
	}
}

// Signup はアカウントを作成する。セッションは発行しない。
func (s *Service) Signup(ctx context.Context, input SignupInput) (*model.User, error) {
	user, err := s.signup(ctx, input)
	s.recorder.RecordSignup(outcomeOf(err))
	return user, err
}

func (s *Service) signup(ctx context.Context, input SignupInput) (*model.User, error) {
	if input.Name == "" || input.Email == "" || input.Password == "" {
		return nil, model.NewBadRequestError("All fields are required")
	}

	email, err := security.NormalizeEmail(input.Email)
	if err != nil {
		return nil, model.NewInvalidEmailError(input.Email)
	}

	name := s.sanitizer.Sanitize(input.Name)
	if name == "" {
		return nil, model.NewBadRequestError("Name must contain visible characters")
	}
	if utf8.RuneCountInString(name) > model.MaxNameLength {
		return nil, model.NewBadRequestError(fmt.Sprintf("Name must be at most %d characters", model.MaxNameLength))
	}

	digest, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Name:     name,
		Email:    email,
		Password: digest,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewEmailAlreadyExistsError()
		}
		if errors.Is(err, repository.ErrValueTooLong) {
			return nil, model.NewBadRequestError("Name or email is too long")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user signed up", slog.String("user_id", user.ID))
	s.recorder.RecordAccountCreated("signup")
	return user, nil
}

// Signin はサインイン方式に応じて認証し、セッションを発行する。
func (s *Service) Signin(ctx context.Context, method SigninMethod) (*SigninResult, error) {
	var (
		result *SigninResult
		err    error
	)
	switch m := method.(type) {
	case ByPassword:
		result, err = s.signinByPassword(ctx, m)
	case ByVerifiedAssertion:
		result, err = s.signinByAssertion(ctx, m)
	default:
		return nil, fmt.Errorf("unsupported signin method %T", method)
	}
	s.recorder.RecordSignin(method.signinMethod(), outcomeOf(err))
	return result, err
}

// signinByPassword はパスワードを照合してセッションを発行する。
// 未登録のメールアドレスは404、パスワード不一致は401とする。
func (s *Service) signinByPassword(ctx context.Context, m ByPassword) (*SigninResult, error) {
	if m.Email == "" || m.Password == "" {
		return nil, model.NewBadRequestError("Email and password are required")
	}

	email, err := security.NormalizeEmail(m.Email)
	if err != nil {
		return nil, model.NewInvalidEmailError(m.Email)
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewInvalidCredentialsError()
	}

	if !s.hasher.Verify(m.Password, user.Password) {
		return nil, model.NewInvalidPasswordError()
	}

	return s.startSession(user, false)
}

// signinByAssertion は検証済みのメールアドレスでサインインする。
// 未登録の場合はアカウントを作成する。
func (s *Service) signinByAssertion(ctx context.Context, m ByVerifiedAssertion) (*SigninResult, error) {
	if m.Email == "" {
		return nil, model.NewBadRequestError("Email is required")
	}

	email, err := security.NormalizeEmail(m.Email)
	if err != nil {
		return nil, model.NewInvalidEmailError(m.Email)
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user != nil {
		slog.Info("existing user signed in via identity provider", slog.String("user_id", user.ID))
		return s.startSession(user, false)
	}

	user, created, err := s.createFederatedUser(ctx, email, m)
	if err != nil {
		return nil, err
	}
	return s.startSession(user, created)
}

// createFederatedUser は連携IdPの情報からアカウントを作成する。
// 同じメールアドレスの同時作成に負けた場合は、先に作成されたレコードを再取得して使う。
func (s *Service) createFederatedUser(ctx context.Context, email string, m ByVerifiedAssertion) (*model.User, bool, error) {
	handle, err := generateHandle(s.sanitizer.Sanitize(m.Name))
	if err != nil {
		return nil, false, fmt.Errorf("failed to generate handle: %w", err)
	}

	throwaway, err := generatePassword()
	if err != nil {
		return nil, false, fmt.Errorf("failed to generate password: %w", err)
	}
	digest, err := s.hasher.Hash(throwaway)
	if err != nil {
		return nil, false, err
	}

	picture := ""
	if m.PhotoURL != "" {
		if err := s.urlGuard.ValidateURL(m.PhotoURL); err != nil {
			slog.Warn("discarding unsafe profile picture URL",
				slog.String("email", email),
				slog.String("error", err.Error()),
			)
		} else {
			picture = m.PhotoURL
		}
	}

	user := &model.User{
		Name:           handle,
		Email:          email,
		Password:       digest,
		ProfilePicture: picture,
	}
	err = s.userRepo.Create(ctx, user)
	if errors.Is(err, repository.ErrDuplicateEmail) {
		existing, findErr := s.userRepo.FindByEmail(ctx, email)
		if findErr != nil {
			return nil, false, fmt.Errorf("failed to find user: %w", findErr)
		}
		if existing == nil {
			return nil, false, fmt.Errorf("user %s vanished after duplicate insert", email)
		}
		return existing, false, nil
	}
	if errors.Is(err, repository.ErrValueTooLong) {
		return nil, false, model.NewBadRequestError("Name or email is too long")
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("new user created via identity provider", slog.String("user_id", user.ID))
	s.recorder.RecordAccountCreated("google")
	return user, true, nil
}

// startSession はユーザーのセッションを発行する。
func (s *Service) startSession(user *model.User, created bool) (*SigninResult, error) {
	session, err := s.issuer.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session: %w", err)
	}
	return &SigninResult{User: user, Session: session, Created: created}, nil
}

// CurrentUser はセッションのユーザーIDからユーザーを取得する。
func (s *Service) CurrentUser(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, model.NewUnauthorizedError()
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// handleSuffixDigits はハンドルに付加する乱数の桁数。
const handleSuffixDigits = 4

// generateHandle は表示名から空白を除いて小文字化し、4桁のランダムな数字を付加する。
// 結果がMaxNameLengthに収まるよう、元の部分はrune単位で切り詰める。
func generateHandle(name string) (string, error) {
	base := strings.ToLower(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, name))
	if base == "" {
		base = "user"
	}
	if runes := []rune(base); len(runes) > model.MaxNameLength-handleSuffixDigits {
		base = string(runes[:model.MaxNameLength-handleSuffixDigits])
	}

	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d", base, n.Int64()), nil
}

// generatePassword は連携IdPユーザー用の使い捨てパスワードを生成する。
// 利用者には開示しない。
func generatePassword() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// outcomeOf はエラーをメトリクスのラベル値に変換する。
func outcomeOf(err error) string {
	if err == nil {
		return "success"
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return strings.ToLower(apiErr.Code)
	}
	return "error"
}

type noopRecorder struct{}

func (noopRecorder) RecordSignup(string)         {}
func (noopRecorder) RecordSignin(string, string) {}
func (noopRecorder) RecordAccountCreated(string) {}
