package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hitoshi/userauth/internal/model"
)

const (
	// SessionTTL はセッショントークンの有効期間。
	SessionTTL = time.Hour

	// tokenIssuer はJWTのissクレームに設定する値。
	tokenIssuer = "userauth"
)

// ErrInvalidToken はトークンの署名、アルゴリズム、発行者、有効期限のいずれかが不正な場合に返される。
var ErrInvalidToken = errors.New("invalid session token")

// TokenIssuer はHS256署名のJWTによるセッショントークンを発行、検証する。
// サーバー側にセッションは保存しないため、有効期限前の失効はできない。
type TokenIssuer struct {
	secret []byte
	now    func() time.Time
}

// NewTokenIssuer はTokenIssuerを生成する。secretは起動時に1度だけ読み込んだ署名鍵。
func NewTokenIssuer(secret string) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(secret),
		now:    time.Now,
	}
}

// Issue はユーザーIDをsubに持つセッショントークンを発行する。
// 発行時刻は秒単位に切り捨て、JWTのexpとCookieのExpiresを一致させる。
func (ti *TokenIssuer) Issue(userID string) (*model.Session, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required to issue a session")
	}

	issuedAt := ti.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(SessionTTL)

	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &model.Session{
		Token:     token,
		UserID:    userID,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// Validate はトークンを検証し、subに含まれるユーザーIDを返す。
func (ti *TokenIssuer) Validate(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return ti.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ti.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: empty subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}
