// Package model はドメインモデルを定義する。
package model

import "time"

// MaxNameLength は表示名の最大文字数（rune数）。users.nameの列幅に合わせる。
const MaxNameLength = 255

// User はサービス利用ユーザーを表す。
// Passwordはbcryptダイジェストで、レスポンスには決してシリアライズしない。
type User struct {
	ID             string
	Name           string
	Email          string
	Password       string `json:"-"`
	ProfilePicture string // URLまたは data:<mime>;base64,... 形式。空はデフォルトアバター
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Session はユーザーに発行した署名付きセッション資格情報を表す。
// サーバー側にはセッションテーブルを持たず、署名と有効期限のみで有効性を判定する。
type Session struct {
	Token     string
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
