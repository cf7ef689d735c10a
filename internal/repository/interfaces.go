// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/userauth/internal/model"
)

// ErrDuplicateEmail はメールアドレスの一意制約違反を表す。
var ErrDuplicateEmail = errors.New("email already exists")

// ErrValueTooLong は値が列の長さ制限を超えたことを表す。
var ErrValueTooLong = errors.New("value too long")

// ErrNotFound は対象レコードが存在しないことを表す。
var ErrNotFound = errors.New("record not found")

// UserPatch はユーザーの部分更新内容を表す。
// nilフィールドは変更せず、既存の値を維持する。
type UserPatch struct {
	Name           *string
	Email          *string
	Password       *string // ハッシュ化済みのダイジェスト
	ProfilePicture *string
}

// IsEmpty は更新対象のフィールドが1つもないかを返す。
func (p UserPatch) IsEmpty() bool {
	return p.Name == nil && p.Email == nil && p.Password == nil && p.ProfilePicture == nil
}

// UserRepository はユーザーデータの永続化インターフェース。
// メールアドレスをユニークキーとして扱う。
type UserRepository interface {
	// Create はユーザーを作成する。IDと作成日時はリポジトリが割り当てる。
	// メールアドレスが既に存在する場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Update は指定されたフィールドのみを単一ステートメントで更新し、更新後のユーザーを返す。
	// 見つからない場合はnilを返す。メールアドレスが衝突した場合はErrDuplicateEmailを返す。
	Update(ctx context.Context, id string, patch UserPatch) (*model.User, error)

	// DeleteByID は指定IDのユーザーを削除する。存在しない場合はErrNotFoundを返す。
	DeleteByID(ctx context.Context, id string) error
}
