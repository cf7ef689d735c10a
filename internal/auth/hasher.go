package auth

import (
	"fmt"

	"github.com/hitoshi/userauth/internal/model"
	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost はbcryptのデフォルトコスト。
const DefaultBcryptCost = 10

// maxPasswordBytes はbcryptが扱える平文の最大バイト数。
// これを超える部分は切り捨てられてしまうため、ハッシュ化前に拒否する。
const maxPasswordBytes = 72

// PasswordHasher はパスワードの一方向ハッシュ化と照合のインターフェース。
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
}

// BcryptHasher はbcryptによるPasswordHasherの実装。
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher はBcryptHasherを生成する。
// bcrypt.MinCost未満のコストはDefaultBcryptCostに置き換える。
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash は平文をソルト付きでハッシュ化する。
// 同じ平文でも呼び出しごとに異なるダイジェストを返す。
func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	if len(plaintext) > maxPasswordBytes {
		return "", model.NewPasswordTooLongError()
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(digest), nil
}

// Verify は平文がダイジェストと一致するかを検証する。
func (h *BcryptHasher) Verify(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}

// compile-time interface check
var _ PasswordHasher = (*BcryptHasher)(nil)
