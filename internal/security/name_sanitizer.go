package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// NameSanitizerService は表示名からマークアップを除去する機能のインターフェース。
type NameSanitizerService interface {
	// Sanitize はHTMLタグを全て除去し、前後の空白を取り除いたプレーンテキストを返す。
	// script, styleタグは内容ごと除去される。
	Sanitize(name string) string
}

// nameSanitizer はNameSanitizerServiceの実装。
// bluemondayのStrictPolicyは並行利用に安全。
type nameSanitizer struct {
	policy *bluemonday.Policy
}

// NewNameSanitizer はNameSanitizerServiceの新しいインスタンスを生成する。
func NewNameSanitizer() *nameSanitizer {
	return &nameSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// maxSanitizePasses はエンティティの多重エンコードを展開する回数の上限。
const maxSanitizePasses = 4

// Sanitize は表示名をプレーンテキストに正規化する。
// StrictPolicyはエンティティをエスケープして返すため、保存前に元の文字へ戻す。
// 戻した結果にタグが現れる場合があるので、変化がなくなるまで繰り返す。
// 上限回数で収束しない入力は空文字列とする。
func (s *nameSanitizer) Sanitize(name string) string {
	current := name
	for i := 0; i < maxSanitizePasses; i++ {
		next := html.UnescapeString(s.policy.Sanitize(current))
		if next == current {
			return strings.TrimSpace(next)
		}
		current = next
	}
	return ""
}
