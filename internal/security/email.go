package security

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"golang.org/x/net/idna"
)

// ErrInvalidEmail はメールアドレスとして解釈できない入力を表す。
var ErrInvalidEmail = errors.New("invalid email address")

// MaxEmailLength はRFC 5321で許容されるアドレスの最大長（バイト）。
const MaxEmailLength = 254

// NormalizeEmail はメールアドレスを一意キーとして比較できる形に正規化する。
// 前後の空白を除去し、全体を小文字化し、ドメインをIDNA(Punycode)のASCII表現に変換する。
func NormalizeEmail(raw string) (string, error) {
	addr := strings.TrimSpace(raw)

	at := strings.LastIndex(addr, "@")
	if at <= 0 || at == len(addr)-1 {
		return "", ErrInvalidEmail
	}
	local, domain := addr[:at], addr[at+1:]

	asciiDomain, err := idna.Lookup.ToASCII(domain)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEmail, err)
	}

	normalized := strings.ToLower(local) + "@" + strings.ToLower(asciiDomain)
	if len(normalized) > MaxEmailLength {
		return "", ErrInvalidEmail
	}

	// 表示名付きの形式（"Ada <a@x.com>"）は受け付けない
	parsed, err := mail.ParseAddress(normalized)
	if err != nil || parsed.Address != normalized {
		return "", ErrInvalidEmail
	}

	return normalized, nil
}
