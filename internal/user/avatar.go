package user

import (
	"encoding/base64"
	"mime"
	"strings"

	"github.com/hitoshi/userauth/internal/model"
)

// DefaultMaxImageSize はアップロード画像のデフォルトのサイズ上限（5MiB）。
const DefaultMaxImageSize int64 = 5 * 1024 * 1024

// ImageUpload はアップロードされたプロフィール画像。
// 保存はdata URIとして行い、元のバイト列は保持しない。
type ImageUpload struct {
	ContentType string
	Data        []byte
}

// mediaType はContent-Typeからパラメータを除いた小文字のMIMEタイプを返す。
func (img *ImageUpload) mediaType() string {
	mt, _, err := mime.ParseMediaType(img.ContentType)
	if err != nil {
		return ""
	}
	return strings.ToLower(mt)
}

// Validate は画像のMIMEタイプとサイズを検証する。
func (img *ImageUpload) Validate(maxSize int64) error {
	if !strings.HasPrefix(img.mediaType(), "image/") {
		return model.NewInvalidImageError(img.ContentType)
	}
	if int64(len(img.Data)) > maxSize {
		return model.NewImageTooLargeError(maxSize)
	}
	if len(img.Data) == 0 {
		return model.NewBadRequestError("Image file is empty")
	}
	return nil
}

// DataURI は画像を data:<mime>;base64,... 形式に変換する。
func (img *ImageUpload) DataURI() string {
	return "data:" + img.mediaType() + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}
