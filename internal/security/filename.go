package security

import (
	"path/filepath"
	"strings"
)

// maxFileNameLength はサニタイズ後のファイル名の最大長。
const maxFileNameLength = 200

// SanitizeFileName はアップロードファイル名をストレージキーとして
// 安全な形式に変換する。英数字・ドット・ハイフン・アンダースコア以外は
// アンダースコアに置換し、パス要素を除去する。
// 空になった場合は "file" を返す。
func SanitizeFileName(name string) string {
	// パストラバーサル対策: ディレクトリ要素を落とす
	name = filepath.Base(name)

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	sanitized := b.String()
	sanitized = strings.Trim(sanitized, ".")
	if len(sanitized) > maxFileNameLength {
		sanitized = sanitized[len(sanitized)-maxFileNameLength:]
	}
	if sanitized == "" {
		return "file"
	}
	return sanitized
}
