// Package security はアプリケーションのセキュリティ機能を提供する。
//
// MessageSanitizerService はチャットメッセージ本文をサニタイズし、
// XSS攻撃などのセキュリティリスクからユーザーを保護する。
// メッセージはプレーンテキストとして扱うため、bluemondayの
// StrictPolicyで全てのHTMLタグを除去する。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// MessageSanitizerService はメッセージ本文のサニタイズ機能のインターフェースを定義する。
// メッセージの保存前に使用される。
type MessageSanitizerService interface {
	// Sanitize はメッセージ本文から全てのHTMLタグを除去し、
	// 前後の空白を取り除いたプレーンテキストを返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(content string) string
}

// messageSanitizer はMessageSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type messageSanitizer struct {
	policy *bluemonday.Policy
}

// NewMessageSanitizer はMessageSanitizerServiceの新しいインスタンスを生成する。
// チャットメッセージはHTMLを許可しないため、StrictPolicy（全タグ除去）を使用する。
func NewMessageSanitizer() *messageSanitizer {
	return &messageSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はメッセージ本文をサニタイズしてプレーンテキストを返す。
func (s *messageSanitizer) Sanitize(content string) string {
	return strings.TrimSpace(s.policy.Sanitize(content))
}

// compile-time interface check
var _ MessageSanitizerService = (*messageSanitizer)(nil)
