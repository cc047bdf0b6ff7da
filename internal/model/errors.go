// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, chat, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthenticated   = "UNAUTHENTICATED"
	ErrCodeProfileIncomplete = "PROFILE_INCOMPLETE"
	ErrCodeChatNotFound      = "CHAT_NOT_FOUND"
	ErrCodeUserNotFound      = "USER_NOT_FOUND"
	ErrCodeEmptyMessage      = "EMPTY_MESSAGE"
	ErrCodeAttachmentTooBig  = "ATTACHMENT_TOO_LARGE"
	ErrCodeAttachmentType    = "ATTACHMENT_TYPE_NOT_ALLOWED"
	ErrCodeMessageNotFound   = "MESSAGE_NOT_FOUND"
	ErrCodeDirectChatSelf    = "DIRECT_CHAT_SELF"
	ErrCodeDemoChatReadOnly  = "DEMO_CHAT_READONLY"
)

// NewUnauthenticatedError は未認証エラーを生成する。
// 呼び出し側はログインフローへのリダイレクトを行う。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "認証されていません。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewProfileIncompleteError はプロフィール未完了エラーを生成する。
// 呼び出し側はプロフィール入力フローへのリダイレクトを行う。
func NewProfileIncompleteError() *APIError {
	return &APIError{
		Code:     ErrCodeProfileIncomplete,
		Message:  "プロフィールの入力が完了していません。",
		Category: "auth",
		Action:   "名前と電話番号を登録してください。",
	}
}

// NewChatNotFoundError はチャットが見つからない場合のエラーを生成する。
func NewChatNotFoundError(chatID string) *APIError {
	return &APIError{
		Code:     ErrCodeChatNotFound,
		Message:  fmt.Sprintf("指定されたチャットが見つかりません: %s", chatID),
		Category: "chat",
		Action:   "チャット一覧を再読み込みしてください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewEmptyMessageError は本文も添付もないメッセージ送信エラーを生成する。
func NewEmptyMessageError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyMessage,
		Message:  "メッセージ本文または添付ファイルを指定してください。",
		Category: "validation",
		Action:   "本文を入力するかファイルを添付してください。",
	}
}

// NewAttachmentTooLargeError は添付ファイルのサイズ超過エラーを生成する。
func NewAttachmentTooLargeError(size, limit int64) *APIError {
	return &APIError{
		Code:     ErrCodeAttachmentTooBig,
		Message:  fmt.Sprintf("添付ファイルが大きすぎます: %dバイト（上限%dバイト）", size, limit),
		Category: "validation",
		Action:   "50MB以下のファイルを選択してください。",
	}
}

// NewAttachmentTypeError は許可されていないファイル種別のエラーを生成する。
func NewAttachmentTypeError(fileType string) *APIError {
	return &APIError{
		Code:     ErrCodeAttachmentType,
		Message:  fmt.Sprintf("許可されていないファイル種別です: %s", fileType),
		Category: "validation",
		Action:   "画像（JPEG/PNG/GIF）、PDF、テキスト、動画（MP4/WebM/Ogg）のみ添付できます。",
	}
}

// NewMessageNotFoundError はメッセージが見つからない場合のエラーを生成する。
func NewMessageNotFoundError(messageID string) *APIError {
	return &APIError{
		Code:     ErrCodeMessageNotFound,
		Message:  fmt.Sprintf("指定されたメッセージが見つかりません: %s", messageID),
		Category: "chat",
		Action:   "メッセージIDを確認してください。",
	}
}

// NewDirectChatSelfError は自分自身との1対1チャット作成エラーを生成する。
func NewDirectChatSelfError() *APIError {
	return &APIError{
		Code:     ErrCodeDirectChatSelf,
		Message:  "自分自身とのチャットは作成できません。",
		Category: "validation",
		Action:   "別のユーザーを選択してください。",
	}
}

// NewDemoChatReadOnlyError はデモチャットに対する永続化操作のエラーを生成する。
func NewDemoChatReadOnlyError(chatID string) *APIError {
	return &APIError{
		Code:     ErrCodeDemoChatReadOnly,
		Message:  fmt.Sprintf("デモチャットにはこの操作を適用できません: %s", chatID),
		Category: "chat",
		Action:   "永続化されたチャットを選択してください。",
	}
}
