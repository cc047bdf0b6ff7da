// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/ishit08/chat-web/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// ListExcept は指定ID以外の全ユーザーを名前昇順で返す。
	// 新規チャット作成モーダルの連絡先一覧に使用する。
	ListExcept(ctx context.Context, excludeID string) ([]*model.User, error)

	// UpsertProfile はユーザーのプロフィール（名前・電話番号）を冪等に登録する。
	// 既存レコードがあれば更新、なければ作成する。
	UpsertProfile(ctx context.Context, user *model.User) error
}

// SessionRepository はセッションデータの永続化インターフェース。
// セッションの発行は外部の認証フローが行うため、参照と削除のみを提供する。
type SessionRepository interface {
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// ChatRepository はチャットデータの永続化インターフェース。
type ChatRepository interface {
	// CreateWithMembers はチャットと初期メンバーを同一トランザクションで作成し、
	// 採番されたチャットIDを返す。
	CreateWithMembers(ctx context.Context, memberIDs []string) (string, error)

	// Exists は指定IDのチャットが存在するかを返す。
	Exists(ctx context.Context, id string) (bool, error)
}

// MemberWithName はメンバーシップ行と表示名・アバターを結合した構造体。
// JOIN結果のユーザー情報は常に「先頭または無し」に正規化される。
type MemberWithName struct {
	ChatID    string
	UserID    string
	Name      string
	AvatarURL string
}

// MemberRepository はチャットメンバーシップの永続化インターフェース。
type MemberRepository interface {
	// ListChatIDsByUser は指定ユーザーが所属するチャットID一覧を返す。
	ListChatIDsByUser(ctx context.Context, userID string) ([]string, error)

	// ListByChat は指定チャットのメンバーを表示名・アバター付きで返す。
	ListByChat(ctx context.Context, chatID string) ([]MemberWithName, error)

	// ListPairRows は参加者がaまたはbであるメンバーシップ行を返す。
	// 1対1チャットの重複判定（チャットごとの件数==2ヒューリスティック）に使用する。
	ListPairRows(ctx context.Context, a, b string) ([]model.ChatMember, error)

	// BulkInsert は指定チャットに複数ユーザーを一括追加する。
	BulkInsert(ctx context.Context, chatID string, userIDs []string) error

	// BulkDelete は指定チャットから複数ユーザーを一括削除する。
	BulkDelete(ctx context.Context, chatID string, userIDs []string) error
}

// MessageRepository はメッセージデータの永続化インターフェース。
type MessageRepository interface {
	// ListByChat は指定チャットの全メッセージをcreated_at昇順で返す。
	ListByChat(ctx context.Context, chatID string) ([]model.Message, error)

	// LastByChat は指定チャットの最新メッセージを返す。存在しない場合はnilを返す。
	LastByChat(ctx context.Context, chatID string) (*model.Message, error)

	// FindByID は指定IDのメッセージを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Message, error)

	// Insert はメッセージを挿入し、採番されたIDと作成時刻を書き戻す。
	Insert(ctx context.Context, msg *model.Message) error

	// UpdateAttachmentState はメッセージの添付ファイル処理状態を更新する。
	UpdateAttachmentState(ctx context.Context, id string, state model.AttachmentState) error
}

// AttachmentRepository は添付ファイルメタデータの永続化インターフェース。
type AttachmentRepository interface {
	// ListByMessageIDs は指定メッセージ群の添付ファイルを1回のクエリで取得し、
	// メッセージIDごとにバケット化して返す。
	ListByMessageIDs(ctx context.Context, messageIDs []string) (map[string][]model.Attachment, error)

	// Insert は添付ファイルレコードを挿入し、採番されたIDを書き戻す。
	Insert(ctx context.Context, att *model.Attachment) error
}
