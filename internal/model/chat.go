// Package model はドメインモデルを定義する。
package model

import "time"

// ChatSource はチャットの由来を表す。
type ChatSource string

const (
	// ChatSourceDemo はプロセス内メモリのみに存在するデモチャット。
	ChatSourceDemo ChatSource = "demo"
	// ChatSourcePersisted はバックエンドに永続化されたチャット。
	ChatSourcePersisted ChatSource = "persisted"
)

// Chat は会話一覧に表示するチャットを表す。
// デモチャットと永続化チャットの2種類があり、同一IDが両方に存在する場合は
// 永続化側が優先される（ディレクトリのマージ不変条件）。
type Chat struct {
	ID              string
	Name            string
	LastMessage     string
	LastMessageTime time.Time
	AvatarURL       string
	Source          ChatSource
}

// ChatMember はチャットとユーザーの所属関係を表す。
// (ChatID, UserID) の組はユニーク。
type ChatMember struct {
	ChatID    string
	UserID    string
	CreatedAt time.Time
}

// AttachmentState はメッセージの添付ファイル処理状態を表す。
// メッセージ挿入→BLOBアップロード→添付レコード挿入の2相書き込みを
// 可視化するための明示的な状態フィールド。
type AttachmentState string

const (
	// AttachmentStateNone は添付ファイルなし。
	AttachmentStateNone AttachmentState = "none"
	// AttachmentStatePending はメッセージ挿入済みでアップロード待ち。
	AttachmentStatePending AttachmentState = "pending"
	// AttachmentStateComplete は添付ファイルの永続化が完了した状態。
	AttachmentStateComplete AttachmentState = "complete"
	// AttachmentStateFailed はアップロードまたはレコード挿入に失敗した状態。
	// メッセージ本体は残り、再試行が可能。
	AttachmentStateFailed AttachmentState = "failed"
)

// Message はチャット内のメッセージを表す。
// デモチャットのメッセージはプロセス内メモリのみに存在し、
// 永続化チャットのメッセージはcreated_at昇順で永続化される。
type Message struct {
	ID              string
	ChatID          string
	SenderID        string
	Content         string
	AttachmentState AttachmentState
	CreatedAt       time.Time
}

// Attachment はメッセージに紐づく添付ファイルのメタデータを表す。
// 所有メッセージの永続化後に作成されるため、メッセージだけが存在する
// 期間が本質的に存在する（AttachmentStateで可視化される）。
type Attachment struct {
	ID        string
	MessageID string
	FileName  string
	FileType  string
	FileSize  int64
	FileURL   string
	CreatedAt time.Time
}
