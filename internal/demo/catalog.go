// Package demo はデモ用チャット・メッセージのカタログと
// セッション寿命のインメモリストアを提供する。
// カタログは起動時に構築されるイミュータブルな設定オブジェクトで、
// ディレクトリ・ストリーム・送信パイプラインに構築時に渡される。
package demo

import (
	"time"

	"github.com/ishit08/chat-web/internal/model"
)

// ChatIDPrefix はデモチャットIDの接頭辞。
const ChatIDPrefix = "demo-"

// Catalog はデモチャットの固定カタログを表す。
// プロセス起動からシャットダウンまで不変。
type Catalog struct {
	// Chats はデモチャットの一覧。永続化チャットと同一IDが存在する場合、
	// マージ時には永続化側が優先される。
	Chats []model.Chat
	// Messages はチャットIDごとのシードメッセージ。
	Messages map[string][]model.Message
	// Contacts はメンバー管理モーダルに表示するデモ連絡先。
	Contacts []model.User
	// DefaultChatID は初期選択すべきチャットID。
	// マージ結果に存在しない場合は先頭エントリが選択される。
	DefaultChatID string
}

// IsDemo は指定IDがカタログ内のデモチャットかを返す。
func (c *Catalog) IsDemo(chatID string) bool {
	for _, chat := range c.Chats {
		if chat.ID == chatID {
			return true
		}
	}
	return false
}

// ChatByID は指定IDのデモチャットを返す。見つからない場合はnilを返す。
func (c *Catalog) ChatByID(chatID string) *model.Chat {
	for i := range c.Chats {
		if c.Chats[i].ID == chatID {
			return &c.Chats[i]
		}
	}
	return nil
}

// DefaultCatalog は組み込みのデモカタログを返す。
func DefaultCatalog() *Catalog {
	base := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)

	chats := []model.Chat{
		{
			ID:              "demo-el-centro",
			Name:            "Test El Centro",
			LastMessage:     "Roshnag Airtel, Roshnag Jio, Bharat Kumar Ramesh, Periskope",
			LastMessageTime: base.Add(26 * time.Hour),
			Source:          model.ChatSourceDemo,
		},
		{
			ID:              "demo-yasin",
			Name:            "Yasin 3",
			LastMessage:     "First Bulk Message",
			LastMessageTime: base.Add(20 * time.Hour),
			Source:          model.ChatSourceDemo,
		},
		{
			ID:              "demo-skope",
			Name:            "Test Skope Final 5",
			LastMessage:     "This doesn't go on Tuesday...",
			LastMessageTime: base.Add(3 * time.Hour),
			Source:          model.ChatSourceDemo,
		},
		{
			ID:              "demo-demo15",
			Name:            "Test Demo15",
			LastMessage:     "test 123",
			LastMessageTime: base.Add(time.Hour),
			Source:          model.ChatSourceDemo,
		},
	}

	messages := map[string][]model.Message{
		"demo-el-centro": {
			{
				ID:        "demo-el-centro-1",
				ChatID:    "demo-el-centro",
				SenderID:  "demo-user-roshnag",
				Content:   "CVFER",
				CreatedAt: base.Add(25 * time.Hour),
			},
			{
				ID:        "demo-el-centro-2",
				ChatID:    "demo-el-centro",
				SenderID:  "demo-user-roshnag",
				Content:   "CDERT",
				CreatedAt: base.Add(25*time.Hour + 10*time.Minute),
			},
			{
				ID:        "demo-el-centro-3",
				ChatID:    "demo-el-centro",
				SenderID:  "demo-user-bharat",
				Content:   "Hello, South Euna!",
				CreatedAt: base.Add(26 * time.Hour),
			},
		},
		"demo-yasin": {
			{
				ID:        "demo-yasin-1",
				ChatID:    "demo-yasin",
				SenderID:  "demo-user-yasin",
				Content:   "First Bulk Message",
				CreatedAt: base.Add(20 * time.Hour),
			},
		},
		"demo-skope": {
			{
				ID:        "demo-skope-1",
				ChatID:    "demo-skope",
				SenderID:  "demo-user-skope",
				Content:   "This doesn't go on Tuesday...",
				CreatedAt: base.Add(3 * time.Hour),
			},
		},
	}

	contacts := []model.User{
		{ID: "demo-user-roshnag", Email: "roshnag@example.com", Name: "Roshnag Airtel"},
		{ID: "demo-user-bharat", Email: "bharat@example.com", Name: "Bharat Kumar Ramesh"},
		{ID: "demo-user-yasin", Email: "yasin@example.com", Name: "Yasin 3"},
		{ID: "demo-user-skope", Email: "skope@example.com", Name: "Test Skope Final 5"},
	}

	return &Catalog{
		Chats:         chats,
		Messages:      messages,
		Contacts:      contacts,
		DefaultChatID: "demo-el-centro",
	}
}
