package demo

import (
	"context"
	"sync"

	"github.com/ishit08/chat-web/internal/model"
	"github.com/ishit08/chat-web/internal/realtime"
)

// Store はデモチャットのメッセージを保持するセッション寿命のインメモリストア。
// プロセス内で唯一の可変共有状態であり、送信パイプライン経由でのみ追記される。
// 購読インターフェースは永続化チャットの変更フィードと同一形状のため、
// ストリーム制御は両者を区別せずに扱える。
type Store struct {
	mu          sync.RWMutex
	messages    map[string][]model.Message
	attachments map[string][]model.Attachment
	hub         *realtime.Hub
}

// NewStore はカタログのシードメッセージで初期化したStoreを生成する。
func NewStore(catalog *Catalog) *Store {
	messages := make(map[string][]model.Message, len(catalog.Messages))
	for chatID, msgs := range catalog.Messages {
		copied := make([]model.Message, len(msgs))
		copy(copied, msgs)
		messages[chatID] = copied
	}

	return &Store{
		messages:    messages,
		attachments: make(map[string][]model.Attachment),
		hub:         realtime.NewHub(),
	}
}

// ListByChat は指定チャットのメッセージをcreated_at昇順で返す。
// ネットワークI/Oは発生しない。
func (s *Store) ListByChat(ctx context.Context, chatID string) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[chatID]
	copied := make([]model.Message, len(msgs))
	copy(copied, msgs)
	return copied, nil
}

// Last は指定チャットの最新メッセージを返す。存在しない場合はnilを返す。
func (s *Store) Last(chatID string) *model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[chatID]
	if len(msgs) == 0 {
		return nil
	}
	last := msgs[len(msgs)-1]
	return &last
}

// Append はメッセージを同期的に追記し、購読者へ配信する。
func (s *Store) Append(msg model.Message) {
	s.mu.Lock()
	s.messages[msg.ChatID] = append(s.messages[msg.ChatID], msg)
	s.mu.Unlock()

	s.hub.Dispatch(msg)
}

// AppendAttachment はメッセージに紐づく一時的な添付メタデータを追記する。
// プロセス外からは参照できず、セッション終了とともに消える。
func (s *Store) AppendAttachment(att model.Attachment) {
	s.mu.Lock()
	s.attachments[att.MessageID] = append(s.attachments[att.MessageID], att)
	s.mu.Unlock()
}

// ListByMessageIDs は指定メッセージ群の添付メタデータをメッセージIDごとに返す。
func (s *Store) ListByMessageIDs(ctx context.Context, messageIDs []string) (map[string][]model.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string][]model.Attachment)
	for _, id := range messageIDs {
		if atts, ok := s.attachments[id]; ok {
			copied := make([]model.Attachment, len(atts))
			copy(copied, atts)
			result[id] = copied
		}
	}
	return result, nil
}

// FindMessage はストア内のメッセージをIDで探す。見つからない場合はnilを返す。
func (s *Store) FindMessage(messageID string) *model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, msgs := range s.messages {
		for i := range msgs {
			if msgs[i].ID == messageID {
				found := msgs[i]
				return &found
			}
		}
	}
	return nil
}

// Subscribe は指定チャットへの追記イベントの購読を開始する。
func (s *Store) Subscribe(chatID string) (<-chan model.Message, func()) {
	return s.hub.Subscribe(chatID)
}
