// Package directory は会話一覧の構築（デモと永続化チャットのマージ）と
// 連絡先一覧の提供を行う。
package directory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ishit08/chat-web/internal/demo"
	"github.com/ishit08/chat-web/internal/model"
	"github.com/ishit08/chat-web/internal/repository"
)

// emptyPreview はメッセージが1件もないチャットのプレビュー文言。
const emptyPreview = "メッセージはまだありません"

// fallbackChatName は相手メンバーの表示名が解決できない場合のチャット名。
const fallbackChatName = "チャット"

// Service は会話一覧と連絡先一覧を構築するサービス層。
type Service struct {
	catalog     *demo.Catalog
	store       *demo.Store
	memberRepo  repository.MemberRepository
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
}

// NewService はServiceを生成する。
func NewService(
	catalog *demo.Catalog,
	store *demo.Store,
	memberRepo repository.MemberRepository,
	messageRepo repository.MessageRepository,
	userRepo repository.UserRepository,
) *Service {
	return &Service{
		catalog:     catalog,
		store:       store,
		memberRepo:  memberRepo,
		messageRepo: messageRepo,
		userRepo:    userRepo,
	}
}

// ChatList は会話一覧とその初期選択を表す。
type ChatList struct {
	Chats []model.Chat
	// DefaultChatID は初期選択すべきチャットID。一覧が空の場合は空文字列。
	DefaultChatID string
}

// LoadChats は指定ユーザーの会話一覧を構築する。
//
// マージ規則: デモチャットのうち永続化側に同一IDが存在しないものを先頭に置き、
// その後ろに永続化チャットを並べる。同一IDがデモと永続化の両方に存在する場合は
// 永続化側だけが残る（一覧内でIDは一意）。永続化チャットの表示情報の解決失敗は
// 一覧全体を失敗させず、フォールバック値で埋める。
func (s *Service) LoadChats(ctx context.Context, userID string) (*ChatList, error) {
	chatIDs, err := s.memberRepo.ListChatIDsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat memberships: %w", err)
	}

	persistedIDs := make(map[string]struct{}, len(chatIDs))
	for _, id := range chatIDs {
		persistedIDs[id] = struct{}{}
	}

	chats := make([]model.Chat, 0, len(s.catalog.Chats)+len(chatIDs))
	for _, c := range s.catalog.Chats {
		if _, shadowed := persistedIDs[c.ID]; shadowed {
			continue
		}
		// セッション中に送信されたデモメッセージをプレビューに反映する
		if last := s.store.Last(c.ID); last != nil && last.CreatedAt.After(c.LastMessageTime) {
			c.LastMessage = last.Content
			c.LastMessageTime = last.CreatedAt
		}
		chats = append(chats, c)
	}

	for _, chatID := range chatIDs {
		chats = append(chats, s.buildPersistedChat(ctx, chatID, userID))
	}

	return &ChatList{
		Chats:         chats,
		DefaultChatID: s.defaultChatID(chats),
	}, nil
}

// buildPersistedChat は永続化チャット1件の表示情報を解決する。
// 名前・プレビューの解決失敗はログのみで、フォールバック値を使う。
func (s *Service) buildPersistedChat(ctx context.Context, chatID, viewerID string) model.Chat {
	chat := model.Chat{
		ID:          chatID,
		Name:        fallbackChatName,
		LastMessage: emptyPreview,
		Source:      model.ChatSourcePersisted,
	}

	members, err := s.memberRepo.ListByChat(ctx, chatID)
	if err != nil {
		slog.Warn("チャットメンバーの取得に失敗しました",
			slog.String("chat_id", chatID),
			slog.String("error", err.Error()),
		)
	} else {
		// 表示名は自分以外の先頭メンバーから取る
		for _, m := range members {
			if m.UserID == viewerID {
				continue
			}
			if m.Name != "" {
				chat.Name = m.Name
			}
			chat.AvatarURL = m.AvatarURL
			break
		}
	}

	last, err := s.messageRepo.LastByChat(ctx, chatID)
	if err != nil {
		slog.Warn("最新メッセージの取得に失敗しました",
			slog.String("chat_id", chatID),
			slog.String("error", err.Error()),
		)
	} else if last != nil {
		chat.LastMessage = last.Content
		chat.LastMessageTime = last.CreatedAt
	}

	return chat
}

// defaultChatID は初期選択すべきチャットIDを決める。
// カタログのデフォルトが一覧に存在すればそれを、なければ先頭を選ぶ。
func (s *Service) defaultChatID(chats []model.Chat) string {
	if len(chats) == 0 {
		return ""
	}
	for _, c := range chats {
		if c.ID == s.catalog.DefaultChatID {
			return c.ID
		}
	}
	return chats[0].ID
}

// Contacts は新規チャット作成・メンバー管理に使う連絡先一覧を返す。
// 登録済みユーザー（自分を除く）の後ろにデモ連絡先を付加する。
func (s *Service) Contacts(ctx context.Context, viewerID string) ([]model.User, error) {
	users, err := s.userRepo.ListExcept(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	contacts := make([]model.User, 0, len(users)+len(s.catalog.Contacts))
	for _, u := range users {
		contacts = append(contacts, *u)
	}
	contacts = append(contacts, s.catalog.Contacts...)
	return contacts, nil
}
