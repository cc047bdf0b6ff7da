// Package member はチャットメンバーシップの編集ロジックを提供する。
package member

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ishit08/chat-web/internal/demo"
	"github.com/ishit08/chat-web/internal/model"
	"github.com/ishit08/chat-web/internal/repository"
)

// Service はメンバーシップ編集のサービス層。
type Service struct {
	catalog    *demo.Catalog
	chatRepo   repository.ChatRepository
	memberRepo repository.MemberRepository
}

// NewService はServiceを生成する。
func NewService(catalog *demo.Catalog, chatRepo repository.ChatRepository, memberRepo repository.MemberRepository) *Service {
	return &Service{
		catalog:    catalog,
		chatRepo:   chatRepo,
		memberRepo: memberRepo,
	}
}

// ListMembers は指定チャットの現在のメンバー一覧を表示名付きで返す。
// デモチャットはカタログの連絡先を固定メンバーとして返す。
func (s *Service) ListMembers(ctx context.Context, chatID string) ([]repository.MemberWithName, error) {
	if s.catalog.IsDemo(chatID) {
		members := make([]repository.MemberWithName, 0, len(s.catalog.Contacts))
		for _, c := range s.catalog.Contacts {
			members = append(members, repository.MemberWithName{
				ChatID:    chatID,
				UserID:    c.ID,
				Name:      c.Name,
				AvatarURL: c.AvatarURL,
			})
		}
		return members, nil
	}

	exists, err := s.chatRepo.Exists(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to check chat existence: %w", err)
	}
	if !exists {
		return nil, model.NewChatNotFoundError(chatID)
	}

	return s.memberRepo.ListByChat(ctx, chatID)
}

// ApplyMembership は希望メンバー集合と現在のメンバー集合の差分を適用し、
// 適用後のメンバー一覧（表示名付き）を返す。
//
// デモチャットに対しては何も変更せず、現状のメンバー相当（空）を返す。
// 追加と削除は独立した2つの一括操作で、途中失敗時は部分適用のまま
// エラーを返す（呼び出し側での再実行で収束する）。
func (s *Service) ApplyMembership(ctx context.Context, chatID string, desiredIDs []string) ([]repository.MemberWithName, error) {
	if s.catalog.IsDemo(chatID) {
		// デモチャットのメンバーは固定。変更要求は無視する
		slog.Info("デモチャットのメンバー変更要求を無視しました",
			slog.String("chat_id", chatID),
		)
		return nil, nil
	}

	exists, err := s.chatRepo.Exists(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to check chat existence: %w", err)
	}
	if !exists {
		return nil, model.NewChatNotFoundError(chatID)
	}

	current, err := s.memberRepo.ListByChat(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to list current members: %w", err)
	}

	currentSet := make(map[string]struct{}, len(current))
	for _, m := range current {
		currentSet[m.UserID] = struct{}{}
	}
	desiredSet := make(map[string]struct{}, len(desiredIDs))
	for _, id := range desiredIDs {
		desiredSet[id] = struct{}{}
	}

	var toAdd []string
	for _, id := range desiredIDs {
		if _, ok := currentSet[id]; !ok {
			toAdd = append(toAdd, id)
		}
	}
	var toRemove []string
	for _, m := range current {
		if _, ok := desiredSet[m.UserID]; !ok {
			toRemove = append(toRemove, m.UserID)
		}
	}

	if len(toAdd) > 0 {
		if err := s.memberRepo.BulkInsert(ctx, chatID, toAdd); err != nil {
			return nil, fmt.Errorf("failed to add members: %w", err)
		}
	}
	if len(toRemove) > 0 {
		if err := s.memberRepo.BulkDelete(ctx, chatID, toRemove); err != nil {
			// 追加は適用済みの可能性がある。部分適用を明示してエラーを返す
			slog.Warn("メンバー削除に失敗しました（追加は適用済みの可能性があります）",
				slog.String("chat_id", chatID),
				slog.Int("added", len(toAdd)),
				slog.Int("remove_failed", len(toRemove)),
			)
			return nil, fmt.Errorf("failed to remove members: %w", err)
		}
	}

	if len(toAdd) > 0 || len(toRemove) > 0 {
		slog.Info("メンバーシップを更新しました",
			slog.String("chat_id", chatID),
			slog.Int("added", len(toAdd)),
			slog.Int("removed", len(toRemove)),
		)
	}

	// 適用後のメンバー一覧を表示名付きで再取得する
	updated, err := s.memberRepo.ListByChat(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to refetch members: %w", err)
	}
	return updated, nil
}
