// Package chat はチャットの作成・検索のドメインロジックを提供する。
package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ishit08/chat-web/internal/model"
	"github.com/ishit08/chat-web/internal/repository"
)

// Service はチャット作成のサービス層。
type Service struct {
	chatRepo   repository.ChatRepository
	memberRepo repository.MemberRepository
	userRepo   repository.UserRepository
}

// NewService はServiceを生成する。
func NewService(
	chatRepo repository.ChatRepository,
	memberRepo repository.MemberRepository,
	userRepo repository.UserRepository,
) *Service {
	return &Service{
		chatRepo:   chatRepo,
		memberRepo: memberRepo,
		userRepo:   userRepo,
	}
}

// FindOrCreateDirectChat は2者間の1対1チャットを検索し、
// 存在しなければ作成する。同じ組に対して繰り返し呼んでも
// 新しいチャットは増えない（冪等）。
//
// 既存判定: 参加者がどちらかであるメンバーシップ行をチャットごとに集計し、
// ちょうど2行（=両者のみ）のチャットを1対1チャットとみなす。
func (s *Service) FindOrCreateDirectChat(ctx context.Context, viewerID, otherID string) (string, error) {
	if viewerID == otherID {
		return "", model.NewDirectChatSelfError()
	}

	other, err := s.userRepo.FindByID(ctx, otherID)
	if err != nil {
		return "", fmt.Errorf("failed to find user: %w", err)
	}
	if other == nil {
		return "", model.NewUserNotFoundError()
	}

	existing, err := s.findDirectChat(ctx, viewerID, otherID)
	if err != nil {
		return "", err
	}
	if existing != "" {
		return existing, nil
	}

	chatID, err := s.chatRepo.CreateWithMembers(ctx, []string{viewerID, otherID})
	if err != nil {
		return "", fmt.Errorf("failed to create direct chat: %w", err)
	}

	slog.Info("1対1チャットを作成しました",
		slog.String("chat_id", chatID),
		slog.String("user_id", viewerID),
		slog.String("other_user_id", otherID),
	)
	return chatID, nil
}

// findDirectChat は両者のみが所属する既存チャットを探す。
// 見つからない場合は空文字列を返す。
func (s *Service) findDirectChat(ctx context.Context, a, b string) (string, error) {
	rows, err := s.memberRepo.ListPairRows(ctx, a, b)
	if err != nil {
		return "", fmt.Errorf("failed to list membership rows: %w", err)
	}

	type pair struct {
		count int
		hasA  bool
		hasB  bool
	}
	byChat := make(map[string]*pair)
	for _, row := range rows {
		p, ok := byChat[row.ChatID]
		if !ok {
			p = &pair{}
			byChat[row.ChatID] = p
		}
		p.count++
		if row.UserID == a {
			p.hasA = true
		}
		if row.UserID == b {
			p.hasB = true
		}
	}

	for chatID, p := range byChat {
		// 両者が所属し、かつその2行しかないチャットが1対1チャット。
		// 3人以上のグループチャットはcountが2を超えるため除外される。
		if p.count == 2 && p.hasA && p.hasB {
			return chatID, nil
		}
	}
	return "", nil
}
