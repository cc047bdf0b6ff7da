// Package identity はセッションからの本人解決とプロフィール管理を提供する。
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ishit08/chat-web/internal/model"
	"github.com/ishit08/chat-web/internal/repository"
)

// Resolver はセッションIDから操作主体のユーザーを解決する。
//
// 解決は3状態に分かれる:
//   - セッションが無効または期限切れ → UNAUTHENTICATED
//   - ユーザーは存在するがプロフィール未完了 → PROFILE_INCOMPLETE
//   - プロフィール完了済み → ユーザーを返す
type Resolver struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
}

// NewResolver はResolverを生成する。
func NewResolver(userRepo repository.UserRepository, sessionRepo repository.SessionRepository) *Resolver {
	return &Resolver{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
	}
}

// Resolve はセッションIDから認証済みユーザーを解決する。
// プロフィール未完了のユーザーも返す（呼び出し側がProfileCompleteで判定する）。
func (r *Resolver) Resolve(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, model.NewUnauthenticatedError()
	}

	session, err := r.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		// 期限切れセッションもFindByIDがnilを返す
		return nil, model.NewUnauthenticatedError()
	}

	user, err := r.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUnauthenticatedError()
	}

	return user, nil
}

// ResolveComplete はResolveに加えてプロフィール完了を要求する。
// 名前か電話番号が欠けている場合はPROFILE_INCOMPLETEを返す。
func (r *Resolver) ResolveComplete(ctx context.Context, sessionID string) (*model.User, error) {
	user, err := r.Resolve(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !user.ProfileComplete() {
		return nil, model.NewProfileIncompleteError()
	}
	return user, nil
}

// CompleteProfile はユーザーのプロフィール（名前・電話番号）を更新する。
// 両方の入力が必須で、前後の空白は除去される。
func (r *Resolver) CompleteProfile(ctx context.Context, userID, name, phoneNumber string) (*model.User, error) {
	name = strings.TrimSpace(name)
	phoneNumber = strings.TrimSpace(phoneNumber)
	if name == "" || phoneNumber == "" {
		return nil, model.NewProfileIncompleteError()
	}

	user, err := r.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	user.Name = name
	user.PhoneNumber = phoneNumber
	if err := r.userRepo.UpsertProfile(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to upsert profile: %w", err)
	}

	slog.Info("プロフィールを更新しました",
		slog.String("user_id", userID),
	)
	return user, nil
}

// Logout はセッションを破棄する。
// セッションが既に存在しない場合もエラーにしない。
func (r *Resolver) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	if err := r.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("ログアウトしました", slog.String("session_id", sessionID))
	return nil
}
