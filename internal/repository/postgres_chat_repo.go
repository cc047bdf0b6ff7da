package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresChatRepo はPostgreSQLを使用したチャットリポジトリ。
type PostgresChatRepo struct {
	db *sql.DB
}

// NewPostgresChatRepo はPostgresChatRepoを生成する。
func NewPostgresChatRepo(db *sql.DB) *PostgresChatRepo {
	return &PostgresChatRepo{db: db}
}

// CreateWithMembers はチャットと初期メンバーを同一トランザクションで作成する。
func (r *PostgresChatRepo) CreateWithMembers(ctx context.Context, memberIDs []string) (string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// チャットを作成（IDはDB側で採番）
	var chatID string
	err = tx.QueryRowContext(ctx,
		`INSERT INTO chats DEFAULT VALUES RETURNING id`,
	).Scan(&chatID)
	if err != nil {
		return "", fmt.Errorf("failed to insert chat: %w", err)
	}

	// 初期メンバーを追加
	for _, userID := range memberIDs {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO chat_members (chat_id, user_id) VALUES ($1, $2)`,
			chatID, userID,
		)
		if err != nil {
			return "", fmt.Errorf("failed to insert chat member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	return chatID, nil
}

// Exists は指定IDのチャットが存在するかを返す。
func (r *PostgresChatRepo) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM chats WHERE id = $1)`,
		id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check chat existence: %w", err)
	}
	return exists, nil
}

// compile-time interface check
var _ ChatRepository = (*PostgresChatRepo)(nil)
