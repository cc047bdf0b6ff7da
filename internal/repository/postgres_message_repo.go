package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/ishit08/chat-web/internal/model"
)

// PostgresMessageRepo はPostgreSQLを使用したメッセージリポジトリ。
type PostgresMessageRepo struct {
	db *sql.DB
}

// NewPostgresMessageRepo はPostgresMessageRepoを生成する。
func NewPostgresMessageRepo(db *sql.DB) *PostgresMessageRepo {
	return &PostgresMessageRepo{db: db}
}

// ListByChat は指定チャットの全メッセージをcreated_at昇順で返す。
func (r *PostgresMessageRepo) ListByChat(ctx context.Context, chatID string) ([]model.Message, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, chat_id, sender_id, content, attachment_state, created_at
		 FROM messages
		 WHERE chat_id = $1
		 ORDER BY created_at ASC`,
		chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.AttachmentState, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}

	return messages, nil
}

// LastByChat は指定チャットの最新メッセージを返す。存在しない場合はnilを返す。
func (r *PostgresMessageRepo) LastByChat(ctx context.Context, chatID string) (*model.Message, error) {
	m := &model.Message{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, chat_id, sender_id, content, attachment_state, created_at
		 FROM messages
		 WHERE chat_id = $1
		 ORDER BY created_at DESC
		 LIMIT 1`,
		chatID,
	).Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.AttachmentState, &m.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find last message: %w", err)
	}

	return m, nil
}

// FindByID は指定IDのメッセージを取得する。見つからない場合はnilを返す。
func (r *PostgresMessageRepo) FindByID(ctx context.Context, id string) (*model.Message, error) {
	m := &model.Message{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, chat_id, sender_id, content, attachment_state, created_at
		 FROM messages WHERE id = $1`,
		id,
	).Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.AttachmentState, &m.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find message by ID: %w", err)
	}

	return m, nil
}

// Insert はメッセージを挿入し、採番されたIDと作成時刻を書き戻す。
func (r *PostgresMessageRepo) Insert(ctx context.Context, msg *model.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO messages (id, chat_id, sender_id, content, attachment_state)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		msg.ID, msg.ChatID, msg.SenderID, msg.Content, msg.AttachmentState,
	).Scan(&msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// UpdateAttachmentState はメッセージの添付ファイル処理状態を更新する。
func (r *PostgresMessageRepo) UpdateAttachmentState(ctx context.Context, id string, state model.AttachmentState) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE messages SET attachment_state = $2 WHERE id = $1`,
		id, state,
	)
	if err != nil {
		return fmt.Errorf("failed to update attachment state: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("message not found: %s", id)
	}
	return nil
}

// compile-time interface check
var _ MessageRepository = (*PostgresMessageRepo)(nil)
