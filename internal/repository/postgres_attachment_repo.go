package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ishit08/chat-web/internal/model"
)

// PostgresAttachmentRepo はPostgreSQLを使用した添付ファイルリポジトリ。
type PostgresAttachmentRepo struct {
	db *sql.DB
}

// NewPostgresAttachmentRepo はPostgresAttachmentRepoを生成する。
func NewPostgresAttachmentRepo(db *sql.DB) *PostgresAttachmentRepo {
	return &PostgresAttachmentRepo{db: db}
}

// ListByMessageIDs は指定メッセージ群の添付ファイルを1回のクエリで取得し、
// メッセージIDごとにバケット化して返す。
func (r *PostgresAttachmentRepo) ListByMessageIDs(ctx context.Context, messageIDs []string) (map[string][]model.Attachment, error) {
	result := make(map[string][]model.Attachment)
	if len(messageIDs) == 0 {
		return result, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, message_id, file_name, file_type, file_size, file_url, created_at
		 FROM attachments
		 WHERE message_id = ANY($1)
		 ORDER BY created_at ASC`,
		pq.Array(messageIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a model.Attachment
		if err := rows.Scan(&a.ID, &a.MessageID, &a.FileName, &a.FileType, &a.FileSize, &a.FileURL, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attachment row: %w", err)
		}
		result[a.MessageID] = append(result[a.MessageID], a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attachment rows: %w", err)
	}

	return result, nil
}

// Insert は添付ファイルレコードを挿入し、採番されたIDを書き戻す。
func (r *PostgresAttachmentRepo) Insert(ctx context.Context, att *model.Attachment) error {
	if att.ID == "" {
		att.ID = uuid.NewString()
	}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO attachments (id, message_id, file_name, file_type, file_size, file_url)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		att.ID, att.MessageID, att.FileName, att.FileType, att.FileSize, att.FileURL,
	).Scan(&att.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert attachment: %w", err)
	}
	return nil
}

// compile-time interface check
var _ AttachmentRepository = (*PostgresAttachmentRepo)(nil)
