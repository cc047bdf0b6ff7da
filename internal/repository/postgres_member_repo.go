package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/ishit08/chat-web/internal/model"
)

// PostgresMemberRepo はPostgreSQLを使用したチャットメンバーシップリポジトリ。
type PostgresMemberRepo struct {
	db *sql.DB
}

// NewPostgresMemberRepo はPostgresMemberRepoを生成する。
func NewPostgresMemberRepo(db *sql.DB) *PostgresMemberRepo {
	return &PostgresMemberRepo{db: db}
}

// ListChatIDsByUser は指定ユーザーが所属するチャットID一覧を返す。
func (r *PostgresMemberRepo) ListChatIDsByUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT chat_id FROM chat_members WHERE user_id = $1 ORDER BY created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat IDs: %w", err)
	}
	defer rows.Close()

	var chatIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan chat ID: %w", err)
		}
		chatIDs = append(chatIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chat ID rows: %w", err)
	}

	return chatIDs, nil
}

// ListByChat は指定チャットのメンバーを表示名・アバター付きで返す。
// LEFT JOINのため、ユーザーレコードが無いメンバーは空の表示名になる
// （呼び出し側で「先頭または無し」のセマンティクスに正規化済み）。
func (r *PostgresMemberRepo) ListByChat(ctx context.Context, chatID string) ([]MemberWithName, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT cm.chat_id, cm.user_id, COALESCE(u.name, ''), COALESCE(u.avatar_url, '')
		 FROM chat_members cm
		 LEFT JOIN users u ON u.id = cm.user_id
		 WHERE cm.chat_id = $1
		 ORDER BY cm.created_at ASC`,
		chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat members: %w", err)
	}
	defer rows.Close()

	var members []MemberWithName
	for rows.Next() {
		var m MemberWithName
		if err := rows.Scan(&m.ChatID, &m.UserID, &m.Name, &m.AvatarURL); err != nil {
			return nil, fmt.Errorf("failed to scan member row: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate member rows: %w", err)
	}

	return members, nil
}

// ListPairRows は参加者がaまたはbであるメンバーシップ行を返す。
func (r *PostgresMemberRepo) ListPairRows(ctx context.Context, a, b string) ([]model.ChatMember, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT chat_id, user_id, created_at
		 FROM chat_members
		 WHERE user_id = ANY($1)`,
		pq.Array([]string{a, b}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list pair membership rows: %w", err)
	}
	defer rows.Close()

	var members []model.ChatMember
	for rows.Next() {
		var m model.ChatMember
		if err := rows.Scan(&m.ChatID, &m.UserID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan membership row: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate membership rows: %w", err)
	}

	return members, nil
}

// BulkInsert は指定チャットに複数ユーザーを一括追加する。
func (r *PostgresMemberRepo) BulkInsert(ctx context.Context, chatID string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO chat_members (chat_id, user_id)
		 SELECT $1, unnest($2::uuid[])
		 ON CONFLICT (chat_id, user_id) DO NOTHING`,
		chatID, pq.Array(userIDs),
	)
	if err != nil {
		return fmt.Errorf("failed to bulk insert chat members: %w", err)
	}
	return nil
}

// BulkDelete は指定チャットから複数ユーザーを一括削除する。
func (r *PostgresMemberRepo) BulkDelete(ctx context.Context, chatID string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM chat_members WHERE chat_id = $1 AND user_id = ANY($2)`,
		chatID, pq.Array(userIDs),
	)
	if err != nil {
		return fmt.Errorf("failed to bulk delete chat members: %w", err)
	}
	return nil
}

// compile-time interface check
var _ MemberRepository = (*PostgresMemberRepo)(nil)
