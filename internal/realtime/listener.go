package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/ishit08/chat-web/internal/model"
)

// notifyChannel はマイグレーションのトリガーが発行するNOTIFYチャネル名。
const notifyChannel = "message_inserted"

// pingInterval は通知が途絶えた場合の接続確認間隔。
const pingInterval = 90 * time.Second

// messagePayload はNOTIFYペイロードのJSON表現。
type messagePayload struct {
	ID              string `json:"id"`
	ChatID          string `json:"chat_id"`
	SenderID        string `json:"sender_id"`
	Content         string `json:"content"`
	AttachmentState string `json:"attachment_state"`
	CreatedAt       string `json:"created_at"`
}

// Listener はPostgreSQLのNOTIFYを受信し、Hubへ配信する。
// 再接続はpq.Listener自身が行う（最小/最大再接続間隔のみ指定する）。
type Listener struct {
	pl     *pq.Listener
	hub    *Hub
	logger *slog.Logger
}

// NewListener はListenerを生成する。
func NewListener(databaseURL string, minReconnect, maxReconnect time.Duration, hub *Hub, logger *slog.Logger) *Listener {
	pl := pq.NewListener(databaseURL, minReconnect, maxReconnect,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				logger.Error("リスナー接続イベント",
					slog.Int("event", int(ev)),
					slog.String("error", err.Error()),
				)
			}
		})

	return &Listener{
		pl:     pl,
		hub:    hub,
		logger: logger,
	}
}

// Start は通知の受信ループを開始する。
// コンテキストがキャンセルされるまでブロックする。
func (l *Listener) Start(ctx context.Context) error {
	if err := l.pl.Listen(notifyChannel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", notifyChannel, err)
	}

	l.logger.Info("変更フィードの受信を開始しました",
		slog.String("channel", notifyChannel),
	)

	for {
		select {
		case <-ctx.Done():
			if err := l.pl.Close(); err != nil {
				l.logger.Error("リスナーのクローズに失敗しました",
					slog.String("error", err.Error()),
				)
			}
			l.logger.Info("変更フィードの受信を停止しました")
			return nil

		case n := <-l.pl.Notify:
			// 再接続直後はnilが届く。履歴の補完はポーリング側が担う。
			if n == nil {
				continue
			}
			l.handleNotification(n.Extra)

		case <-time.After(pingInterval):
			go func() {
				if err := l.pl.Ping(); err != nil {
					l.logger.Error("リスナーのPingに失敗しました",
						slog.String("error", err.Error()),
					)
				}
			}()
		}
	}
}

// handleNotification はNOTIFYペイロードを解析し、Hubへ配信する。
// 解析失敗はログのみで処理を継続する（ポーリングが補完する）。
func (l *Listener) handleNotification(payload string) {
	var p messagePayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		l.logger.Error("通知ペイロードの解析に失敗しました",
			slog.String("error", err.Error()),
		)
		return
	}

	createdAt, err := time.Parse(time.RFC3339Nano, p.CreatedAt)
	if err != nil {
		l.logger.Error("通知ペイロードの時刻解析に失敗しました",
			slog.String("created_at", p.CreatedAt),
			slog.String("error", err.Error()),
		)
		return
	}

	l.hub.Dispatch(model.Message{
		ID:              p.ID,
		ChatID:          p.ChatID,
		SenderID:        p.SenderID,
		Content:         p.Content,
		AttachmentState: model.AttachmentState(p.AttachmentState),
		CreatedAt:       createdAt,
	})
}
