package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ishit08/chat-web/internal/demo"
	"github.com/ishit08/chat-web/internal/metrics"
	"github.com/ishit08/chat-web/internal/model"
	"github.com/ishit08/chat-web/internal/realtime"
	"github.com/ishit08/chat-web/internal/repository"
)

// Factory はチャットIDに応じてデモ用・永続化用のControllerを組み立てる。
// デモチャットはインメモリストアを履歴・フィード両方に使い、ポーリングを行わない。
// 永続化チャットはリポジトリを履歴に、Hubをフィードに使い、ポーリングで補完する。
type Factory struct {
	catalog        *demo.Catalog
	store          *demo.Store
	hub            *realtime.Hub
	chatRepo       repository.ChatRepository
	messageRepo    repository.MessageRepository
	attachmentRepo repository.AttachmentRepository
	registry       *Registry
	pollInterval   time.Duration
	collector      metrics.MetricsCollector
	logger         *slog.Logger
}

// NewFactory はFactoryを生成する。
func NewFactory(
	catalog *demo.Catalog,
	store *demo.Store,
	hub *realtime.Hub,
	chatRepo repository.ChatRepository,
	messageRepo repository.MessageRepository,
	attachmentRepo repository.AttachmentRepository,
	registry *Registry,
	pollInterval time.Duration,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Factory {
	return &Factory{
		catalog:        catalog,
		store:          store,
		hub:            hub,
		chatRepo:       chatRepo,
		messageRepo:    messageRepo,
		attachmentRepo: attachmentRepo,
		registry:       registry,
		pollInterval:   pollInterval,
		collector:      collector,
		logger:         logger,
	}
}

// LoadHistory は購読を確立せずにメッセージ履歴と添付ファイルを一括取得する。
// 一覧表示の初期ロードに使用する。存在しない永続化チャットにはCHAT_NOT_FOUNDを返す。
func (f *Factory) LoadHistory(ctx context.Context, chatID string) ([]model.Message, map[string][]model.Attachment, error) {
	var (
		history     HistoryLoader
		attachments AttachmentLoader
	)
	if f.catalog.IsDemo(chatID) {
		history = f.store
		attachments = f.store
	} else {
		exists, err := f.chatRepo.Exists(ctx, chatID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to check chat existence: %w", err)
		}
		if !exists {
			return nil, nil, model.NewChatNotFoundError(chatID)
		}
		history = f.messageRepo
		attachments = f.attachmentRepo
	}

	msgs, err := history.ListByChat(ctx, chatID)
	if err != nil {
		return nil, nil, fmt.Errorf("履歴の取得に失敗しました: %w", err)
	}
	if len(msgs) == 0 {
		return msgs, map[string][]model.Attachment{}, nil
	}

	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	atts, err := attachments.ListByMessageIDs(ctx, ids)
	if err != nil {
		// 添付ファイルの解決失敗はメッセージ一覧の表示を妨げない
		f.logger.Error("添付ファイルの取得に失敗しました",
			slog.String("chat_id", chatID),
			slog.String("error", err.Error()),
		)
		atts = map[string][]model.Attachment{}
	}
	return msgs, atts, nil
}

// OpenStream は指定チャットのストリームを確立し、Controllerと解放関数を返す。
// 解放関数は複数回呼んでも安全で、Close・登録解除・メトリクス記録を行う。
// 存在しない永続化チャットに対してはCHAT_NOT_FOUNDを返す。
func (f *Factory) OpenStream(ctx context.Context, chatID string) (*Controller, func(), error) {
	var cfg Config
	if f.catalog.IsDemo(chatID) {
		cfg = Config{
			ChatID:      chatID,
			History:     f.store,
			Attachments: f.store,
			Feed:        f.store,
			Logger:      f.logger,
			Collector:   f.collector,
		}
	} else {
		exists, err := f.chatRepo.Exists(ctx, chatID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to check chat existence: %w", err)
		}
		if !exists {
			return nil, nil, model.NewChatNotFoundError(chatID)
		}
		cfg = Config{
			ChatID:       chatID,
			History:      f.messageRepo,
			Attachments:  f.attachmentRepo,
			Feed:         f.hub,
			PollInterval: f.pollInterval,
			Logger:       f.logger,
			Collector:    f.collector,
		}
	}

	c, err := Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	unregister := f.registry.Register(c)
	if f.collector != nil {
		f.collector.RecordStreamOpened()
	}

	var once sync.Once
	teardown := func() {
		once.Do(func() {
			c.Close()
			unregister()
			if f.collector != nil {
				f.collector.RecordStreamClosed()
			}
		})
	}
	return c, teardown, nil
}
