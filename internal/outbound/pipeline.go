// Package outbound はメッセージ送信パイプラインを提供する。
// 入力検証、添付ファイルのアップロード、メッセージの永続化を担う。
package outbound

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ishit08/chat-web/internal/demo"
	"github.com/ishit08/chat-web/internal/metrics"
	"github.com/ishit08/chat-web/internal/model"
	"github.com/ishit08/chat-web/internal/repository"
	"github.com/ishit08/chat-web/internal/security"
	"github.com/ishit08/chat-web/internal/storage"
	"github.com/ishit08/chat-web/internal/stream"
)

// allowedFileTypes は添付可能なMIMEタイプの許可リスト。
var allowedFileTypes = map[string]struct{}{
	"image/jpeg":      {},
	"image/png":       {},
	"image/gif":       {},
	"application/pdf": {},
	"text/plain":      {},
	"video/mp4":       {},
	"video/webm":      {},
	"video/ogg":       {},
}

// AttachmentInput は送信時の添付ファイル入力を表す。
type AttachmentInput struct {
	FileName string
	FileType string
	Size     int64
	Body     io.Reader
}

// Pipeline はメッセージ送信のサービス層。
//
// 永続化チャットへの送信は巻き戻しなしの2相書き込み:
//  1. メッセージ行を挿入する（添付ありの場合はpending状態）
//  2. 添付があればBLOBをアップロードし、添付レコードを挿入して
//     メッセージをcomplete状態に更新する
//
// 第2相の失敗はメッセージ本体を残したままfailed状態にし、
// RetryAttachmentによる再試行を可能にする。
type Pipeline struct {
	catalog        *demo.Catalog
	store          *demo.Store
	messageRepo    repository.MessageRepository
	attachmentRepo repository.AttachmentRepository
	blobStore      storage.BlobStore
	sanitizer      security.MessageSanitizerService
	registry       *stream.Registry
	collector      metrics.MetricsCollector

	maxAttachmentSize int64
}

// NewPipeline はPipelineを生成する。
func NewPipeline(
	catalog *demo.Catalog,
	store *demo.Store,
	messageRepo repository.MessageRepository,
	attachmentRepo repository.AttachmentRepository,
	blobStore storage.BlobStore,
	sanitizer security.MessageSanitizerService,
	registry *stream.Registry,
	collector metrics.MetricsCollector,
	maxAttachmentSize int64,
) *Pipeline {
	return &Pipeline{
		catalog:           catalog,
		store:             store,
		messageRepo:       messageRepo,
		attachmentRepo:    attachmentRepo,
		blobStore:         blobStore,
		sanitizer:         sanitizer,
		registry:          registry,
		collector:         collector,
		maxAttachmentSize: maxAttachmentSize,
	}
}

// Send はメッセージを送信する。
// 本文と添付の両方が空の場合はEMPTY_MESSAGEで拒否する。
// 添付ファイルは送信前にサイズ上限とMIMEタイプ許可リストで検証され、
// 違反時は一切の状態変更なしで拒否する。
func (p *Pipeline) Send(ctx context.Context, chatID, senderID, content string, att *AttachmentInput) (*model.Message, error) {
	start := time.Now()

	content = p.sanitizer.Sanitize(content)
	if content == "" && att == nil {
		p.collector.RecordSendFailure("empty_message")
		return nil, model.NewEmptyMessageError()
	}

	if att != nil {
		if err := p.validateAttachment(att); err != nil {
			p.collector.RecordSendFailure("attachment_validation")
			return nil, err
		}
	}

	var (
		msg *model.Message
		err error
	)
	if p.catalog.IsDemo(chatID) {
		msg, err = p.sendDemo(chatID, senderID, content, att)
	} else {
		msg, err = p.sendLive(ctx, chatID, senderID, content, att)
	}
	if err == nil {
		p.collector.RecordSendLatency(time.Since(start))
	}
	return msg, err
}

// validateAttachment は添付ファイルの事前検証を行う。
func (p *Pipeline) validateAttachment(att *AttachmentInput) error {
	if att.Size > p.maxAttachmentSize {
		return model.NewAttachmentTooLargeError(att.Size, p.maxAttachmentSize)
	}
	if _, ok := allowedFileTypes[att.FileType]; !ok {
		return model.NewAttachmentTypeError(att.FileType)
	}
	return nil
}

// sendDemo はデモチャットへの同期送信。ネットワークI/Oは発生しない。
// 添付はプロセス内のみの一時参照として保持する。
func (p *Pipeline) sendDemo(chatID, senderID, content string, att *AttachmentInput) (*model.Message, error) {
	now := time.Now()
	msg := model.Message{
		ID:              "local-" + uuid.NewString(),
		ChatID:          chatID,
		SenderID:        senderID,
		Content:         content,
		AttachmentState: model.AttachmentStateNone,
		CreatedAt:       now,
	}

	if att != nil {
		msg.AttachmentState = model.AttachmentStateComplete
		p.store.AppendAttachment(model.Attachment{
			ID:        "local-" + uuid.NewString(),
			MessageID: msg.ID,
			FileName:  security.SanitizeFileName(att.FileName),
			FileType:  att.FileType,
			FileSize:  att.Size,
			FileURL:   "local://" + msg.ID,
			CreatedAt: now,
		})
	}

	p.store.Append(msg)
	p.collector.RecordMessageSent("demo")
	return &msg, nil
}

// sendLive は永続化チャットへの2相送信。
func (p *Pipeline) sendLive(ctx context.Context, chatID, senderID, content string, att *AttachmentInput) (*model.Message, error) {
	state := model.AttachmentStateNone
	if att != nil {
		state = model.AttachmentStatePending
	}

	// 第1相: メッセージ行の挿入
	msg := &model.Message{
		ChatID:          chatID,
		SenderID:        senderID,
		Content:         content,
		AttachmentState: state,
	}
	if err := p.messageRepo.Insert(ctx, msg); err != nil {
		p.collector.RecordSendFailure("message_insert")
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}

	// 第2相: 添付ファイルの永続化
	if att != nil {
		if err := p.persistAttachment(ctx, msg, att); err != nil {
			// メッセージ本体は残す。failed状態は再試行の対象になる
			return msg, err
		}
	}

	p.collector.RecordMessageSent("persisted")
	return msg, nil
}

// RetryAttachment はfailed状態のメッセージに対する添付の再アップロード。
func (p *Pipeline) RetryAttachment(ctx context.Context, messageID string, att *AttachmentInput) (*model.Message, error) {
	if att == nil {
		return nil, model.NewEmptyMessageError()
	}
	if err := p.validateAttachment(att); err != nil {
		return nil, err
	}

	// デモチャットのメッセージは永続化対象外のため再試行できない
	if local := p.store.FindMessage(messageID); local != nil {
		return nil, model.NewDemoChatReadOnlyError(local.ChatID)
	}

	msg, err := p.messageRepo.FindByID(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to find message: %w", err)
	}
	if msg == nil {
		return nil, model.NewMessageNotFoundError(messageID)
	}
	if msg.AttachmentState != model.AttachmentStateFailed {
		// 既に完了済み、または添付のないメッセージには適用しない
		return nil, model.NewMessageNotFoundError(messageID)
	}

	if err := p.persistAttachment(ctx, msg, att); err != nil {
		return msg, err
	}
	return msg, nil
}

// persistAttachment はBLOBアップロードと添付レコード挿入を行い、
// メッセージの添付状態を更新する。アップロード中は該当チャットの
// ポーリングを一時停止する。
func (p *Pipeline) persistAttachment(ctx context.Context, msg *model.Message, att *AttachmentInput) error {
	resume := p.registry.PausePolling(msg.ChatID)
	defer resume()

	fileName := security.SanitizeFileName(att.FileName)
	key := storage.StorageKey(msg.ID, fileName)

	if err := p.blobStore.Upload(ctx, key, att.FileType, att.Size, att.Body); err != nil {
		p.markAttachmentFailed(ctx, msg)
		return fmt.Errorf("failed to upload attachment: %w", err)
	}

	fileURL, err := p.blobStore.PublicURL(ctx, key)
	if err != nil {
		p.markAttachmentFailed(ctx, msg)
		return fmt.Errorf("failed to resolve attachment url: %w", err)
	}

	record := &model.Attachment{
		MessageID: msg.ID,
		FileName:  fileName,
		FileType:  att.FileType,
		FileSize:  att.Size,
		FileURL:   fileURL,
	}
	if err := p.attachmentRepo.Insert(ctx, record); err != nil {
		p.markAttachmentFailed(ctx, msg)
		return fmt.Errorf("failed to insert attachment record: %w", err)
	}

	if err := p.messageRepo.UpdateAttachmentState(ctx, msg.ID, model.AttachmentStateComplete); err != nil {
		// レコードは挿入済み。状態更新の失敗はログのみで添付自体は参照可能
		slog.Warn("添付状態の更新に失敗しました",
			slog.String("message_id", msg.ID),
			slog.String("error", err.Error()),
		)
	} else {
		msg.AttachmentState = model.AttachmentStateComplete
	}

	p.collector.RecordAttachmentUploaded(att.Size)
	return nil
}

// markAttachmentFailed はメッセージをfailed状態へ遷移させる。
func (p *Pipeline) markAttachmentFailed(ctx context.Context, msg *model.Message) {
	p.collector.RecordAttachmentFailure()

	if err := p.messageRepo.UpdateAttachmentState(ctx, msg.ID, model.AttachmentStateFailed); err != nil {
		slog.Error("添付失敗状態の記録に失敗しました",
			slog.String("message_id", msg.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	msg.AttachmentState = model.AttachmentStateFailed
}
