package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ishit08/chat-web/internal/middleware"
	"github.com/ishit08/chat-web/internal/model"
	"github.com/ishit08/chat-web/internal/outbound"
	"github.com/ishit08/chat-web/internal/stream"
)

// maxMultipartMemory はmultipart解析時にメモリへ保持する上限。超過分はディスクに退避される。
const maxMultipartMemory = 32 << 20 // 32MB

// sseHeartbeatInterval はSSE接続維持のためのコメント送出間隔。
const sseHeartbeatInterval = 30 * time.Second

// SendServiceInterface はメッセージ送信ハンドラーが必要とするサービスインターフェース。
type SendServiceInterface interface {
	Send(ctx context.Context, chatID, senderID, content string, att *outbound.AttachmentInput) (*model.Message, error)
	RetryAttachment(ctx context.Context, messageID string, att *outbound.AttachmentInput) (*model.Message, error)
}

// StreamServiceInterface はメッセージ取得・配信ハンドラーが必要とするサービスインターフェース。
type StreamServiceInterface interface {
	LoadHistory(ctx context.Context, chatID string) ([]model.Message, map[string][]model.Attachment, error)
	OpenStream(ctx context.Context, chatID string) (*stream.Controller, func(), error)
}

// MessageHandler はメッセージの取得・送信・ライブ配信のHTTPハンドラー。
type MessageHandler struct {
	sendService   SendServiceInterface
	streamService StreamServiceInterface
}

// NewMessageHandler はMessageHandlerを生成する。
func NewMessageHandler(sendService SendServiceInterface, streamService StreamServiceInterface) *MessageHandler {
	return &MessageHandler{
		sendService:   sendService,
		streamService: streamService,
	}
}

// ListMessages は指定チャットのメッセージ履歴を添付ファイル付きで返す。
// GET /api/chats/{id}/messages
func (h *MessageHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")

	msgs, atts, err := h.streamService.LoadHistory(r.Context(), chatID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		resp = append(resp, toMessageResponse(m, atts[m.ID]))
	}
	writeJSONResponse(w, http.StatusOK, map[string][]messageResponse{"messages": resp})
}

// SendMessage はメッセージを送信する。
// multipart/form-dataのcontentフィールドと任意のfileフィールドを受け付ける。
// 添付ファイルなしの場合はJSONボディ（{"content": ...}）も受け付ける。
// POST /api/chats/{id}/messages
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}
	chatID := chi.URLParam(r, "id")

	content, att, err := parseSendRequest(r)
	if err != nil {
		writeBadRequest(w, "リクエストボディを解析できませんでした。")
		return
	}
	if att != nil {
		if closer, ok := att.Body.(io.Closer); ok {
			defer closer.Close()
		}
	}

	msg, err := h.sendService.Send(r.Context(), chatID, userID, content, att)
	if err != nil && msg == nil {
		handleServiceError(w, err)
		return
	}
	if err != nil {
		// メッセージ本体は送信済みで添付ファイルだけが失敗した場合。
		// 本文は届いているため201で返し、状態フィールドで失敗を伝える
		slog.Warn("添付ファイルの永続化に失敗しました",
			slog.String("message_id", msg.ID),
			slog.String("error", err.Error()),
		)
	}

	writeJSONResponse(w, http.StatusCreated, toMessageResponse(*msg, nil))
}

// RetryAttachment は失敗状態のメッセージに対する添付ファイルの再アップロードを行う。
// POST /api/messages/{id}/attachments/retry
func (h *MessageHandler) RetryAttachment(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "id")

	att, err := parseAttachment(r)
	if err != nil {
		writeBadRequest(w, "リクエストボディを解析できませんでした。")
		return
	}
	if att != nil {
		if closer, ok := att.Body.(io.Closer); ok {
			defer closer.Close()
		}
	}

	msg, err := h.sendService.RetryAttachment(r.Context(), messageID, att)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toMessageResponse(*msg, nil))
}

// StreamEvents は指定チャットのメッセージをServer-Sent Eventsで配信する。
// 接続確立時に現在の履歴を送出し、以降は新規メッセージを逐次送出する。
// GET /api/chats/{id}/events
func (h *MessageHandler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		middleware.WriteInternalServerError(w)
		return
	}
	chatID := chi.URLParam(r, "id")

	c, teardown, err := h.streamService.OpenStream(r.Context(), chatID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	defer teardown()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// 接続確立時点のスナップショットを送出する
	atts := c.Attachments()
	for _, m := range c.Snapshot() {
		writeSSEEvent(w, toMessageResponse(m, atts[m.ID]))
	}
	flusher.Flush()

	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case m, open := <-c.Updates():
			if !open {
				return
			}
			writeSSEEvent(w, toMessageResponse(m, nil))
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

// writeSSEEvent はmessageイベントをSSEフォーマットで書き込む。
func writeSSEEvent(w http.ResponseWriter, resp messageResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		slog.Error("failed to encode sse event", slog.String("error", err.Error()))
		return
	}
	fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
}

// sendMessageRequest はJSONボディでの送信リクエスト。
type sendMessageRequest struct {
	Content string `json:"content"`
}

// parseSendRequest は送信リクエストから本文と添付ファイルを取り出す。
func parseSendRequest(r *http.Request) (string, *outbound.AttachmentInput, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		var req sendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", nil, err
		}
		return req.Content, nil, nil
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return "", nil, err
	}
	att, err := parseAttachment(r)
	if err != nil {
		return "", nil, err
	}
	return r.FormValue("content"), att, nil
}

// parseAttachment はmultipartフォームのfileフィールドを取り出す。
// フィールドが存在しない場合はnilを返す。
func parseAttachment(r *http.Request) (*outbound.AttachmentInput, error) {
	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &outbound.AttachmentInput{
		FileName: header.Filename,
		FileType: header.Header.Get("Content-Type"),
		Size:     header.Size,
		Body:     file,
	}, nil
}
