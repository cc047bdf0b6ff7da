// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ishit08/chat-web/internal/middleware"
	"github.com/ishit08/chat-web/internal/model"
	"github.com/ishit08/chat-web/internal/repository"
)

// writeJSONResponse はJSONレスポンスを書き込む。
func writeJSONResponse(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// handleServiceError はサービス層のエラーを統一フォーマットのレスポンスに変換する。
// APIErrorはコード対応のHTTPステータスで返し、それ以外は詳細を漏らさず500を返す。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, middleware.HTTPStatusFor(apiErr), apiErr)
		return
	}

	slog.Error("unexpected service error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// writeBadRequest は解析できないリクエストボディに対する応答を書き込む。
func writeBadRequest(w http.ResponseWriter, message string) {
	middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  message,
		Category: "request",
		Action:   "リクエスト内容を確認して再度お試しください。",
	})
}

// --- レスポンスDTO ---

type userResponse struct {
	ID              string `json:"id"`
	Email           string `json:"email"`
	Name            string `json:"name"`
	PhoneNumber     string `json:"phone_number"`
	AvatarURL       string `json:"avatar_url,omitempty"`
	ProfileComplete bool   `json:"profile_complete"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:              u.ID,
		Email:           u.Email,
		Name:            u.Name,
		PhoneNumber:     u.PhoneNumber,
		AvatarURL:       u.AvatarURL,
		ProfileComplete: u.ProfileComplete(),
	}
}

type chatResponse struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	LastMessage     string    `json:"last_message"`
	LastMessageTime time.Time `json:"last_message_time"`
	AvatarURL       string    `json:"avatar_url,omitempty"`
	Source          string    `json:"source"`
}

func toChatResponse(c model.Chat) chatResponse {
	return chatResponse{
		ID:              c.ID,
		Name:            c.Name,
		LastMessage:     c.LastMessage,
		LastMessageTime: c.LastMessageTime,
		AvatarURL:       c.AvatarURL,
		Source:          string(c.Source),
	}
}

type attachmentResponse struct {
	ID       string `json:"id"`
	FileName string `json:"file_name"`
	FileType string `json:"file_type"`
	FileSize int64  `json:"file_size"`
	FileURL  string `json:"file_url"`
}

type messageResponse struct {
	ID              string               `json:"id"`
	ChatID          string               `json:"chat_id"`
	SenderID        string               `json:"sender_id"`
	Content         string               `json:"content"`
	AttachmentState string               `json:"attachment_state"`
	CreatedAt       time.Time            `json:"created_at"`
	Attachments     []attachmentResponse `json:"attachments,omitempty"`
}

func toMessageResponse(m model.Message, atts []model.Attachment) messageResponse {
	resp := messageResponse{
		ID:              m.ID,
		ChatID:          m.ChatID,
		SenderID:        m.SenderID,
		Content:         m.Content,
		AttachmentState: string(m.AttachmentState),
		CreatedAt:       m.CreatedAt,
	}
	for _, a := range atts {
		resp.Attachments = append(resp.Attachments, attachmentResponse{
			ID:       a.ID,
			FileName: a.FileName,
			FileType: a.FileType,
			FileSize: a.FileSize,
			FileURL:  a.FileURL,
		})
	}
	return resp
}

type memberResponse struct {
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

func toMemberResponses(members []repository.MemberWithName) []memberResponse {
	resp := make([]memberResponse, 0, len(members))
	for _, m := range members {
		resp = append(resp, memberResponse{
			UserID:    m.UserID,
			Name:      m.Name,
			AvatarURL: m.AvatarURL,
		})
	}
	return resp
}
