package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ishit08/chat-web/internal/directory"
	"github.com/ishit08/chat-web/internal/middleware"
	"github.com/ishit08/chat-web/internal/model"
	"github.com/ishit08/chat-web/internal/repository"
)

// DirectoryServiceInterface は会話一覧・連絡先ハンドラーが必要とするサービスインターフェース。
type DirectoryServiceInterface interface {
	LoadChats(ctx context.Context, userID string) (*directory.ChatList, error)
	Contacts(ctx context.Context, viewerID string) ([]model.User, error)
}

// ChatServiceInterface は1対1チャット作成ハンドラーが必要とするサービスインターフェース。
type ChatServiceInterface interface {
	FindOrCreateDirectChat(ctx context.Context, viewerID, otherID string) (string, error)
}

// MemberServiceInterface はメンバー管理ハンドラーが必要とするサービスインターフェース。
type MemberServiceInterface interface {
	ListMembers(ctx context.Context, chatID string) ([]repository.MemberWithName, error)
	ApplyMembership(ctx context.Context, chatID string, desiredIDs []string) ([]repository.MemberWithName, error)
}

// ChatHandler は会話一覧・チャット作成・メンバー管理のHTTPハンドラー。
type ChatHandler struct {
	directoryService DirectoryServiceInterface
	chatService      ChatServiceInterface
	memberService    MemberServiceInterface
}

// NewChatHandler はChatHandlerを生成する。
func NewChatHandler(
	directoryService DirectoryServiceInterface,
	chatService ChatServiceInterface,
	memberService MemberServiceInterface,
) *ChatHandler {
	return &ChatHandler{
		directoryService: directoryService,
		chatService:      chatService,
		memberService:    memberService,
	}
}

// chatListResponse は会話一覧のレスポンスボディ。
type chatListResponse struct {
	Chats         []chatResponse `json:"chats"`
	DefaultChatID string         `json:"default_chat_id"`
}

// ListChats は会話一覧（デモと永続化チャットのマージ結果）を返す。
// GET /api/chats
func (h *ChatHandler) ListChats(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	list, err := h.directoryService.LoadChats(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := chatListResponse{
		Chats:         make([]chatResponse, 0, len(list.Chats)),
		DefaultChatID: list.DefaultChatID,
	}
	for _, c := range list.Chats {
		resp.Chats = append(resp.Chats, toChatResponse(c))
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

// ListContacts は新規チャット作成モーダルに表示する連絡先一覧を返す。
// GET /api/users
func (h *ChatHandler) ListContacts(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	contacts, err := h.directoryService.Contacts(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	users := make([]userResponse, 0, len(contacts))
	for i := range contacts {
		users = append(users, toUserResponse(&contacts[i]))
	}
	writeJSONResponse(w, http.StatusOK, map[string][]userResponse{"users": users})
}

// createDirectChatRequest は1対1チャット作成のリクエストボディ。
type createDirectChatRequest struct {
	UserID string `json:"user_id"`
}

// CreateDirectChat は相手ユーザーとの1対1チャットを検索または作成する。
// 既存チャットがあればそのIDを返す（冪等）。
// POST /api/chats/direct
func (h *ChatHandler) CreateDirectChat(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	var req createDirectChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "リクエストボディを解析できませんでした。")
		return
	}

	chatID, err := h.chatService.FindOrCreateDirectChat(r.Context(), userID, req.UserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{"chat_id": chatID})
}

// ListMembers は指定チャットの現在のメンバー一覧を返す。
// GET /api/chats/{id}/members
func (h *ChatHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")

	members, err := h.memberService.ListMembers(r.Context(), chatID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string][]memberResponse{"members": toMemberResponses(members)})
}

// updateMembersRequest はメンバーシップ更新のリクエストボディ。
// 希望するメンバー集合を全量指定する。
type updateMembersRequest struct {
	UserIDs []string `json:"user_ids"`
}

// UpdateMembers は希望メンバー集合との差分を適用し、適用後の一覧を返す。
// PUT /api/chats/{id}/members
func (h *ChatHandler) UpdateMembers(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")

	var req updateMembersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "リクエストボディを解析できませんでした。")
		return
	}

	members, err := h.memberService.ApplyMembership(r.Context(), chatID, req.UserIDs)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string][]memberResponse{"members": toMemberResponses(members)})
}
