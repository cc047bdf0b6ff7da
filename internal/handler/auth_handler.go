package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ishit08/chat-web/internal/middleware"
	"github.com/ishit08/chat-web/internal/model"
)

// IdentityServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type IdentityServiceInterface interface {
	Resolve(ctx context.Context, sessionID string) (*model.User, error)
	CompleteProfile(ctx context.Context, userID, name, phoneNumber string) (*model.User, error)
	Logout(ctx context.Context, sessionID string) error
}

// AuthHandlerConfig は認証ハンドラーのCookie設定。
type AuthHandlerConfig struct {
	CookieDomain string
	CookieSecure bool
}

// AuthHandler はセッション・プロフィール関連のHTTPハンドラー。
// セッションの発行は外部の認証フローが行うため、参照・破棄・プロフィール更新のみを扱う。
type AuthHandler struct {
	service IdentityServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service IdentityServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// Me は現在のログインユーザー情報を返す。
// プロフィール未完了のユーザーにも応答する（クライアントが入力画面へ誘導する）。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Resolve(r.Context(), middleware.SessionIDFromRequest(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toUserResponse(user))
}

// Logout はセッションを破棄し、セッションCookieを失効させる。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.SessionIDFromRequest(r)
	if err := h.service.Logout(r.Context(), sessionID); err != nil {
		slog.Error("failed to logout", slog.String("error", err.Error()))
		// ログアウト失敗してもCookieはクリアする
	}

	middleware.ClearSessionCookie(w, h.config.CookieSecure, h.config.CookieDomain)
	w.WriteHeader(http.StatusNoContent)
}

// completeProfileRequest はプロフィール更新のリクエストボディ。
type completeProfileRequest struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
}

// CompleteProfile は名前と電話番号を登録してプロフィールを完了させる。
// PUT /api/profile
func (h *AuthHandler) CompleteProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	var req completeProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "リクエストボディを解析できませんでした。")
		return
	}

	user, err := h.service.CompleteProfile(r.Context(), userID, req.Name, req.PhoneNumber)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toUserResponse(user))
}
