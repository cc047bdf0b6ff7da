package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ishit08/chat-web/internal/model"
)

// IdentityResolver はセッションIDから操作主体を解決するインターフェース。
type IdentityResolver interface {
	// ResolveComplete はプロフィール完了済みのユーザーを解決する。
	// 未認証の場合はUNAUTHENTICATED、未完了の場合はPROFILE_INCOMPLETEを返す。
	ResolveComplete(ctx context.Context, sessionID string) (*model.User, error)
}

// NewProfileMiddleware は認証とプロフィール完了を同時に要求するミドルウェアを返す。
// チャット操作のルートに適用し、解決したユーザーIDをコンテキストに注入する。
func NewProfileMiddleware(resolver IdentityResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := resolver.ResolveComplete(r.Context(), SessionIDFromRequest(r))
			if err != nil {
				var apiErr *model.APIError
				if errors.As(err, &apiErr) {
					WriteErrorResponse(w, HTTPStatusFor(apiErr), apiErr)
					return
				}
				slog.Error("本人解決に失敗しました",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}

			ctx := ContextWithUserID(r.Context(), user.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
