package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/ishit08/chat-web/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// HTTPStatusFor はエラーコードに対応するHTTPステータスコードを返す。
func HTTPStatusFor(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	case model.ErrCodeProfileIncomplete:
		return http.StatusForbidden
	case model.ErrCodeChatNotFound, model.ErrCodeUserNotFound, model.ErrCodeMessageNotFound:
		return http.StatusNotFound
	case model.ErrCodeEmptyMessage, model.ErrCodeDirectChatSelf, model.ErrCodeAttachmentType:
		return http.StatusBadRequest
	case model.ErrCodeAttachmentTooBig:
		return http.StatusRequestEntityTooLarge
	case model.ErrCodeDemoChatReadOnly:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// すべてのAPIエンドポイントで一貫したエラーレスポンスを提供する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}
