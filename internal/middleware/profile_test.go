package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ishit08/chat-web/internal/model"
)

type mockIdentityResolver struct {
	resolveCompleteFn func(ctx context.Context, sessionID string) (*model.User, error)
}

func (m *mockIdentityResolver) ResolveComplete(ctx context.Context, sessionID string) (*model.User, error) {
	if m.resolveCompleteFn != nil {
		return m.resolveCompleteFn(ctx, sessionID)
	}
	return nil, model.NewUnauthenticatedError()
}

// プロフィール完了済みユーザーのIDがコンテキストに注入されることを検証
func TestProfileMiddleware_CompleteUser(t *testing.T) {
	resolver := &mockIdentityResolver{
		resolveCompleteFn: func(_ context.Context, sessionID string) (*model.User, error) {
			if sessionID != "sess-1" {
				t.Errorf("ResolveComplete called with %q, want sess-1", sessionID)
			}
			return &model.User{ID: "user-1", Name: "山田", PhoneNumber: "090"}, nil
		},
	}

	var gotUserID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "sess-1"})
	w := httptest.NewRecorder()

	NewProfileMiddleware(resolver)(next).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if gotUserID != "user-1" {
		t.Errorf("user ID in context = %q, want user-1", gotUserID)
	}
}

// プロフィール未完了が403 PROFILE_INCOMPLETEになることを検証
func TestProfileMiddleware_IncompleteProfile(t *testing.T) {
	resolver := &mockIdentityResolver{
		resolveCompleteFn: func(_ context.Context, _ string) (*model.User, error) {
			return nil, model.NewProfileIncompleteError()
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "sess-1"})
	w := httptest.NewRecorder()

	NewProfileMiddleware(resolver)(http.NotFoundHandler()).ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if body.Code != model.ErrCodeProfileIncomplete {
		t.Errorf("error code = %q, want PROFILE_INCOMPLETE", body.Code)
	}
}

// 未認証が401になることを検証
func TestProfileMiddleware_Unauthenticated(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
	w := httptest.NewRecorder()

	NewProfileMiddleware(&mockIdentityResolver{})(http.NotFoundHandler()).ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

// 解決エラーが詳細を漏らさず500になることを検証
func TestProfileMiddleware_ResolverError(t *testing.T) {
	resolver := &mockIdentityResolver{
		resolveCompleteFn: func(_ context.Context, _ string) (*model.User, error) {
			return nil, errors.New("db down")
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "sess-1"})
	w := httptest.NewRecorder()

	NewProfileMiddleware(resolver)(http.NotFoundHandler()).ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}
