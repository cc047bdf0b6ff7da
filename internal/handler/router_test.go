package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ishit08/chat-web/internal/directory"
	"github.com/ishit08/chat-web/internal/metrics"
	"github.com/ishit08/chat-web/internal/middleware"
	"github.com/ishit08/chat-web/internal/model"
)

type mockSessionFinder struct {
	findByIDFn func(ctx context.Context, id string) (*model.Session, error)
}

func (m *mockSessionFinder) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

type mockResolver struct {
	resolveCompleteFn func(ctx context.Context, sessionID string) (*model.User, error)
}

func (m *mockResolver) ResolveComplete(ctx context.Context, sessionID string) (*model.User, error) {
	if m.resolveCompleteFn != nil {
		return m.resolveCompleteFn(ctx, sessionID)
	}
	return nil, model.NewUnauthenticatedError()
}

// testRouter は全ルートを配線したルーターとクリーンアップ関数を返す。
func testRouter(t *testing.T, deps *RouterDeps) http.Handler {
	t.Helper()

	if deps.SessionFinder == nil {
		deps.SessionFinder = &mockSessionFinder{}
	}
	if deps.IdentityResolver == nil {
		deps.IdentityResolver = &mockResolver{}
	}
	if deps.IdentityService == nil {
		deps.IdentityService = &mockIdentityService{}
	}
	if deps.DirectoryService == nil {
		deps.DirectoryService = &mockDirectoryService{}
	}
	if deps.ChatService == nil {
		deps.ChatService = &mockChatService{}
	}
	if deps.MemberService == nil {
		deps.MemberService = &mockMemberService{}
	}
	if deps.SendService == nil {
		deps.SendService = &mockSendService{}
	}
	if deps.StreamService == nil {
		deps.StreamService = &mockStreamService{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if deps.RateLimiter == nil {
		rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
		t.Cleanup(rl.Stop)
		deps.RateLimiter = rl
	}
	return NewRouter(deps)
}

func completeResolver() *mockResolver {
	return &mockResolver{
		resolveCompleteFn: func(_ context.Context, sessionID string) (*model.User, error) {
			if sessionID == "" {
				return nil, model.NewUnauthenticatedError()
			}
			return &model.User{ID: "user-1", Name: "山田", PhoneNumber: "090"}, nil
		},
	}
}

// ヘルスチェックが認証なしで応答することを検証
func TestRouter_HealthWithoutAuth(t *testing.T) {
	router := testRouter(t, &RouterDeps{DB: &mockPinger{}})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

// Cookieなしのチャット一覧取得が401になることを検証
func TestRouter_ChatsRequireAuth(t *testing.T) {
	router := testRouter(t, &RouterDeps{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/chats", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

// プロフィール未完了のユーザーがチャット操作で403になることを検証
func TestRouter_ChatsRequireCompleteProfile(t *testing.T) {
	resolver := &mockResolver{
		resolveCompleteFn: func(_ context.Context, _ string) (*model.User, error) {
			return nil, model.NewProfileIncompleteError()
		},
	}
	router := testRouter(t, &RouterDeps{IdentityResolver: resolver})

	req := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "sess-1"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if body.Code != model.ErrCodeProfileIncomplete {
		t.Errorf("error code = %q, want PROFILE_INCOMPLETE", body.Code)
	}
}

// プロフィール完了済みユーザーのチャット一覧取得が成功することを検証
func TestRouter_ChatsWithCompleteProfile(t *testing.T) {
	dir := &mockDirectoryService{
		loadChatsFn: func(_ context.Context, userID string) (*directory.ChatList, error) {
			if userID != "user-1" {
				t.Errorf("LoadChats called with %q, want user-1", userID)
			}
			return &directory.ChatList{DefaultChatID: "demo-1"}, nil
		},
	}
	router := testRouter(t, &RouterDeps{IdentityResolver: completeResolver(), DirectoryService: dir})

	req := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "sess-1"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

// プロフィール入力がプロフィール未完了でも可能なことを検証（セッションのみ必要）
func TestRouter_ProfileUpdateWithIncompleteProfile(t *testing.T) {
	finder := &mockSessionFinder{
		findByIDFn: func(_ context.Context, id string) (*model.Session, error) {
			return &model.Session{ID: id, UserID: "user-1"}, nil
		},
	}
	service := &mockIdentityService{
		completeProfileFn: func(_ context.Context, userID, name, phoneNumber string) (*model.User, error) {
			return &model.User{ID: userID, Name: name, PhoneNumber: phoneNumber}, nil
		},
	}
	router := testRouter(t, &RouterDeps{SessionFinder: finder, IdentityService: service})

	body, _ := json.Marshal(map[string]string{"name": "山田", "phone_number": "090"})
	req := httptest.NewRequest(http.MethodPut, "/api/profile", bytes.NewReader(body))
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "sess-1"})
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "token-1"})
	req.Header.Set("X-CSRF-Token", "token-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

// CSRFトークンなしの状態変更リクエストが403になることを検証
func TestRouter_CSRFRequiredOnStateChange(t *testing.T) {
	router := testRouter(t, &RouterDeps{IdentityResolver: completeResolver()})

	body, _ := json.Marshal(map[string]string{"user_id": "user-2"})
	req := httptest.NewRequest(http.MethodPost, "/api/chats/direct", bytes.NewReader(body))
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "sess-1"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

// メトリクスエンドポイントが登録済みメトリクスを公開することを検証
func TestRouter_MetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	collector.RecordMessageSent("demo")

	router := testRouter(t, &RouterDeps{Collector: collector, MetricsGatherer: reg})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "chatweb_messages_sent_total") {
		t.Error("metrics output should contain chatweb_messages_sent_total")
	}
}

// CSRFトークン取得エンドポイントがトークンを発行することを検証
func TestRouter_CSRFTokenEndpoint(t *testing.T) {
	router := testRouter(t, &RouterDeps{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if body["token"] == "" {
		t.Error("token should not be empty")
	}
}

// セッション管理ルートがレート制限の外にあることを検証
func TestRouter_AuthRoutesOutsideRateLimit(t *testing.T) {
	service := &mockIdentityService{
		resolveFn: func(_ context.Context, _ string) (*model.User, error) {
			return &model.User{ID: "user-1"}, nil
		},
	}
	router := testRouter(t, &RouterDeps{IdentityService: service})

	for i := 0; i < 200; i++ {
		req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		req.AddCookie(&http.Cookie{Name: "session_id", Value: "sess-1"})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, w.Code)
		}
	}
}
