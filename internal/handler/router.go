package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ishit08/chat-web/internal/metrics"
	"github.com/ishit08/chat-web/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	IdentityResolver  middleware.IdentityResolver
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	Collector         metrics.MetricsCollector
	MetricsGatherer   prometheus.Gatherer
	CookieSecure      bool
	CookieDomain      string

	// サービス
	IdentityService  IdentityServiceInterface
	DirectoryService DirectoryServiceInterface
	ChatService      ChatServiceInterface
	MemberService    MemberServiceInterface
	SendService      SendServiceInterface
	StreamService    StreamServiceInterface

	// ヘルスチェック
	DB Pinger
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Logging → CORS → 認証 → RateLimit(General) → CSRF
//
// チャット操作のルートは認証に加えてプロフィール完了を要求する。
// 送信系エンドポイントには送信専用レート制限を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Collector))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.IdentityService, AuthHandlerConfig{
		CookieDomain: deps.CookieDomain,
		CookieSecure: deps.CookieSecure,
	})
	chatHandler := NewChatHandler(deps.DirectoryService, deps.ChatService, deps.MemberService)
	messageHandler := NewMessageHandler(deps.SendService, deps.StreamService)
	healthHandler := NewHealthHandler(deps.DB)

	csrfConfig := middleware.CSRFConfig{
		CookieSecure: deps.CookieSecure,
		CookieDomain: deps.CookieDomain,
	}

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler.Check)
	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.SetupMetricsRoute(deps.MetricsGatherer))
	}
	r.Handle("/api/csrf-token", middleware.NewCSRFTokenHandler(csrfConfig))

	// セッション管理（Cookieの有無はハンドラー側で判定する）
	r.Route("/auth", func(r chi.Router) {
		r.Get("/me", authHandler.Me)
		r.Post("/logout", authHandler.Logout)
	})

	// --- 認証が必要なルート（プロフィール未完了でも可） ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(csrfConfig))

		r.Put("/api/profile", authHandler.CompleteProfile)
	})

	// --- 認証＋プロフィール完了が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewProfileMiddleware(deps.IdentityResolver))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(csrfConfig))

		// 連絡先一覧
		r.Get("/api/users", chatHandler.ListContacts)

		// チャット管理
		r.Route("/api/chats", func(r chi.Router) {
			r.Get("/", chatHandler.ListChats)
			r.Post("/direct", chatHandler.CreateDirectChat)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/messages", messageHandler.ListMessages)
				// POST /api/chats/{id}/messages - メッセージ送信（送信専用レート制限を追加）
				r.With(deps.RateLimiter.SendMiddleware()).Post("/messages", messageHandler.SendMessage)
				r.Get("/events", messageHandler.StreamEvents)
				r.Get("/members", chatHandler.ListMembers)
				r.Put("/members", chatHandler.UpdateMembers)
			})
		})

		// 添付ファイルの再試行
		r.With(deps.RateLimiter.SendMiddleware()).Post("/api/messages/{id}/attachments/retry", messageHandler.RetryAttachment)
	})

	return r
}
