// Package app はアプリケーションの起動とワイヤリングを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/ishit08/chat-web/internal/chat"
	"github.com/ishit08/chat-web/internal/config"
	"github.com/ishit08/chat-web/internal/database"
	"github.com/ishit08/chat-web/internal/demo"
	"github.com/ishit08/chat-web/internal/directory"
	"github.com/ishit08/chat-web/internal/handler"
	"github.com/ishit08/chat-web/internal/identity"
	"github.com/ishit08/chat-web/internal/logger"
	"github.com/ishit08/chat-web/internal/member"
	"github.com/ishit08/chat-web/internal/metrics"
	"github.com/ishit08/chat-web/internal/middleware"
	"github.com/ishit08/chat-web/internal/outbound"
	"github.com/ishit08/chat-web/internal/realtime"
	"github.com/ishit08/chat-web/internal/repository"
	"github.com/ishit08/chat-web/internal/security"
	"github.com/ishit08/chat-web/internal/storage"
	"github.com/ishit08/chat-web/internal/stream"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、変更フィードリスナーと
// HTTPサーバーを起動する。SIGINTまたはSIGTERMシグナルを受信すると
// グレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	chatRepo := repository.NewPostgresChatRepo(db)
	memberRepo := repository.NewPostgresMemberRepo(db)
	messageRepo := repository.NewPostgresMessageRepo(db)
	attachmentRepo := repository.NewPostgresAttachmentRepo(db)

	// 3. デモカタログとセッション寿命ストアの初期化
	catalog := demo.DefaultCatalog()
	store := demo.NewStore(catalog)

	// 4. 変更フィード（LISTEN/NOTIFY → Hub）の初期化
	hub := realtime.NewHub()
	listener := realtime.NewListener(
		cfg.DatabaseURL,
		cfg.ListenerMinReconnect,
		cfg.ListenerMaxReconnect,
		hub,
		slog.Default(),
	)

	// 5. オブジェクトストレージの初期化
	blobStore, err := storage.NewS3Store(context.Background(), storage.S3Config{
		Region:        cfg.S3Region,
		AccessKey:     cfg.S3AccessKey,
		SecretKey:     cfg.S3SecretKey,
		Bucket:        cfg.S3Bucket,
		BaseEndpoint:  cfg.S3BaseEndpoint,
		PublicBaseURL: cfg.S3PublicBaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize object storage: %w", err)
	}

	// 6. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 7. ドメインサービスの初期化
	resolver := identity.NewResolver(userRepo, sessionRepo)
	directoryService := directory.NewService(catalog, store, memberRepo, messageRepo, userRepo)
	chatService := chat.NewService(chatRepo, memberRepo, userRepo)
	memberService := member.NewService(catalog, chatRepo, memberRepo)

	streamRegistry := stream.NewRegistry()
	sanitizer := security.NewMessageSanitizer()
	pipeline := outbound.NewPipeline(
		catalog, store, messageRepo, attachmentRepo,
		blobStore, sanitizer, streamRegistry, collector,
		cfg.AttachmentMaxSize,
	)
	streamFactory := stream.NewFactory(
		catalog, store, hub,
		chatRepo, messageRepo, attachmentRepo,
		streamRegistry, cfg.PollInterval, collector, slog.Default(),
	)

	// 8. ルーターの構築
	// configのレート制限はreq/min単位なのでreq/secに変換する
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.SendRate = rate.Limit(float64(cfg.RateLimitSend) / 60.0)
	rateLimiterCfg.SendBurst = cfg.RateLimitSend
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		SessionFinder:     sessionRepo,
		IdentityResolver:  resolver,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),
		Collector:         collector,
		MetricsGatherer:   registry,
		CookieSecure:      cfg.CookieSecure,
		CookieDomain:      cfg.CookieDomain,

		IdentityService:  resolver,
		DirectoryService: directoryService,
		ChatService:      chatService,
		MemberService:    memberService,
		SendService:      pipeline,
		StreamService:    streamFactory,

		DB: db,
	}

	router := handler.NewRouter(deps)

	// 9. HTTPサーバーの起動
	server := &http.Server{
		Addr:        ":" + cfg.ServerPort,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// SSEの長時間接続があるためWriteTimeoutは設定しない
		IdleTimeout: 60 * time.Second,
	}

	// 変更フィードリスナーをバックグラウンドで起動
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := listener.Start(ctx); err != nil {
			slog.Error("change feed listener stopped",
				slog.String("error", err.Error()),
			)
		}
	}()

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	// 変更フィードリスナーを先に停止する
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
