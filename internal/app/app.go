package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/foodmark/internal/auth"
	"github.com/hitoshi/foodmark/internal/catalog"
	"github.com/hitoshi/foodmark/internal/config"
	"github.com/hitoshi/foodmark/internal/database"
	"github.com/hitoshi/foodmark/internal/handler"
	"github.com/hitoshi/foodmark/internal/logger"
	"github.com/hitoshi/foodmark/internal/membership"
	"github.com/hitoshi/foodmark/internal/metrics"
	"github.com/hitoshi/foodmark/internal/middleware"
	"github.com/hitoshi/foodmark/internal/model"
	"github.com/hitoshi/foodmark/internal/repository"
	"github.com/hitoshi/foodmark/internal/security"
	"github.com/hitoshi/foodmark/internal/user"
	"github.com/hitoshi/foodmark/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、LOG_LEVELに従ってJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたレベルで作り直す
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

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
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// openDB はDB接続を開き、疎通を確認する。
func openDB(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// buildCatalogProvider はカタログのソースを優先順に組み立てる。
// ローカルのデータディレクトリ、リモートのカタログ、承認済み投稿の順で、同じIDは先勝ち。
func buildCatalogProvider(cfg *config.Config, guard *security.SSRFGuard, submissions catalog.SubmissionLister) *catalog.Provider {
	sources := []catalog.Source{
		catalog.NewFileSource(cfg.CatalogDir, slog.Default()),
	}
	if cfg.CatalogURL != "" {
		client := guard.NewSafeClient(cfg.CatalogFetchTimeout, cfg.CatalogMaxSize)
		sources = append(sources, catalog.NewRemoteSource(cfg.CatalogURL, client, slog.Default()))
	}
	sources = append(sources, catalog.NewSubmissionSource(submissions))
	return catalog.NewProvider(slog.Default(), sources...)
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	identRepo := repository.NewPostgresIdentityRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	favoriteRepo := repository.NewPostgresFavoriteRepo(db)
	wishlistRepo := repository.NewPostgresWishlistRepo(db)
	visitedRepo := repository.NewPostgresVisitedRepo(db)
	submissionRepo := repository.NewPostgresSubmissionRepo(db)

	// 3. セキュリティ・メトリクスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewTextSanitizer(cfg.NoteMaxLength)

	promRegistry := prometheus.NewRegistry()
	collector := metrics.NewCollector(promRegistry)

	// 4. カタログ
	provider := buildCatalogProvider(cfg, ssrfGuard, submissionRepo)
	catalogService := catalog.NewService(provider, submissionRepo, sanitizer, ssrfGuard, slog.Default())

	// 5. 個人リスト
	registry := membership.NewRegistry(
		membership.Gateway{
			Favorites: favoriteRepo,
			Wishlist:  wishlistRepo,
			Visited:   visitedRepo,
		},
		slog.Default(),
		membership.RegistryConfig{
			ReloadInterval:  cfg.MembershipReloadInterval,
			IdleTTL:         cfg.MembershipIdleTTL,
			CleanupInterval: membership.DefaultRegistryConfig().CleanupInterval,
		},
		membership.WithRecorder(collector),
		membership.WithNoteCleaner(sanitizer),
	)
	registry.Start()
	defer registry.Stop()
	collector.TrackActiveStores(registry.Count)

	// 6. 認証・ユーザー
	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	})
	authService := auth.NewService(
		oauthProvider, userRepo, identRepo, sessionRepo,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
		auth.WithIdentityObserver(registry),
	)

	userService := user.NewService(userRepo, sessionRepo,
		map[model.ListKind]user.ListDeleter{
			model.ListFavorites: favoriteRepo,
			model.ListWishlist:  wishlistRepo,
			model.ListVisited:   visitedRepo,
		},
		registry,
		slog.Default(),
	)

	// 7. ルーターの構築（RATE_LIMITはreq/min単位）
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitWrite),
	)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Logger:         slog.Default(),
		HealthChecker:  db,
		Metrics:        collector,
		MetricsHandler: metrics.Handler(promRegistry),

		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter: rateLimiter,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		CatalogService: catalogService,
		Lists:          handler.NewRegistryAdapter(registry),
		UserService:    handler.NewUserServiceAdapter(userService),
	}

	router := handler.NewRouter(deps)

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return serveUntilSignal(server, "API server")
}

// serveUntilSignal はサーバーを起動し、SIGINT/SIGTERMを受けたらグレースフルシャットダウンする。
func serveUntilSignal(server *http.Server, name string) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		slog.Info(name+" starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("%s listen error: %w", name, err)
	case <-stop:
	}
	slog.Info("shutting down " + name + "...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("%s shutdown failed: %w", name, err)
	}

	slog.Info(name + " stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 期限切れセッションと放置された未承認投稿の削除を定期実行し、
// /health と /metrics をSERVER_PORTで公開する。
func runWorker(cfg *config.Config) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	promRegistry := prometheus.NewRegistry()
	collector := metrics.NewCollector(promRegistry)

	cleanupJob := cleanup.NewCleanupJob(db, slog.Default(), collector)
	cleanupJob.RetentionDays = cfg.SubmissionRetentionDays

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.SessionCleanupInterval),
		slog.Int("submission_retention_days", cfg.SubmissionRetentionDays),
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		cleanupJob.RunLoop(ctx, cfg.SessionCleanupInterval)
	}()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      workerRouter(db, promRegistry),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	err = serveUntilSignal(server, "worker")

	cancel()
	<-done
	return err
}

// workerRouter はワーカーの監視用エンドポイントを構成する。
func workerRouter(checker handler.HealthChecker, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware())
	r.Get("/health", handler.NewHealthHandler(checker))
	r.Method(http.MethodGet, "/metrics", metrics.Handler(gatherer))
	return r
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
