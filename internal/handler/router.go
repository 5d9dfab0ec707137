package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/foodmark/internal/middleware"
)

// SetupAuthRoutes は認証関連のルーティングを設定したchi.Routerを返す。
func SetupAuthRoutes(service AuthServiceInterface, config AuthHandlerConfig) http.Handler {
	r := chi.NewRouter()
	mountAuthRoutes(r, NewAuthHandler(service, config))
	return r
}

func mountAuthRoutes(r chi.Router, h *AuthHandler) {
	r.Route("/auth", func(r chi.Router) {
		// OAuthフロー
		r.Get("/google/login", h.Login)
		r.Get("/google/callback", h.Callback)

		// セッション管理
		r.Post("/logout", h.Logout)
		r.Get("/me", h.Me)
	})
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger        *slog.Logger
	HealthChecker HealthChecker

	// メトリクス（nilの場合は/metricsを公開しない）
	Metrics        HTTPInstrumenter
	MetricsHandler http.Handler

	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// カタログと個人リスト
	CatalogService CatalogServiceInterface
	Lists          ListsRegistry

	// ユーザー
	UserService UserServiceInterface
}

// HTTPInstrumenter はレスポンスのステータスコードを記録する。metrics.Collectorが実装する。
type HTTPInstrumenter interface {
	Instrument(next http.Handler) http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Logging → Metrics → CORS → CSRF
//	  → Session(任意/必須) → RateLimit(General) → RateLimit(Write)
//
// /health と /metrics はCSRF・セッションの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Instrument)
	}
	// プリフライトはルートに一致しないため、CORSは最上位に置く
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	catalogHandler := NewCatalogHandler(deps.CatalogService, deps.Lists)
	membershipHandler := NewMembershipHandler(deps.Lists)
	userHandler := NewUserHandler(deps.UserService, deps.AuthConfig)

	general := deps.RateLimiter.GeneralMiddleware()
	write := deps.RateLimiter.WriteMiddleware()

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		// --- 認証不要のルート ---
		mountAuthRoutes(r, authHandler)
		r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

		// 閲覧（ログイン中なら所属状態を付ける）
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewOptionalSessionMiddleware(deps.SessionFinder))
			r.Use(general)

			r.Get("/api/items", catalogHandler.ListItems)
			r.Get("/api/items/{id}", catalogHandler.GetItem)
			r.Get("/api/cities", catalogHandler.Cities)
			r.Get("/api/random", catalogHandler.Random)
		})

		// --- 認証が必要なルート ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
			r.Use(general)

			r.Route("/api/me", func(r chi.Router) {
				r.Get("/lists", membershipHandler.GetLists)

				// リスト変更系は変更専用のレート制限を追加
				r.Group(func(r chi.Router) {
					r.Use(write)

					r.Post("/lists/reload", membershipHandler.ReloadLists)

					r.Route("/favorites/{itemID}", func(r chi.Router) {
						r.Put("/", membershipHandler.PutFavorite)
						r.Patch("/", membershipHandler.PatchFavorite)
						r.Delete("/", membershipHandler.DeleteFavorite)
					})
					r.Post("/wishlist/{itemID}/toggle", membershipHandler.ToggleWishlist)
					r.Post("/visited/{itemID}/toggle", membershipHandler.ToggleVisited)
					r.Put("/visited/{itemID}", membershipHandler.PutVisited)
				})
			})

			r.With(write).Post("/api/submissions", catalogHandler.Submit)
			r.Delete("/api/users/me", userHandler.Withdraw)
		})
	})

	return r
}
