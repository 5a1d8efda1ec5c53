package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/minnego/internal/middleware"
	"github.com/hitoshi/minnego/internal/model"
	"github.com/hitoshi/minnego/internal/session"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	GateConfig        middleware.GateConfig

	// ヘルスチェック（nil可）
	HealthChecker HealthChecker
	// Metrics は/metricsのハンドラー（nil可）
	Metrics http.Handler

	// カタログ
	Catalog    Catalog
	Categories CategoryLoader
	News       NewsSource

	// ログイン
	Sessions     *session.Service
	CookieConfig session.CookieConfig
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Recovery → SecurityHeaders → CORS → CurrentUser → Logging → RouteGate
//
// /api配下はさらにRateLimit(General)、状態を変更するログイン系はCSRFとRateLimit(Auth)を通す。
func NewRouter(deps *RouterDeps) (http.Handler, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pages, err := NewPageHandler(logger)
	if err != nil {
		return nil, err
	}
	catalog := NewCatalogHandler(deps.Catalog, logger)
	categories := NewCategoryHandler(deps.Categories)
	newsHandler := NewNewsHandler(deps.News)
	auth := NewAuthHandler(deps.Sessions, deps.CookieConfig, logger)
	csrf := middleware.NewCSRFMiddleware(deps.CSRFConfig, logger)
	gate := deps.GateConfig
	if gate.LoginPath == "" {
		gate = middleware.DefaultGateConfig()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewCurrentUserMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRouteGateMiddleware(gate))

	r.Get("/health", NewHealthHandler(deps.HealthChecker, logger))
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.GeneralMiddleware())
		}

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewNotFoundError("endpoint"))
		})

		r.Get("/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig, logger).ServeHTTP)

		r.Route("/anime", func(r chi.Router) {
			r.Get("/", catalog.ListAnime)
			r.Get("/{id}", catalog.GetAnime)
			r.Get("/{id}/reviews", catalog.AnimeReviews)
		})

		r.Route("/manga", func(r chi.Router) {
			r.Get("/", catalog.ListManga)
			r.Get("/top", catalog.TopManga)
			r.Get("/{id}", catalog.GetManga)
		})

		r.Route("/clubs", func(r chi.Router) {
			r.Get("/", catalog.ListClubs)
			r.Get("/{id}", catalog.GetClub)
			r.Get("/{id}/members", catalog.ClubMembers)
		})

		r.Get("/categories", categories.List)
		r.Get("/news", newsHandler.Latest)

		r.Route("/auth", func(r chi.Router) {
			r.Get("/me", auth.Me)

			r.Group(func(r chi.Router) {
				r.Use(csrf)
				r.Post("/logout", auth.Logout)
				r.Patch("/me", auth.UpdateMe)

				r.Group(func(r chi.Router) {
					if deps.RateLimiter != nil {
						r.Use(deps.RateLimiter.AuthMiddleware())
					}
					r.Post("/login", auth.Login)
					r.Post("/signup", auth.Signup)
				})
			})
		})
	})

	// ページシェル。CSRFトークンCookieの発行も兼ねる
	r.Group(func(r chi.Router) {
		r.Use(csrf)
		r.Get("/", pages.Page("anime", "Discover anime"))
		r.Get("/anime/{id}", pages.Page("anime-detail", "Anime"))
		r.Get("/manga", pages.Page("manga", "Manga"))
		r.Get("/manga/{id}", pages.Page("manga-detail", "Manga"))
		r.Get("/clubs", pages.Page("clubs", "Clubs"))
		r.Get("/clubs/{id}", pages.Page("club-detail", "Club"))
		r.Get("/rankings", pages.Page("rankings", "Top manga"))
		r.Get("/profile", pages.Page("profile", "Profile"))
		r.Get("/favorites", pages.Page("favorites", "Favorites"))
		r.Get("/settings", pages.Page("settings", "Settings"))
		r.Get("/premium", pages.Page("premium", "Premium"))
		r.Get("/auth/login", pages.Page("login", "Log in"))
		r.Get("/auth/signup", pages.Page("signup", "Sign up"))
	})

	r.NotFound(pages.NotFound)

	return r, nil
}
