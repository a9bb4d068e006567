package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/habitman/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	UserResolver      middleware.UserResolver
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	HTTPMetrics       middleware.HTTPMetrics

	// 認証・登録
	AuthService AuthServiceInterface
	UserService UserServiceInterface

	// 習慣
	HabitService      HabitServiceInterface
	CompletionMetrics CompletionMetrics

	// 運用系エンドポイント
	HealthDB       Pinger
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → (Logging) → (Metrics) → AuthMiddleware → RateLimit
//
// 認証ルート（/api/auth/*）と運用系（/health, /metrics）はAuthMiddlewareの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	if deps.HTTPMetrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.HTTPMetrics))
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.UserService)
	habitHandler := NewHabitHandler(deps.HabitService, deps.CompletionMetrics)

	// --- 認証不要のルート ---

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/telegram", authHandler.TelegramAuth)
		r.Post("/register", authHandler.Register)
	})

	if deps.HealthDB != nil {
		healthHandler := NewHealthHandler(deps.HealthDB)
		r.Get("/health", healthHandler.Health)
	}

	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.UserResolver))
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.GeneralMiddleware())
		}

		r.Route("/api/habits", func(r chi.Router) {
			r.Get("/", habitHandler.ListHabits)
			r.Post("/", habitHandler.CreateHabit)
			r.Get("/active", habitHandler.ListActiveHabits)
			r.Get("/stats", habitHandler.GetStats)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", habitHandler.GetHabit)
				r.Patch("/", habitHandler.UpdateHabit)
				r.Delete("/", habitHandler.DeleteHabit)
				r.Post("/complete", habitHandler.CompleteHabit)
			})
		})
	})

	return r
}
