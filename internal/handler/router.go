package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/cronpost/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger      *slog.Logger
	RateLimiter *middleware.RateLimiter

	DB             Pinger
	MetricsHandler http.Handler
	Scanner        ScanRunner
	TriggerToken   string
	BounceIngester BounceIngester
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders
//
// レート制限はトリガーとWebhookのエンドポイントにのみ個別に適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	healthHandler := NewHealthHandler(deps.DB, deps.Logger)
	triggerHandler := NewTriggerHandler(deps.Scanner, deps.TriggerToken, deps.Logger)
	webhookHandler := NewWebhookHandler(deps.BounceIngester, deps.Logger)

	r.Get("/healthz", healthHandler.Healthz)
	r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)

	r.With(deps.RateLimiter.TriggerMiddleware()).
		Post("/internal/scan", triggerHandler.TriggerScan)

	r.With(deps.RateLimiter.WebhookMiddleware()).
		Post("/webhooks/email", webhookHandler.HandleEmailEvent)

	return r
}
