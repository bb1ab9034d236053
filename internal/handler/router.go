// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/execdash/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	CORSAllowedOrigin string
	AdminAPIKey       string
	RateLimiter       *middleware.RateLimiter

	// ソース
	Sources      SourceStore
	URLValidator URLValidator

	// 取り込み
	SourceFetcher SingleSourceFetcher
	DueFetcher    DueSourcesFetcher

	// レポート
	Reports         ReportStore
	ReportGenerator WeeklyReportGenerator
	Renderer        MarkdownRenderer

	// 記事
	Articles ArticleStore

	// 運用
	DB             Pinger
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → Recovery → SecurityHeaders → CORS → Logging → RateLimit(General)
//
// 管理ルートにはAdminAuthを、取り込み・レポート生成には追加でRateLimit(AdminJobs)を適用する。
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	sourceHandler := NewSourceHandler(deps.Sources, deps.URLValidator, deps.Logger)
	ingestHandler := NewIngestHandler(deps.SourceFetcher, deps.DueFetcher, deps.Logger)
	reportHandler := NewReportHandler(deps.Reports, deps.ReportGenerator, deps.Renderer, deps.AdminAPIKey, deps.Logger)
	articleHandler := NewArticleHandler(deps.Articles, deps.Logger)

	r.Get("/health", NewHealthHandler(deps.DB, deps.Logger))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 公開ルート
		r.Get("/api/reports", reportHandler.ListReports)
		r.Get("/api/reports/{id}", reportHandler.GetReport)
		r.Get("/api/articles", articleHandler.ListArticles)

		// 管理ルート
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewAdminAuthMiddleware(deps.AdminAPIKey, deps.Logger))

			r.Route("/api/admin/sources", func(r chi.Router) {
				r.Get("/", sourceHandler.ListSources)
				r.Post("/", sourceHandler.CreateSource)
				r.Patch("/{id}", sourceHandler.UpdateSource)
				r.Delete("/{id}", sourceHandler.DeleteSource)
			})
			r.Post("/api/admin/reports/{id}/publish", reportHandler.PublishReport)

			// 取り込み・レポート生成は同期実行のため専用のレート制限を追加する
			r.With(deps.RateLimiter.AdminJobsMiddleware()).Post("/api/ingest", ingestHandler.Ingest)
			r.With(deps.RateLimiter.AdminJobsMiddleware()).Post("/api/reports/generate", reportHandler.GenerateReport)
		})
	})

	return r
}
