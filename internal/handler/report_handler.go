package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/execdash/internal/middleware"
	"github.com/hitoshi/execdash/internal/model"
	"github.com/hitoshi/execdash/internal/report"
	"github.com/hitoshi/execdash/internal/repository"
)

const (
	defaultReportLimit = 10
	maxReportLimit     = 50
)

// ReportStore はレポートハンドラーが必要とする永続化インターフェース。
type ReportStore interface {
	FindByID(ctx context.Context, id string) (*model.ReportWithArticles, error)
	List(ctx context.Context, filter model.ReportFilter) ([]*model.Report, int, error)
	Publish(ctx context.Context, id string, at time.Time) error
}

// WeeklyReportGenerator は週次レポートを生成する。
type WeeklyReportGenerator interface {
	GenerateWeeklyReport(ctx context.Context, week, year *int) (*report.GenerateResult, error)
}

// MarkdownRenderer はレポート本文のMarkdownをサニタイズ済みHTMLに変換する。
type MarkdownRenderer interface {
	Render(markdown string) (string, error)
}

// ReportHandler はレポートのHTTPハンドラー。
type ReportHandler struct {
	store     ReportStore
	generator WeeklyReportGenerator
	renderer  MarkdownRenderer
	adminKey  string
	logger    *slog.Logger
	now       func() time.Time
}

// NewReportHandler はReportHandlerを生成する。
// adminKeyは未公開レポートの閲覧可否の判定に使う。
func NewReportHandler(store ReportStore, generator WeeklyReportGenerator, renderer MarkdownRenderer, adminKey string, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{
		store:     store,
		generator: generator,
		renderer:  renderer,
		adminKey:  adminKey,
		logger:    logger,
		now:       time.Now,
	}
}

// generateReportRequest はレポート生成リクエストのボディ。省略時は現在のISO週。
type generateReportRequest struct {
	Week *int `json:"week"`
	Year *int `json:"year"`
}

// reportSummaryResponse はレポート一覧の要素。
type reportSummaryResponse struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Week         int        `json:"week"`
	Year         int        `json:"year"`
	Status       string     `json:"status"`
	ArticleCount int        `json:"articleCount"`
	PublishedAt  *time.Time `json:"publishedAt"`
}

// reportArticleResponse はレポート詳細に含める記事参照。
type reportArticleResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	SourceURL string `json:"sourceUrl"`
	Category  string `json:"category"`
}

// reportDetailResponse はレポート詳細のAPIレスポンス。
type reportDetailResponse struct {
	ID                string                  `json:"id"`
	Title             string                  `json:"title"`
	Week              int                     `json:"week"`
	Year              int                     `json:"year"`
	Content           string                  `json:"content"`
	ContentHTML       string                  `json:"contentHtml"`
	Status            string                  `json:"status"`
	Version           int                     `json:"version"`
	ArticleCount      int                     `json:"articleCount"`
	CategoryBreakdown map[string]int          `json:"categoryBreakdown"`
	GeneratedAt       time.Time               `json:"generatedAt"`
	PublishedAt       *time.Time              `json:"publishedAt"`
	Articles          []reportArticleResponse `json:"articles"`
}

// GenerateReport は週次レポートを同期生成する。
// POST /api/reports/generate
func (h *ReportHandler) GenerateReport(w http.ResponseWriter, r *http.Request) {
	var req generateReportRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	result, err := h.generator.GenerateWeeklyReport(r.Context(), req.Week, req.Year)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
			return
		}
		h.logger.Error("レポート生成に失敗しました", slog.String("error", err.Error()))
		writeAPIErrorResponse(w, http.StatusInternalServerError, model.NewReportGenerationFailedError(err))
		return
	}

	writeData(w, http.StatusOK, result)
}

// ListReports はレポート一覧をyear降順、week降順で返す。
// 管理APIキーがない場合は公開済みのみ。キーがある場合はstatusクエリで絞り込める。
// GET /api/reports
func (h *ReportHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePaging(r, defaultReportLimit, maxReportLimit)
	filter := model.ReportFilter{
		Status: model.ReportStatusPublished,
		Limit:  limit,
		Offset: offset,
	}

	if middleware.AdminKeyMatches(r, h.adminKey) {
		filter.Status = model.ReportStatus(r.URL.Query().Get("status"))
	}

	if v := r.URL.Query().Get("year"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil || year < report.MinYear || year > report.MaxYear {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidParameterError("year", v))
			return
		}
		filter.Year = &year
	}

	reports, total, err := h.store.List(r.Context(), filter)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	resp := make([]reportSummaryResponse, 0, len(reports))
	for _, rp := range reports {
		resp = append(resp, reportSummaryResponse{
			ID:           rp.ID,
			Title:        rp.Title,
			Week:         rp.Week,
			Year:         rp.Year,
			Status:       string(rp.Status),
			ArticleCount: rp.ArticleCount,
			PublishedAt:  rp.PublishedAt,
		})
	}

	writeList(w, resp, total, limit, offset)
}

// GetReport はレポート詳細を紐付け記事付きで返す。
// 未公開レポートは管理APIキーがある場合のみ返し、それ以外は404とする。
// GET /api/reports/{id}
func (h *ReportHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !isValidID(id) {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewReportNotFoundError(id))
		return
	}

	rp, err := h.store.FindByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	if rp == nil || (rp.Status != model.ReportStatusPublished && !middleware.AdminKeyMatches(r, h.adminKey)) {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewReportNotFoundError(id))
		return
	}

	html, err := h.renderer.Render(rp.Content)
	if err != nil {
		// Markdownは常に返せるため、HTML変換の失敗はログのみとする
		h.logger.Warn("レポートHTMLの生成に失敗しました",
			slog.String("report_id", rp.ID),
			slog.String("error", err.Error()),
		)
	}

	articles := make([]reportArticleResponse, 0, len(rp.Articles))
	for _, a := range rp.Articles {
		articles = append(articles, reportArticleResponse{
			ID:        a.ID,
			Title:     a.Title,
			SourceURL: a.SourceURL,
			Category:  string(a.Category),
		})
	}

	writeData(w, http.StatusOK, reportDetailResponse{
		ID:                rp.ID,
		Title:             rp.Title,
		Week:              rp.Week,
		Year:              rp.Year,
		Content:           rp.Content,
		ContentHTML:       html,
		Status:            string(rp.Status),
		Version:           rp.Version,
		ArticleCount:      rp.ArticleCount,
		CategoryBreakdown: rp.CategoryBreakdown,
		GeneratedAt:       rp.GeneratedAt,
		PublishedAt:       rp.PublishedAt,
		Articles:          articles,
	})
}

// PublishReport はレポートを公開状態にする。
// POST /api/admin/reports/{id}/publish
func (h *ReportHandler) PublishReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !isValidID(id) {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewReportNotFoundError(id))
		return
	}

	at := h.now().UTC()
	if err := h.store.Publish(r.Context(), id, at); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeAPIErrorResponse(w, http.StatusNotFound, model.NewReportNotFoundError(id))
			return
		}
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("レポートを公開しました", slog.String("report_id", id))

	writeData(w, http.StatusOK, map[string]any{
		"id":          id,
		"status":      model.ReportStatusPublished,
		"publishedAt": at,
	})
}
