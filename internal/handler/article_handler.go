package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/execdash/internal/model"
)

const (
	defaultArticleLimit = 20
	maxArticleLimit     = 100
)

// ArticleStore は記事一覧ハンドラーが必要とする永続化インターフェース。
type ArticleStore interface {
	List(ctx context.Context, filter model.ArticleFilter) ([]model.ArticleWithSource, int, error)
}

// ArticleHandler は記事一覧のHTTPハンドラー。
type ArticleHandler struct {
	store  ArticleStore
	logger *slog.Logger
}

// NewArticleHandler はArticleHandlerを生成する。
func NewArticleHandler(store ArticleStore, logger *slog.Logger) *ArticleHandler {
	return &ArticleHandler{store: store, logger: logger}
}

// articleResponse は記事一覧の要素。
type articleResponse struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Summary        string    `json:"summary"`
	Category       string    `json:"category"`
	ImpactLevel    string    `json:"impactLevel"`
	RelevanceScore int       `json:"relevanceScore"`
	SourceURL      string    `json:"sourceUrl"`
	SourceName     string    `json:"sourceName"`
	PublishedAt    time.Time `json:"publishedAt"`
}

// ListArticles は記事一覧をpublishedAt降順、relevanceScore降順で返す。
// GET /api/articles
func (h *ArticleHandler) ListArticles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := parsePaging(r, defaultArticleLimit, maxArticleLimit)

	filter := model.ArticleFilter{
		Category: q.Get("category"),
		Impact:   q.Get("impact"),
		Limit:    limit,
		Offset:   offset,
	}

	for _, p := range []struct {
		name string
		dst  **time.Time
	}{
		{"from", &filter.From},
		{"to", &filter.To},
	} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		t, ok := parseDateParam(v)
		if !ok {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidDateError(p.name, v))
			return
		}
		*p.dst = &t
	}

	articles, total, err := h.store.List(r.Context(), filter)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	resp := make([]articleResponse, 0, len(articles))
	for _, a := range articles {
		resp = append(resp, articleResponse{
			ID:             a.ID,
			Title:          a.Title,
			Summary:        a.Summary,
			Category:       string(a.Category),
			ImpactLevel:    string(a.ImpactLevel),
			RelevanceScore: a.RelevanceScore,
			SourceURL:      a.SourceURL,
			SourceName:     a.SourceName,
			PublishedAt:    a.PublishedAt,
		})
	}

	writeList(w, resp, total, limit, offset)
}

// parseDateParam はRFC3339またはYYYY-MM-DD形式の日時を解析する。
// 日付のみの場合はUTCの0時とする。
func parseDateParam(v string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, true
	}
	return time.Time{}, false
}
