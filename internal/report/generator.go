// Package report は週次エグゼクティブレポートの生成を提供する。
package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/execdash/internal/llm"
	"github.com/hitoshi/execdash/internal/model"
	"github.com/hitoshi/execdash/internal/repository"
)

const (
	// MinRelevance はレポート対象とする記事の最小関連度。
	MinRelevance = 60
	// MaxWeekArticles は1レポートで集計する記事の上限。
	MaxWeekArticles = 100
	// MaxDigestPerCategory はカテゴリ要約に渡す記事の上限。
	MaxDigestPerCategory = 10
)

// Summarizer はカテゴリ要約とエグゼクティブサマリーを生成する。
// 実装は失敗時も固定文言で結果を返す。
type Summarizer interface {
	SummarizeCategory(ctx context.Context, category model.Category, articles []llm.ArticleDigest) llm.CategorySummary
	SummarizeExecutive(ctx context.Context, summaries []llm.CategorySummary, totalArticles int) llm.ExecutiveSummary
}

// ReportRecorder はレポート生成のメトリクスを記録する。
type ReportRecorder interface {
	RecordReportGenerated()
}

// GenerateResult はレポート生成の結果。
type GenerateResult struct {
	ReportID     string `json:"reportId"`
	Week         int    `json:"week"`
	Year         int    `json:"year"`
	Version      int    `json:"version"`
	ArticleCount int    `json:"articleCount"`
}

// Generator は週次レポートを生成し、(week, year)単位でUPSERTする。
type Generator struct {
	articleRepo repository.ArticleRepository
	reportRepo  repository.ReportRepository
	summarizer  Summarizer
	recorder    ReportRecorder
	logger      *slog.Logger
	now         func() time.Time
}

// NewGenerator はGeneratorを生成する。recorderはnilでもよい。
func NewGenerator(
	articleRepo repository.ArticleRepository,
	reportRepo repository.ReportRepository,
	summarizer Summarizer,
	recorder ReportRecorder,
	logger *slog.Logger,
) *Generator {
	return &Generator{
		articleRepo: articleRepo,
		reportRepo:  reportRepo,
		summarizer:  summarizer,
		recorder:    recorder,
		logger:      logger,
		now:         time.Now,
	}
}

// GenerateWeeklyReport は指定週のレポートを生成する。
// week・yearがnilの場合は現在のISO週を使う。範囲外の値はINVALID_WEEKを返す。
// 要約生成の失敗は固定文言で補完され、永続化の失敗のみエラーとなる。
func (g *Generator) GenerateWeeklyReport(ctx context.Context, week, year *int) (*GenerateResult, error) {
	start := time.Now()

	targetWeek, targetYear := CurrentWeek(g.now())
	if week != nil {
		targetWeek = *week
	}
	if year != nil {
		targetYear = *year
	}
	if err := ValidateWeek(targetWeek, targetYear); err != nil {
		return nil, err
	}

	from, to := WeekRange(targetWeek, targetYear)
	articles, err := g.articleRepo.ListForWeek(ctx, from, to, MinRelevance, MaxWeekArticles)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles for week %d/%d: %w", targetWeek, targetYear, err)
	}

	buckets := bucketByCategory(articles)

	summaries := make([]llm.CategorySummary, 0, len(model.Categories))
	for _, cat := range model.Categories {
		cs := g.summarizer.SummarizeCategory(ctx, cat, digests(buckets[cat]))
		// 要約には先頭MaxDigestPerCategory件のみ渡すが、件数はカテゴリ全体で数える
		cs.Count = len(buckets[cat])
		summaries = append(summaries, cs)
	}
	executive := g.summarizer.SummarizeExecutive(ctx, summaries, len(articles))

	content := RenderMarkdown(targetWeek, targetYear, executive, summaries, articles)

	breakdown := make(map[string]int, len(summaries))
	for _, cs := range summaries {
		breakdown[string(cs.Category)] = cs.Count
	}

	rp, err := g.upsert(ctx, targetWeek, targetYear, content, len(articles), breakdown)
	if err != nil {
		return nil, err
	}

	linked := articles
	if len(linked) > model.MaxReportArticles {
		linked = linked[:model.MaxReportArticles]
	}
	ids := make([]string, len(linked))
	for i, a := range linked {
		ids[i] = a.ID
	}
	if err := g.reportRepo.ReplaceArticles(ctx, rp.ID, ids); err != nil {
		return nil, fmt.Errorf("failed to link report articles: %w", err)
	}

	if g.recorder != nil {
		g.recorder.RecordReportGenerated()
	}

	g.logger.Info("週次レポートを生成しました",
		slog.String("report_id", rp.ID),
		slog.Int("week", targetWeek),
		slog.Int("year", targetYear),
		slog.Int("version", rp.Version),
		slog.Int("article_count", len(articles)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return &GenerateResult{
		ReportID:     rp.ID,
		Week:         targetWeek,
		Year:         targetYear,
		Version:      rp.Version,
		ArticleCount: len(articles),
	}, nil
}

// upsert は(week, year)のレポートがあれば内容を上書きしてversionを上げ、なければ作成する。
func (g *Generator) upsert(ctx context.Context, week, year int, content string, count int, breakdown map[string]int) (*model.Report, error) {
	now := g.now().UTC()

	existing, err := g.reportRepo.FindByWeek(ctx, week, year)
	if err != nil {
		return nil, fmt.Errorf("failed to find report: %w", err)
	}

	if existing != nil {
		existing.Content = content
		existing.ArticleCount = count
		existing.CategoryBreakdown = breakdown
		existing.GeneratedAt = now
		existing.UpdatedAt = now
		if err := g.reportRepo.UpdateContent(ctx, existing); err != nil {
			return nil, fmt.Errorf("failed to update report: %w", err)
		}
		return existing, nil
	}

	rp := &model.Report{
		ID:                uuid.New().String(),
		Title:             model.DefaultReportTitle,
		Week:              week,
		Year:              year,
		Content:           content,
		Status:            model.ReportStatusCompleted,
		Version:           1,
		ArticleCount:      count,
		CategoryBreakdown: breakdown,
		GeneratedAt:       now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := g.reportRepo.Create(ctx, rp); err != nil {
		return nil, fmt.Errorf("failed to create report: %w", err)
	}
	return rp, nil
}

// bucketByCategory は記事を並び順を保ったままカテゴリ別に振り分ける。
// 未知のカテゴリの記事はどのバケットにも入らない。
func bucketByCategory(articles []*model.Article) map[model.Category][]*model.Article {
	buckets := make(map[model.Category][]*model.Article, len(model.Categories))
	for _, a := range articles {
		if model.IsValidCategory(string(a.Category)) {
			buckets[a.Category] = append(buckets[a.Category], a)
		}
	}
	return buckets
}

func digests(articles []*model.Article) []llm.ArticleDigest {
	if len(articles) > MaxDigestPerCategory {
		articles = articles[:MaxDigestPerCategory]
	}
	out := make([]llm.ArticleDigest, len(articles))
	for i, a := range articles {
		out[i] = llm.ArticleDigest{Title: a.Title, Summary: a.Summary, ImpactLevel: a.ImpactLevel}
	}
	return out
}
