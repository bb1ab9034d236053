package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/execdash/internal/model"
)

// 合成に失敗した場合に使う固定文言。
const (
	NoDevelopmentsSummary   = "No significant developments this week."
	AnalysisUnavailable     = "Analysis unavailable."
	ExecutiveSummaryFailed  = "Executive summary generation failed."
	ExecutiveSummaryMissing = "Summary unavailable."
)

// フォールバック発生箇所のラベル。
const (
	SiteCategorySummary  = "category_summary"
	SiteExecutiveSummary = "executive_summary"
)

// FallbackRecorder はフォールバック発生を記録する。metrics.Collectorが実装する。
type FallbackRecorder interface {
	RecordLLMFallback(site string)
}

// ArticleDigest はカテゴリ要約プロンプトに渡す記事の抜粋。
type ArticleDigest struct {
	Title       string
	Summary     string
	ImpactLevel model.ImpactLevel
}

// CategorySummary はカテゴリ単位のトレンド要約。
type CategorySummary struct {
	Category        model.Category
	Count           int
	Summary         string
	KeyDevelopments []string
}

// ExecutiveSummary は全カテゴリを横断した経営層向け要約。
type ExecutiveSummary struct {
	Summary            string
	ActionableInsights []string
}

// Synthesizer は上位モデルでカテゴリ要約とエグゼクティブサマリーを生成する。
// 生成に失敗しても固定文言で補完し、エラーは返さない。
type Synthesizer struct {
	gen      TextGenerator
	model    string
	logger   *slog.Logger
	recorder FallbackRecorder
}

// NewSynthesizer はSynthesizerを生成する。recorderはnilでもよい。
func NewSynthesizer(gen TextGenerator, modelName string, logger *slog.Logger, recorder FallbackRecorder) *Synthesizer {
	return &Synthesizer{gen: gen, model: modelName, logger: logger, recorder: recorder}
}

type categorySummaryResponse struct {
	Summary         string   `json:"summary"`
	KeyDevelopments []string `json:"keyDevelopments"`
}

type executiveSummaryResponse struct {
	ExecutiveSummary   string   `json:"executiveSummary"`
	ActionableInsights []string `json:"actionableInsights"`
}

// SummarizeCategory はカテゴリの記事群からトレンド要約を生成する。
// 記事が0件の場合はモデルを呼び出さない。
func (s *Synthesizer) SummarizeCategory(ctx context.Context, category model.Category, articles []ArticleDigest) CategorySummary {
	if len(articles) == 0 {
		return CategorySummary{Category: category, Summary: NoDevelopmentsSummary, KeyDevelopments: []string{}}
	}

	result := CategorySummary{
		Category:        category,
		Count:           len(articles),
		Summary:         AnalysisUnavailable,
		KeyDevelopments: []string{},
	}

	raw, err := s.gen.GenerateText(ctx, s.model, buildCategoryPrompt(category, articles))
	if err != nil {
		s.fallback(SiteCategorySummary, err, slog.String("category", string(category)))
		return result
	}

	var resp categorySummaryResponse
	if err := decodeResponse(raw, &resp); err != nil {
		s.fallback(SiteCategorySummary, err, slog.String("category", string(category)))
		return result
	}

	if summary := strings.TrimSpace(resp.Summary); summary != "" {
		result.Summary = summary
	}
	result.KeyDevelopments = nonEmpty(resp.KeyDevelopments)
	return result
}

// SummarizeExecutive は件数が1以上のカテゴリ要約からエグゼクティブサマリーを生成する。
func (s *Synthesizer) SummarizeExecutive(ctx context.Context, summaries []CategorySummary, totalArticles int) ExecutiveSummary {
	result := ExecutiveSummary{Summary: ExecutiveSummaryFailed, ActionableInsights: []string{}}

	raw, err := s.gen.GenerateText(ctx, s.model, buildExecutivePrompt(summaries, totalArticles))
	if err != nil {
		s.fallback(SiteExecutiveSummary, err)
		return result
	}

	var resp executiveSummaryResponse
	if err := decodeResponse(raw, &resp); err != nil {
		s.fallback(SiteExecutiveSummary, err)
		return result
	}

	result.Summary = strings.TrimSpace(resp.ExecutiveSummary)
	if result.Summary == "" {
		result.Summary = ExecutiveSummaryMissing
	}
	result.ActionableInsights = nonEmpty(resp.ActionableInsights)
	return result
}

func (s *Synthesizer) fallback(site string, err error, attrs ...any) {
	if s.recorder != nil {
		s.recorder.RecordLLMFallback(site)
	}
	if s.logger != nil {
		args := append([]any{slog.String("site", site), slog.String("error", err.Error())}, attrs...)
		s.logger.Warn("要約の生成に失敗したため固定文言を使用します", args...)
	}
}

func nonEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func buildCategoryPrompt(category model.Category, articles []ArticleDigest) string {
	lines := make([]string, len(articles))
	for i, a := range articles {
		lines[i] = fmt.Sprintf("%d. [%s] %s\n   %s", i+1, a.ImpactLevel, a.Title, a.Summary)
	}

	return fmt.Sprintf(`Analyze these %s articles and provide a trend summary for executives.

ARTICLES:
%s

Respond in JSON format:
{
  "summary": "2-3 sentence trend analysis for this category",
  "keyDevelopments": ["key point 1", "key point 2", "key point 3"]
}`, category, strings.Join(lines, "\n\n"))
}

func buildExecutivePrompt(summaries []CategorySummary, totalArticles int) string {
	var parts []string
	for _, cs := range summaries {
		if cs.Count == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("**%s** (%d articles): %s", cs.Category, cs.Count, cs.Summary))
	}

	return fmt.Sprintf(`You are an executive AI strategist. Based on this week's AI news analysis, provide an executive summary and actionable insights.

CATEGORY SUMMARIES:
%s

TOTAL ARTICLES ANALYZED: %d

Respond in JSON format:
{
  "executiveSummary": "200-300 word high-level overview synthesizing all trends",
  "actionableInsights": [
    "Insight 1: actionable recommendation",
    "Insight 2: actionable recommendation",
    "Insight 3: actionable recommendation"
  ]
}`, strings.Join(parts, "\n\n"), totalArticles)
}
