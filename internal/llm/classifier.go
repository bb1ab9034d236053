package llm

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/execdash/internal/model"
)

// MaxClassifyContentChars は分類プロンプトに含める本文の最大文字数。
const MaxClassifyContentChars = 3000

// Classifier は記事をカテゴリ・要約・関連度・影響度に分類する。
type Classifier struct {
	gen   TextGenerator
	model string
}

// NewClassifier は高速モデルを使うClassifierを生成する。
func NewClassifier(gen TextGenerator, modelName string) *Classifier {
	return &Classifier{gen: gen, model: modelName}
}

// classificationResponse はモデル応答のJSON表現。
// relevanceScoreは小数で返されることがあるためfloat64で受ける。
type classificationResponse struct {
	Category       string  `json:"category"`
	Summary        string  `json:"summary"`
	RelevanceScore float64 `json:"relevanceScore"`
	ImpactLevel    string  `json:"impactLevel"`
}

// Classify は記事を分類する。生成エラーや不正な応答はエラーとして返す。
// 未知のカテゴリ・影響度と範囲外の関連度は既定値に補正する。
func (c *Classifier) Classify(ctx context.Context, title, content, categoryHint string) (*model.Classification, error) {
	raw, err := c.gen.GenerateText(ctx, c.model, buildClassificationPrompt(title, content, categoryHint))
	if err != nil {
		return nil, fmt.Errorf("failed to classify article: %w", err)
	}

	var resp classificationResponse
	if err := decodeResponse(raw, &resp); err != nil {
		return nil, err
	}

	return &model.Classification{
		Category:       model.CoerceCategory(resp.Category),
		Summary:        strings.TrimSpace(resp.Summary),
		RelevanceScore: model.ClampRelevance(resp.RelevanceScore),
		ImpactLevel:    model.CoerceImpact(resp.ImpactLevel),
	}, nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

func buildClassificationPrompt(title, content, categoryHint string) string {
	var b strings.Builder
	b.WriteString("You are an AI news analyst for executives. Classify this article and provide analysis.\n\n")
	fmt.Fprintf(&b, "ARTICLE TITLE: %s\n\n", title)
	fmt.Fprintf(&b, "ARTICLE CONTENT:\n%s\n\n", truncateRunes(content, MaxClassifyContentChars))
	b.WriteString("AVAILABLE CATEGORIES:\n")
	for i, cat := range model.Categories {
		fmt.Fprintf(&b, "%d. %s\n", i+1, cat)
	}
	if hint := strings.TrimSpace(categoryHint); hint != "" {
		fmt.Fprintf(&b, "\nSOURCE CATEGORY HINT: %s (use it only when the content fits)\n", hint)
	}
	b.WriteString(`
Respond in JSON format only:
{
  "category": "one of the categories above",
  "summary": "2-3 sentence executive summary",
  "relevanceScore": 0-100 (how relevant to AI executives),
  "impactLevel": "High" | "Medium" | "Low"
}

Scoring guide:
- High impact: Major announcements, significant market shifts, new capabilities
- Medium impact: Notable updates, partnerships, research findings
- Low impact: Minor updates, opinion pieces, general news
- Relevance 80-100: Directly affects AI strategy decisions
- Relevance 50-79: Useful context for executives
- Relevance 0-49: General tech news, low executive relevance`)
	return b.String()
}
