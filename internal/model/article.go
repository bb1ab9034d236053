package model

import (
	"math"
	"time"
)

// Category は記事の分類カテゴリ。
type Category string

const (
	CategoryFoundationModels Category = "Foundation Models"
	CategoryOrchestration    Category = "Orchestration & Agents"
	CategoryForDevelopers    Category = "For Developers"
	CategoryImageGeneration  Category = "Image Generation"
	CategoryVideoProduction  Category = "Video Production"
	CategoryAudioTechnology  Category = "Audio Technology"
	CategoryVerticalAgents   Category = "Vertical AI Agents"
)

// DefaultCategory は分類結果が不正な場合に使うカテゴリ。
const DefaultCategory = CategoryFoundationModels

// Categories はレポートでの表示順に並べた全カテゴリ。
var Categories = []Category{
	CategoryFoundationModels,
	CategoryOrchestration,
	CategoryForDevelopers,
	CategoryImageGeneration,
	CategoryVideoProduction,
	CategoryAudioTechnology,
	CategoryVerticalAgents,
}

// IsValidCategory は文字列が既知のカテゴリと完全一致するかを返す。
func IsValidCategory(s string) bool {
	for _, c := range Categories {
		if string(c) == s {
			return true
		}
	}
	return false
}

// CoerceCategory は未知のカテゴリをDefaultCategoryに置き換える。
func CoerceCategory(s string) Category {
	if IsValidCategory(s) {
		return Category(s)
	}
	return DefaultCategory
}

// ImpactLevel は記事のインパクト度。
type ImpactLevel string

const (
	ImpactHigh   ImpactLevel = "High"
	ImpactMedium ImpactLevel = "Medium"
	ImpactLow    ImpactLevel = "Low"
)

// IsValidImpact は文字列が既知のインパクト度と完全一致するかを返す。
func IsValidImpact(s string) bool {
	switch ImpactLevel(s) {
	case ImpactHigh, ImpactMedium, ImpactLow:
		return true
	}
	return false
}

// CoerceImpact は未知のインパクト度をMediumに置き換える。
func CoerceImpact(s string) ImpactLevel {
	if IsValidImpact(s) {
		return ImpactLevel(s)
	}
	return ImpactMedium
}

// ClampRelevance はスコアを四捨五入して0〜100に収める。
func ClampRelevance(score float64) int {
	// int変換の前に範囲へ収める。範囲外のfloatのint変換は値が不定になる
	switch {
	case math.IsNaN(score), score <= 0:
		return 0
	case score >= 100:
		return 100
	}
	return int(math.Round(score))
}

// Article は分類済みの記事を表す。作成後は更新しない。
type Article struct {
	ID             string
	Title          string
	Summary        string
	Content        string
	SourceURL      string
	SourceID       string
	Category       Category
	ImpactLevel    ImpactLevel
	RelevanceScore int
	PublishedAt    time.Time
	CreatedAt      time.Time
}

// ArticleWithSource は記事とソース名を結合した構造体。
type ArticleWithSource struct {
	Article
	SourceName string
}

// ArticleFilter は記事一覧の絞り込み条件。
type ArticleFilter struct {
	Category string
	Impact   string
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}

// ParsedItem はフィードやブログから取り出した未分類の記事。
type ParsedItem struct {
	Title       string
	Link        string
	Content     string
	PublishedAt time.Time
}

// Classification はテキスト生成サービスによる記事の分類結果。
type Classification struct {
	Category       Category
	Summary        string
	RelevanceScore int
	ImpactLevel    ImpactLevel
}
