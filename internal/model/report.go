package model

import "time"

// ReportStatus はレポートの公開状態。
type ReportStatus string

const (
	// ReportStatusCompleted は生成済みで未公開の状態。
	ReportStatusCompleted ReportStatus = "completed"
	// ReportStatusPublished は公開済みの状態。
	ReportStatusPublished ReportStatus = "published"
)

// DefaultReportTitle は新規作成時のレポートタイトル。
const DefaultReportTitle = "Weekly AI Strategic Briefing"

// MaxReportArticles はレポートに紐付ける記事の上限。
const MaxReportArticles = 50

// Report は週次レポートを表す。(Week, Year)で一意。
type Report struct {
	ID                string
	Title             string
	Week              int
	Year              int
	Content           string
	Status            ReportStatus
	Version           int
	ArticleCount      int
	CategoryBreakdown map[string]int
	GeneratedAt       time.Time
	PublishedAt       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ReportArticleRef はレポート詳細に含める記事の参照。
type ReportArticleRef struct {
	ID        string
	Title     string
	SourceURL string
	Category  Category
}

// ReportWithArticles はレポートと紐付け記事を結合した構造体。
type ReportWithArticles struct {
	Report
	Articles []ReportArticleRef
}

// ReportFilter はレポート一覧の絞り込み条件。
type ReportFilter struct {
	Status ReportStatus
	Year   *int
	Limit  int
	Offset int
}
