// Package model はドメインモデルを定義する。
package model

import "time"

// SourceType は取得元の種別を表す。
type SourceType string

const (
	// SourceTypeRSS はRSS/Atomフィード。
	SourceTypeRSS SourceType = "rss"
	// SourceTypeBlog はHTMLをスクレイピングするブログページ。
	SourceTypeBlog SourceType = "blog"
)

// DefaultFetchIntervalMinutes はソース作成時のフェッチ間隔のデフォルト値（分）。
const DefaultFetchIntervalMinutes = 240

// IsValid は種別が既知の値かを返す。
func (t SourceType) IsValid() bool {
	return t == SourceTypeRSS || t == SourceTypeBlog
}

// Source は記事の取得元を表す。
type Source struct {
	ID            string
	Name          string
	Type          SourceType
	URL           string
	CategoryHint  string
	Enabled       bool
	FetchInterval int
	LastFetchedAt *time.Time
	FailureCount  int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SourceWithCount はソースと記事件数を結合した構造体。
type SourceWithCount struct {
	Source
	ArticleCount int
}

// SourcePatch はソースの部分更新内容を表す。nilのフィールドは変更しない。
type SourcePatch struct {
	Name          *string
	Type          *SourceType
	URL           *string
	CategoryHint  *string
	Enabled       *bool
	FetchInterval *int
}

// Apply はパッチの内容をソースに反映する。
func (p SourcePatch) Apply(s *Source) {
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Type != nil {
		s.Type = *p.Type
	}
	if p.URL != nil {
		s.URL = *p.URL
	}
	if p.CategoryHint != nil {
		s.CategoryHint = *p.CategoryHint
	}
	if p.Enabled != nil {
		s.Enabled = *p.Enabled
	}
	if p.FetchInterval != nil {
		s.FetchInterval = *p.FetchInterval
	}
}
