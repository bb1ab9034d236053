// Package repository はデータ永続化のインターフェースとPostgreSQL実装を提供する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/execdash/internal/model"
)

// SourceRepository は取得元データの永続化インターフェース。
type SourceRepository interface {
	// FindByID は指定IDのソースを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Source, error)

	// FindByURL はURLでソースを検索する。見つからない場合はnilを返す。
	FindByURL(ctx context.Context, url string) (*model.Source, error)

	// ListWithCounts は全ソースを名前昇順で記事件数付きで返す。
	ListWithCounts(ctx context.Context) ([]model.SourceWithCount, error)

	// ListDue は有効かつ未取得、またはlast_fetched_atがbeforeより古いソースを返す。
	ListDue(ctx context.Context, before time.Time) ([]*model.Source, error)

	// Create はソースを作成する。URLが重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, source *model.Source) error

	// Update はソースの編集可能な項目を更新する。対象が存在しない場合はErrNotFoundを返す。
	Update(ctx context.Context, source *model.Source) error

	// Delete はソースを削除する。記事はCASCADE削除される。
	// 対象が存在しない場合はErrNotFoundを返す。
	Delete(ctx context.Context, id string) error

	// UpdateFetchState はlast_fetched_atとfailure_countを更新する。
	UpdateFetchState(ctx context.Context, source *model.Source) error
}

// ArticleRepository は記事データの永続化インターフェース。
type ArticleRepository interface {
	// ExistsBySourceURL はsource_urlが一致する記事が存在するかを返す。
	ExistsBySourceURL(ctx context.Context, sourceURL string) (bool, error)

	// Create は記事を作成する。source_urlが既に存在する場合は何もせずfalseを返す。
	Create(ctx context.Context, article *model.Article) (bool, error)

	// List はフィルタ条件に一致する記事をソース名付きで返し、ページング前の総件数も返す。
	// published_at降順、relevance_score降順で並べる。
	List(ctx context.Context, filter model.ArticleFilter) ([]model.ArticleWithSource, int, error)

	// ListForWeek は期間[from, to)に公開されminRelevance以上の記事を
	// relevance_score降順、published_at降順でlimit件まで返す。
	ListForWeek(ctx context.Context, from, to time.Time, minRelevance, limit int) ([]*model.Article, error)
}

// ReportRepository はレポートデータの永続化インターフェース。
type ReportRepository interface {
	// FindByID は指定IDのレポートを紐付け記事付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.ReportWithArticles, error)

	// FindByWeek は(week, year)のレポートを取得する。見つからない場合はnilを返す。
	FindByWeek(ctx context.Context, week, year int) (*model.Report, error)

	// List はフィルタ条件に一致するレポートと総件数を返す。
	// year降順、week降順で並べる。
	List(ctx context.Context, filter model.ReportFilter) ([]*model.Report, int, error)

	// Create はレポートを作成する。
	Create(ctx context.Context, report *model.Report) error

	// UpdateContent は再生成時の内容を上書きし、versionを1増やす。
	UpdateContent(ctx context.Context, report *model.Report) error

	// ReplaceArticles はレポートの紐付け記事を全削除してから articleIDs を挿入する。
	// 削除と挿入は同一トランザクションで行う。
	ReplaceArticles(ctx context.Context, reportID string, articleIDs []string) error

	// Publish はレポートを公開状態にする。対象が存在しない場合はErrNotFoundを返す。
	Publish(ctx context.Context, id string, at time.Time) error
}
