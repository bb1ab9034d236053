package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/hitoshi/execdash/internal/model"
)

// psql はPostgreSQLのプレースホルダ($1, $2, ...)を使うクエリビルダ。
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresArticleRepo はPostgreSQLを使用した記事リポジトリ。
type PostgresArticleRepo struct {
	db *sql.DB
}

// NewPostgresArticleRepo はPostgresArticleRepoを生成する。
func NewPostgresArticleRepo(db *sql.DB) *PostgresArticleRepo {
	return &PostgresArticleRepo{db: db}
}

// ExistsBySourceURL はsource_urlが一致する記事が存在するかを返す。
func (r *PostgresArticleRepo) ExistsBySourceURL(ctx context.Context, sourceURL string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM articles WHERE source_url = $1)`, sourceURL,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("記事の存在確認に失敗しました: %w", err)
	}
	return exists, nil
}

// Create は記事を作成する。source_urlが既に存在する場合は何もせずfalseを返す。
func (r *PostgresArticleRepo) Create(ctx context.Context, a *model.Article) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO articles (id, title, summary, content, source_url, source_id,
		                       category, impact_level, relevance_score, published_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (source_url) DO NOTHING`,
		a.ID, a.Title, a.Summary, a.Content, a.SourceURL, a.SourceID,
		a.Category, a.ImpactLevel, a.RelevanceScore, a.PublishedAt, a.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("記事の作成に失敗しました: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("記事の作成結果の取得に失敗しました: %w", err)
	}
	return n > 0, nil
}

// applyArticleFilter は記事一覧と件数取得に共通する絞り込み条件を付与する。
func applyArticleFilter(q sq.SelectBuilder, filter model.ArticleFilter) sq.SelectBuilder {
	if filter.Category != "" {
		q = q.Where(sq.Eq{"a.category": filter.Category})
	}
	if filter.Impact != "" {
		q = q.Where(sq.Eq{"a.impact_level": filter.Impact})
	}
	if filter.From != nil {
		q = q.Where(sq.GtOrEq{"a.published_at": *filter.From})
	}
	if filter.To != nil {
		q = q.Where(sq.LtOrEq{"a.published_at": *filter.To})
	}
	return q
}

// buildArticleListQuery は記事一覧のSELECT文を組み立てる。
func buildArticleListQuery(filter model.ArticleFilter) (string, []any, error) {
	q := psql.Select(
		"a.id", "a.title", "a.summary", "a.content", "a.source_url", "a.source_id",
		"a.category", "a.impact_level", "a.relevance_score", "a.published_at", "a.created_at",
		"s.name",
	).
		From("articles a").
		Join("sources s ON s.id = a.source_id")

	q = applyArticleFilter(q, filter)

	q = q.OrderBy("a.published_at DESC", "a.relevance_score DESC")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	return q.ToSql()
}

// buildArticleCountQuery はページングを除いた絞り込み条件の総件数を数えるSELECT文を組み立てる。
func buildArticleCountQuery(filter model.ArticleFilter) (string, []any, error) {
	q := psql.Select("COUNT(*)").From("articles a")
	return applyArticleFilter(q, filter).ToSql()
}

// List はフィルタ条件に一致する記事をソース名付きで返す。総件数はページング前の件数。
func (r *PostgresArticleRepo) List(ctx context.Context, filter model.ArticleFilter) ([]model.ArticleWithSource, int, error) {
	query, args, err := buildArticleListQuery(filter)
	if err != nil {
		return nil, 0, fmt.Errorf("記事一覧クエリの構築に失敗しました: %w", err)
	}
	countQuery, countArgs, err := buildArticleCountQuery(filter)
	if err != nil {
		return nil, 0, fmt.Errorf("記事件数クエリの構築に失敗しました: %w", err)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("記事件数の取得に失敗しました: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("記事一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var result []model.ArticleWithSource
	for rows.Next() {
		var aw model.ArticleWithSource
		a := &aw.Article
		if err := rows.Scan(
			&a.ID, &a.Title, &a.Summary, &a.Content, &a.SourceURL, &a.SourceID,
			&a.Category, &a.ImpactLevel, &a.RelevanceScore, &a.PublishedAt, &a.CreatedAt,
			&aw.SourceName,
		); err != nil {
			return nil, 0, fmt.Errorf("記事一覧の読み取りに失敗しました: %w", err)
		}
		result = append(result, aw)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("記事一覧の走査に失敗しました: %w", err)
	}

	return result, total, nil
}

// ListForWeek は期間[from, to)に公開されminRelevance以上の記事を返す。
func (r *PostgresArticleRepo) ListForWeek(ctx context.Context, from, to time.Time, minRelevance, limit int) ([]*model.Article, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, summary, content, source_url, source_id,
		        category, impact_level, relevance_score, published_at, created_at
		 FROM articles
		 WHERE published_at >= $1 AND published_at < $2
		   AND relevance_score >= $3
		 ORDER BY relevance_score DESC, published_at DESC
		 LIMIT $4`,
		from, to, minRelevance, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("週次対象記事の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var articles []*model.Article
	for rows.Next() {
		a := &model.Article{}
		if err := rows.Scan(
			&a.ID, &a.Title, &a.Summary, &a.Content, &a.SourceURL, &a.SourceID,
			&a.Category, &a.ImpactLevel, &a.RelevanceScore, &a.PublishedAt, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("週次対象記事の読み取りに失敗しました: %w", err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("週次対象記事の走査に失敗しました: %w", err)
	}

	return articles, nil
}

// compile-time interface check
var _ ArticleRepository = (*PostgresArticleRepo)(nil)
