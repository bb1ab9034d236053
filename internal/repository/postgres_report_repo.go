package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/hitoshi/execdash/internal/model"
)

// PostgresReportRepo はPostgreSQLを使用したレポートリポジトリ。
type PostgresReportRepo struct {
	db *sql.DB
}

// NewPostgresReportRepo はPostgresReportRepoを生成する。
func NewPostgresReportRepo(db *sql.DB) *PostgresReportRepo {
	return &PostgresReportRepo{db: db}
}

var reportColumns = []string{
	"id", "title", "week", "year", "content", "status", "version", "article_count",
	"category_breakdown", "generated_at", "published_at", "created_at", "updated_at",
}

func scanReport(row rowScanner) (*model.Report, error) {
	rp := &model.Report{}
	var breakdown []byte
	var publishedAt sql.NullTime

	if err := row.Scan(
		&rp.ID, &rp.Title, &rp.Week, &rp.Year, &rp.Content, &rp.Status, &rp.Version,
		&rp.ArticleCount, &breakdown, &rp.GeneratedAt, &publishedAt, &rp.CreatedAt, &rp.UpdatedAt,
	); err != nil {
		return nil, err
	}

	rp.CategoryBreakdown = map[string]int{}
	if len(breakdown) > 0 {
		if err := json.Unmarshal(breakdown, &rp.CategoryBreakdown); err != nil {
			return nil, fmt.Errorf("category_breakdownの解析に失敗しました: %w", err)
		}
	}
	if publishedAt.Valid {
		t := publishedAt.Time
		rp.PublishedAt = &t
	}
	return rp, nil
}

// FindByID は指定IDのレポートを紐付け記事付きで取得する。見つからない場合はnilを返す。
func (r *PostgresReportRepo) FindByID(ctx context.Context, id string) (*model.ReportWithArticles, error) {
	query, args, err := psql.Select(reportColumns...).From("reports").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("レポート取得クエリの構築に失敗しました: %w", err)
	}

	rp, err := scanReport(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("レポートの取得に失敗しました: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT a.id, a.title, a.source_url, a.category
		 FROM report_articles ra
		 JOIN articles a ON a.id = ra.article_id
		 WHERE ra.report_id = $1
		 ORDER BY a.relevance_score DESC, a.published_at DESC`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("レポート記事の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	result := &model.ReportWithArticles{Report: *rp}
	for rows.Next() {
		var ref model.ReportArticleRef
		if err := rows.Scan(&ref.ID, &ref.Title, &ref.SourceURL, &ref.Category); err != nil {
			return nil, fmt.Errorf("レポート記事の読み取りに失敗しました: %w", err)
		}
		result.Articles = append(result.Articles, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("レポート記事の走査に失敗しました: %w", err)
	}

	return result, nil
}

// FindByWeek は(week, year)のレポートを取得する。見つからない場合はnilを返す。
func (r *PostgresReportRepo) FindByWeek(ctx context.Context, week, year int) (*model.Report, error) {
	query, args, err := psql.Select(reportColumns...).
		From("reports").
		Where(sq.Eq{"week": week, "year": year}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("レポート取得クエリの構築に失敗しました: %w", err)
	}

	rp, err := scanReport(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("週指定によるレポートの取得に失敗しました: %w", err)
	}
	return rp, nil
}

// buildReportListQueries はレポート一覧と総件数のSELECT文を組み立てる。
func buildReportListQueries(filter model.ReportFilter) (sq.SelectBuilder, sq.SelectBuilder) {
	where := sq.And{}
	if filter.Status != "" {
		where = append(where, sq.Eq{"status": filter.Status})
	}
	if filter.Year != nil {
		where = append(where, sq.Eq{"year": *filter.Year})
	}

	list := psql.Select(reportColumns...).From("reports")
	count := psql.Select("count(*)").From("reports")
	if len(where) > 0 {
		list = list.Where(where)
		count = count.Where(where)
	}

	list = list.OrderBy("year DESC", "week DESC")
	if filter.Limit > 0 {
		list = list.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		list = list.Offset(uint64(filter.Offset))
	}

	return list, count
}

// List はフィルタ条件に一致するレポートと総件数を返す。
func (r *PostgresReportRepo) List(ctx context.Context, filter model.ReportFilter) ([]*model.Report, int, error) {
	listQ, countQ := buildReportListQueries(filter)

	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("レポート件数クエリの構築に失敗しました: %w", err)
	}
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("レポート件数の取得に失敗しました: %w", err)
	}

	listSQL, listArgs, err := listQ.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("レポート一覧クエリの構築に失敗しました: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, listSQL, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("レポート一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var reports []*model.Report
	for rows.Next() {
		rp, err := scanReport(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("レポート一覧の読み取りに失敗しました: %w", err)
		}
		reports = append(reports, rp)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("レポート一覧の走査に失敗しました: %w", err)
	}

	return reports, total, nil
}

// Create はレポートを作成する。
func (r *PostgresReportRepo) Create(ctx context.Context, rp *model.Report) error {
	breakdown, err := json.Marshal(rp.CategoryBreakdown)
	if err != nil {
		return fmt.Errorf("category_breakdownの変換に失敗しました: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO reports (id, title, week, year, content, status, version, article_count,
		                      category_breakdown, generated_at, published_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		rp.ID, rp.Title, rp.Week, rp.Year, rp.Content, rp.Status, rp.Version, rp.ArticleCount,
		breakdown, rp.GeneratedAt, rp.PublishedAt, rp.CreatedAt, rp.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("レポートの作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateContent は再生成時の内容を上書きし、versionを1増やす。
// 増加後のversionをrp.Versionに反映する。
func (r *PostgresReportRepo) UpdateContent(ctx context.Context, rp *model.Report) error {
	breakdown, err := json.Marshal(rp.CategoryBreakdown)
	if err != nil {
		return fmt.Errorf("category_breakdownの変換に失敗しました: %w", err)
	}

	err = r.db.QueryRowContext(ctx,
		`UPDATE reports SET
		    content = $2,
		    article_count = $3,
		    category_breakdown = $4,
		    generated_at = $5,
		    version = version + 1,
		    updated_at = now()
		 WHERE id = $1
		 RETURNING version`,
		rp.ID, rp.Content, rp.ArticleCount, breakdown, rp.GeneratedAt,
	).Scan(&rp.Version)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("レポートの更新に失敗しました: %w", err)
	}
	return nil
}

// ReplaceArticles はレポートの紐付け記事を全削除してから articleIDs を挿入する。
func (r *PostgresReportRepo) ReplaceArticles(ctx context.Context, reportID string, articleIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM report_articles WHERE report_id = $1`, reportID); err != nil {
		return fmt.Errorf("レポート記事の削除に失敗しました: %w", err)
	}

	if len(articleIDs) > 0 {
		ins := psql.Insert("report_articles").Columns("report_id", "article_id")
		for _, id := range articleIDs {
			ins = ins.Values(reportID, id)
		}
		query, args, err := ins.Suffix("ON CONFLICT DO NOTHING").ToSql()
		if err != nil {
			return fmt.Errorf("レポート記事挿入クエリの構築に失敗しました: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("レポート記事の挿入に失敗しました: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

// Publish はレポートを公開状態にする。
func (r *PostgresReportRepo) Publish(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE reports SET status = $2, published_at = $3, updated_at = now() WHERE id = $1`,
		id, model.ReportStatusPublished, at,
	)
	if err != nil {
		return fmt.Errorf("レポートの公開に失敗しました: %w", err)
	}
	return checkAffected(res)
}

// compile-time interface check
var _ ReportRepository = (*PostgresReportRepo)(nil)
