package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/execdash/internal/model"
)

// PostgresSourceRepo はPostgreSQLを使用したソースリポジトリ。
type PostgresSourceRepo struct {
	db *sql.DB
}

// NewPostgresSourceRepo はPostgresSourceRepoを生成する。
func NewPostgresSourceRepo(db *sql.DB) *PostgresSourceRepo {
	return &PostgresSourceRepo{db: db}
}

const sourceColumns = `id, name, type, url, category_hint, enabled, fetch_interval,
	last_fetched_at, failure_count, created_at, updated_at`

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner, extra ...any) (*model.Source, error) {
	s := &model.Source{}
	var categoryHint sql.NullString
	var lastFetchedAt sql.NullTime

	dest := []any{
		&s.ID, &s.Name, &s.Type, &s.URL, &categoryHint, &s.Enabled, &s.FetchInterval,
		&lastFetchedAt, &s.FailureCount, &s.CreatedAt, &s.UpdatedAt,
	}
	dest = append(dest, extra...)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	s.CategoryHint = nullStringValue(categoryHint)
	if lastFetchedAt.Valid {
		t := lastFetchedAt.Time
		s.LastFetchedAt = &t
	}
	return s, nil
}

// FindByID は指定IDのソースを取得する。見つからない場合はnilを返す。
func (r *PostgresSourceRepo) FindByID(ctx context.Context, id string) (*model.Source, error) {
	s, err := scanSource(r.db.QueryRowContext(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE id = $1`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ソースの取得に失敗しました: %w", err)
	}
	return s, nil
}

// FindByURL はURLでソースを検索する。見つからない場合はnilを返す。
func (r *PostgresSourceRepo) FindByURL(ctx context.Context, url string) (*model.Source, error) {
	s, err := scanSource(r.db.QueryRowContext(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE url = $1`, url,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("URLによるソースの検索に失敗しました: %w", err)
	}
	return s, nil
}

// ListWithCounts は全ソースを名前昇順で記事件数付きで返す。
func (r *PostgresSourceRepo) ListWithCounts(ctx context.Context) ([]model.SourceWithCount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT s.id, s.name, s.type, s.url, s.category_hint, s.enabled, s.fetch_interval,
		        s.last_fetched_at, s.failure_count, s.created_at, s.updated_at,
		        (SELECT count(*) FROM articles a WHERE a.source_id = s.id)
		 FROM sources s
		 ORDER BY s.name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("ソース一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var result []model.SourceWithCount
	for rows.Next() {
		var count int
		s, err := scanSource(rows, &count)
		if err != nil {
			return nil, fmt.Errorf("ソース一覧の読み取りに失敗しました: %w", err)
		}
		result = append(result, model.SourceWithCount{Source: *s, ArticleCount: count})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ソース一覧の走査に失敗しました: %w", err)
	}

	return result, nil
}

// ListDue は有効かつ未取得、またはlast_fetched_atがbeforeより古いソースを返す。
func (r *PostgresSourceRepo) ListDue(ctx context.Context, before time.Time) ([]*model.Source, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sourceColumns+`
		 FROM sources
		 WHERE enabled = TRUE
		   AND (last_fetched_at IS NULL OR last_fetched_at < $1)
		 ORDER BY last_fetched_at ASC NULLS FIRST, name ASC`,
		before,
	)
	if err != nil {
		return nil, fmt.Errorf("フェッチ対象ソースの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var sources []*model.Source
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("フェッチ対象ソースの読み取りに失敗しました: %w", err)
		}
		sources = append(sources, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("フェッチ対象ソースの走査に失敗しました: %w", err)
	}

	return sources, nil
}

// Create はソースを作成する。URLが重複する場合はErrDuplicateを返す。
func (r *PostgresSourceRepo) Create(ctx context.Context, s *model.Source) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sources (id, name, type, url, category_hint, enabled, fetch_interval,
		                      last_fetched_at, failure_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		s.ID, s.Name, s.Type, s.URL, nullString(s.CategoryHint), s.Enabled, s.FetchInterval,
		s.LastFetchedAt, s.FailureCount, s.CreatedAt, s.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("ソースの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はソースの編集可能な項目を更新する。
func (r *PostgresSourceRepo) Update(ctx context.Context, s *model.Source) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sources SET
		    name = $2, type = $3, url = $4, category_hint = $5,
		    enabled = $6, fetch_interval = $7, updated_at = $8
		 WHERE id = $1`,
		s.ID, s.Name, s.Type, s.URL, nullString(s.CategoryHint),
		s.Enabled, s.FetchInterval, s.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("ソースの更新に失敗しました: %w", err)
	}
	return checkAffected(res)
}

// Delete はソースを削除する。
func (r *PostgresSourceRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sources WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ソースの削除に失敗しました: %w", err)
	}
	return checkAffected(res)
}

// UpdateFetchState はlast_fetched_atとfailure_countを更新する。
func (r *PostgresSourceRepo) UpdateFetchState(ctx context.Context, s *model.Source) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sources SET
		    last_fetched_at = $2,
		    failure_count = $3,
		    updated_at = now()
		 WHERE id = $1`,
		s.ID, s.LastFetchedAt, s.FailureCount,
	)
	if err != nil {
		return fmt.Errorf("フェッチ状態の更新に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SourceRepository = (*PostgresSourceRepo)(nil)
