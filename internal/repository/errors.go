package repository

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrNotFound は更新・削除対象の行が存在しないことを示す。
	ErrNotFound = errors.New("対象のレコードが見つかりません")
	// ErrDuplicate は一意制約違反を示す。
	ErrDuplicate = errors.New("一意制約に違反しています")
)

// uniqueViolation はPostgreSQLの一意制約違反コード。
const uniqueViolation = "23505"

// isUniqueViolation はエラーが一意制約違反かを返す。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// checkAffected はUPDATE/DELETEの影響行数が0の場合にErrNotFoundを返す。
func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
