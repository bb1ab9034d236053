package fetch

import (
	"time"

	"github.com/hitoshi/execdash/internal/model"
)

// DefaultDueWindow は再取得対象とみなすまでの既定の経過時間。
const DefaultDueWindow = 4 * time.Hour

// ApplySuccess は取得完了時にソースの状態を更新する。
// 失敗回数を0に戻し、最終取得時刻を記録する。
func ApplySuccess(source *model.Source, now time.Time) {
	source.FailureCount = 0
	source.LastFetchedAt = &now
	source.UpdatedAt = now
}

// ApplyFailure は取得失敗時に失敗回数を1増やす。
// 最終取得時刻は更新しないため、次回の取得サイクルでも対象になる。
func ApplyFailure(source *model.Source, now time.Time) {
	source.FailureCount++
	source.UpdatedAt = now
}

// IsDue はソースが取得対象かを判定する。
// 有効で、未取得またはwindowより前に取得されたものが対象。
func IsDue(source *model.Source, now time.Time, window time.Duration) bool {
	if !source.Enabled {
		return false
	}
	if source.LastFetchedAt == nil {
		return true
	}
	return source.LastFetchedAt.Before(now.Add(-window))
}
