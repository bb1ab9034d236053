package report

import (
	"time"

	"github.com/hitoshi/execdash/internal/model"
)

// 週番号と年の許容範囲。
const (
	MinWeek = 1
	MaxWeek = 53
	MinYear = 2000
	MaxYear = 9999
)

// CurrentWeek はtをUTCに変換したときのISO週番号と年を返す。
func CurrentWeek(t time.Time) (week, year int) {
	year, week = t.UTC().ISOWeek()
	return week, year
}

// ValidateWeek は週番号と年が許容範囲にあるかを検証する。
func ValidateWeek(week, year int) error {
	if week < MinWeek || week > MaxWeek || year < MinYear || year > MaxYear {
		return model.NewInvalidWeekError(week, year)
	}
	return nil
}

// WeekRange は集計対象期間[from, to)を返す。
// 1月1日から(week-1)*7日後を起点とする単純な計算で、ISO週の境界とは一致しない。
func WeekRange(week, year int) (from, to time.Time) {
	from = time.Date(year, time.January, 1+(week-1)*7, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 0, 7)
}
