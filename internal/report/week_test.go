package report

import (
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/execdash/internal/model"
)

func TestCurrentWeek(t *testing.T) {
	tests := []struct {
		name     string
		t        time.Time
		wantWeek int
		wantYear int
	}{
		{"年央の木曜日", time.Date(2025, 6, 12, 10, 0, 0, 0, time.UTC), 24, 2025},
		{"年始が前年の第1週に属する", time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), 53, 2020},
		{"年末が翌年の第1週に属する", time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC), 1, 2025},
		{"UTCに変換して判定する", time.Date(2025, 1, 6, 1, 0, 0, 0, time.FixedZone("JST", 9*3600)), 1, 2025},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			week, year := CurrentWeek(tt.t)
			if week != tt.wantWeek || year != tt.wantYear {
				t.Errorf("CurrentWeek = (%d, %d), want (%d, %d)", week, year, tt.wantWeek, tt.wantYear)
			}
		})
	}
}

func TestWeekRange(t *testing.T) {
	tests := []struct {
		week, year int
		wantFrom   time.Time
	}{
		{1, 2025, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		{3, 2025, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)},
		{10, 2024, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)},
		{53, 2026, time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		from, to := WeekRange(tt.week, tt.year)
		if !from.Equal(tt.wantFrom) {
			t.Errorf("WeekRange(%d, %d) from = %v, want %v", tt.week, tt.year, from, tt.wantFrom)
		}
		if to.Sub(from) != 7*24*time.Hour {
			t.Errorf("期間は7日であるべき: %v", to.Sub(from))
		}
	}
}

func TestValidateWeek(t *testing.T) {
	valid := [][2]int{{1, 2000}, {53, 9999}, {27, 2025}}
	for _, v := range valid {
		if err := ValidateWeek(v[0], v[1]); err != nil {
			t.Errorf("ValidateWeek(%d, %d) = %v, want nil", v[0], v[1], err)
		}
	}

	invalid := [][2]int{{0, 2025}, {54, 2025}, {-1, 2025}, {10, 1999}, {10, 10000}}
	for _, v := range invalid {
		err := ValidateWeek(v[0], v[1])
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidWeek {
			t.Errorf("ValidateWeek(%d, %d) は INVALID_WEEK を返すべき: %v", v[0], v[1], err)
		}
	}
}
