// Package weekly は現在週のレポートを定期的に再生成するジョブを提供する。
package weekly

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/execdash/internal/report"
)

// ReportGenerator は週次レポートの生成インターフェース。
type ReportGenerator interface {
	GenerateWeeklyReport(ctx context.Context, week, year *int) (*report.GenerateResult, error)
}

// ReportJob は現在のISO週のレポートを再生成するジョブ。
// 同じ週の再実行はversionを上げて上書きするため冪等に扱える。
type ReportJob struct {
	generator ReportGenerator
	logger    *slog.Logger
}

// NewReportJob は新しいReportJobを生成する。
func NewReportJob(generator ReportGenerator, logger *slog.Logger) *ReportJob {
	return &ReportJob{generator: generator, logger: logger}
}

// Run は現在週のレポートを1回生成する。
func (j *ReportJob) Run(ctx context.Context) error {
	start := time.Now()

	res, err := j.generator.GenerateWeeklyReport(ctx, nil, nil)
	if err != nil {
		j.logger.Error("週次レポートジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("週次レポートの生成に失敗: %w", err)
	}

	j.logger.Info("週次レポートジョブが完了しました",
		slog.String("report_id", res.ReportID),
		slog.Int("week", res.Week),
		slog.Int("year", res.Year),
		slog.Int("version", res.Version),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start は起動直後に1回実行し、以降intervalごとに実行する。
// コンテキストがキャンセルされるまで継続する。
func (j *ReportJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("週次レポートジョブを開始しました", slog.Duration("interval", interval))

	// エラーはRun内でログ出力済み
	_ = j.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("週次レポートジョブを停止しました")
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
