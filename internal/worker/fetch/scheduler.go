// Package fetch はソースのバックグラウンド取得処理を提供する。
// スケジューラ、フェッチャー、取得状態の更新ルールを含む。
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/execdash/internal/repository"
)

// SourceFetcher は1ソースの取得を実行するインターフェース。
type SourceFetcher interface {
	FetchSource(ctx context.Context, sourceID string) (*FetchResult, error)
}

// Scheduler は取得対象ソースの選定と取得の実行を行う。
// 並列数はerrgroupのSetLimitで制御し、既定では1ソースずつ順に処理する。
type Scheduler struct {
	sourceRepo     repository.SourceRepository
	fetcher        SourceFetcher
	logger         *slog.Logger
	maxConcurrency int
	dueWindow      time.Duration
	now            func() time.Time
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下なら1、dueWindowが0以下ならDefaultDueWindowを使う。
func NewScheduler(
	sourceRepo repository.SourceRepository,
	fetcher SourceFetcher,
	logger *slog.Logger,
	maxConcurrency int,
	dueWindow time.Duration,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	if dueWindow <= 0 {
		dueWindow = DefaultDueWindow
	}
	return &Scheduler{
		sourceRepo:     sourceRepo,
		fetcher:        fetcher,
		logger:         logger,
		maxConcurrency: maxConcurrency,
		dueWindow:      dueWindow,
		now:            time.Now,
	}
}

// Start はintervalごとに取得サイクルを実行する。
// 起動直後に1回実行し、コンテキストがキャンセルされるまで継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("取得スケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("取得サイクルの実行に失敗しました", slog.String("error", err.Error()))
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("取得スケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("取得サイクルの実行に失敗しました", slog.String("error", err.Error()))
			}
		}
	}
}

// RunOnce は取得サイクルを1回実行し、集計をログに出力する。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()

	results, err := s.FetchAllSources(ctx)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		s.logger.Info("取得対象のソースはありません")
		return nil
	}

	var processed, failed int
	for _, r := range results {
		processed += r.Processed
		failed += len(r.Errors)
	}

	s.logger.Info("取得サイクルが完了しました",
		slog.Int("source_count", len(results)),
		slog.Int("processed", processed),
		slog.Int("errors", failed),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// FetchAllSources は取得対象のソースをすべて取得し、選定順に結果を返す。
// 1ソースの失敗は他のソースの処理を中断しない。
func (s *Scheduler) FetchAllSources(ctx context.Context) ([]*FetchResult, error) {
	sources, err := s.sourceRepo.ListDue(ctx, s.now().Add(-s.dueWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to list due sources: %w", err)
	}

	results := make([]*FetchResult, len(sources))

	var g errgroup.Group
	g.SetLimit(s.maxConcurrency)

	for i, src := range sources {
		g.Go(func() error {
			res, err := s.fetcher.FetchSource(ctx, src.ID)
			if err != nil {
				s.logger.Error("ソースの取得処理に失敗しました",
					slog.String("source_id", src.ID),
					slog.String("source_url", src.URL),
					slog.String("error", err.Error()),
				)
				if res == nil {
					res = &FetchResult{SourceID: src.ID, SourceName: src.Name}
				}
				res.Errors = append(res.Errors, fmt.Sprintf("Source fetch failed: %s", err.Error()))
			}
			results[i] = res
			return nil
		})
	}

	// 各goroutineはエラーを返さない
	_ = g.Wait()

	return results, nil
}
