package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/execdash/internal/model"
	"github.com/hitoshi/execdash/internal/repository"
)

// ItemRetriever はソースから未分類の記事リストを取得する。
type ItemRetriever interface {
	Retrieve(ctx context.Context, source *model.Source) ([]model.ParsedItem, error)
}

// ArticleClassifier は記事を分類する。
type ArticleClassifier interface {
	Classify(ctx context.Context, title, content, categoryHint string) (*model.Classification, error)
}

// MetricsRecorder は取得処理のメトリクスを記録する。
type MetricsRecorder interface {
	RecordFetchSuccess()
	RecordFetchFailure(sourceType string)
	RecordFetchLatency(duration time.Duration)
	RecordArticleCreated()
	RecordClassificationFailure()
}

// FetchResult は1ソース分の取得結果。
// Fetchedは取得した項目数、Processedは新規作成した記事数。
type FetchResult struct {
	SourceID   string   `json:"sourceId"`
	SourceName string   `json:"sourceName"`
	Fetched    int      `json:"fetched"`
	Processed  int      `json:"processed"`
	Errors     []string `json:"errors"`
}

// Fetcher は1ソースの取得、重複排除、分類、記事保存を行う。
type Fetcher struct {
	sourceRepo  repository.SourceRepository
	articleRepo repository.ArticleRepository
	retriever   ItemRetriever
	classifier  ArticleClassifier
	metrics     MetricsRecorder
	logger      *slog.Logger
	now         func() time.Time
}

// NewFetcher はFetcherの新しいインスタンスを生成する。metricsはnilでもよい。
func NewFetcher(
	sourceRepo repository.SourceRepository,
	articleRepo repository.ArticleRepository,
	retriever ItemRetriever,
	classifier ArticleClassifier,
	metrics MetricsRecorder,
	logger *slog.Logger,
) *Fetcher {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Fetcher{
		sourceRepo:  sourceRepo,
		articleRepo: articleRepo,
		retriever:   retriever,
		classifier:  classifier,
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
	}
}

// FetchSource は指定IDのソースを取得して新しい記事を保存する。
// ソースが存在しない場合はSOURCE_NOT_FOUNDを返す。
// 取得自体の失敗は結果のErrorsに記録し、エラーとしては返さない。
func (f *Fetcher) FetchSource(ctx context.Context, sourceID string) (*FetchResult, error) {
	source, err := f.sourceRepo.FindByID(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to find source: %w", err)
	}
	if source == nil {
		return nil, model.NewSourceNotFoundError(sourceID)
	}

	start := f.now()
	defer func() { f.metrics.RecordFetchLatency(time.Since(start)) }()

	result := &FetchResult{
		SourceID:   source.ID,
		SourceName: source.Name,
		Errors:     []string{},
	}

	items, err := f.retriever.Retrieve(ctx, source)
	if err != nil {
		f.logger.Warn("ソースの取得に失敗しました",
			slog.String("source_id", source.ID),
			slog.String("source_url", source.URL),
			slog.Int("failure_count", source.FailureCount+1),
			slog.String("error", err.Error()),
		)
		f.metrics.RecordFetchFailure(string(source.Type))
		result.Errors = append(result.Errors, fmt.Sprintf("Source fetch failed: %s", err.Error()))

		ApplyFailure(source, f.now())
		if updateErr := f.sourceRepo.UpdateFetchState(ctx, source); updateErr != nil {
			return result, fmt.Errorf("failed to update fetch state: %w", updateErr)
		}
		return result, nil
	}

	result.Fetched = len(items)

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if item.Link == "" {
			continue
		}

		created, err := f.processItem(ctx, source, item)
		if err != nil {
			f.logger.Warn("記事の処理に失敗しました",
				slog.String("source_id", source.ID),
				slog.String("article_url", item.Link),
				slog.String("error", err.Error()),
			)
			result.Errors = append(result.Errors, fmt.Sprintf("Failed to process %q: %s", item.Title, err.Error()))
			continue
		}
		if created {
			result.Processed++
		}
	}

	ApplySuccess(source, f.now())
	if err := f.sourceRepo.UpdateFetchState(ctx, source); err != nil {
		return result, fmt.Errorf("failed to update fetch state: %w", err)
	}
	f.metrics.RecordFetchSuccess()

	f.logger.Info("ソースの取得が完了しました",
		slog.String("source_id", source.ID),
		slog.String("source_url", source.URL),
		slog.Int("fetched", result.Fetched),
		slog.Int("processed", result.Processed),
		slog.Int("errors", len(result.Errors)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return result, nil
}

// processItem は1項目を重複確認、分類、保存する。
// 既存の記事だった場合は(false, nil)を返す。
func (f *Fetcher) processItem(ctx context.Context, source *model.Source, item model.ParsedItem) (bool, error) {
	exists, err := f.articleRepo.ExistsBySourceURL(ctx, item.Link)
	if err != nil {
		return false, fmt.Errorf("failed to check duplicate: %w", err)
	}
	if exists {
		return false, nil
	}

	classification, err := f.classifier.Classify(ctx, item.Title, item.Content, source.CategoryHint)
	if err != nil {
		f.metrics.RecordClassificationFailure()
		return false, err
	}

	now := f.now()
	publishedAt := item.PublishedAt
	if publishedAt.IsZero() {
		publishedAt = now
	}

	article := &model.Article{
		ID:             uuid.New().String(),
		Title:          item.Title,
		Summary:        classification.Summary,
		Content:        item.Content,
		SourceURL:      item.Link,
		SourceID:       source.ID,
		Category:       classification.Category,
		ImpactLevel:    classification.ImpactLevel,
		RelevanceScore: classification.RelevanceScore,
		PublishedAt:    publishedAt.UTC(),
		CreatedAt:      now,
	}

	created, err := f.articleRepo.Create(ctx, article)
	if err != nil {
		return false, fmt.Errorf("failed to save article: %w", err)
	}
	if created {
		f.metrics.RecordArticleCreated()
	}
	return created, nil
}

type nopMetrics struct{}

func (nopMetrics) RecordFetchSuccess() {}
func (nopMetrics) RecordFetchFailure(string) {}
func (nopMetrics) RecordFetchLatency(time.Duration) {}
func (nopMetrics) RecordArticleCreated() {}
func (nopMetrics) RecordClassificationFailure() {}
