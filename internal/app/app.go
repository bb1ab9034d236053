package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/execdash/internal/config"
	"github.com/hitoshi/execdash/internal/database"
	"github.com/hitoshi/execdash/internal/handler"
	"github.com/hitoshi/execdash/internal/llm"
	"github.com/hitoshi/execdash/internal/logger"
	"github.com/hitoshi/execdash/internal/metrics"
	"github.com/hitoshi/execdash/internal/middleware"
	"github.com/hitoshi/execdash/internal/report"
	"github.com/hitoshi/execdash/internal/repository"
	"github.com/hitoshi/execdash/internal/security"
	"github.com/hitoshi/execdash/internal/seed"
	fetchpkg "github.com/hitoshi/execdash/internal/worker/fetch"
	"github.com/hitoshi/execdash/internal/worker/weekly"
)

const dbConnectTimeout = 10 * time.Second

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、.envと環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. .envを読み込んでから環境変数で設定を組み立てる
	if err := config.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("failed to load dotenv: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.Bool("llm_enabled", cfg.LLMEnabled()),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandSeed:
		return runSeed(cfg)
	case CommandIngest:
		opts, err := parseIngestOptions(subcommandArgs(args), w)
		if err != nil {
			return err
		}
		return runIngest(cfg, opts)
	case CommandReport:
		opts, err := parseReportOptions(subcommandArgs(args), w)
		if err != nil {
			return err
		}
		return runReport(cfg, opts)
	default:
		return runServe(cfg)
	}
}

// components はDB接続から組み立てた取り込み・レポート生成の構成要素。
// serve、worker、ingest、reportの各モードで共有する。
type components struct {
	db        *sql.DB
	registry  *prometheus.Registry
	metrics   *metrics.Collector
	guard     *security.SSRFGuard
	sanitizer *security.HTMLSanitizer

	sources  *repository.PostgresSourceRepo
	articles *repository.PostgresArticleRepo
	reports  *repository.PostgresReportRepo

	fetcher   *fetchpkg.Fetcher
	scheduler *fetchpkg.Scheduler
	generator *report.Generator
}

// buildComponents はDBに接続し、リポジトリからスケジューラ・レポート生成器までを配線する。
// 呼び出し側はClose()でDB接続を解放する。
func buildComponents(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*components, error) {
	// 1. DB接続
	db, err := database.Connect(ctx, cfg.DatabaseURL, dbConnectTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}
	logger.Info("database connection established")

	// 2. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 3. リポジトリとセキュリティサービス
	c := &components{
		db:        db,
		registry:  registry,
		metrics:   collector,
		guard:     security.NewSSRFGuard(),
		sanitizer: security.NewHTMLSanitizer(),
		sources:   repository.NewPostgresSourceRepo(db),
		articles:  repository.NewPostgresArticleRepo(db),
		reports:   repository.NewPostgresReportRepo(db),
	}

	// 4. テキスト生成（分類はflash、要約はproモデル）
	gen := newTextGenerator(ctx, cfg, logger)
	classifier := llm.NewClassifier(gen, cfg.GeminiFlashModel)
	synthesizer := llm.NewSynthesizer(gen, cfg.GeminiProModel, logger, collector)

	// 5. 取り込みパイプライン
	retriever := fetchpkg.NewRetriever(
		c.guard, security.NewTextExtractor(), collector,
		cfg.FetchTimeout, cfg.FetchMaxSize,
	)
	c.fetcher = fetchpkg.NewFetcher(c.sources, c.articles, retriever, classifier, collector, logger)
	c.scheduler = fetchpkg.NewScheduler(
		c.sources, c.fetcher, logger, cfg.FetchMaxConcurrent, cfg.FetchDueWindow,
	)

	// 6. レポート生成
	c.generator = report.NewGenerator(c.articles, c.reports, synthesizer, collector, logger)

	return c, nil
}

// Close はDB接続を閉じる。
func (c *components) Close() error {
	return c.db.Close()
}

// newTextGenerator はGemini APIキーが設定されていればGeminiGeneratorを、
// 未設定または初期化に失敗した場合はDisabledGeneratorを返す。
// DisabledGeneratorでは分類は記事ごとのエラーとなり、要約は固定文言にフォールバックする。
func newTextGenerator(ctx context.Context, cfg *config.Config, logger *slog.Logger) llm.TextGenerator {
	gen, err := llm.NewGeminiGenerator(ctx, cfg.GeminiAPIKey)
	if err != nil {
		if errors.Is(err, llm.ErrDisabled) {
			logger.Warn("GEMINI_API_KEYが未設定のため、分類は失敗し要約は固定文言を使用します")
		} else {
			logger.Error("Geminiクライアントの初期化に失敗しました",
				slog.String("error", err.Error()),
			)
		}
		return llm.DisabledGenerator{}
	}
	return gen
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	log := slog.Default()

	c, err := buildComponents(context.Background(), cfg, log)
	if err != nil {
		return err
	}
	defer c.Close()

	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAdminJobs),
		log,
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            log,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		AdminAPIKey:       cfg.AdminAPIKey,
		RateLimiter:       rateLimiter,

		Sources:      c.sources,
		URLValidator: c.guard,

		SourceFetcher: c.fetcher,
		DueFetcher:    c.scheduler,

		Reports:         c.reports,
		ReportGenerator: c.generator,
		Renderer:        report.NewHTMLRenderer(c.sanitizer),

		Articles: c.articles,

		DB:             c.db,
		MetricsHandler: metrics.Handler(c.registry),
	})

	server := &http.Server{
		Addr:        ":" + cfg.ServerPort,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// 取り込みとレポート生成は同期実行のため長めにとる
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	log.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 取得スケジューラと週次レポートジョブを起動し、
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	log := slog.Default()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := buildComponents(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer c.Close()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		log.Info("shutting down worker...")
		cancel()
	}()

	log.Info("worker starting",
		slog.Duration("fetch_interval", cfg.FetchInterval),
		slog.Duration("fetch_due_window", cfg.FetchDueWindow),
		slog.Duration("report_interval", cfg.ReportInterval),
		slog.Int("max_concurrent", cfg.FetchMaxConcurrent),
	)

	// 週次レポートジョブをバックグラウンドで起動
	reportJob := weekly.NewReportJob(c.generator, log)
	done := make(chan struct{})
	go func() {
		defer close(done)
		reportJob.Start(ctx, cfg.ReportInterval)
	}()

	// 取得スケジューラをメインgoroutineで実行（ブロッキング）
	c.scheduler.Start(ctx, cfg.FetchInterval)
	<-done

	log.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runSeed は初期ソース一覧を登録する。
// SEED_FILEが未設定なら埋め込みの一覧を使い、登録済みのURLはスキップする。
func runSeed(cfg *config.Config) error {
	log := slog.Default()

	specs, err := seed.Load(cfg.SeedFile)
	if err != nil {
		return fmt.Errorf("failed to load seed sources: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.DatabaseURL, dbConnectTimeout)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	defer db.Close()

	result, err := seed.Run(ctx, repository.NewPostgresSourceRepo(db), security.NewSSRFGuard(), specs, log)
	if err != nil {
		return fmt.Errorf("seed failed: %w", err)
	}

	log.Info("seed completed",
		slog.Int("created", result.Created),
		slog.Int("skipped", result.Skipped),
	)
	return nil
}

// runIngest は取り込みを1回実行する。
// SourceIDが指定されていればそのソースのみ、なければ取得期限を過ぎた全ソースを対象にする。
// ソース単位の失敗は結果に記録され、コマンド自体は失敗扱いにしない。
func runIngest(cfg *config.Config, opts ingestOptions) error {
	log := slog.Default()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := buildComponents(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer c.Close()

	var results []*fetchpkg.FetchResult
	if opts.SourceID != "" {
		res, err := c.fetcher.FetchSource(ctx, opts.SourceID)
		if err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}
		results = append(results, res)
	} else {
		results, err = c.scheduler.FetchAllSources(ctx)
		if err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}
	}

	for _, res := range results {
		log.Info("ingest result",
			slog.String("source_id", res.SourceID),
			slog.String("source_name", res.SourceName),
			slog.Int("fetched", res.Fetched),
			slog.Int("processed", res.Processed),
			slog.Int("errors", len(res.Errors)),
		)
	}
	log.Info("ingest completed", slog.Int("sources", len(results)))
	return nil
}

// runReport は週次レポートを1回生成する。
func runReport(cfg *config.Config, opts reportOptions) error {
	log := slog.Default()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := buildComponents(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer c.Close()

	res, err := c.generator.GenerateWeeklyReport(ctx, opts.Week, opts.Year)
	if err != nil {
		return fmt.Errorf("report generation failed: %w", err)
	}

	log.Info("report completed",
		slog.String("report_id", res.ReportID),
		slog.Int("week", res.Week),
		slog.Int("year", res.Year),
		slog.Int("version", res.Version),
		slog.Int("article_count", res.ArticleCount),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
