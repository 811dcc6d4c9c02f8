package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/cronpost/internal/config"
	"github.com/hitoshi/cronpost/internal/cron"
	"github.com/hitoshi/cronpost/internal/database"
	"github.com/hitoshi/cronpost/internal/handler"
	"github.com/hitoshi/cronpost/internal/jobs"
	"github.com/hitoshi/cronpost/internal/logger"
	"github.com/hitoshi/cronpost/internal/mail"
	"github.com/hitoshi/cronpost/internal/metrics"
	"github.com/hitoshi/cronpost/internal/middleware"
	"github.com/hitoshi/cronpost/internal/model"
	"github.com/hitoshi/cronpost/internal/privilege"
	"github.com/hitoshi/cronpost/internal/repository"
	"github.com/hitoshi/cronpost/internal/security"
	"github.com/hitoshi/cronpost/internal/worker/cleanup"
	"github.com/hitoshi/cronpost/internal/worker/fetch"
	"github.com/hitoshi/cronpost/internal/worker/scan"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
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
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	subRepo := repository.NewPostgresSubscriptionRepo(db)
	jobRepo := repository.NewPostgresJobRepo(db)

	// 3. メトリクスレジストリの初期化
	registry := prometheus.NewRegistry()
	metrics.NewCollector(registry)

	// 4. スキャン依存の初期化
	// /internal/scan からの外部トリガーで期限到来購読をジョブキューに投入する
	evaluator := cron.NewEvaluator(slog.Default())
	queue := jobs.NewQueue(jobRepo, cfg.JobMaxAttempts)
	scanner := scan.NewScanner(subRepo, evaluator, queue, slog.Default())

	// 5. バウンス/苦情処理の初期化
	bounceProcessor := mail.NewBounceProcessor(userRepo, subRepo, slog.Default())

	// 6. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitTrigger, cfg.RateLimitWebhook),
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:      slog.Default(),
		RateLimiter: rateLimiter,

		DB:             db,
		MetricsHandler: metrics.Handler(registry),
		Scanner:        scanner,
		TriggerToken:   cfg.TriggerToken,
		BounceIngester: bounceProcessor,
	})

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、スキャンティッカーとジョブキューワーカーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	subRepo := repository.NewPostgresSubscriptionRepo(db)
	jobRepo := repository.NewPostgresJobRepo(db)
	emailLogRepo := repository.NewPostgresEmailLogRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. フェッチャーの初期化
	clientFactory := security.NewSafeClientFactory()
	fetcher := fetch.NewFetcher(
		clientFactory, slog.Default(), cfg.FetchTimeout, cfg.FetchMaxSize,
	)

	// 5. ジョブキューとハンドラーの初期化
	evaluator := cron.NewEvaluator(slog.Default())
	queue := jobs.NewQueue(jobRepo, cfg.JobMaxAttempts)

	fetchHandler := jobs.NewFetchHandler(
		subRepo, fetcher, evaluator, queue, collector, slog.Default(),
	)

	privilegeService := privilege.NewService(subRepo, emailLogRepo)
	gate := mail.NewGate(privilegeService)
	builder := mail.NewBuilder(security.NewReportSanitizer())
	sender := newSender(cfg)

	emailHandler := jobs.NewEmailHandler(
		subRepo, userRepo, emailLogRepo, gate, builder, sender, collector, slog.Default(),
	)

	// 6. ワーカーの組み立て
	worker := jobs.NewWorker(
		jobRepo, slog.Default(),
		cfg.JobPollInterval, cfg.JobClaimBatch, cfg.JobMaxConcurrent, cfg.JobBackoffBase,
	)
	worker.Register(model.JobTypeFetchSubscriptionData, fetchHandler)
	worker.Register(model.JobTypeSendSubscriptionEmail,
		jobs.HandlerFunc(emailHandler.HandleSubscriptionEmail))
	worker.Register(model.JobTypeSendSubscriptionFailureEmail,
		jobs.HandlerFunc(emailHandler.HandleFailureEmail))

	// 7. スキャナーの初期化
	scanner := scan.NewScanner(subRepo, evaluator, queue, slog.Default())

	// 8. クリーンアップジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(db, slog.Default())

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("scan_interval", cfg.ScanInterval),
		slog.Duration("poll_interval", cfg.JobPollInterval),
		slog.Int("max_concurrent", cfg.JobMaxConcurrent),
	)

	// ジョブキューワーカーをバックグラウンドで起動
	go worker.Start(ctx)

	// クリーンアップジョブを日次でバックグラウンド実行
	go func() {
		// 起動直後に1回実行
		if err := cleanupJob.Run(ctx); err != nil {
			slog.Error("cleanup job failed", slog.String("error", err.Error()))
		}

		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := cleanupJob.Run(ctx); err != nil {
					slog.Error("cleanup job failed", slog.String("error", err.Error()))
				}
			}
		}
	}()

	// スキャンティッカーをメインgoroutineで実行（ブロッキング）
	scanner.Start(ctx, cfg.ScanInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// newSender は設定に応じたメール送信手段を選択する。
// Postmarkのトークンが未設定の場合はログ出力のみの開発用センダーを返す。
func newSender(cfg *config.Config) mail.Sender {
	if cfg.PostmarkServerToken == "" {
		slog.Info("POSTMARK_SERVER_TOKENが未設定のため開発用センダーを使用します")
		return mail.NewDevSender(slog.Default())
	}
	return mail.NewPostmarkSender(
		cfg.PostmarkServerToken, cfg.PostmarkAccountToken,
		cfg.EmailFrom, cfg.EmailSupport,
	)
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /healthz エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/healthz", port)
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
