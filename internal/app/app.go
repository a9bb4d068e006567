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

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/habitman/internal/auth"
	"github.com/hitoshi/habitman/internal/bot"
	botapi "github.com/hitoshi/habitman/internal/bot/api"
	"github.com/hitoshi/habitman/internal/config"
	"github.com/hitoshi/habitman/internal/database"
	"github.com/hitoshi/habitman/internal/habit"
	"github.com/hitoshi/habitman/internal/handler"
	"github.com/hitoshi/habitman/internal/logger"
	"github.com/hitoshi/habitman/internal/metrics"
	"github.com/hitoshi/habitman/internal/middleware"
	"github.com/hitoshi/habitman/internal/notify"
	"github.com/hitoshi/habitman/internal/repository"
	"github.com/hitoshi/habitman/internal/user"
	"github.com/hitoshi/habitman/internal/worker"
	"github.com/hitoshi/habitman/internal/worker/reminder"
	"github.com/hitoshi/habitman/internal/worker/transfer"
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
	case CommandBot:
		return runBot(cfg)
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
	habitRepo := repository.NewPostgresHabitRepo(db)

	// 3. ドメインサービスの初期化
	tokenIssuer := auth.NewTokenIssuer(cfg.SecretKey, cfg.TokenExpiry)
	authService := auth.NewService(userRepo, tokenIssuer)
	userService := user.NewService(userRepo)
	habitService := habit.NewService(habitRepo)

	// 4. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 5. レート制限（configはreq/min単位なのでreq/secに変換する）
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral

	// 6. ルーターの構築
	deps := &handler.RouterDeps{
		UserResolver:      authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       middleware.NewRateLimiter(rateLimiterCfg),
		Logger:            slog.Default(),
		HTTPMetrics:       collector,

		AuthService: authService,
		UserService: userService,

		HabitService:      habitService,
		CompletionMetrics: collector,

		HealthDB:       db,
		MetricsHandler: metrics.Handler(registry),
	}

	router := handler.NewRouter(deps)

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
// DB接続を開き、日次の移行ジョブとリマインダージョブをcronスケジュールで実行する。
// あわせてメトリクス公開用のHTTPサーバーを起動する。
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
	habitRepo := repository.NewPostgresHabitRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. ジョブの初期化
	transferJob := transfer.NewJob(habitRepo, collector, slog.Default(), cfg.HabitDuration)

	notifier := notify.NewTelegramClient(
		&http.Client{Timeout: cfg.NotifyTimeout},
		cfg.TelegramBotToken,
		slog.Default(),
	)
	reminderJob := reminder.NewJob(
		habitRepo, userRepo, notifier, collector,
		slog.Default(), cfg.NotifyTimeout, cfg.NotifyMaxConcurrent,
	)

	// 5. スケジューラの構築
	scheduler := worker.NewScheduler(slog.Default())
	if err := scheduler.AddJob(cfg.TransferCron, "transfer", instrumented("transfer", collector, transferJob)); err != nil {
		return fmt.Errorf("failed to schedule transfer job: %w", err)
	}
	if err := scheduler.AddJob(cfg.ReminderCron, "reminder", instrumented("reminder", collector, reminderJob)); err != nil {
		return fmt.Errorf("failed to schedule reminder job: %w", err)
	}

	// 6. メトリクス公開用HTTPサーバー
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(registry))
	metricsServer := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	slog.Info("worker starting",
		slog.String("transfer_cron", cfg.TransferCron),
		slog.String("reminder_cron", cfg.ReminderCron),
	)

	scheduler.Start()

	<-stop
	slog.Info("shutting down worker...")

	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(ctx); err != nil {
		slog.Error("metrics server shutdown failed", slog.String("error", err.Error()))
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// runBot はTelegram BOTモードで起動する。
// バックエンドAPIのクライアントとトークンストアを構築し、
// long pollingで更新を受信する。
func runBot(cfg *config.Config) error {
	// 1. トークンストアのオープン
	store, err := bot.OpenTokenStore(cfg.BotTokenPath)
	if err != nil {
		return fmt.Errorf("failed to open token store: %w", err)
	}
	defer store.Close()

	// 2. バックエンドAPIクライアントの構築
	apiClient := botapi.NewClient(
		&http.Client{Timeout: 15 * time.Second},
		cfg.APIBaseURL,
		slog.Default(),
	)
	tokens := bot.NewTokenManager(store, apiClient, 0)

	// 3. Telegram APIへの接続
	tgAPI, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return fmt.Errorf("failed to connect to telegram: %w", err)
	}

	slog.Info("bot authorized",
		slog.String("username", tgAPI.Self.UserName),
	)

	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = 30
	updates := tgAPI.GetUpdatesChan(updateCfg)

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down bot...")
		tgAPI.StopReceivingUpdates()
		cancel()
	}()

	// 受信ループをメインgoroutineで実行（ブロッキング）
	b := bot.NewBot(tgAPI, apiClient, tokens, slog.Default())
	b.Run(ctx, updates)

	slog.Info("bot stopped gracefully")
	return nil
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

// instrumentedJob はジョブの実行時間をメトリクスに記録するラッパー。
type instrumentedJob struct {
	name    string
	metrics *metrics.Collector
	job     worker.Runner
}

func instrumented(name string, collector *metrics.Collector, job worker.Runner) worker.Runner {
	return &instrumentedJob{name: name, metrics: collector, job: job}
}

func (j *instrumentedJob) Run(ctx context.Context) error {
	start := time.Now()
	err := j.job.Run(ctx)
	j.metrics.RecordJobLatency(j.name, time.Since(start))
	return err
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
