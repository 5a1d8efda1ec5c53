// Package app はサブコマンドの解析と依存関係のワイヤリングを行う。
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
	"golang.org/x/time/rate"

	"github.com/hitoshi/minnego/internal/category"
	"github.com/hitoshi/minnego/internal/config"
	"github.com/hitoshi/minnego/internal/database"
	"github.com/hitoshi/minnego/internal/handler"
	"github.com/hitoshi/minnego/internal/jikan"
	"github.com/hitoshi/minnego/internal/logger"
	"github.com/hitoshi/minnego/internal/metrics"
	"github.com/hitoshi/minnego/internal/middleware"
	"github.com/hitoshi/minnego/internal/news"
	"github.com/hitoshi/minnego/internal/repository"
	"github.com/hitoshi/minnego/internal/retry"
	"github.com/hitoshi/minnego/internal/security"
	"github.com/hitoshi/minnego/internal/session"
	"github.com/hitoshi/minnego/internal/tui"
	"github.com/hitoshi/minnego/internal/worker/refresh"
)

// Init はアプリケーションの初期化を行う。
// 環境変数（と.env）からConfigを読み込み、LOG_LEVELに従ってJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込み前にログを使えるようにする
	logger.SetupDefault(w, slog.LevelInfo)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))
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

	// ターミナル版はログで画面が崩れないよう出力を捨てる
	logWriter := w
	if cmd == CommandBrowse {
		logWriter = io.Discard
	}

	cfg, err := Init(logWriter)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandBrowse:
		return runBrowse(ctx, cfg)
	case CommandMigrate:
		var rest []string
		if len(args) > 1 {
			rest = args[1:]
		}
		return runMigrate(cfg, rest)
	default:
		return runServe(ctx, cfg)
	}
}

// Server は組み立て済みのHTTPハンドラーとバックグラウンド処理。
type Server struct {
	Handler   http.Handler
	Refresher *refresh.Scheduler

	rateLimiter *middleware.RateLimiter
	db          *sql.DB
}

// Close はServerが保持するリソースを解放する。
func (s *Server) Close() {
	s.rateLimiter.Stop()
	if s.db != nil {
		s.db.Close()
	}
}

// NewServer は設定から全依存関係をワイヤリングする。
// upstreamはJikanとニュースフィードへの接続に使うHTTPクライアント。
// DATABASE_URLが空の場合、アカウントはメモリ上に保持する。
func NewServer(ctx context.Context, cfg *config.Config, upstream *http.Client, log *slog.Logger) (*Server, error) {
	// 1. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewCollector(registry)

	// 2. セキュリティ
	guard := security.NewURLGuard()
	sanitizer := security.NewTextSanitizer()

	// 3. 上流API
	policy := upstreamPolicy(cfg)
	jikanOpts := jikan.Options{
		BaseURL:     cfg.JikanBaseURL,
		Timeout:     cfg.JikanTimeout,
		MaxBodySize: cfg.JikanMaxBody,
		RateLimit:   cfg.JikanRateLimit,
		Retry:       policy,
		Metrics:     recorder,
		Text:        sanitizer,
	}
	catalog := jikan.NewClient(upstream, log, jikanOpts)

	// カテゴリはLoader側でリトライするため、クライアントではリトライしない
	genreOpts := jikanOpts
	genreOpts.Retry = retry.Policy{}
	genres := jikan.NewClient(upstream, log, genreOpts)
	categories := category.NewLoader(genres, category.LoaderConfig{
		Policy:         policy,
		AttemptTimeout: cfg.JikanTimeout,
	}, recorder, log)

	newsService := news.NewService(upstream, sanitizer, guard, log, news.Config{
		FeedURL: cfg.NewsFeedURL,
		Policy:  policy,
	})

	// 4. アカウント
	var (
		dir     session.Directory
		db      *sql.DB
		checker handler.HealthChecker
	)
	if cfg.DatabaseURL != "" {
		var err error
		db, err = database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := database.Ping(ctx, db, 5*time.Second); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		log.Info("database connection established")
		dir = repository.NewPostgresAccountRepo(db)
		checker = db
	} else {
		log.Info("DATABASE_URL is not set, accounts are kept in memory")
		dir = session.NewMemoryDirectory()
	}

	sessions := session.NewService(dir, session.ServiceConfig{
		LoginDelay: cfg.LoginDelay,
		Images:     guard,
		Text:       sanitizer,
	}, recorder, log)
	if err := sessions.Seed(ctx, session.MockAccounts()); err != nil {
		if db != nil {
			db.Close()
		}
		return nil, fmt.Errorf("failed to seed demo accounts: %w", err)
	}

	// 5. ルーター
	rateLimiter := middleware.NewRateLimiter(rateLimiterConfig(cfg), log)
	router, err := handler.NewRouter(&handler.RouterDeps{
		Logger:            log,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		GateConfig:    middleware.DefaultGateConfig(),
		HealthChecker: checker,
		Metrics:       metrics.Handler(registry),
		Catalog:       catalog,
		Categories:    categories,
		News:          newsService,
		Sessions:      sessions,
		CookieConfig: session.CookieConfig{
			MaxAge: cfg.SessionMaxAge,
			Domain: cfg.CookieDomain,
			Secure: cfg.CookieSecure,
		},
	})
	if err != nil {
		rateLimiter.Stop()
		if db != nil {
			db.Close()
		}
		return nil, fmt.Errorf("failed to build router: %w", err)
	}

	// 6. 定期更新
	refresher := refresh.NewScheduler([]refresh.Job{
		refresh.JobFunc{JobName: "categories", Fn: func(ctx context.Context) error {
			return categories.Refresh(ctx).Err
		}},
		refresh.JobFunc{JobName: "news", Fn: func(ctx context.Context) error {
			return newsService.Latest(ctx, 0).Err
		}},
	}, log, 2)

	return &Server{
		Handler:     router,
		Refresher:   refresher,
		rateLimiter: rateLimiter,
		db:          db,
	}, nil
}

// rateLimiterConfig はreq/min単位の設定をreq/secのリミッター設定に変換する。
func rateLimiterConfig(cfg *config.Config) middleware.RateLimiterConfig {
	rl := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		rl.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rl.GeneralBurst = cfg.RateLimitGeneral
	}
	if cfg.RateLimitAuth > 0 {
		rl.AuthRate = rate.Limit(float64(cfg.RateLimitAuth) / 60.0)
		rl.AuthBurst = cfg.RateLimitAuth
	}
	return rl
}

// writeMargin はリトライをすべて使い切った後、応答を書き出すまでの余裕。
const writeMargin = 10 * time.Second

// upstreamPolicy は上流呼び出しに共通のリトライ方針を返す。
func upstreamPolicy(cfg *config.Config) retry.Policy {
	return retry.Policy{
		MaxRetries: cfg.JikanMaxRetries,
		BaseDelay:  cfg.JikanRetryDelay,
		Strategy:   retry.Linear,
	}
}

// writeTimeout はリトライを含む最悪ケースの上流待ちより長いWriteTimeoutを返す。
// 短いとフォールバックや503を書き出す前に接続が切られる。
func writeTimeout(cfg *config.Config) time.Duration {
	return upstreamPolicy(cfg).Budget(cfg.JikanTimeout) + writeMargin
}

// runServe はAPIサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	log := slog.Default()
	upstream := security.NewURLGuard().NewSafeClient(cfg.JikanTimeout)

	srv, err := NewServer(ctx, cfg, upstream, log)
	if err != nil {
		return err
	}
	defer srv.Close()

	if cfg.CategoryRefreshInterval > 0 {
		go srv.Refresher.Start(ctx, cfg.CategoryRefreshInterval)
	}

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.Handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout(cfg),
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("API server stopped gracefully")
	return nil
}

// runBrowse はターミナル版を起動する。
func runBrowse(ctx context.Context, cfg *config.Config) error {
	upstream := security.NewURLGuard().NewSafeClient(cfg.JikanTimeout)
	client := jikan.NewClient(upstream, slog.Default(), jikan.Options{
		BaseURL:     cfg.JikanBaseURL,
		Timeout:     cfg.JikanTimeout,
		MaxBodySize: cfg.JikanMaxBody,
		RateLimit:   cfg.JikanRateLimit,
		Retry:       upstreamPolicy(cfg),
		Text:        security.NewTextSanitizer(),
	})
	return tui.Run(ctx, client)
}

// runMigrate はデータベースマイグレーションを実行する。
// up（既定）は未適用のマイグレーションを順番に適用し、down Nは直近N件を戻す。
func runMigrate(cfg *config.Config, args []string) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required for migrate")
	}
	opts, err := ParseMigrateArgs(args)
	if err != nil {
		return err
	}

	slog.Info("running database migrations",
		slog.String("action", string(opts.Action)),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	switch opts.Action {
	case MigrateDown:
		if err := database.RollbackMigrations(cfg.DatabaseURL, opts.Steps); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
		slog.Info("database migrations rolled back", slog.Int("steps", opts.Steps))
	case MigrateVersion:
		version, dirty, err := database.Version(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		slog.Info("database migration version",
			slog.Uint64("version", uint64(version)),
			slog.Bool("dirty", dirty),
		)
	default:
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		slog.Info("database migrations completed successfully")
	}
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
