package category

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/metafates/gache"

	"github.com/hitoshi/minnego/internal/jikan"
	"github.com/hitoshi/minnego/internal/metrics"
	"github.com/hitoshi/minnego/internal/model"
	"github.com/hitoshi/minnego/internal/retry"
)

const (
	// DefaultAttemptTimeout は1回の取得試行のタイムアウト。
	DefaultAttemptTimeout = 10 * time.Second
	// DefaultTTL は取得成功した一覧を再利用する期間。
	DefaultTTL = time.Hour
	// DefaultCooldown は取得失敗後、上流への再試行を控える期間。
	DefaultCooldown = time.Minute
)

// GenreSource はジャンル一覧の取得元。
type GenreSource interface {
	MangaGenres(ctx context.Context) ([]jikan.Genre, error)
}

// Result はLoadの結果。Categoriesは常に1件以上。
type Result struct {
	Categories   []model.Category
	FromFallback bool
	// Err はフォールバックに切り替えた原因。記録用で、呼び出し元はエラーとして扱わない。
	Err error
}

// LoaderConfig はLoaderの設定。
type LoaderConfig struct {
	Policy         retry.Policy
	AttemptTimeout time.Duration
	TTL            time.Duration
	Cooldown       time.Duration
}

// Loader はカテゴリ一覧を取得してキャッシュする。
type Loader struct {
	source  GenreSource
	cfg     LoaderConfig
	metrics metrics.Recorder
	logger  *slog.Logger

	cache    *gache.Cache[[]model.Category]
	failures *gache.Cache[error]

	// fetchMu は上流への取得を1本にまとめる
	fetchMu sync.Mutex

	mu   sync.Mutex
	last []model.Category
}

// NewLoader はLoaderを生成する。ゼロ値の設定はデフォルト値になる。
func NewLoader(source GenreSource, cfg LoaderConfig, recorder metrics.Recorder, logger *slog.Logger) *Loader {
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultAttemptTimeout
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.Policy.Retryable == nil {
		cfg.Policy.Retryable = jikan.IsRetryable
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loader{
		source:   source,
		cfg:      cfg,
		metrics:  recorder,
		logger:   logger,
		cache:    gache.New[[]model.Category](&gache.Options{Lifetime: cfg.TTL}),
		failures: gache.New[error](&gache.Options{Lifetime: cfg.Cooldown}),
	}
	// 初回のGetで内部状態が初期化されるため、並行アクセスの前に済ませておく
	_, _, _ = l.cache.Get()
	_, _, _ = l.failures.Get()
	return l
}

// Load はカテゴリ一覧を返す。キャッシュが有効ならそれを返し、
// 取得に失敗し続けた場合は直前の一覧か静的な一覧にフォールバックする。
// 失敗の直後はクールダウンが明けるまで上流に問い合わせない。
func (l *Loader) Load(ctx context.Context) Result {
	return l.load(ctx, false)
}

// Refresh はキャッシュとクールダウンを無視して取得し直す。定期更新から呼ばれる。
// 失敗してもキャッシュ済みの一覧は捨てない。
func (l *Loader) Refresh(ctx context.Context) Result {
	return l.load(ctx, true)
}

func (l *Loader) load(ctx context.Context, force bool) Result {
	if !force {
		if cached, ok := l.fresh(); ok {
			return Result{Categories: cached}
		}
	}

	l.fetchMu.Lock()
	defer l.fetchMu.Unlock()

	if !force {
		// 待っている間に別のリクエストが取得を終えていることがある
		if cached, ok := l.fresh(); ok {
			return Result{Categories: cached}
		}
		if err := l.cooldownErr(); err != nil {
			l.metrics.RecordCategoryFallback()
			l.logger.Debug("category fetch cooling down", slog.String("error", err.Error()))
			return l.fallback(err)
		}
	}

	policy := l.cfg.Policy
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		l.logger.Warn("retrying category fetch",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)
	}

	categories, err := retry.WithFallback(ctx, policy, l.fetch, nil)
	if err != nil {
		_ = l.failures.Set(err)
		l.metrics.RecordCategoryFallback()
		l.logger.Warn("using fallback categories", slog.String("error", err.Error()))
		// 強制更新の失敗では期限内のキャッシュを返す
		if cached, ok := l.fresh(); ok {
			return Result{Categories: cached, FromFallback: true, Err: err}
		}
		return l.fallback(err)
	}

	l.store(categories)
	return Result{Categories: clone(categories)}
}

// fallback は直前に取得できた一覧を優先し、なければ静的な一覧を返す。
func (l *Loader) fallback(err error) Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.last != nil {
		return Result{Categories: clone(l.last), FromFallback: true, Err: err}
	}
	return Result{Categories: Fallback(), FromFallback: true, Err: err}
}

func (l *Loader) fetch(ctx context.Context) ([]model.Category, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, l.cfg.AttemptTimeout)
	defer cancel()

	genres, err := l.source.MangaGenres(attemptCtx)
	if err != nil {
		return nil, err
	}
	return Format(genres), nil
}

func (l *Loader) fresh() ([]model.Category, bool) {
	cached, expired, err := l.cache.Get()
	if err != nil || expired || cached == nil {
		return nil, false
	}
	return clone(cached), true
}

// cooldownErr はクールダウン中なら直近の失敗を返す。
func (l *Loader) cooldownErr() error {
	err, expired, getErr := l.failures.Get()
	if getErr != nil || expired {
		return nil
	}
	return err
}

func (l *Loader) store(categories []model.Category) {
	_ = l.cache.Set(clone(categories))
	_ = l.failures.Set(nil)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.last = clone(categories)
}

func clone(c []model.Category) []model.Category {
	return append([]model.Category(nil), c...)
}
