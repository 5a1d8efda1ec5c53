// Package refresh はカテゴリ一覧やニュースのキャッシュを定期的に更新する。
package refresh

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job は定期実行する更新処理。
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// JobFunc は関数をJobとして扱うアダプタ。
type JobFunc struct {
	JobName string
	Fn      func(ctx context.Context) error
}

// Name はジョブ名を返す。
func (j JobFunc) Name() string { return j.JobName }

// Run は関数を実行する。
func (j JobFunc) Run(ctx context.Context) error { return j.Fn(ctx) }

// Scheduler はジョブを一定間隔で並列実行する。
// semaphoreパターンで最大並列数を制御する。
type Scheduler struct {
	jobs           []Job
	logger         *slog.Logger
	maxConcurrency int
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値4を使用する。
func NewScheduler(jobs []Job, logger *slog.Logger, maxConcurrency int) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		jobs:           jobs,
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

// Start は起動直後に1回、以降interval間隔でジョブを実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("refresh scheduler started",
		slog.Duration("interval", interval),
		slog.Int("jobs", len(s.jobs)),
	)

	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("refresh scheduler stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce は全ジョブを1回実行し、失敗したジョブの数を返す。
func (s *Scheduler) RunOnce(ctx context.Context) int {
	if len(s.jobs) == 0 {
		return 0
	}
	start := time.Now()

	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	failed := 0

	for _, job := range s.jobs {
		wg.Add(1)
		sem <- struct{}{}

		go func(j Job) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := j.Run(ctx); err != nil {
				s.logger.Warn("refresh job failed",
					slog.String("job", j.Name()),
					slog.String("error", err.Error()),
				)
				mu.Lock()
				failed++
				mu.Unlock()
			}
		}(job)
	}

	wg.Wait()

	s.logger.Info("refresh cycle completed",
		slog.Int("jobs", len(s.jobs)),
		slog.Int("failed", failed),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return failed
}
