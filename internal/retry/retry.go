// Package retry は上流呼び出しのリトライとフォールバックを提供する。
// 全ての一覧取得で同じポリシーを使えるよう、呼び出し関数を受け取る汎用実装としている。
package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Strategy はリトライ間隔の増やし方を表す。
type Strategy int

const (
	// Linear は BaseDelay * 試行番号 の間隔で待機する。
	Linear Strategy = iota
	// Exponential は BaseDelay * 2^(試行番号-1) の間隔で待機し、MaxDelayで頭打ちにする。
	Exponential
)

// Policy はリトライの方針を保持する。
type Policy struct {
	// MaxRetries は初回試行の後に追加で行う試行回数。
	MaxRetries int
	// BaseDelay は1回目のリトライ前の待機時間。
	BaseDelay time.Duration
	// MaxDelay はExponentialの上限。0の場合は上限なし。
	MaxDelay time.Duration
	Strategy Strategy
	// Retryable はエラーがリトライ対象かを判定する。nilの場合は全エラーを対象とする。
	Retryable func(err error) bool
	// Sleep は待機処理。テストで差し替える。nilの場合はコンテキスト対応のタイマー待機。
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry はリトライ直前に呼ばれる。ログやメトリクス用。
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultPolicy はカテゴリ取得と同じ方針（追加2回、2000ms * 試行番号）を返す。
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 2,
		BaseDelay:  2 * time.Second,
		Strategy:   Linear,
	}
}

// Delay は attempt 回目（1始まり）のリトライ前の待機時間を返す。
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	switch p.Strategy {
	case Exponential:
		delay := p.BaseDelay
		for i := 1; i < attempt; i++ {
			delay *= 2
			if p.MaxDelay > 0 && delay > p.MaxDelay {
				return p.MaxDelay
			}
		}
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			return p.MaxDelay
		}
		return delay
	default:
		return p.BaseDelay * time.Duration(attempt)
	}
}

// Budget は1試行あたりattemptTimeoutかかる場合に、全試行と待機を終えるまでの最大時間を返す。
func (p Policy) Budget(attemptTimeout time.Duration) time.Duration {
	retries := max(p.MaxRetries, 0)
	total := time.Duration(retries+1) * attemptTimeout
	for attempt := 1; attempt <= retries; attempt++ {
		total += p.Delay(attempt)
	}
	return total
}

// Do はfnを実行し、失敗時はポリシーに従ってリトライする。
// コンテキストがキャンセルされた場合は待機を打ち切り、最後のエラーを返す。
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := p.Delay(attempt)
			if p.OnRetry != nil {
				p.OnRetry(attempt, delay, lastErr)
			}
			if err := p.sleep(ctx, delay); err != nil {
				return zero, lastErr
			}
		}

		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, lastErr
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return zero, lastErr
		}
	}

	return zero, lastErr
}

// WithFallback はDoを実行し、全試行が失敗した場合はfallbackを返す。
// 呼び出し元に失敗を伝播させない。2番目の戻り値は記録用の参考エラーで、
// フォールバックを返した場合のみ非nilとなる。
func WithFallback[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error), fallback T) (T, error) {
	v, err := Do(ctx, p, fn)
	if err != nil {
		return fallback, fmt.Errorf("%w: %w", ErrExhausted, err)
	}
	return v, nil
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// StatusClass はHTTPステータスコードに基づく取得結果の分類。
type StatusClass int

const (
	// StatusOK は取得成功（2xx）。
	StatusOK StatusClass = iota
	// StatusStop はリトライしても結果が変わらないステータス（4xx、429を除く）。
	StatusStop
	// StatusBackoff は時間をおけば回復し得るステータス（429/5xx）。
	StatusBackoff
	// StatusUnknown は未知のステータスコード。
	StatusUnknown
)

// ClassifyHTTPStatus はHTTPステータスコードを分類する。
func ClassifyHTTPStatus(statusCode int) StatusClass {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return StatusOK
	case statusCode == http.StatusTooManyRequests:
		return StatusBackoff
	case statusCode >= 500:
		return StatusBackoff
	case statusCode >= 400:
		return StatusStop
	default:
		return StatusUnknown
	}
}

// IsRetryableStatus は指定ステータスでリトライすべきかを返す。
func IsRetryableStatus(statusCode int) bool {
	return ClassifyHTTPStatus(statusCode) == StatusBackoff
}

// ErrExhausted はWithFallbackがフォールバック値を返したことを示す。
var ErrExhausted = errors.New("retry attempts exhausted")
