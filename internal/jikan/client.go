// Package jikan はJikan（非公式MyAnimeList）REST APIのクライアントを提供する。
// 全てのエンドポイントは同じ取得処理（タイムアウト、レート制限、リトライ、
// 型付きエラー、レスポンス形状の検証）を通る。
package jikan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/minnego/internal/metrics"
	"github.com/hitoshi/minnego/internal/retry"
)

const (
	// DefaultBaseURL はJikan v4のエンドポイント。
	DefaultBaseURL = "https://api.jikan.moe/v4"
	// DefaultTimeout は1リクエストあたりのタイムアウト。
	DefaultTimeout = 10 * time.Second
	// DefaultMaxBodySize はレスポンスボディの上限（5MiB）。
	DefaultMaxBodySize = 5 << 20
	// DefaultPageSize は検索系エンドポイントの1ページあたりの件数。
	DefaultPageSize = 24
	userAgent       = "Minnego/1.0 (+https://minnego.com)"
)

// TextCleaner はHTML混じりの文字列をプレーンテキストにする。
type TextCleaner interface {
	PlainText(raw string) string
}

// Options はClientの設定。ゼロ値のフィールドはデフォルト値になる。
type Options struct {
	BaseURL     string
	Timeout     time.Duration
	MaxBodySize int64
	PageSize    int
	// RateLimit は1秒あたりの最大リクエスト数。0以下の場合は制限しない。
	RateLimit float64
	// Retry は全エンドポイント共通のリトライ方針。Retryableは上書きされる。
	Retry   retry.Policy
	Metrics metrics.Recorder
	Text    TextCleaner
}

// Client はJikan APIのクライアント。複数goroutineから同時に使用してよい。
type Client struct {
	httpClient  *http.Client
	logger      *slog.Logger
	baseURL     string
	timeout     time.Duration
	maxBodySize int64
	pageSize    int
	limiter     *rate.Limiter
	retry       retry.Policy
	metrics     metrics.Recorder
	text        TextCleaner
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, opts Options) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		httpClient:  httpClient,
		logger:      logger,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		timeout:     opts.Timeout,
		maxBodySize: opts.MaxBodySize,
		pageSize:    opts.PageSize,
		retry:       opts.Retry,
		metrics:     opts.Metrics,
		text:        opts.Text,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.maxBodySize <= 0 {
		c.maxBodySize = DefaultMaxBodySize
	}
	if c.pageSize <= 0 {
		c.pageSize = DefaultPageSize
	}
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	if c.metrics == nil {
		c.metrics = metrics.Nop{}
	}
	if c.text == nil {
		c.text = passthrough{}
	}
	c.retry.Retryable = IsRetryable

	return c
}

// getJSON はリトライ方針に従ってGETを行い、ボディをoutにデコードする。
func (c *Client) getJSON(ctx context.Context, endpoint, path string, params url.Values, out any) error {
	policy := c.retry
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		c.metrics.RecordUpstreamRetry(endpoint)
		c.logger.Warn("retrying upstream request",
			slog.String("endpoint", endpoint),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)
	}

	_, err := retry.Do(ctx, policy, func(ctx context.Context) (struct{}, error) {
		body, err := c.fetch(ctx, endpoint, path, params)
		if err != nil {
			return struct{}{}, err
		}
		if err := json.Unmarshal(body, out); err != nil {
			return struct{}{}, &SchemaError{Endpoint: endpoint, Reason: "malformed JSON", Err: err}
		}
		return struct{}{}, nil
	})
	return err
}

// fetch は1回分のGETを実行し、2xxの場合のみボディを返す。
func (c *Client) fetch(ctx context.Context, endpoint, path string, params url.Values) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &TimeoutError{Endpoint: endpoint, Timeout: c.timeout}
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordUpstreamRequest(endpoint, 0, time.Since(start))
		if ctx.Err() != nil {
			// 呼び出し元による中断はタイムアウトとは区別する
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			c.logger.Warn("upstream request timed out",
				slog.String("endpoint", endpoint),
				slog.Duration("timeout", c.timeout),
			)
			return nil, &TimeoutError{Endpoint: endpoint, Timeout: c.timeout}
		}
		c.logger.Error("upstream request failed",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("jikan %s: request failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	duration := time.Since(start)
	c.metrics.RecordUpstreamRequest(endpoint, resp.StatusCode, duration)

	if retry.ClassifyHTTPStatus(resp.StatusCode) != retry.StatusOK {
		c.logger.Warn("upstream returned error status",
			slog.String("endpoint", endpoint),
			slog.Int("http_status", resp.StatusCode),
			slog.Float64("duration_ms", float64(duration.Milliseconds())),
		)
		return nil, &APIError{
			Endpoint:   endpoint,
			Status:     resp.StatusCode,
			StatusText: http.StatusText(resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		if reqCtx.Err() != nil && ctx.Err() == nil {
			return nil, &TimeoutError{Endpoint: endpoint, Timeout: c.timeout}
		}
		return nil, fmt.Errorf("jikan %s: failed to read body: %w", endpoint, err)
	}
	if int64(len(body)) > c.maxBodySize {
		return nil, &SchemaError{Endpoint: endpoint, Reason: fmt.Sprintf("response exceeds %d bytes", c.maxBodySize)}
	}

	c.logger.Debug("upstream request completed",
		slog.String("endpoint", endpoint),
		slog.Int("http_status", resp.StatusCode),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return body, nil
}

// isTimeout はnet.Error互換のタイムアウトかを判定する。
func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

type passthrough struct{}

func (passthrough) PlainText(raw string) string { return raw }
