// Package news はMyAnimeListのニュースRSSを取得して記事一覧に変換する。
package news

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/metafates/gache"
	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html"

	"github.com/hitoshi/minnego/internal/model"
	"github.com/hitoshi/minnego/internal/retry"
)

const (
	// DefaultFeedURL はMyAnimeListのニュースRSS。
	DefaultFeedURL = "https://myanimelist.net/rss/news.xml"
	// DefaultCacheTTL は取得済みの記事を再利用する期間。
	DefaultCacheTTL = 15 * time.Minute
	// DefaultCooldown は取得失敗後、フィードへの再取得を控える期間。
	DefaultCooldown = time.Minute
	// DefaultMaxBodySize はRSSのボディ上限（2MB）。
	DefaultMaxBodySize = 2 << 20
	summaryRunes       = 200
)

// Sanitizer は記事本文のHTMLを要約テキストにする。
type Sanitizer interface {
	Summary(raw string, maxRunes int) string
}

// ImageURLValidator はサムネイルURLを検証する。
type ImageURLValidator interface {
	ValidateImageURL(rawURL string) error
}

// Config はServiceの設定。
type Config struct {
	FeedURL     string
	CacheTTL    time.Duration
	Cooldown    time.Duration
	MaxBodySize int64
	Policy      retry.Policy
}

// Result はLatestの結果。取得に失敗した場合も直前の記事（なければ空）を返す。
type Result struct {
	Articles []model.NewsArticle
	// Stale は取得に失敗し、直前の記事または空の一覧を返したことを示す。
	Stale bool
	// Err は取得失敗の原因。記録用。
	Err error
}

// Service はニュース記事を取得してキャッシュする。
type Service struct {
	httpClient *http.Client
	sanitizer  Sanitizer
	images     ImageURLValidator
	logger     *slog.Logger
	config     Config

	cache    *gache.Cache[[]model.NewsArticle]
	failures *gache.Cache[error]
	fetchMu  sync.Mutex

	// mu は期限切れ後も返す直前の記事を守る
	mu   sync.Mutex
	last []model.NewsArticle
}

// NewService はServiceを生成する。
func NewService(httpClient *http.Client, sanitizer Sanitizer, images ImageURLValidator, logger *slog.Logger, config Config) *Service {
	if config.FeedURL == "" {
		config.FeedURL = DefaultFeedURL
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = DefaultCacheTTL
	}
	if config.Cooldown <= 0 {
		config.Cooldown = DefaultCooldown
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = DefaultMaxBodySize
	}
	if config.Policy.Retryable == nil {
		config.Policy.Retryable = isRetryable
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		httpClient: httpClient,
		sanitizer:  sanitizer,
		images:     images,
		logger:     logger,
		config:     config,
		cache:      gache.New[[]model.NewsArticle](&gache.Options{Lifetime: config.CacheTTL}),
		failures:   gache.New[error](&gache.Options{Lifetime: config.Cooldown}),
	}
	_, _, _ = s.cache.Get()
	_, _, _ = s.failures.Get()
	return s
}

// Latest は新しい順に最大limit件の記事を返す。limitが0以下の場合は全件。
// 取得に失敗した直後はクールダウンが明けるまでフィードに問い合わせない。
func (s *Service) Latest(ctx context.Context, limit int) Result {
	if cached, ok := s.fresh(); ok {
		return Result{Articles: head(cached, limit)}
	}

	s.fetchMu.Lock()
	defer s.fetchMu.Unlock()

	if cached, ok := s.fresh(); ok {
		return Result{Articles: head(cached, limit)}
	}
	if err, _, _ := s.failures.Get(); err != nil {
		return Result{Articles: head(s.lastGood(), limit), Stale: true, Err: err}
	}

	articles, err := retry.WithFallback(ctx, s.config.Policy, s.fetch, s.lastGood())
	if err != nil {
		_ = s.failures.Set(err)
		s.logger.Warn("news feed unavailable",
			slog.String("feed_url", s.config.FeedURL),
			slog.String("error", err.Error()),
		)
		return Result{Articles: head(articles, limit), Stale: true, Err: err}
	}

	_ = s.cache.Set(articles)
	_ = s.failures.Set(nil)
	s.mu.Lock()
	s.last = articles
	s.mu.Unlock()

	return Result{Articles: head(articles, limit)}
}

func (s *Service) fresh() ([]model.NewsArticle, bool) {
	cached, expired, err := s.cache.Get()
	if err != nil || expired || cached == nil {
		return nil, false
	}
	return cached, true
}

// lastGood は直前に取得できた記事を返す。一度も取得できていなければ空の一覧。
func (s *Service) lastGood() []model.NewsArticle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return []model.NewsArticle{}
	}
	return s.last
}

// statusError はRSS取得で2xx以外が返ったことを表す。
type statusError struct {
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("news feed returned status %d", e.status)
}

func isRetryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return retry.IsRetryableStatus(se.status)
	}
	var pe *parseError
	return !errors.As(err, &pe)
}

func (s *Service) fetch(ctx context.Context) ([]model.NewsArticle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.FeedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/rss+xml, application/xml;q=0.9, */*;q=0.5")

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch news feed: %w", err)
	}
	defer resp.Body.Close()

	if retry.ClassifyHTTPStatus(resp.StatusCode) != retry.StatusOK {
		return nil, &statusError{status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.config.MaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read news feed: %w", err)
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		// 壊れたフィードは再取得しても直らない
		return nil, &parseError{err: err}
	}

	articles := s.convert(parsed.Items)
	s.logger.Info("news feed fetched",
		slog.String("feed_url", s.config.FeedURL),
		slog.Int("items_total", len(articles)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return articles, nil
}

type parseError struct {
	err error
}

func (e *parseError) Error() string { return "failed to parse news feed: " + e.err.Error() }
func (e *parseError) Unwrap() error { return e.err }

func (s *Service) convert(items []*gofeed.Item) []model.NewsArticle {
	articles := make([]model.NewsArticle, 0, len(items))
	for _, item := range items {
		if item == nil || strings.TrimSpace(item.Title) == "" {
			continue
		}

		body := item.Description
		if body == "" {
			body = item.Content
		}

		a := model.NewsArticle{
			Title:   strings.TrimSpace(item.Title),
			Link:    item.Link,
			Summary: s.sanitizer.Summary(body, summaryRunes),
		}
		if a.Link == "" && strings.HasPrefix(item.GUID, "https://") {
			a.Link = item.GUID
		}
		if item.PublishedParsed != nil {
			a.PublishedAt = item.PublishedParsed.UTC().Format(time.RFC3339)
		} else if item.UpdatedParsed != nil {
			a.PublishedAt = item.UpdatedParsed.UTC().Format(time.RFC3339)
		}
		// フィード由来の画像は公開httpsのURLのみ採用する
		if thumb := thumbnail(item); strings.HasPrefix(thumb, "https://") && s.images.ValidateImageURL(thumb) == nil {
			a.Thumbnail = thumb
		}

		articles = append(articles, a)
	}
	return articles
}

// thumbnail は記事の画像URLを探す。
// image要素、画像のenclosure、media:thumbnail、本文中の最初のimgの順に探す。
func thumbnail(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	for _, e := range item.Enclosures {
		if e != nil && strings.HasPrefix(e.Type, "image/") && e.URL != "" {
			return e.URL
		}
	}
	if media, ok := item.Extensions["media"]; ok {
		for _, ext := range media["thumbnail"] {
			if u := ext.Attrs["url"]; u != "" {
				return u
			}
		}
	}
	if src := firstImageSrc(item.Description); src != "" {
		return src
	}
	return firstImageSrc(item.Content)
}

// firstImageSrc はHTML断片の最初のimg要素のsrcを返す。
func firstImageSrc(fragment string) string {
	if !strings.Contains(fragment, "<img") {
		return ""
	}
	tokenizer := html.NewTokenizer(strings.NewReader(fragment))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			if string(tn) != "img" || !hasAttr {
				continue
			}
			for {
				key, val, more := tokenizer.TagAttr()
				if strings.EqualFold(string(key), "src") && len(val) > 0 {
					return string(val)
				}
				if !more {
					break
				}
			}
		}
	}
}

func head(articles []model.NewsArticle, limit int) []model.NewsArticle {
	if limit > 0 && len(articles) > limit {
		articles = articles[:limit]
	}
	return append([]model.NewsArticle{}, articles...)
}
