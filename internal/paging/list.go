// Package paging はリモートAPIのページング一覧の状態遷移を提供する。
//
// 一覧画面（検索結果、ランキング、クラブのメンバー、レビュー）は全てListを通して
// ページを取得する。クエリ・ページ・カテゴリが変わるたびに Loading を経由して
// Success か Failure のどちらか一方に落ち着く。
package paging

import (
	"context"
	"errors"
	"sync"

	"github.com/hitoshi/minnego/internal/model"
)

// Query は一覧の1ページ分のリクエスト。
type Query = model.ListQuery

// NewQuery はページ番号を1以上に補正したQueryを生成する。
func NewQuery(keyword string, page int, category string) Query {
	return Query{Keyword: keyword, Page: page, Category: category}.Normalize()
}

// Status は一覧の取得状態。
type Status int

const (
	Idle Status = iota
	Loading
	Success
	Failure
)

// String はログ・表示用の名前を返す。
func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Success:
		return "success"
	case Failure:
		return "failure"
	default:
		return "unknown"
	}
}

// Fetcher は1ページ分を取得する関数。
type Fetcher[T any] func(ctx context.Context, q Query) (model.Page[T], error)

// State はある時点の一覧の状態。
type State[T any] struct {
	// Query は最後に発行したリクエストのクエリ。
	Query Query
	// PendingKeyword は入力中で未確定の検索キーワード。
	PendingKeyword string
	Status         Status
	// Page は表示中のページ。HasDataがfalseの場合は空。
	Page    model.Page[T]
	HasData bool
	Err     error
	// RequestID は最後に発行したリクエストの通し番号。
	RequestID uint64
}

// Loading は取得中かを返す。
func (s State[T]) Loading() bool {
	return s.Status == Loading
}

// Options はListの挙動を設定する。
type Options[T any] struct {
	// PreserveOnError がtrueの場合、取得失敗時も直前のページを保持する。
	PreserveOnError bool
	// OnChange は状態が変わるたびにロックの外で呼ばれる。
	OnChange func(State[T])
}

// List はページング一覧の状態機械。複数goroutineから同時に使用してよい。
//
// 取得を開始するたびに通し番号を振り、前の取得はキャンセルする。
// 完了した取得の番号が最新でない場合、その結果は破棄される。
type List[T any] struct {
	fetch Fetcher[T]
	opts  Options[T]

	mu     sync.Mutex
	state  State[T]
	cancel context.CancelFunc
}

// New は初期クエリを持つIdle状態のListを生成する。
func New[T any](fetch Fetcher[T], initial Query, opts Options[T]) *List[T] {
	initial = initial.Normalize()
	return &List[T]{
		fetch: fetch,
		opts:  opts,
		state: State[T]{
			Query:          initial,
			PendingKeyword: initial.Keyword,
			Status:         Idle,
			Page:           model.NewPage[T](nil, initial.Page, 0),
		},
	}
}

// Snapshot は現在の状態のコピーを返す。
func (l *List[T]) Snapshot() State[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// SetQuery は入力中のキーワードを更新する。取得は行わない。
func (l *List[T]) SetQuery(keyword string) State[T] {
	l.mu.Lock()
	l.state.PendingKeyword = keyword
	s := l.state
	l.mu.Unlock()

	l.notify(s)
	return s
}

// TriggerSearch は入力中のキーワードを確定し、1ページ目を取得する。
func (l *List[T]) TriggerSearch(ctx context.Context) State[T] {
	l.mu.Lock()
	q := l.state.Query
	q.Keyword = l.state.PendingKeyword
	q.Page = 1
	l.mu.Unlock()

	return l.load(ctx, q)
}

// SetCategory はカテゴリを変更し、1ページ目を取得する。
func (l *List[T]) SetCategory(ctx context.Context, category string) State[T] {
	l.mu.Lock()
	q := l.state.Query
	q.Category = category
	q.Page = 1
	l.mu.Unlock()

	return l.load(ctx, q)
}

// GoToPage は指定ページを取得する。ページ番号は [1, 総ページ数] に丸められる。
// 表示中のページと同じ場合は何もしない。
func (l *List[T]) GoToPage(ctx context.Context, n int) State[T] {
	l.mu.Lock()
	n = model.ClampPage(n, l.state.Page.TotalPages)
	if l.state.Status == Success && n == l.state.Page.CurrentPage {
		s := l.state
		l.mu.Unlock()
		return s
	}
	q := l.state.Query
	q.Page = n
	l.mu.Unlock()

	return l.load(ctx, q)
}

// GoToNextPage は次のページを取得する。最終ページでは何もしない。
func (l *List[T]) GoToNextPage(ctx context.Context) State[T] {
	l.mu.Lock()
	if !l.state.HasData || !l.state.Page.HasNextPage {
		s := l.state
		l.mu.Unlock()
		return s
	}
	next := l.state.Page.CurrentPage + 1
	l.mu.Unlock()

	return l.GoToPage(ctx, next)
}

// GoToPrevPage は前のページを取得する。1ページ目では何もしない。
func (l *List[T]) GoToPrevPage(ctx context.Context) State[T] {
	l.mu.Lock()
	if !l.state.HasData || l.state.Page.CurrentPage <= 1 {
		s := l.state
		l.mu.Unlock()
		return s
	}
	prev := l.state.Page.CurrentPage - 1
	l.mu.Unlock()

	return l.GoToPage(ctx, prev)
}

// Retry は直前と同じクエリで取得し直す。
func (l *List[T]) Retry(ctx context.Context) State[T] {
	l.mu.Lock()
	q := l.state.Query
	l.mu.Unlock()

	return l.load(ctx, q)
}

// Close は取得中のリクエストをキャンセルする。
func (l *List[T]) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
}

// load はLoadingに遷移してqを取得し、最新のリクエストであれば結果を反映する。
// 戻り値は反映後（破棄した場合はその時点）の状態。
func (l *List[T]) load(ctx context.Context, q Query) State[T] {
	q = q.Normalize()
	loadCtx, cancel := context.WithCancel(ctx)

	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	l.cancel = cancel
	l.state.RequestID++
	id := l.state.RequestID
	l.state.Query = q
	l.state.PendingKeyword = q.Keyword
	l.state.Status = Loading
	l.state.Err = nil
	loading := l.state
	l.mu.Unlock()

	l.notify(loading)

	page, err := l.fetch(loadCtx, q)

	l.mu.Lock()
	if id != l.state.RequestID {
		// 後発のリクエストに置き換えられた
		s := l.state
		l.mu.Unlock()
		cancel()
		return s
	}
	cancel()
	l.cancel = nil

	if err != nil {
		l.state.Status = Failure
		l.state.Err = err
		if !l.opts.PreserveOnError {
			l.state.Page = model.NewPage[T](nil, q.Page, 0)
			l.state.HasData = false
		}
	} else {
		l.state.Status = Success
		l.state.Page = page
		l.state.HasData = true
	}
	s := l.state
	l.mu.Unlock()

	l.notify(s)
	return s
}

func (l *List[T]) notify(s State[T]) {
	if l.opts.OnChange != nil {
		l.opts.OnChange(s)
	}
}

// Load はクエリを正規化して1ページを取得する状態を持たない版。
// HTTPハンドラのようにリクエストごとに1回だけ取得する場合に使う。
func Load[T any](ctx context.Context, fetch Fetcher[T], q Query) (model.Page[T], error) {
	if fetch == nil {
		return model.Page[T]{}, errors.New("paging: nil fetcher")
	}
	page, err := fetch(ctx, q.Normalize())
	if err != nil {
		return model.Page[T]{}, err
	}
	total := page.TotalItems
	page = model.NewPage(page.Items, page.CurrentPage, page.TotalPages)
	page.TotalItems = total
	return page, nil
}
