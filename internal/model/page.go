package model

import "strings"

// Page はリモートAPIから取得した一覧の1ページ分を表す。
// NewPageで生成した値は以下を満たす:
//   - TotalPages > 0 のとき CurrentPage は [1, TotalPages] の範囲
//   - HasNextPage == (CurrentPage < TotalPages)
//   - TotalPages == 0 のとき HasNextPage は false
type Page[T any] struct {
	Items       []T  `json:"items"`
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	HasNextPage bool `json:"hasNextPage"`
	// TotalItems は上流が返した総件数。不明な場合は0。
	TotalItems int `json:"totalItems"`
}

// NewPage はページ情報の不変条件を満たすPageを生成する。
// currentPageはtotalPagesの範囲に丸められる。
// 件数が要求より少なくてもそのまま受け入れる（クライアント側での補完はしない）。
func NewPage[T any](items []T, currentPage, totalPages int) Page[T] {
	if items == nil {
		items = []T{}
	}
	if totalPages < 0 {
		totalPages = 0
	}
	if currentPage < 1 {
		currentPage = 1
	}
	if totalPages > 0 && currentPage > totalPages {
		currentPage = totalPages
	}

	return Page[T]{
		Items:       items,
		CurrentPage: currentPage,
		TotalPages:  totalPages,
		HasNextPage: currentPage < totalPages,
	}
}

// IsEmpty はページに表示する要素がないかを返す。
func (p Page[T]) IsEmpty() bool {
	return len(p.Items) == 0
}

// ClampPage は指定ページ番号を [1, totalPages] に丸める。
// totalPagesが0の場合は常に1を返す。
func ClampPage(n, totalPages int) int {
	if n < 1 {
		return 1
	}
	if totalPages > 0 && n > totalPages {
		return totalPages
	}
	if totalPages <= 0 {
		return 1
	}
	return n
}

// ListQuery は一覧の1ページ分のリクエストを識別する。
// Categoryが空文字列の場合はカテゴリ指定なし（All）を表す。
type ListQuery struct {
	Keyword  string `json:"keyword"`
	Page     int    `json:"page"`
	Category string `json:"category,omitempty"`
}

// Normalize はページ番号を1以上に補正し、キーワードの前後空白を除いたクエリを返す。
// カテゴリ「All」は指定なしとして扱う。
func (q ListQuery) Normalize() ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	q.Keyword = strings.TrimSpace(q.Keyword)
	if q.Category == AllCategoryID {
		q.Category = ""
	}
	return q
}
