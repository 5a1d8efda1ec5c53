package jikan

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/samber/lo"

	"github.com/hitoshi/minnego/internal/model"
)

// TopMangaFilters はランキングで指定できるフィルタ。
var TopMangaFilters = []string{"bypopularity", "favorite", "publishing", "upcoming"}

// ClubCategories はクラブ検索で指定できるカテゴリ。
var ClubCategories = []string{
	"anime", "manga", "actors_and_artists", "characters", "cities_and_neighborhoods",
	"companies", "conventions", "games", "japan", "music", "other", "schools",
}

// SearchAnime はアニメをキーワードとジャンルで検索する。
// キーワードが空の場合は人気順の一覧を返す。
func (c *Client) SearchAnime(ctx context.Context, q model.ListQuery) (model.Page[model.Anime], error) {
	q = q.Normalize()
	params, err := c.searchParams(q)
	if err != nil {
		return model.Page[model.Anime]{}, err
	}
	return fetchPage(ctx, c, "anime_search", "/anime", params, q.Page, c.convertAnime)
}

// SearchManga は漫画をキーワードとジャンルで検索する。
func (c *Client) SearchManga(ctx context.Context, q model.ListQuery) (model.Page[model.Manga], error) {
	q = q.Normalize()
	params, err := c.searchParams(q)
	if err != nil {
		return model.Page[model.Manga]{}, err
	}
	return fetchPage(ctx, c, "manga_search", "/manga", params, q.Page, c.convertManga)
}

// TopManga は漫画ランキングを取得する。Categoryはランキングのフィルタとして扱う。
func (c *Client) TopManga(ctx context.Context, q model.ListQuery) (model.Page[model.Manga], error) {
	q = q.Normalize()
	params := url.Values{}
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("limit", strconv.Itoa(c.pageSize))
	if q.Category != "" {
		if !lo.Contains(TopMangaFilters, q.Category) {
			return model.Page[model.Manga]{}, fmt.Errorf("%w: unknown ranking filter %q", ErrInvalidQuery, q.Category)
		}
		params.Set("filter", q.Category)
	}
	return fetchPage(ctx, c, "top_manga", "/top/manga", params, q.Page, c.convertManga)
}

// SearchClubs はクラブを名前とカテゴリで検索する。
func (c *Client) SearchClubs(ctx context.Context, q model.ListQuery) (model.Page[model.Club], error) {
	q = q.Normalize()
	params := url.Values{}
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("limit", strconv.Itoa(c.pageSize))
	if q.Keyword != "" {
		params.Set("q", q.Keyword)
	}
	if q.Category != "" {
		if !lo.Contains(ClubCategories, q.Category) {
			return model.Page[model.Club]{}, fmt.Errorf("%w: unknown club category %q", ErrInvalidQuery, q.Category)
		}
		params.Set("category", q.Category)
	}
	if q.Keyword == "" {
		params.Set("order_by", "members_count")
		params.Set("sort", "desc")
	}
	return fetchPage(ctx, c, "club_search", "/clubs", params, q.Page, convertClub)
}

// ClubMembers はクラブのメンバー一覧を取得する。
func (c *Client) ClubMembers(ctx context.Context, clubID, page int) (model.Page[model.ClubMember], error) {
	if clubID <= 0 {
		return model.Page[model.ClubMember]{}, fmt.Errorf("%w: club id must be positive", ErrInvalidQuery)
	}
	page = max(page, 1)
	params := url.Values{"page": {strconv.Itoa(page)}}
	path := fmt.Sprintf("/clubs/%d/members", clubID)
	return fetchPage(ctx, c, "club_members", path, params, page, convertClubMember)
}

// AnimeReviews はアニメのレビュー一覧を取得する。
func (c *Client) AnimeReviews(ctx context.Context, animeID, page int) (model.Page[model.Review], error) {
	if animeID <= 0 {
		return model.Page[model.Review]{}, fmt.Errorf("%w: anime id must be positive", ErrInvalidQuery)
	}
	page = max(page, 1)
	params := url.Values{"page": {strconv.Itoa(page)}}
	path := fmt.Sprintf("/anime/%d/reviews", animeID)
	return fetchPage(ctx, c, "anime_reviews", path, params, page, c.convertReview)
}

// Anime はアニメの詳細を取得する。
func (c *Client) Anime(ctx context.Context, id int) (model.Anime, error) {
	if id <= 0 {
		return model.Anime{}, fmt.Errorf("%w: anime id must be positive", ErrInvalidQuery)
	}
	return fetchOne(ctx, c, "anime", fmt.Sprintf("/anime/%d/full", id), c.convertAnime)
}

// Manga は漫画の詳細を取得する。
func (c *Client) Manga(ctx context.Context, id int) (model.Manga, error) {
	if id <= 0 {
		return model.Manga{}, fmt.Errorf("%w: manga id must be positive", ErrInvalidQuery)
	}
	return fetchOne(ctx, c, "manga", fmt.Sprintf("/manga/%d/full", id), c.convertManga)
}

// Club はクラブの詳細を取得する。
func (c *Client) Club(ctx context.Context, id int) (model.Club, error) {
	if id <= 0 {
		return model.Club{}, fmt.Errorf("%w: club id must be positive", ErrInvalidQuery)
	}
	return fetchOne(ctx, c, "club", fmt.Sprintf("/clubs/%d", id), convertClub)
}

// MangaGenres は漫画ジャンルの一覧を取得する。ページ情報は返らない。
func (c *Client) MangaGenres(ctx context.Context) ([]Genre, error) {
	var env envelope
	if err := c.getJSON(ctx, "genres", "/genres/manga", nil, &env); err != nil {
		return nil, err
	}
	var genres []Genre
	if err := decodeData("genres", env.Data, &genres); err != nil {
		return nil, err
	}
	return genres, nil
}

// searchParams はアニメ・漫画検索の共通クエリを組み立てる。
func (c *Client) searchParams(q model.ListQuery) (url.Values, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("limit", strconv.Itoa(c.pageSize))
	params.Set("sfw", "true")
	if q.Keyword != "" {
		params.Set("q", q.Keyword)
	} else {
		params.Set("order_by", "members")
		params.Set("sort", "desc")
	}
	if q.Category != "" {
		genreID, ok := model.CategorySourceID(q.Category)
		if !ok {
			return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidQuery, q.Category)
		}
		params.Set("genres", strconv.Itoa(genreID))
	}
	return params, nil
}

// fetchPage は一覧系エンドポイントを取得し、ページ情報を検証してPageに変換する。
func fetchPage[R, T any](ctx context.Context, c *Client, endpoint, path string, params url.Values, requestedPage int, convert func(R) T) (model.Page[T], error) {
	var env envelope
	if err := c.getJSON(ctx, endpoint, path, params, &env); err != nil {
		return model.Page[T]{}, err
	}

	var raw []R
	if err := decodeData(endpoint, env.Data, &raw); err != nil {
		return model.Page[T]{}, err
	}
	if env.Pagination == nil {
		return model.Page[T]{}, &SchemaError{Endpoint: endpoint, Reason: "pagination is missing"}
	}

	items := lo.Map(raw, func(r R, _ int) T { return convert(r) })
	current, total := pageBounds(*env.Pagination, requestedPage, len(items))
	// 最終ページより後ろは空のページを別の番号で返さずエラーにする
	if requestedPage > max(total, 1) {
		return model.Page[T]{}, fmt.Errorf("%w: page %d of %d", ErrPageOutOfRange, requestedPage, total)
	}

	page := model.NewPage(items, current, total)
	if env.Pagination.Items != nil {
		page.TotalItems = env.Pagination.Items.Total
	}
	return page, nil
}

// fetchOne は詳細系エンドポイントを取得して変換する。
func fetchOne[R, T any](ctx context.Context, c *Client, endpoint, path string, convert func(R) T) (T, error) {
	var zero T
	var env envelope
	if err := c.getJSON(ctx, endpoint, path, nil, &env); err != nil {
		return zero, err
	}
	var raw R
	if err := decodeData(endpoint, env.Data, &raw); err != nil {
		return zero, err
	}
	return convert(raw), nil
}

// decodeData はenvelopeのdataを検証してデコードする。
func decodeData(endpoint string, data json.RawMessage, out any) error {
	if len(data) == 0 || string(data) == "null" {
		return &SchemaError{Endpoint: endpoint, Reason: "data is missing"}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &SchemaError{Endpoint: endpoint, Reason: "data has an unexpected shape", Err: err}
	}
	return nil
}

// pageBounds は上流のページ情報から現在ページと総ページ数を決める。
// 上流の値が互いに矛盾する場合はhas_next_pageを優先する。
func pageBounds(p pagination, requestedPage, itemCount int) (current, total int) {
	current = p.CurrentPage
	if current < 1 {
		current = requestedPage
	}
	total = p.LastVisiblePage
	if p.HasNextPage && total <= current {
		total = current + 1
	}
	if total == 0 && itemCount > 0 {
		total = current
	}
	return current, total
}

func (c *Client) convertAnime(r animeResource) model.Anime {
	return model.Anime{
		ID:         r.MalID,
		Title:      r.Title,
		TitleJa:    r.TitleJapanese,
		ImageURL:   r.Images.best(),
		Synopsis:   c.text.PlainText(r.Synopsis),
		Type:       r.Type,
		Episodes:   derefInt(r.Episodes),
		Status:     r.Status,
		Score:      derefFloat(r.Score),
		Rank:       derefInt(r.Rank),
		Popularity: derefInt(r.Popularity),
		Year:       derefInt(r.Year),
		Genres:     names(r.Genres),
		URL:        r.URL,
	}
}

func (c *Client) convertManga(r mangaResource) model.Manga {
	return model.Manga{
		ID:         r.MalID,
		Title:      r.Title,
		TitleJa:    r.TitleJapanese,
		ImageURL:   r.Images.best(),
		Synopsis:   c.text.PlainText(r.Synopsis),
		Type:       r.Type,
		Chapters:   derefInt(r.Chapters),
		Volumes:    derefInt(r.Volumes),
		Status:     r.Status,
		Score:      derefFloat(r.Score),
		Rank:       derefInt(r.Rank),
		Popularity: derefInt(r.Popularity),
		Members:    derefInt(r.Members),
		Authors:    names(r.Authors),
		Genres:     names(r.Genres),
		URL:        r.URL,
	}
}

func (c *Client) convertReview(r reviewResource) model.Review {
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	return model.Review{
		ID:       r.MalID,
		Username: r.User.Username,
		Score:    r.Score,
		Date:     r.Date,
		Body:     c.text.PlainText(r.Review),
		Tags:     tags,
		Spoiler:  r.IsSpoiler,
		URL:      r.URL,
	}
}

func convertClub(r clubResource) model.Club {
	return model.Club{
		ID:       r.MalID,
		Name:     r.Name,
		ImageURL: r.Images.best(),
		Members:  r.Members,
		Category: r.Category,
		Created:  r.Created,
		Access:   r.Access,
		URL:      r.URL,
	}
}

func convertClubMember(r clubMemberResource) model.ClubMember {
	return model.ClubMember{
		Username: r.Username,
		ImageURL: r.Images.best(),
		URL:      r.URL,
	}
}

func names(rs []namedResource) []string {
	return lo.Map(rs, func(r namedResource, _ int) string { return r.Name })
}
