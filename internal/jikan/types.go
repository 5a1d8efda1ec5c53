package jikan

import "encoding/json"

// Jikan v4のレスポンス形状。必要なフィールドのみ定義する。

// envelope は一覧系エンドポイントの共通レスポンス。
// Dataがnullまたは欠落している場合はスキーマエラーとして扱うため、json.RawMessageで受ける。
type envelope struct {
	Data       json.RawMessage `json:"data"`
	Pagination *pagination     `json:"pagination"`
}

// pagination は一覧系エンドポイントのページ情報。
// current_pageとitemsはエンドポイントによっては返らない。
type pagination struct {
	CurrentPage     int  `json:"current_page"`
	LastVisiblePage int  `json:"last_visible_page"`
	HasNextPage     bool `json:"has_next_page"`
	Items           *struct {
		Count   int `json:"count"`
		Total   int `json:"total"`
		PerPage int `json:"per_page"`
	} `json:"items"`
}

type images struct {
	JPG struct {
		ImageURL      string `json:"image_url"`
		LargeImageURL string `json:"large_image_url"`
	} `json:"jpg"`
	WebP struct {
		ImageURL string `json:"image_url"`
	} `json:"webp"`
}

// best は利用可能な中で最も大きい画像URLを返す。
func (i images) best() string {
	if i.JPG.LargeImageURL != "" {
		return i.JPG.LargeImageURL
	}
	if i.JPG.ImageURL != "" {
		return i.JPG.ImageURL
	}
	return i.WebP.ImageURL
}

type namedResource struct {
	MalID int    `json:"mal_id"`
	Name  string `json:"name"`
}

type animeResource struct {
	MalID         int             `json:"mal_id"`
	URL           string          `json:"url"`
	Images        images          `json:"images"`
	Title         string          `json:"title"`
	TitleJapanese string          `json:"title_japanese"`
	Type          string          `json:"type"`
	Episodes      *int            `json:"episodes"`
	Status        string          `json:"status"`
	Score         *float64        `json:"score"`
	Rank          *int            `json:"rank"`
	Popularity    *int            `json:"popularity"`
	Synopsis      string          `json:"synopsis"`
	Year          *int            `json:"year"`
	Genres        []namedResource `json:"genres"`
}

type mangaResource struct {
	MalID         int             `json:"mal_id"`
	URL           string          `json:"url"`
	Images        images          `json:"images"`
	Title         string          `json:"title"`
	TitleJapanese string          `json:"title_japanese"`
	Type          string          `json:"type"`
	Chapters      *int            `json:"chapters"`
	Volumes       *int            `json:"volumes"`
	Status        string          `json:"status"`
	Score         *float64        `json:"score"`
	Rank          *int            `json:"rank"`
	Popularity    *int            `json:"popularity"`
	Members       *int            `json:"members"`
	Synopsis      string          `json:"synopsis"`
	Authors       []namedResource `json:"authors"`
	Genres        []namedResource `json:"genres"`
}

type clubResource struct {
	MalID    int    `json:"mal_id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	Images   images `json:"images"`
	Members  int    `json:"members"`
	Category string `json:"category"`
	Created  string `json:"created"`
	Access   string `json:"access"`
}

type clubMemberResource struct {
	Username string `json:"username"`
	URL      string `json:"url"`
	Images   images `json:"images"`
}

type reviewResource struct {
	MalID     int      `json:"mal_id"`
	URL       string   `json:"url"`
	Date      string   `json:"date"`
	Review    string   `json:"review"`
	Score     int      `json:"score"`
	Tags      []string `json:"tags"`
	IsSpoiler bool     `json:"is_spoiler"`
	User      struct {
		Username string `json:"username"`
	} `json:"user"`
}

// Genre はジャンル一覧エンドポイント（/genres/manga 等）の要素。
// カテゴリ整形の入力として公開する。
type Genre struct {
	MalID int    `json:"mal_id"`
	Name  string `json:"name"`
	URL   string `json:"url"`
	Count int    `json:"count"`
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func derefFloat(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
