// Package model はドメインモデルを定義する。
package model

// Anime はアニメ作品の一覧・詳細表示用モデル。
type Anime struct {
	ID         int      `json:"id"`
	Title      string   `json:"title"`
	TitleJa    string   `json:"titleJapanese,omitempty"`
	ImageURL   string   `json:"imageUrl"`
	Synopsis   string   `json:"synopsis"`
	Type       string   `json:"type"`
	Episodes   int      `json:"episodes"`
	Status     string   `json:"status"`
	Score      float64  `json:"score"`
	Rank       int      `json:"rank"`
	Popularity int      `json:"popularity"`
	Year       int      `json:"year"`
	Genres     []string `json:"genres"`
	URL        string   `json:"url"`
}

// Manga は漫画作品の一覧・詳細表示用モデル。
type Manga struct {
	ID         int      `json:"id"`
	Title      string   `json:"title"`
	TitleJa    string   `json:"titleJapanese,omitempty"`
	ImageURL   string   `json:"imageUrl"`
	Synopsis   string   `json:"synopsis"`
	Type       string   `json:"type"`
	Chapters   int      `json:"chapters"`
	Volumes    int      `json:"volumes"`
	Status     string   `json:"status"`
	Score      float64  `json:"score"`
	Rank       int      `json:"rank"`
	Popularity int      `json:"popularity"`
	Members    int      `json:"members"`
	Authors    []string `json:"authors"`
	Genres     []string `json:"genres"`
	URL        string   `json:"url"`
}

// Club はMyAnimeListのクラブを表す。
type Club struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl"`
	Members  int    `json:"members"`
	Category string `json:"category"`
	Created  string `json:"created"`
	Access   string `json:"access"`
	URL      string `json:"url"`
}

// ClubMember はクラブの所属メンバーを表す。
type ClubMember struct {
	Username string `json:"username"`
	ImageURL string `json:"imageUrl"`
	URL      string `json:"url"`
}

// Review は作品レビューを表す。本文はプレーンテキスト化済み。
type Review struct {
	ID       int      `json:"id"`
	Username string   `json:"username"`
	Score    int      `json:"score"`
	Date     string   `json:"date"`
	Body     string   `json:"body"`
	Tags     []string `json:"tags"`
	Spoiler  bool     `json:"isSpoiler"`
	URL      string   `json:"url"`
}

// NewsArticle はニュースフィードの記事を表す。
type NewsArticle struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Summary     string `json:"summary"`
	Thumbnail   string `json:"thumbnail,omitempty"`
	PublishedAt string `json:"publishedAt,omitempty"`
}
