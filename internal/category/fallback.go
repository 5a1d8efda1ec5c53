package category

import (
	"github.com/hitoshi/minnego/internal/jikan"
	"github.com/hitoshi/minnego/internal/model"
)

// fallbackGenres は上流から取得できなかった場合に使う漫画ジャンル。
// 件数はMyAnimeListのおおよその掲載数。
var fallbackGenres = []jikan.Genre{
	{MalID: 1, Name: "Action", Count: 15180},
	{MalID: 2, Name: "Adventure", Count: 8620},
	{MalID: 4, Name: "Comedy", Count: 23850},
	{MalID: 8, Name: "Drama", Count: 18400},
	{MalID: 10, Name: "Fantasy", Count: 15960},
	{MalID: 14, Name: "Horror", Count: 2720},
	{MalID: 7, Name: "Mystery", Count: 4310},
	{MalID: 22, Name: "Romance", Count: 25110},
	{MalID: 24, Name: "Sci-Fi", Count: 5470},
	{MalID: 36, Name: "Slice of Life", Count: 10330},
	{MalID: 30, Name: "Sports", Count: 1820},
	{MalID: 37, Name: "Supernatural", Count: 7980},
	{MalID: 45, Name: "Suspense", Count: 1630},
	{MalID: 27, Name: "Shounen", Count: 9640},
	{MalID: 25, Name: "Shoujo", Count: 11450},
	{MalID: 41, Name: "Seinen", Count: 10980},
	{MalID: 42, Name: "Josei", Count: 3570},
	{MalID: 23, Name: "School", Count: 11820},
	{MalID: 13, Name: "Historical", Count: 3890},
	{MalID: 40, Name: "Psychological", Count: 2950},
}

// Fallback は静的なカテゴリ一覧を整形済みで返す。先頭は「All」。
func Fallback() []model.Category {
	return Format(fallbackGenres)
}
