// Package category はジャンル一覧を絞り込みカテゴリに整形し、取得失敗時は静的な一覧で補う。
package category

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/hitoshi/minnego/internal/jikan"
	"github.com/hitoshi/minnego/internal/model"
)

const (
	// MaxCategories は「All」を除いたカテゴリの最大件数。
	MaxCategories = 25
	// MinPopularity はこの件数以下のジャンルを除外する閾値。
	MinPopularity = 50
)

// explicitNames は一覧に含めない成人向けジャンル名（小文字）。
var explicitNames = []string{"hentai", "erotica"}

type style struct {
	icon  string
	color string
}

// styles はジャンル名ごとのアイコンと色。
var styles = map[string]style{
	"action":        {"⚔️", "red"},
	"adventure":     {"🗺️", "orange"},
	"comedy":        {"😂", "yellow"},
	"drama":         {"🎭", "purple"},
	"fantasy":       {"🧙", "indigo"},
	"horror":        {"👻", "gray"},
	"mystery":       {"🔍", "slate"},
	"romance":       {"💕", "pink"},
	"sci-fi":        {"🚀", "cyan"},
	"slice of life": {"☕", "green"},
	"sports":        {"⚽", "lime"},
	"supernatural":  {"✨", "violet"},
	"suspense":      {"😱", "rose"},
	"shounen":       {"🔥", "amber"},
	"shoujo":        {"🌸", "fuchsia"},
	"seinen":        {"🎯", "blue"},
	"josei":         {"🌷", "teal"},
	"school":        {"🏫", "sky"},
	"historical":    {"🏯", "stone"},
	"music":         {"🎵", "emerald"},
	"mecha":         {"🤖", "zinc"},
	"psychological": {"🧠", "purple"},
	"award winning": {"🏆", "amber"},
	"gourmet":       {"🍜", "orange"},
	"isekai":        {"🌀", "indigo"},
}

// defaultIcons と defaultColors は表にないジャンルに数値IDから決定的に割り当てる。
var (
	defaultIcons  = []string{"📚", "📖", "🎨", "🌟", "💫", "🎪"}
	defaultColors = []string{"blue", "green", "orange", "purple", "teal", "rose"}
)

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Format は上流のジャンル一覧をカテゴリに整形する。
// 成人向けと件数が閾値以下のものを除外し、mal_idで重複排除（先勝ち）した後、
// 件数の降順に並べて上限件数に切り詰め、先頭に「All」を加える。
// 結果は常に少なくとも「All」を含む。
func Format(raw []jikan.Genre) []model.Category {
	kept := lo.Filter(raw, func(g jikan.Genre, _ int) bool {
		return !isExplicit(g.Name) && g.Count > MinPopularity
	})
	kept = lo.UniqBy(kept, func(g jikan.Genre) int { return g.MalID })
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Count > kept[j].Count })
	if len(kept) > MaxCategories {
		kept = kept[:MaxCategories]
	}

	categories := make([]model.Category, 0, len(kept)+1)
	categories = append(categories, All(lo.SumBy(kept, func(g jikan.Genre) int { return g.Count })))
	for _, g := range kept {
		categories = append(categories, fromGenre(g))
	}
	return categories
}

// All は合成カテゴリ「All」を返す。
func All(total int) model.Category {
	return model.Category{
		ID:              model.AllCategoryID,
		Label:           "All",
		IconGlyph:       "🌐",
		ColorToken:      "gray",
		PopularityCount: total,
	}
}

// ID はジャンルのmal_idと名前からカテゴリIDを導出する。
func ID(malID int, name string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if slug == "" {
		return strconv.Itoa(malID)
	}
	return strconv.Itoa(malID) + "-" + slug
}

func fromGenre(g jikan.Genre) model.Category {
	s, ok := styles[strings.ToLower(strings.TrimSpace(g.Name))]
	if !ok {
		idx := g.MalID
		if idx < 0 {
			idx = -idx
		}
		s = style{icon: defaultIcons[idx%len(defaultIcons)], color: defaultColors[idx%len(defaultColors)]}
	}
	return model.Category{
		ID:              ID(g.MalID, g.Name),
		Label:           strings.TrimSpace(g.Name),
		IconGlyph:       s.icon,
		ColorToken:      s.color,
		SourceID:        g.MalID,
		PopularityCount: g.Count,
	}
}

func isExplicit(name string) bool {
	return lo.Contains(explicitNames, strings.ToLower(strings.TrimSpace(name)))
}
