package model

// AllCategoryID は全カテゴリを表す合成カテゴリの固定ID。
const AllCategoryID = "all"

// Category はジャンル等の絞り込みカテゴリを表す。
// IDは上流の数値IDと名前から決定的に導出され、重複排除のキーとなる。
type Category struct {
	ID              string `json:"id"`
	Label           string `json:"label"`
	IconGlyph       string `json:"icon"`
	ColorToken      string `json:"color"`
	SourceID        int    `json:"sourceId"`
	PopularityCount int    `json:"count"`
}

// IsAll は合成カテゴリ「All」かを返す。
func (c Category) IsAll() bool {
	return c.ID == AllCategoryID
}

// CategorySourceID はカテゴリIDから上流の数値IDを取り出す。
// IDは "<数値ID>-<名前>" 形式を想定し、数値部分がない場合はfalseを返す。
func CategorySourceID(id string) (int, bool) {
	if id == "" || id == AllCategoryID {
		return 0, false
	}
	n := 0
	i := 0
	for ; i < len(id) && id[i] >= '0' && id[i] <= '9'; i++ {
		n = n*10 + int(id[i]-'0')
	}
	if i == 0 || (i < len(id) && id[i] != '-') {
		return 0, false
	}
	return n, true
}
