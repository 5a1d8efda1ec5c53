package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hitoshi/minnego/internal/jikan"
	"github.com/hitoshi/minnego/internal/model"
	"github.com/hitoshi/minnego/internal/paging"
)

// fakeCatalog は呼び出されたクエリを記録し、固定の総ページ数で結果を返す。
type fakeCatalog struct {
	mu         sync.Mutex
	animeCalls []model.ListQuery
	mangaCalls []model.ListQuery
	fail       error
}

func (f *fakeCatalog) SearchAnime(_ context.Context, q model.ListQuery) (model.Page[model.Anime], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.animeCalls = append(f.animeCalls, q)
	if f.fail != nil {
		return model.Page[model.Anime]{}, f.fail
	}
	items := []model.Anime{{ID: q.Page, Title: fmt.Sprintf("Anime page %d", q.Page), Type: "TV", Score: 8.5}}
	return model.NewPage(items, q.Page, 3), nil
}

func (f *fakeCatalog) SearchManga(_ context.Context, q model.ListQuery) (model.Page[model.Manga], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mangaCalls = append(f.mangaCalls, q)
	return model.NewPage([]model.Manga{{ID: 2, Title: "Berserk"}}, q.Page, 1), nil
}

func newTestModel(catalog *fakeCatalog) Model {
	ctx := context.Background()
	anime := paging.New(paging.Fetcher[model.Anime](catalog.SearchAnime), paging.NewQuery("", 1, ""), paging.Options[model.Anime]{})
	manga := paging.New(paging.Fetcher[model.Manga](catalog.SearchManga), paging.NewQuery("", 1, ""), paging.Options[model.Manga]{})
	return NewModel(ctx, anime, manga)
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press はキーを送り、返されたコマンドを同期的に実行する。
func press(t *testing.T, m Model, k string) (Model, tea.Msg) {
	t.Helper()
	next, cmd := m.Update(key(k))
	var msg tea.Msg
	if cmd != nil {
		msg = cmd()
	}
	return next.(Model), msg
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	for _, r := range text {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = next.(Model)
	}
	return m
}

func TestModel_TypingDoesNotFetchUntilEnter(t *testing.T) {
	catalog := &fakeCatalog{}
	m := newTestModel(catalog)

	m = typeText(t, m, "naruto")
	if len(catalog.animeCalls) != 0 {
		t.Fatalf("typing should not fetch, got %d calls", len(catalog.animeCalls))
	}
	if got := m.anime.Snapshot().PendingKeyword; got != "naruto" {
		t.Errorf("PendingKeyword = %q", got)
	}

	m, msg := press(t, m, "enter")
	if _, ok := msg.(loadedMsg); !ok {
		t.Fatalf("msg = %T, want loadedMsg", msg)
	}
	if len(catalog.animeCalls) != 1 || catalog.animeCalls[0].Keyword != "naruto" || catalog.animeCalls[0].Page != 1 {
		t.Errorf("calls = %+v", catalog.animeCalls)
	}
	if m.focused {
		t.Error("input should lose focus after enter")
	}
}

func TestModel_PageNavigation(t *testing.T) {
	catalog := &fakeCatalog{}
	m := newTestModel(catalog)
	m, _ = press(t, m, "enter")

	m, _ = press(t, m, "n")
	m, _ = press(t, m, "n")
	if got := m.anime.Snapshot().Page.CurrentPage; got != 3 {
		t.Fatalf("CurrentPage = %d, want 3", got)
	}

	// 最終ページでは取得しない
	calls := len(catalog.animeCalls)
	m, _ = press(t, m, "n")
	if len(catalog.animeCalls) != calls {
		t.Errorf("next on last page should not fetch")
	}

	m, _ = press(t, m, "p")
	if got := m.anime.Snapshot().Page.CurrentPage; got != 2 {
		t.Errorf("CurrentPage = %d, want 2", got)
	}

	m, _ = press(t, m, "g")
	if got := m.anime.Snapshot().Page.CurrentPage; got != 1 {
		t.Errorf("CurrentPage = %d, want 1", got)
	}
	if !strings.Contains(m.View(), "page 1/3") {
		t.Errorf("view should show the page indicator:\n%s", m.View())
	}
}

func TestModel_ErrorPanelAndRetry(t *testing.T) {
	catalog := &fakeCatalog{fail: &jikan.APIError{Endpoint: "/anime", Status: 503, StatusText: "Service Unavailable"}}
	m := newTestModel(catalog)

	m, _ = press(t, m, "enter")
	view := m.View()
	if !strings.Contains(view, "Failed to load data (503 Service Unavailable).") {
		t.Errorf("view should show the upstream error:\n%s", view)
	}
	if !strings.Contains(view, "Press r to try again.") {
		t.Errorf("view should offer retry:\n%s", view)
	}

	catalog.mu.Lock()
	catalog.fail = nil
	catalog.mu.Unlock()

	m, _ = press(t, m, "r")
	s := m.anime.Snapshot()
	if s.Status != paging.Success || !s.HasData {
		t.Errorf("state after retry = %v (err %v)", s.Status, s.Err)
	}
	if strings.Contains(m.View(), "Press r to try again.") {
		t.Error("error panel should disappear after a successful retry")
	}
}

func TestModel_TabSwitchesList(t *testing.T) {
	catalog := &fakeCatalog{}
	m := newTestModel(catalog)
	m = typeText(t, m, "one piece")

	m, msg := press(t, m, "tab")
	if msg != nil {
		t.Errorf("switching tabs should not fetch, got %T", msg)
	}
	if m.tab != MangaTab {
		t.Fatalf("tab = %v, want Manga", m.tab)
	}
	if m.input.Value() != "" {
		t.Errorf("input = %q, manga keyword should be empty", m.input.Value())
	}

	m, _ = press(t, m, "enter")
	if len(catalog.mangaCalls) != 1 || len(catalog.animeCalls) != 0 {
		t.Errorf("anime calls = %d, manga calls = %d", len(catalog.animeCalls), len(catalog.mangaCalls))
	}
	if !strings.Contains(m.View(), "Berserk") {
		t.Errorf("manga results should be shown:\n%s", m.View())
	}

	m, _ = press(t, m, "tab")
	if m.input.Value() != "one piece" {
		t.Errorf("input = %q, anime keyword should be restored", m.input.Value())
	}
}

func TestModel_Quit(t *testing.T) {
	m := newTestModel(&fakeCatalog{})

	// 検索欄にフォーカスがある間、qは文字として入力される
	m = typeText(t, m, "q")
	if m.input.Value() != "q" {
		t.Fatalf("input = %q, want q", m.input.Value())
	}

	m, _ = press(t, m, "esc")
	_, msg := press(t, m, "q")
	if _, ok := msg.(tea.QuitMsg); !ok {
		t.Errorf("msg = %T, want tea.QuitMsg", msg)
	}

	_, msg = press(t, newTestModel(&fakeCatalog{}), "ctrl+c")
	if _, ok := msg.(tea.QuitMsg); !ok {
		t.Errorf("ctrl+c msg = %T, want tea.QuitMsg", msg)
	}
}

func TestRenderState_Idle(t *testing.T) {
	s := paging.State[model.Anime]{Status: paging.Idle}
	if got := renderState(s, "*", animeLine); !strings.Contains(got, "press enter to search") {
		t.Errorf("idle view = %q", got)
	}
}

func TestRenderState_Empty(t *testing.T) {
	s := paging.State[model.Anime]{Status: paging.Success, HasData: true, Page: model.NewPage[model.Anime](nil, 1, 0)}
	got := renderState(s, "*", animeLine)
	if !strings.Contains(got, "No results found.") || !strings.Contains(got, "page 1/1") {
		t.Errorf("empty view = %q", got)
	}
}

func TestMeta(t *testing.T) {
	if got := meta("TV", 8.5, 2009); got != "  TV · ★ 8.50 · 2009" {
		t.Errorf("meta = %q", got)
	}
	if got := meta("", 0, 0); got != "" {
		t.Errorf("meta = %q, want empty", got)
	}
}
