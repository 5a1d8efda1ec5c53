// Package tui はアニメ・マンガ検索のターミナル版を提供する。
// 一覧の状態はpaging.Listが持ち、ここでは表示とキー操作だけを扱う。
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hitoshi/minnego/internal/jikan"
	"github.com/hitoshi/minnego/internal/model"
	"github.com/hitoshi/minnego/internal/paging"
)

// Tab は表示中の一覧。
type Tab int

const (
	AnimeTab Tab = iota
	MangaTab
)

// String は見出し用の名前を返す。
func (t Tab) String() string {
	if t == MangaTab {
		return "Manga"
	}
	return "Anime"
}

// loadedMsg は一覧の取得が終わったことを知らせる。状態はListから読み直す。
type loadedMsg struct {
	tab Tab
}

// Model はbubbleteaのモデル。
type Model struct {
	ctx     context.Context
	anime   *paging.List[model.Anime]
	manga   *paging.List[model.Manga]
	tab     Tab
	input   textinput.Model
	focused bool
	spinner spinner.Model
	width   int
}

// NewModel はアニメとマンガの一覧を持つModelを生成する。
func NewModel(ctx context.Context, anime *paging.List[model.Anime], manga *paging.List[model.Manga]) Model {
	ti := textinput.New()
	ti.Placeholder = "Search anime..."
	ti.CharLimit = 100
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(colorPrimary)

	return Model{
		ctx:     ctx,
		anime:   anime,
		manga:   manga,
		tab:     AnimeTab,
		input:   ti,
		focused: true,
		spinner: sp,
	}
}

// Init は初回の一覧を取得する。
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.load(AnimeTab, searchOp))
}

// Update はキー入力と取得完了を処理する。
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case loadedMsg:
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.focused {
			return m.updateInput(msg)
		}
		return m.updateList(msg)
	}

	if m.focused {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

// updateInput は検索欄にフォーカスがあるときのキー操作。
// Enterで検索を確定する。入力中は取得しない。
func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.focused = false
		m.input.Blur()
		return m, m.load(m.tab, searchOp)
	case "esc":
		m.focused = false
		m.input.Blur()
		return m, nil
	case "tab":
		return m.switchTab(), nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.setPending(m.input.Value())
	return m, cmd
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "/":
		m.focused = true
		m.input.Focus()
		return m, textinput.Blink
	case "tab":
		return m.switchTab(), nil
	case "n", "right":
		return m, m.load(m.tab, nextOp)
	case "p", "left":
		return m, m.load(m.tab, prevOp)
	case "g":
		return m, m.load(m.tab, firstOp)
	case "r":
		return m, m.load(m.tab, retryOp)
	}
	return m, nil
}

// switchTab は表示する一覧を切り替え、検索欄に切り替え先の入力中キーワードを戻す。
// 一度も取得していない一覧は表示時に取得しない。検索を確定するかrで取得する。
func (m Model) switchTab() Model {
	if m.tab == AnimeTab {
		m.tab = MangaTab
		m.input.SetValue(m.manga.Snapshot().PendingKeyword)
	} else {
		m.tab = AnimeTab
		m.input.SetValue(m.anime.Snapshot().PendingKeyword)
	}
	m.input.Placeholder = "Search " + strings.ToLower(m.tab.String()) + "..."
	return m
}

func (m Model) setPending(keyword string) {
	if m.tab == MangaTab {
		m.manga.SetQuery(keyword)
		return
	}
	m.anime.SetQuery(keyword)
}

type op int

const (
	searchOp op = iota
	nextOp
	prevOp
	firstOp
	retryOp
)

// load は一覧操作をバックグラウンドで実行するコマンドを返す。
func (m Model) load(tab Tab, o op) tea.Cmd {
	ctx := m.ctx
	if tab == MangaTab {
		list := m.manga
		return func() tea.Msg {
			apply(ctx, list, o)
			return loadedMsg{tab: tab}
		}
	}
	list := m.anime
	return func() tea.Msg {
		apply(ctx, list, o)
		return loadedMsg{tab: tab}
	}
}

func apply[T any](ctx context.Context, list *paging.List[T], o op) {
	switch o {
	case searchOp:
		list.TriggerSearch(ctx)
	case nextOp:
		list.GoToNextPage(ctx)
	case prevOp:
		list.GoToPrevPage(ctx)
	case firstOp:
		list.GoToPage(ctx, 1)
	case retryOp:
		list.Retry(ctx)
	}
}

// View は画面全体を描画する。
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("minnego"))
	b.WriteString(" ")
	for _, t := range []Tab{AnimeTab, MangaTab} {
		if t == m.tab {
			b.WriteString(activeTabStyle.Render(t.String()))
		} else {
			b.WriteString(inactiveTabStyle.Render(t.String()))
		}
	}
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	if m.tab == MangaTab {
		b.WriteString(renderState(m.manga.Snapshot(), m.spinner.View(), mangaLine))
	} else {
		b.WriteString(renderState(m.anime.Snapshot(), m.spinner.View(), animeLine))
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render(m.help()))
	return b.String()
}

func (m Model) help() string {
	if m.focused {
		return "enter search • esc leave search • tab switch • ctrl+c quit"
	}
	return "/ search • n next • p prev • g first • r retry • tab switch • q quit"
}

// renderState は一覧の状態を描画する。
func renderState[T any](s paging.State[T], spin string, line func(T) string) string {
	var b strings.Builder

	switch {
	case s.Status == paging.Loading:
		fmt.Fprintf(&b, "%s Loading...\n", spin)
	case s.Status == paging.Failure:
		b.WriteString(errorPanelStyle.Render(jikan.Message(s.Err) + "\nPress r to try again."))
		b.WriteString("\n")
	case s.Status == paging.Idle:
		b.WriteString(metaStyle.Render("Type a keyword and press enter to search."))
		b.WriteString("\n")
	case s.HasData && s.Page.IsEmpty():
		b.WriteString(metaStyle.Render("No results found."))
		b.WriteString("\n")
	}

	if s.HasData && s.Status != paging.Loading {
		for _, item := range s.Page.Items {
			b.WriteString(itemStyle.Render(line(item)))
			b.WriteString("\n")
		}
	}

	if s.HasData {
		b.WriteString("\n")
		b.WriteString(metaStyle.Render(pageIndicator(s.Page)))
		b.WriteString("\n")
	}
	return b.String()
}

// pageIndicator は「page X/Y」を返す。総ページ数が不明な場合はX/1とする。
func pageIndicator[T any](p model.Page[T]) string {
	total := max(p.TotalPages, 1)
	return fmt.Sprintf("page %d/%d", p.CurrentPage, total)
}

func animeLine(a model.Anime) string {
	return a.Title + metaStyle.Render(meta(a.Type, a.Score, a.Year))
}

func mangaLine(m model.Manga) string {
	return m.Title + metaStyle.Render(meta(m.Type, m.Score, 0))
}

func meta(kind string, score float64, year int) string {
	var parts []string
	if kind != "" {
		parts = append(parts, kind)
	}
	if score > 0 {
		parts = append(parts, fmt.Sprintf("★ %.2f", score))
	}
	if year > 0 {
		parts = append(parts, fmt.Sprint(year))
	}
	if len(parts) == 0 {
		return ""
	}
	return "  " + strings.Join(parts, " · ")
}
