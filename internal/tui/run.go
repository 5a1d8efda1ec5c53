package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hitoshi/minnego/internal/model"
	"github.com/hitoshi/minnego/internal/paging"
)

// Catalog はターミナル版が使う検索API。jikan.Clientが満たす。
type Catalog interface {
	SearchAnime(ctx context.Context, q model.ListQuery) (model.Page[model.Anime], error)
	SearchManga(ctx context.Context, q model.ListQuery) (model.Page[model.Manga], error)
}

// Run はターミナル版を起動し、終了するまでブロックする。
func Run(ctx context.Context, catalog Catalog, opts ...tea.ProgramOption) error {
	anime := paging.New(paging.Fetcher[model.Anime](catalog.SearchAnime), paging.NewQuery("", 1, ""), paging.Options[model.Anime]{})
	manga := paging.New(paging.Fetcher[model.Manga](catalog.SearchManga), paging.NewQuery("", 1, ""), paging.Options[model.Manga]{})
	defer anime.Close()
	defer manga.Close()

	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(NewModel(ctx, anime, manga), opts...)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("terminal browser failed: %w", err)
	}
	return nil
}
