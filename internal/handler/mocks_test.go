package handler

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/minnego/internal/category"
	"github.com/hitoshi/minnego/internal/model"
	"github.com/hitoshi/minnego/internal/news"
	"github.com/hitoshi/minnego/internal/security"
	"github.com/hitoshi/minnego/internal/session"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockCatalog はCatalogのモック実装。未設定のメソッドは空の結果を返す。
type mockCatalog struct {
	searchAnimeFn  func(ctx context.Context, q model.ListQuery) (model.Page[model.Anime], error)
	searchMangaFn  func(ctx context.Context, q model.ListQuery) (model.Page[model.Manga], error)
	topMangaFn     func(ctx context.Context, q model.ListQuery) (model.Page[model.Manga], error)
	searchClubsFn  func(ctx context.Context, q model.ListQuery) (model.Page[model.Club], error)
	clubMembersFn  func(ctx context.Context, clubID, page int) (model.Page[model.ClubMember], error)
	animeReviewsFn func(ctx context.Context, animeID, page int) (model.Page[model.Review], error)
	animeFn        func(ctx context.Context, id int) (model.Anime, error)
	mangaFn        func(ctx context.Context, id int) (model.Manga, error)
	clubFn         func(ctx context.Context, id int) (model.Club, error)
}

func (m *mockCatalog) SearchAnime(ctx context.Context, q model.ListQuery) (model.Page[model.Anime], error) {
	if m.searchAnimeFn != nil {
		return m.searchAnimeFn(ctx, q)
	}
	return model.NewPage[model.Anime](nil, 1, 0), nil
}

func (m *mockCatalog) SearchManga(ctx context.Context, q model.ListQuery) (model.Page[model.Manga], error) {
	if m.searchMangaFn != nil {
		return m.searchMangaFn(ctx, q)
	}
	return model.NewPage[model.Manga](nil, 1, 0), nil
}

func (m *mockCatalog) TopManga(ctx context.Context, q model.ListQuery) (model.Page[model.Manga], error) {
	if m.topMangaFn != nil {
		return m.topMangaFn(ctx, q)
	}
	return model.NewPage[model.Manga](nil, 1, 0), nil
}

func (m *mockCatalog) SearchClubs(ctx context.Context, q model.ListQuery) (model.Page[model.Club], error) {
	if m.searchClubsFn != nil {
		return m.searchClubsFn(ctx, q)
	}
	return model.NewPage[model.Club](nil, 1, 0), nil
}

func (m *mockCatalog) ClubMembers(ctx context.Context, clubID, page int) (model.Page[model.ClubMember], error) {
	if m.clubMembersFn != nil {
		return m.clubMembersFn(ctx, clubID, page)
	}
	return model.NewPage[model.ClubMember](nil, 1, 0), nil
}

func (m *mockCatalog) AnimeReviews(ctx context.Context, animeID, page int) (model.Page[model.Review], error) {
	if m.animeReviewsFn != nil {
		return m.animeReviewsFn(ctx, animeID, page)
	}
	return model.NewPage[model.Review](nil, 1, 0), nil
}

func (m *mockCatalog) Anime(ctx context.Context, id int) (model.Anime, error) {
	if m.animeFn != nil {
		return m.animeFn(ctx, id)
	}
	return model.Anime{}, nil
}

func (m *mockCatalog) Manga(ctx context.Context, id int) (model.Manga, error) {
	if m.mangaFn != nil {
		return m.mangaFn(ctx, id)
	}
	return model.Manga{}, nil
}

func (m *mockCatalog) Club(ctx context.Context, id int) (model.Club, error) {
	if m.clubFn != nil {
		return m.clubFn(ctx, id)
	}
	return model.Club{}, nil
}

type mockCategoryLoader struct {
	result category.Result
}

func (m *mockCategoryLoader) Load(context.Context) category.Result {
	return m.result
}

type mockNewsSource struct {
	result    news.Result
	lastLimit int
}

func (m *mockNewsSource) Latest(_ context.Context, limit int) news.Result {
	m.lastLimit = limit
	return m.result
}

// newTestSessionService はデモ用アカウントを登録済みのsession.Serviceを生成する。
func newTestSessionService(t *testing.T) *session.Service {
	t.Helper()
	svc := session.NewService(session.NewMemoryDirectory(), session.ServiceConfig{
		BcryptCost: bcrypt.MinCost,
		Images:     security.NewURLGuard(),
		Text:       security.NewTextSanitizer(),
	}, nil, discardLogger())
	if err := svc.Seed(context.Background(), session.MockAccounts()); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	return svc
}
