package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/minnego/internal/model"
	"github.com/hitoshi/minnego/internal/paging"
)

// Catalog はカタログハンドラーが必要とする上流APIのインターフェース。
// jikan.Clientが満たす。
type Catalog interface {
	SearchAnime(ctx context.Context, q model.ListQuery) (model.Page[model.Anime], error)
	SearchManga(ctx context.Context, q model.ListQuery) (model.Page[model.Manga], error)
	TopManga(ctx context.Context, q model.ListQuery) (model.Page[model.Manga], error)
	SearchClubs(ctx context.Context, q model.ListQuery) (model.Page[model.Club], error)
	ClubMembers(ctx context.Context, clubID, page int) (model.Page[model.ClubMember], error)
	AnimeReviews(ctx context.Context, animeID, page int) (model.Page[model.Review], error)
	Anime(ctx context.Context, id int) (model.Anime, error)
	Manga(ctx context.Context, id int) (model.Manga, error)
	Club(ctx context.Context, id int) (model.Club, error)
}

// CatalogHandler はアニメ・マンガ・クラブの一覧と詳細のHTTPハンドラー。
type CatalogHandler struct {
	catalog Catalog
	logger  *slog.Logger
}

// NewCatalogHandler はCatalogHandlerを生成する。
func NewCatalogHandler(catalog Catalog, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, logger: logger}
}

// ListAnime はアニメを検索する。
// GET /api/anime?q=&page=&category=
func (h *CatalogHandler) ListAnime(w http.ResponseWriter, r *http.Request) {
	serveList[model.Anime](w, r, h.logger, h.catalog.SearchAnime)
}

// ListManga はマンガを検索する。
// GET /api/manga?q=&page=&category=
func (h *CatalogHandler) ListManga(w http.ResponseWriter, r *http.Request) {
	serveList[model.Manga](w, r, h.logger, h.catalog.SearchManga)
}

// TopManga はランキングを返す。categoryにはbypopularity等のフィルタを指定する。
// GET /api/manga/top?page=&category=
func (h *CatalogHandler) TopManga(w http.ResponseWriter, r *http.Request) {
	serveList[model.Manga](w, r, h.logger, h.catalog.TopManga)
}

// ListClubs はクラブを検索する。
// GET /api/clubs?q=&page=&category=
func (h *CatalogHandler) ListClubs(w http.ResponseWriter, r *http.Request) {
	serveList[model.Club](w, r, h.logger, h.catalog.SearchClubs)
}

// GetAnime はアニメの詳細を返す。
// GET /api/anime/{id}
func (h *CatalogHandler) GetAnime(w http.ResponseWriter, r *http.Request) {
	serveOne(w, r, h.logger, h.catalog.Anime)
}

// GetManga はマンガの詳細を返す。
// GET /api/manga/{id}
func (h *CatalogHandler) GetManga(w http.ResponseWriter, r *http.Request) {
	serveOne(w, r, h.logger, h.catalog.Manga)
}

// GetClub はクラブの詳細を返す。
// GET /api/clubs/{id}
func (h *CatalogHandler) GetClub(w http.ResponseWriter, r *http.Request) {
	serveOne(w, r, h.logger, h.catalog.Club)
}

// AnimeReviews はアニメのレビューを返す。
// GET /api/anime/{id}/reviews?page=
func (h *CatalogHandler) AnimeReviews(w http.ResponseWriter, r *http.Request) {
	serveChildren(w, r, h.logger, h.catalog.AnimeReviews)
}

// ClubMembers はクラブのメンバーを返す。
// GET /api/clubs/{id}/members?page=
func (h *CatalogHandler) ClubMembers(w http.ResponseWriter, r *http.Request) {
	serveChildren(w, r, h.logger, h.catalog.ClubMembers)
}

func serveList[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, fetch paging.Fetcher[T]) {
	q, err := listQuery(r)
	if err != nil {
		handleServiceError(w, logger, err)
		return
	}

	page, err := paging.Load(r.Context(), fetch, q)
	if err != nil {
		handleServiceError(w, logger, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

func serveOne[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, fetch func(ctx context.Context, id int) (T, error)) {
	id, err := pathID(r)
	if err != nil {
		handleServiceError(w, logger, err)
		return
	}

	v, err := fetch(r.Context(), id)
	if err != nil {
		handleServiceError(w, logger, err)
		return
	}

	writeJSON(w, http.StatusOK, v)
}

func serveChildren[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, fetch func(ctx context.Context, id, page int) (model.Page[T], error)) {
	id, err := pathID(r)
	if err != nil {
		handleServiceError(w, logger, err)
		return
	}
	page, err := queryPage(r)
	if err != nil {
		handleServiceError(w, logger, err)
		return
	}

	result, err := fetch(r.Context(), id, page)
	if err != nil {
		handleServiceError(w, logger, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
