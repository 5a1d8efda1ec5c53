package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/minnego/internal/category"
	"github.com/hitoshi/minnego/internal/model"
)

// CategoryLoader はカテゴリ一覧の取得元。category.Loaderが満たす。
type CategoryLoader interface {
	Load(ctx context.Context) category.Result
}

// CategoryHandler はカテゴリ一覧のHTTPハンドラー。
type CategoryHandler struct {
	loader CategoryLoader
}

// NewCategoryHandler はCategoryHandlerを生成する。
func NewCategoryHandler(loader CategoryLoader) *CategoryHandler {
	return &CategoryHandler{loader: loader}
}

type categoriesResponse struct {
	Categories   []model.Category `json:"categories"`
	FromFallback bool             `json:"fromFallback"`
	Error        string           `json:"error,omitempty"`
}

// List はカテゴリ一覧を返す。上流が失敗しても固定のカテゴリで200を返す。
// GET /api/categories
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	result := h.loader.Load(r.Context())

	resp := categoriesResponse{
		Categories:   result.Categories,
		FromFallback: result.FromFallback,
	}
	if result.Err != nil {
		resp.Error = "Using default categories because the anime database is unavailable."
	}
	writeJSON(w, http.StatusOK, resp)
}
