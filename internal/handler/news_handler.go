package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/hitoshi/minnego/internal/middleware"
	"github.com/hitoshi/minnego/internal/model"
	"github.com/hitoshi/minnego/internal/news"
)

const (
	defaultNewsLimit = 10
	maxNewsLimit     = 50
)

// NewsSource はニュース記事の取得元。news.Serviceが満たす。
type NewsSource interface {
	Latest(ctx context.Context, limit int) news.Result
}

// NewsHandler はニュース一覧のHTTPハンドラー。
type NewsHandler struct {
	source NewsSource
}

// NewNewsHandler はNewsHandlerを生成する。
func NewNewsHandler(source NewsSource) *NewsHandler {
	return &NewsHandler{source: source}
}

type newsResponse struct {
	Articles []model.NewsArticle `json:"articles"`
	Stale    bool                `json:"stale"`
}

// Latest は新着ニュースを返す。フィードが取得できない場合は直前の記事か空の一覧を返す。
// GET /api/news?limit=
func (h *NewsHandler) Latest(w http.ResponseWriter, r *http.Request) {
	limit := defaultNewsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidParameterError("limit", "must be a positive integer"))
			return
		}
		limit = min(n, maxNewsLimit)
	}

	result := h.source.Latest(r.Context(), limit)
	writeJSON(w, http.StatusOK, newsResponse{Articles: result.Articles, Stale: result.Stale})
}
