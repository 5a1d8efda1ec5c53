// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/minnego/internal/jikan"
	"github.com/hitoshi/minnego/internal/middleware"
	"github.com/hitoshi/minnego/internal/model"
)

// writeJSON はステータスコードとJSONボディを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	if status, apiErr, ok := mapUpstreamError(err); ok {
		logger.Warn("upstream request failed",
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
		middleware.WriteErrorResponse(w, status, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	logger.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapUpstreamError はJikanクライアントのエラーを応答に変換する。
func mapUpstreamError(err error) (int, *model.APIError, bool) {
	var upstream *jikan.APIError
	var schema *jikan.SchemaError
	switch {
	case errors.Is(err, jikan.ErrPageOutOfRange):
		return http.StatusBadRequest, model.NewInvalidParameterError("page", "beyond the last page"), true
	case errors.Is(err, jikan.ErrInvalidQuery):
		return http.StatusBadRequest, model.NewInvalidParameterError("query", err.Error()), true
	case errors.Is(err, jikan.ErrTimeout):
		return http.StatusGatewayTimeout, model.NewUpstreamTimeoutError(), true
	case errors.As(err, &upstream):
		if upstream.NotFound() {
			return http.StatusNotFound, model.NewNotFoundError(upstream.Endpoint), true
		}
		return http.StatusBadGateway, model.NewUpstreamError(jikan.Message(err)), true
	case errors.As(err, &schema):
		return http.StatusBadGateway, model.NewUpstreamSchemaError(), true
	}
	return 0, nil, false
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidParameter, model.ErrCodeInvalidURL:
		return http.StatusBadRequest
	case model.ErrCodeNotFound:
		return http.StatusNotFound
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeUpstreamTimeout:
		return http.StatusGatewayTimeout
	case model.ErrCodeUpstreamError, model.ErrCodeUpstreamSchema:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// queryPage はpageクエリを読み取る。未指定は1、数値でなければエラー。
func queryPage(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("page"))
	if raw == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, model.NewInvalidParameterError("page", "must be a number")
	}
	if n < 1 {
		n = 1
	}
	return n, nil
}

// listQuery は一覧系エンドポイントの共通クエリ（q, page, category）を読み取る。
func listQuery(r *http.Request) (model.ListQuery, error) {
	page, err := queryPage(r)
	if err != nil {
		return model.ListQuery{}, err
	}
	q := r.URL.Query()
	return model.ListQuery{
		Keyword:  q.Get("q"),
		Page:     page,
		Category: q.Get("category"),
	}, nil
}

// pathID はURLパスの{id}を正の整数として読み取る。
func pathID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 1 {
		return 0, model.NewInvalidParameterError("id", "must be a positive integer")
	}
	return id, nil
}
