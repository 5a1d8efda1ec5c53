package handler

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/minnego/internal/middleware"
	"github.com/hitoshi/minnego/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// pageData はページシェルのテンプレートに渡す値。
type pageData struct {
	Page       string
	Title      string
	ResourceID string
	Message    string
	User       *model.SessionUser
}

// PageHandler はページシェル（一覧や詳細を描画するための骨組みのHTML）を返す。
// 中身はブラウザ側が/api/*から取得して描画する。
type PageHandler struct {
	tmpl   *template.Template
	logger *slog.Logger
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(logger *slog.Logger) (*PageHandler, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &PageHandler{tmpl: tmpl, logger: logger}, nil
}

// Page は指定したページ名・タイトルのシェルを返すハンドラーを生成する。
// パスに{id}を含むルートではその値をdata-idとして埋め込む。
func (h *PageHandler) Page(page, title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.render(w, r, http.StatusOK, pageData{
			Page:       page,
			Title:      title,
			ResourceID: chi.URLParam(r, "id"),
		})
	}
}

// NotFound は存在しないページ用の404シェルを返す。
func (h *PageHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusNotFound, pageData{
		Page:    "not-found",
		Title:   "Page not found",
		Message: "The page you are looking for does not exist.",
	})
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, status int, data pageData) {
	if user, ok := middleware.UserFromContext(r.Context()); ok {
		data.User = user
	}

	var buf bytes.Buffer
	if err := h.tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		h.logger.Error("failed to render page",
			slog.String("page", data.Page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
