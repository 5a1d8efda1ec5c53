package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/minnego/internal/session"
)

// GateConfig はページ遷移のゲート設定。
type GateConfig struct {
	// SkipPrefixes はゲートの対象外とするパス。APIや静的ファイル。
	SkipPrefixes []string
	// ProtectedPrefixes はログインが必要なページ。
	ProtectedPrefixes []string
	// AuthPrefix はログイン済みなら表示しないページ（ログイン・登録）。
	AuthPrefix string
	// LoginPath は未ログイン時のリダイレクト先。
	LoginPath string
}

// DefaultGateConfig はデフォルトのゲート設定を返す。
func DefaultGateConfig() GateConfig {
	return GateConfig{
		SkipPrefixes:      []string{"/api", "/static", "/_next", "/metrics", "/health", "/favicon.ico"},
		ProtectedPrefixes: []string{"/profile", "/favorites", "/settings"},
		AuthPrefix:        "/auth",
		LoginPath:         "/auth/login",
	}
}

// NewRouteGateMiddleware はページへのアクセスをログイン状態で振り分けるミドルウェアを返す。
// 判定は"user" Cookieが空でないかだけを見る。内容の正当性は検証しない。
func NewRouteGateMiddleware(config GateConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if hasAnyPrefix(path, config.SkipPrefixes) {
				next.ServeHTTP(w, r)
				return
			}

			loggedIn := false
			if c, err := r.Cookie(session.CookieName); err == nil && c.Value != "" {
				loggedIn = true
			}

			if !loggedIn && hasAnyPrefix(path, config.ProtectedPrefixes) {
				target := config.LoginPath + "?redirect=" + url.QueryEscape(path)
				http.Redirect(w, r, target, http.StatusTemporaryRedirect)
				return
			}
			if loggedIn && matchPrefix(path, config.AuthPrefix) {
				http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if matchPrefix(path, p) {
			return true
		}
	}
	return false
}

// matchPrefix はパスがprefixそのものか、prefix配下かを判定する。"/profiles"は"/profile"に一致しない。
func matchPrefix(path, prefix string) bool {
	if prefix == "" {
		return false
	}
	if path == prefix {
		return true
	}
	if strings.HasSuffix(prefix, "/") || strings.Contains(prefix, ".") {
		return strings.HasPrefix(path, prefix)
	}
	return strings.HasPrefix(path, prefix+"/")
}
