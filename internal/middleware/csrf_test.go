package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCSRFMiddleware_SafeMethodsPassWithoutToken(t *testing.T) {
	mw := NewCSRFMiddleware(CSRFConfig{}, discardLogger())

	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		t.Run(method, func(t *testing.T) {
			called := false
			w := httptest.NewRecorder()
			mw(okHandler(&called)).ServeHTTP(w, httptest.NewRequest(method, "/api/auth/me", nil))

			if !called {
				t.Fatalf("handler should have been called for %s", method)
			}
			if len(w.Result().Cookies()) == 0 {
				t.Error("expected csrf cookie to be issued")
			}
		})
	}
}

func TestCSRFMiddleware_SafeMethodKeepsExistingCookie(t *testing.T) {
	mw := NewCSRFMiddleware(CSRFConfig{}, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing"})
	w := httptest.NewRecorder()
	mw(okHandler(nil)).ServeHTTP(w, req)

	if got := len(w.Result().Cookies()); got != 0 {
		t.Errorf("cookies set = %d, want 0", got)
	}
}

func TestCSRFMiddleware_RejectsUnsafeRequests(t *testing.T) {
	tests := []struct {
		name   string
		cookie string
		header string
	}{
		{"Cookieなし", "", "token"},
		{"ヘッダーなし", "token", ""},
		{"不一致", "token-abc", "wrong-token"},
	}

	mw := NewCSRFMiddleware(CSRFConfig{}, discardLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set(csrfHeaderName, tt.header)
			}
			w := httptest.NewRecorder()

			mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be called")
			})).ServeHTTP(w, req)

			if w.Code != http.StatusForbidden {
				t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
			}
			var body ErrorResponseBody
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if body.Code != "CSRF_INVALID" {
				t.Errorf("code = %q, want CSRF_INVALID", body.Code)
			}
		})
	}
}

func TestCSRFMiddleware_ValidTokenPassesThrough(t *testing.T) {
	mw := NewCSRFMiddleware(CSRFConfig{}, discardLogger())

	req := httptest.NewRequest(http.MethodPatch, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "valid-token"})
	req.Header.Set(csrfHeaderName, "valid-token")
	called := false
	w := httptest.NewRecorder()
	mw(okHandler(&called)).ServeHTTP(w, req)

	if !called || w.Code != http.StatusOK {
		t.Errorf("called = %v status = %d", called, w.Code)
	}
}

func TestCSRFTokenHandler(t *testing.T) {
	handler := NewCSRFTokenHandler(CSRFConfig{CookieSecure: true}, discardLogger())

	t.Run("新規発行", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil))

		var body struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(body.Token) != 64 {
			t.Errorf("token length = %d, want 64", len(body.Token))
		}
		cookies := w.Result().Cookies()
		if len(cookies) != 1 || cookies[0].Value != body.Token || !cookies[0].Secure || cookies[0].HttpOnly {
			t.Errorf("cookies = %+v", cookies)
		}
	})

	t.Run("既存トークンを返す", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
		req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing"})
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		var body struct {
			Token string `json:"token"`
		}
		json.NewDecoder(w.Body).Decode(&body)
		if body.Token != "existing" {
			t.Errorf("token = %q, want existing", body.Token)
		}
	})
}
