package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/minnego/internal/model"
	"github.com/hitoshi/minnego/internal/session"
)

const testCSRFToken = "test-csrf-token"

// newMutatingRequest はCSRFトークンのCookieとヘッダーを付与したリクエストを生成する。
func newMutatingRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-CSRF-Token", testCSRFToken)
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: testCSRFToken})
	return req
}

func userCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	return nil
}

func decodeAuth(t *testing.T, w *httptest.ResponseRecorder) authResponse {
	t.Helper()
	var resp authResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v (raw %q)", err, w.Body.String())
	}
	return resp
}

func TestAuthHandler_Login(t *testing.T) {
	router := newTestRouter(t)

	w := serve(t, router, newMutatingRequest(http.MethodPost, "/api/auth/login",
		`{"email":"DEMO@minnego.com","password":"demo123"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}

	resp := decodeAuth(t, w)
	if !resp.Success || resp.User == nil {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.User.ID != "1" || resp.User.Name != "Demo User" || !resp.User.IsPremium {
		t.Errorf("user = %+v", resp.User)
	}
	if strings.Contains(w.Body.String(), "demo123") {
		t.Error("password must not be returned")
	}

	c := userCookie(t, w)
	if c == nil || c.Value == "" {
		t.Fatal("user cookie was not set")
	}
	if c.MaxAge != session.DefaultMaxAge {
		t.Errorf("MaxAge = %d", c.MaxAge)
	}
	user, err := session.DecodeCookie(c.Value)
	if err != nil || user.Email != "demo@minnego.com" {
		t.Errorf("cookie user = %+v, err = %v", user, err)
	}
}

func TestAuthHandler_LoginFailures(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantError string
	}{
		{"パスワード違い", `{"email":"demo@minnego.com","password":"wrong"}`, session.ErrInvalidPassword.Error()},
		{"未登録", `{"email":"nobody@minnego.com","password":"demo123"}`, session.ErrUserNotFound.Error()},
	}

	router := newTestRouter(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(t, router, newMutatingRequest(http.MethodPost, "/api/auth/login", tt.body))
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", w.Code)
			}
			resp := decodeAuth(t, w)
			if resp.Success || resp.Error != tt.wantError {
				t.Errorf("resp = %+v, want error %q", resp, tt.wantError)
			}
			if c := userCookie(t, w); c != nil {
				t.Error("user cookie must not be set on failure")
			}
		})
	}
}

func TestAuthHandler_LoginRequiresCSRF(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"demo@minnego.com","password":"demo123"}`))

	w := serve(t, newTestRouter(t), req)
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestAuthHandler_LoginInvalidBody(t *testing.T) {
	w := serve(t, newTestRouter(t), newMutatingRequest(http.MethodPost, "/api/auth/login", `not json`))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if body := decodeError(t, w); body.Code != model.ErrCodeInvalidParameter {
		t.Errorf("code = %q", body.Code)
	}
}

func TestAuthHandler_Signup(t *testing.T) {
	router := newTestRouter(t)

	w := serve(t, router, newMutatingRequest(http.MethodPost, "/api/auth/signup",
		`{"name":"Jane","email":"jane@example.com","password":"secret1"}`))
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %s)", w.Code, w.Body.String())
	}
	resp := decodeAuth(t, w)
	if !resp.Success || resp.User == nil || resp.User.Name != "Jane" || resp.User.IsPremium {
		t.Fatalf("resp = %+v", resp)
	}
	if userCookie(t, w) == nil {
		t.Error("user cookie was not set")
	}

	// 登録済みのアカウントでログインできる
	w = serve(t, router, newMutatingRequest(http.MethodPost, "/api/auth/login",
		`{"email":"jane@example.com","password":"secret1"}`))
	if w.Code != http.StatusOK {
		t.Errorf("login after signup status = %d", w.Code)
	}

	// 重複登録
	w = serve(t, router, newMutatingRequest(http.MethodPost, "/api/auth/signup",
		`{"name":"Jane","email":"JANE@example.com","password":"other"}`))
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d, want 409", w.Code)
	}
	if resp := decodeAuth(t, w); resp.Error != session.ErrUserExists.Error() {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestAuthHandler_SignupMissingFields(t *testing.T) {
	w := serve(t, newTestRouter(t), newMutatingRequest(http.MethodPost, "/api/auth/signup",
		`{"name":"Jane","email":"","password":""}`))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if resp := decodeAuth(t, w); resp.Error != session.ErrMissingFields.Error() {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestAuthHandler_Me(t *testing.T) {
	router := newTestRouter(t)

	w := serve(t, router, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}

	encoded, _ := session.EncodeCookie(&model.SessionUser{ID: "2", Email: "user@minnego.com", Name: "Test User"})
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: encoded})
	w = serve(t, router, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var user model.SessionUser
	if err := json.NewDecoder(w.Body).Decode(&user); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if user.ID != "2" || user.Name != "Test User" {
		t.Errorf("user = %+v", user)
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	encoded, _ := session.EncodeCookie(&model.SessionUser{ID: "1", Name: "Demo User"})
	req := newMutatingRequest(http.MethodPost, "/api/auth/logout", "")
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: encoded})

	w := serve(t, newTestRouter(t), req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	c := userCookie(t, w)
	if c == nil || c.MaxAge >= 0 {
		t.Errorf("user cookie should be cleared, got %+v", c)
	}
}

func TestAuthHandler_UpdateMe(t *testing.T) {
	router := newTestRouter(t)
	encoded, _ := session.EncodeCookie(&session.MockAccounts()[0].User)

	t.Run("未ログイン", func(t *testing.T) {
		w := serve(t, router, newMutatingRequest(http.MethodPatch, "/api/auth/me", `{"bio":"hi"}`))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})

	t.Run("部分更新", func(t *testing.T) {
		req := newMutatingRequest(http.MethodPatch, "/api/auth/me", `{"bio":"<b>Loves</b> mecha","location":"Osaka"}`)
		req.AddCookie(&http.Cookie{Name: session.CookieName, Value: encoded})
		w := serve(t, router, req)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
		}
		var user model.SessionUser
		if err := json.NewDecoder(w.Body).Decode(&user); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if user.Bio != "Loves mecha" || user.Location != "Osaka" {
			t.Errorf("bio = %q location = %q", user.Bio, user.Location)
		}
		if user.Name != "Demo User" || !user.IsPremium {
			t.Errorf("unchanged fields were modified: %+v", user)
		}
		if c := userCookie(t, w); c == nil || c.Value == "" {
			t.Error("updated user cookie was not written")
		}
	})

	t.Run("不正な画像URL", func(t *testing.T) {
		req := newMutatingRequest(http.MethodPatch, "/api/auth/me", `{"avatar":"http://127.0.0.1/a.png"}`)
		req.AddCookie(&http.Cookie{Name: session.CookieName, Value: encoded})
		w := serve(t, router, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
		if body := decodeError(t, w); body.Code != model.ErrCodeInvalidURL {
			t.Errorf("code = %q", body.Code)
		}
	})
}

// TestAuthHandler_UpdateMeDoesNotTouchDirectory はクッキーを書き換えたプロフィール更新が
// 登録済みアカウントに反映されないことを検証する。
func TestAuthHandler_UpdateMeDoesNotTouchDirectory(t *testing.T) {
	router := newTestRouter(t)

	forged := session.MockAccounts()[0].User
	encoded, err := session.EncodeCookie(&forged)
	if err != nil {
		t.Fatalf("EncodeCookie: %v", err)
	}
	req := newMutatingRequest(http.MethodPatch, "/api/auth/me", `{"name":"pwned","bio":"owned by attacker"}`)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: encoded})
	if w := serve(t, router, req); w.Code != http.StatusOK {
		t.Fatalf("update status = %d, want 200", w.Code)
	}

	w := serve(t, router, newMutatingRequest(http.MethodPost, "/api/auth/login",
		`{"email":"demo@minnego.com","password":"demo123"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d", w.Code)
	}
	resp := decodeAuth(t, w)
	if resp.User == nil || resp.User.Name != "Demo User" || resp.User.Bio == "owned by attacker" {
		t.Errorf("account was modified through the cookie: %+v", resp.User)
	}
}

// failingDirectory は常にエラーを返すアカウント登録先。
type failingDirectory struct{}

func (failingDirectory) FindByEmail(context.Context, string) (*model.Account, error) {
	return nil, errors.New("connection refused")
}

func (failingDirectory) Create(context.Context, *model.Account) error {
	return errors.New("connection refused")
}

// TestAuthHandler_DirectoryFailureIs500 は登録先の障害を認証失敗ではなく500として返すことを検証する。
func TestAuthHandler_DirectoryFailureIs500(t *testing.T) {
	svc := session.NewService(failingDirectory{}, session.ServiceConfig{}, nil, discardLogger())
	router := newTestRouter(t, func(d *RouterDeps) { d.Sessions = svc })

	tests := []struct {
		name string
		path string
		body string
	}{
		{"ログイン", "/api/auth/login", `{"email":"demo@minnego.com","password":"demo123"}`},
		{"サインアップ", "/api/auth/signup", `{"name":"Jane","email":"jane@example.com","password":"secret1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(t, router, newMutatingRequest(http.MethodPost, tt.path, tt.body))
			if w.Code != http.StatusInternalServerError {
				t.Fatalf("status = %d, want 500 (body %s)", w.Code, w.Body.String())
			}
			if body := decodeError(t, w); body.Code != "INTERNAL_ERROR" {
				t.Errorf("code = %q, want INTERNAL_ERROR", body.Code)
			}
			if userCookie(t, w) != nil {
				t.Error("no user cookie should be written")
			}
		})
	}
}
