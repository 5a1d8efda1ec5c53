package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/minnego/internal/model"
)

type stubImages struct{}

func (stubImages) ValidateImageURL(raw string) error {
	if strings.HasPrefix(raw, "http://") {
		return errors.New("https required")
	}
	return nil
}

type stubText struct{}

func (stubText) PlainText(raw string) string {
	return strings.ReplaceAll(strings.ReplaceAll(raw, "<b>", ""), "</b>", "")
}

// newTestService はデモ用アカウントを登録済みのServiceを生成する。
func newTestService(t *testing.T) (*Service, *MemoryDirectory) {
	t.Helper()
	dir := NewMemoryDirectory()
	svc := NewService(dir, ServiceConfig{
		BcryptCost: bcrypt.MinCost,
		Images:     stubImages{},
		Text:       stubText{},
	}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.now = func() time.Time { return time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC) }
	if err := svc.Seed(context.Background(), MockAccounts()); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	return svc, dir
}

func TestLogin_DemoAccount(t *testing.T) {
	svc, _ := newTestService(t)
	st := NewStore(svc, &MemoryPersister{})

	res := st.Login(context.Background(), "demo@minnego.com", "demo123")
	if !res.Success || res.Error != "" {
		t.Fatalf("res = %+v, want success", res)
	}
	u := st.Current()
	if u == nil || !u.IsPremium {
		t.Fatalf("current = %+v, want premium user", u)
	}
}

func TestLogin_EmailIsCaseInsensitive(t *testing.T) {
	svc, _ := newTestService(t)
	st := NewStore(svc, &MemoryPersister{})

	if res := st.Login(context.Background(), "  Demo@MinneGo.com ", "demo123"); !res.Success {
		t.Errorf("res = %+v, want success", res)
	}
}

func TestLogin_Failures(t *testing.T) {
	svc, _ := newTestService(t)

	tests := []struct {
		name     string
		email    string
		password string
		want     string
	}{
		{"パスワード不一致", "demo@minnego.com", "wrong", "Invalid password"},
		{"未登録", "nobody@x.com", "x", "User not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &MemoryPersister{}
			st := NewStore(svc, p)
			res := st.Login(context.Background(), tt.email, tt.password)
			if res.Success || res.Error != tt.want {
				t.Errorf("res = %+v, want error %q", res, tt.want)
			}
			if res.Err == nil || res.Err.Error() != tt.want {
				t.Errorf("Err = %v, want %q", res.Err, tt.want)
			}
			if st.Current() != nil {
				t.Error("current user should stay nil")
			}
			if u, _ := p.Load(); u != nil {
				t.Error("nothing should be persisted")
			}
		})
	}
}

func TestSignup_DuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)
	st := NewStore(svc, &MemoryPersister{})

	if res := st.Signup(context.Background(), "Jane", "jane@x.com", "secret1"); !res.Success {
		t.Fatalf("first signup: %+v", res)
	}
	res := st.Signup(context.Background(), "Jane2", "jane@x.com", "other")
	if res.Success || res.Error != "User already exists" {
		t.Errorf("res = %+v, want User already exists", res)
	}
}

func TestSignup_Defaults(t *testing.T) {
	svc, _ := newTestService(t)
	p := &MemoryPersister{}
	st := NewStore(svc, p)

	if res := st.Signup(context.Background(), "Jane Doe", "Jane.Doe@Example.com", "secret1"); !res.Success {
		t.Fatalf("signup: %+v", res)
	}
	u := st.Current()
	if u == nil {
		t.Fatal("current user should be set")
	}
	if u.ID == "" || u.Email != "jane.doe@example.com" || u.Username != "jane_doe" {
		t.Errorf("user = %+v", u)
	}
	if u.IsPremium || u.JoinDate != "2026-10-18" {
		t.Errorf("IsPremium = %v, JoinDate = %q", u.IsPremium, u.JoinDate)
	}
	if u.Avatar != DefaultAvatar || u.CoverImage != DefaultCoverImage {
		t.Errorf("avatar/cover = %q/%q", u.Avatar, u.CoverImage)
	}
	if u.Preferences == nil || u.Preferences.WatchedAnime != 0 || u.Preferences.ReadManga != 0 {
		t.Errorf("preferences = %+v, want zeroed", u.Preferences)
	}
	if saved, _ := p.Load(); saved == nil || saved.ID != u.ID {
		t.Error("user should be persisted")
	}

	// 新規登録したアカウントでログインできる
	other := NewStore(svc, &MemoryPersister{})
	if res := other.Login(context.Background(), "jane.doe@example.com", "secret1"); !res.Success {
		t.Errorf("login after signup: %+v", res)
	}
}

func TestSignup_MissingFields(t *testing.T) {
	svc, _ := newTestService(t)
	st := NewStore(svc, &MemoryPersister{})

	res := st.Signup(context.Background(), "x", "", "pw")
	if res.Success || res.Error != ErrMissingFields.Error() {
		t.Errorf("res = %+v", res)
	}
}

func TestDirectory_StoresHashNotPassword(t *testing.T) {
	_, dir := newTestService(t)
	a, err := dir.FindByEmail(context.Background(), "demo@minnego.com")
	if err != nil || a == nil {
		t.Fatalf("FindByEmail: %v %v", a, err)
	}
	if a.PasswordHash == "demo123" || !strings.HasPrefix(a.PasswordHash, "$2") {
		t.Errorf("password should be stored as bcrypt hash, got %q", a.PasswordHash)
	}
}

func TestLogout_ClearsState(t *testing.T) {
	svc, _ := newTestService(t)
	p := &MemoryPersister{}
	st := NewStore(svc, p)
	st.Login(context.Background(), "demo@minnego.com", "demo123")

	st.Logout()

	if st.Current() != nil {
		t.Error("current user should be nil after logout")
	}
	if u, _ := p.Load(); u != nil {
		t.Error("persisted user should be cleared")
	}
}

func TestNewStore_RestoresPersistedUser(t *testing.T) {
	svc, _ := newTestService(t)
	p := &MemoryPersister{}
	_ = p.Save(&model.SessionUser{ID: "9", Email: "x@y.z", Name: "Restored"})

	st := NewStore(svc, p)
	if u := st.Current(); u == nil || u.Name != "Restored" {
		t.Errorf("current = %+v", u)
	}
}

func TestUpdateUser(t *testing.T) {
	svc, dir := newTestService(t)
	p := &MemoryPersister{}
	st := NewStore(svc, p)

	name := "New"
	if _, err := st.UpdateUser(context.Background(), model.UserUpdate{Name: &name}); !errors.Is(err, ErrNotLoggedIn) {
		t.Errorf("err = %v, want ErrNotLoggedIn", err)
	}
	if u, _ := p.Load(); u != nil {
		t.Error("update without login must be a no-op")
	}

	st.Login(context.Background(), "demo@minnego.com", "demo123")
	bio := "<b>Loves</b> mecha"
	got, err := st.UpdateUser(context.Background(), model.UserUpdate{Name: &name, Bio: &bio})
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if got.Name != "New" || got.Bio != "Loves mecha" || !got.IsPremium {
		t.Errorf("user = %+v", got)
	}
	if saved, _ := p.Load(); saved == nil || saved.Name != "New" {
		t.Error("updated user should be re-persisted")
	}
	// ディレクトリ側のアカウントは変わらない
	if a, _ := dir.FindByEmail(context.Background(), "demo@minnego.com"); a.Name != "Demo User" {
		t.Errorf("directory name = %q, want Demo User", a.Name)
	}

	bad := "http://example.com/a.png"
	if _, err := st.UpdateUser(context.Background(), model.UserUpdate{Avatar: &bad}); err == nil {
		t.Error("non-https avatar should be rejected")
	}
	if st.Current().Avatar == bad {
		t.Error("rejected update must not be applied")
	}
}

func TestAuthenticate_LoginDelayHonoursContext(t *testing.T) {
	svc, _ := newTestService(t)
	svc.config.LoginDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Authenticate(ctx, "demo@minnego.com", "demo123")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestCookiePersister_RoundTrip(t *testing.T) {
	user := &model.SessionUser{ID: "1", Email: "demo@minnego.com", Name: "Demo User; \"quoted\"", IsPremium: true}

	rec := httptest.NewRecorder()
	p := NewCookiePersister(rec, httptest.NewRequest(http.MethodGet, "/", nil), CookieConfig{Secure: true})
	if err := p.Save(user); err != nil {
		t.Fatalf("Save: %v", err)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("cookies = %d, want 1", len(cookies))
	}
	c := cookies[0]
	if c.Name != CookieName || c.Path != "/" || c.MaxAge != DefaultMaxAge || !c.Secure || c.SameSite != http.SameSiteLaxMode {
		t.Errorf("cookie = %+v", c)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)
	got, err := NewCookiePersister(httptest.NewRecorder(), req, CookieConfig{}).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil || got.Name != user.Name || !got.IsPremium {
		t.Errorf("got = %+v", got)
	}
}

func TestCookiePersister_ClearExpiresCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	NewCookiePersister(rec, httptest.NewRequest(http.MethodGet, "/", nil), CookieConfig{}).Clear()

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Errorf("cookies = %+v, want expired user cookie", cookies)
	}
}

func TestCookiePersister_LoadWithoutCookie(t *testing.T) {
	p := NewCookiePersister(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil), CookieConfig{})
	u, err := p.Load()
	if u != nil || err != nil {
		t.Errorf("Load = %v, %v; want nil, nil", u, err)
	}
}

func TestDecodeCookie_Invalid(t *testing.T) {
	for _, v := range []string{"%zz", "not-json", "%7B%7D"} {
		if _, err := DecodeCookie(v); err == nil {
			t.Errorf("DecodeCookie(%q) should fail", v)
		}
	}
}

func TestLogoutWithCookiePersister(t *testing.T) {
	svc, _ := newTestService(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	value, _ := EncodeCookie(&model.SessionUser{ID: "1", Email: "demo@minnego.com"})
	req.AddCookie(&http.Cookie{Name: CookieName, Value: value})

	st := NewStore(svc, NewCookiePersister(rec, req, CookieConfig{}))
	if st.Current() == nil {
		t.Fatal("user should be restored from cookie")
	}
	st.Logout()
	if st.Current() != nil {
		t.Error("current should be nil")
	}
	found := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == CookieName && c.MaxAge < 0 {
			found = true
		}
	}
	if !found {
		t.Error("logout should expire the user cookie")
	}
}
