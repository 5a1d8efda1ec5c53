package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/hitoshi/minnego/internal/model"
)

const (
	// CookieName はログイン中ユーザーを保存するクッキー名。
	CookieName = "user"
	// DefaultMaxAge はクッキーの有効期間（7日、秒）。
	DefaultMaxAge = 7 * 24 * 60 * 60
)

// Persister はログイン中ユーザーの保存先。
type Persister interface {
	// Load は保存済みのユーザーを返す。保存されていない場合はnilを返す。
	Load() (*model.SessionUser, error)
	Save(user *model.SessionUser) error
	Clear()
}

// MemoryPersister はメモリ上の保存先。テストとターミナル版で使う。
type MemoryPersister struct {
	mu   sync.Mutex
	user *model.SessionUser
}

// Load は保存済みのユーザーのコピーを返す。
func (p *MemoryPersister) Load() (*model.SessionUser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.user == nil {
		return nil, nil
	}
	u := *p.user
	return &u, nil
}

// Save はユーザーのコピーを保存する。
func (p *MemoryPersister) Save(user *model.SessionUser) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if user == nil {
		p.user = nil
		return nil
	}
	u := *user
	p.user = &u
	return nil
}

// Clear は保存済みのユーザーを消去する。
func (p *MemoryPersister) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.user = nil
}

// CookieConfig はuserクッキーの属性。
type CookieConfig struct {
	MaxAge int
	Domain string
	Secure bool
}

// CookiePersister はuserクッキーに保存する。1リクエストごとに生成する。
type CookiePersister struct {
	w      http.ResponseWriter
	r      *http.Request
	config CookieConfig
}

// NewCookiePersister はCookiePersisterを生成する。
func NewCookiePersister(w http.ResponseWriter, r *http.Request, config CookieConfig) *CookiePersister {
	if config.MaxAge <= 0 {
		config.MaxAge = DefaultMaxAge
	}
	return &CookiePersister{w: w, r: r, config: config}
}

// Load はリクエストのuserクッキーを読み取る。
func (p *CookiePersister) Load() (*model.SessionUser, error) {
	c, err := p.r.Cookie(CookieName)
	if errors.Is(err, http.ErrNoCookie) || (err == nil && c.Value == "") {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return DecodeCookie(c.Value)
}

// Save はユーザーをuserクッキーとして書き込む。
func (p *CookiePersister) Save(user *model.SessionUser) error {
	if user == nil {
		p.Clear()
		return nil
	}
	value, err := EncodeCookie(user)
	if err != nil {
		return err
	}
	http.SetCookie(p.w, p.cookie(value, p.config.MaxAge))
	return nil
}

// Clear はuserクッキーを削除する。
func (p *CookiePersister) Clear() {
	http.SetCookie(p.w, p.cookie("", -1))
}

func (p *CookiePersister) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		Domain:   p.config.Domain,
		MaxAge:   maxAge,
		Secure:   p.config.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// EncodeCookie はユーザーをクッキー値（URLエスケープしたJSON）に変換する。
func EncodeCookie(user *model.SessionUser) (string, error) {
	b, err := json.Marshal(user)
	if err != nil {
		return "", fmt.Errorf("failed to encode user cookie: %w", err)
	}
	return url.QueryEscape(string(b)), nil
}

// DecodeCookie はクッキー値からユーザーを復元する。
func DecodeCookie(value string) (*model.SessionUser, error) {
	raw, err := url.QueryUnescape(value)
	if err != nil {
		return nil, fmt.Errorf("failed to unescape user cookie: %w", err)
	}
	var user model.SessionUser
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, fmt.Errorf("failed to decode user cookie: %w", err)
	}
	if user.ID == "" {
		return nil, errors.New("user cookie has no id")
	}
	return &user, nil
}

var (
	_ Persister = (*MemoryPersister)(nil)
	_ Persister = (*CookiePersister)(nil)
)
