package session

import (
	"context"
	"errors"
	"sync"

	"github.com/hitoshi/minnego/internal/model"
)

// Result はログイン・サインアップの結果。
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	// Err は失敗の原因。ErrUserNotFound などの番兵エラーで応答を振り分ける。
	Err error `json:"-"`
}

// Store はログイン中ユーザーを保持する。
type Store interface {
	Login(ctx context.Context, email, password string) Result
	Signup(ctx context.Context, name, email, password string) Result
	Logout()
	// UpdateUser はログイン中ユーザーに部分更新をマージして保存し直す。
	// ログインしていない場合は何もせずErrNotLoggedInを返す。
	UpdateUser(ctx context.Context, update model.UserUpdate) (*model.SessionUser, error)
	// Current はログイン中ユーザーを返す。ログインしていない場合はnil。
	Current() *model.SessionUser
}

type store struct {
	svc       *Service
	persister Persister

	mu      sync.Mutex
	current *model.SessionUser
}

// NewStore はStoreを生成する。保存済みのユーザーを一度だけ読み込む。
// 読み込みに失敗した場合は未ログインとして扱う。
func NewStore(svc *Service, persister Persister) Store {
	s := &store{svc: svc, persister: persister}
	if user, err := persister.Load(); err == nil {
		s.current = user
	}
	return s
}

func (s *store) Login(ctx context.Context, email, password string) Result {
	user, err := s.svc.Authenticate(ctx, email, password)
	if err != nil {
		return failure(err)
	}
	return s.establish(&user)
}

func (s *store) Signup(ctx context.Context, name, email, password string) Result {
	user, err := s.svc.Register(ctx, name, email, password)
	if err != nil {
		return failure(err)
	}
	return s.establish(&user)
}

func (s *store) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persister.Clear()
	s.current = nil
}

func (s *store) UpdateUser(ctx context.Context, update model.UserUpdate) (*model.SessionUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, ErrNotLoggedIn
	}

	update, err := s.svc.PrepareUpdate(update)
	if err != nil {
		return nil, err
	}
	// クッキー由来のユーザーは検証されていないため、ディレクトリには書き戻さない
	merged := update.Apply(*s.current)
	if err := s.persister.Save(&merged); err != nil {
		return nil, err
	}
	s.current = &merged
	u := merged
	return &u, nil
}

func (s *store) Current() *model.SessionUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	u := *s.current
	return &u
}

func (s *store) establish(user *model.SessionUser) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persister.Save(user); err != nil {
		return failure(err)
	}
	s.current = user
	return Result{Success: true}
}

// failure は認証系のエラーを結果に変換する。想定外のエラーは汎用メッセージにし、Errに原因を残す。
func failure(err error) Result {
	switch {
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrInvalidPassword),
		errors.Is(err, ErrUserExists),
		errors.Is(err, ErrMissingFields):
		return Result{Error: err.Error(), Err: err}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Result{Error: "Request cancelled", Err: err}
	default:
		return Result{Error: "Something went wrong. Please try again.", Err: err}
	}
}
