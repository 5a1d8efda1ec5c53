// Package session はログイン中ユーザーの管理（ログイン、サインアップ、ログアウト、
// プロフィール更新）を提供する。
//
// ユーザーは署名なしのクッキーに保存されるデモ用の仕組みであり、認可の境界ではない。
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/minnego/internal/metrics"
	"github.com/hitoshi/minnego/internal/model"
)

// 認証結果のエラー。メッセージはそのまま画面に表示される。
var (
	ErrUserNotFound    = model.ErrUserNotFound
	ErrInvalidPassword = errors.New("Invalid password")
	ErrUserExists      = model.ErrUserExists
	ErrMissingFields   = errors.New("Email and password are required")
	ErrNotLoggedIn     = errors.New("Not logged in")
	ErrInvalidImage    = errors.New("Invalid image URL")
)

const (
	// DefaultAvatar はサインアップ直後のアバター画像。
	DefaultAvatar = "/images/avatars/default.png"
	// DefaultCoverImage はサインアップ直後のカバー画像。
	DefaultCoverImage = "/images/covers/default.jpg"
	joinDateLayout    = "2006-01-02"
)

// Directory はアカウントの登録先。メールアドレスは大文字小文字を区別しない。
type Directory interface {
	// FindByEmail はメールアドレスでアカウントを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Account, error)
	// Create はアカウントを登録する。登録済みの場合はErrUserExistsを返す。
	Create(ctx context.Context, account *model.Account) error
}

// ImageURLValidator はアバター等の画像URLを検証する。
type ImageURLValidator interface {
	ValidateImageURL(rawURL string) error
}

// TextCleaner は自由入力のテキストをプレーンテキストにする。
type TextCleaner interface {
	PlainText(raw string) string
}

// ServiceConfig はServiceの設定。
type ServiceConfig struct {
	LoginDelay time.Duration
	BcryptCost int
	Images     ImageURLValidator
	Text       TextCleaner
}

// Service はアカウントの認証と登録を行う。
type Service struct {
	dir     Directory
	config  ServiceConfig
	metrics metrics.Recorder
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
}

// NewService はServiceを生成する。
func NewService(dir Directory, config ServiceConfig, recorder metrics.Recorder, logger *slog.Logger) *Service {
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		dir:     dir,
		config:  config,
		metrics: recorder,
		logger:  logger,
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
}

// Authenticate はメールアドレスとパスワードを照合し、パスワードを除いたユーザーを返す。
func (s *Service) Authenticate(ctx context.Context, email, password string) (model.SessionUser, error) {
	if err := s.wait(ctx); err != nil {
		return model.SessionUser{}, err
	}

	account, err := s.dir.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		s.metrics.RecordAuthAttempt("login", "error")
		return model.SessionUser{}, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		s.metrics.RecordAuthAttempt("login", "not_found")
		return model.SessionUser{}, ErrUserNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		s.metrics.RecordAuthAttempt("login", "invalid_password")
		return model.SessionUser{}, ErrInvalidPassword
	}

	s.metrics.RecordAuthAttempt("login", "success")
	s.logger.Info("user logged in", slog.String("user_id", account.ID))
	return account.SessionUser, nil
}

// Register は新しいアカウントを登録し、ログイン状態のユーザーを返す。
func (s *Service) Register(ctx context.Context, name, email, password string) (model.SessionUser, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		s.metrics.RecordAuthAttempt("signup", "invalid")
		return model.SessionUser{}, ErrMissingFields
	}
	if err := s.wait(ctx); err != nil {
		return model.SessionUser{}, err
	}

	existing, err := s.dir.FindByEmail(ctx, email)
	if err != nil {
		s.metrics.RecordAuthAttempt("signup", "error")
		return model.SessionUser{}, fmt.Errorf("failed to find account: %w", err)
	}
	if existing != nil {
		s.metrics.RecordAuthAttempt("signup", "exists")
		return model.SessionUser{}, ErrUserExists
	}

	account, err := s.newAccount(name, email, password)
	if err != nil {
		return model.SessionUser{}, err
	}
	if err := s.dir.Create(ctx, account); err != nil {
		if errors.Is(err, ErrUserExists) {
			s.metrics.RecordAuthAttempt("signup", "exists")
			return model.SessionUser{}, ErrUserExists
		}
		s.metrics.RecordAuthAttempt("signup", "error")
		return model.SessionUser{}, fmt.Errorf("failed to create account: %w", err)
	}

	s.metrics.RecordAuthAttempt("signup", "success")
	s.logger.Info("user signed up", slog.String("user_id", account.ID))
	return account.SessionUser, nil
}

// PrepareUpdate は部分更新の入力を検証し、自由入力のテキストを整形する。
func (s *Service) PrepareUpdate(u model.UserUpdate) (model.UserUpdate, error) {
	if s.config.Images != nil {
		if u.Avatar != nil {
			if err := s.config.Images.ValidateImageURL(*u.Avatar); err != nil {
				return u, fmt.Errorf("%w: avatar: %w", ErrInvalidImage, err)
			}
		}
		if u.CoverImage != nil {
			if err := s.config.Images.ValidateImageURL(*u.CoverImage); err != nil {
				return u, fmt.Errorf("%w: coverImage: %w", ErrInvalidImage, err)
			}
		}
	}
	if s.config.Text != nil {
		u.Name = s.clean(u.Name)
		u.Bio = s.clean(u.Bio)
		u.Location = s.clean(u.Location)
	}
	return u, nil
}

// MockAccount はデモ用に事前登録するアカウント。
type MockAccount struct {
	User     model.SessionUser
	Password string
}

// MockAccounts はデモ用アカウントの一覧を返す。
func MockAccounts() []MockAccount {
	return []MockAccount{
		{
			Password: "demo123",
			User: model.SessionUser{
				ID:         "1",
				Email:      "demo@minnego.com",
				Name:       "Demo User",
				Username:   "demo_user",
				Bio:        "Anime enthusiast and manga collector.",
				Avatar:     DefaultAvatar,
				CoverImage: DefaultCoverImage,
				Location:   "Tokyo, Japan",
				IsPremium:  true,
				JoinDate:   "2024-01-15",
				Preferences: &model.Preferences{
					FavoriteGenres: []string{"Action", "Fantasy", "Romance"},
					WatchedAnime:   156,
					ReadManga:      89,
				},
			},
		},
		{
			Password: "user123",
			User: model.SessionUser{
				ID:         "2",
				Email:      "user@minnego.com",
				Name:       "Test User",
				Username:   "test_user",
				Avatar:     DefaultAvatar,
				CoverImage: DefaultCoverImage,
				IsPremium:  false,
				JoinDate:   "2024-03-20",
				Preferences: &model.Preferences{
					FavoriteGenres: []string{"Comedy", "Slice of Life"},
					WatchedAnime:   42,
					ReadManga:      17,
				},
			},
		},
	}
}

// Seed はディレクトリに未登録のデモ用アカウントを登録する。
func (s *Service) Seed(ctx context.Context, accounts []MockAccount) error {
	for _, m := range accounts {
		existing, err := s.dir.FindByEmail(ctx, normalizeEmail(m.User.Email))
		if err != nil {
			return fmt.Errorf("failed to find account: %w", err)
		}
		if existing != nil {
			continue
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(m.Password), s.config.BcryptCost)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		account := &model.Account{
			SessionUser:  m.User,
			PasswordHash: string(hash),
			CreatedAt:    s.now(),
		}
		account.Email = normalizeEmail(account.Email)
		if err := s.dir.Create(ctx, account); err != nil && !errors.Is(err, ErrUserExists) {
			return fmt.Errorf("failed to seed account %s: %w", m.User.Email, err)
		}
	}
	return nil
}

func (s *Service) newAccount(name, email, password string) (*model.Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	name = strings.TrimSpace(name)
	username := usernameFromEmail(email)
	if name == "" {
		name = username
	}

	return &model.Account{
		SessionUser: model.SessionUser{
			ID:          s.newID(),
			Email:       email,
			Name:        name,
			Username:    username,
			Avatar:      DefaultAvatar,
			CoverImage:  DefaultCoverImage,
			IsPremium:   false,
			JoinDate:    now.Format(joinDateLayout),
			Preferences: &model.Preferences{FavoriteGenres: []string{}},
		},
		PasswordHash: string(hash),
		CreatedAt:    now,
	}, nil
}

// wait はログイン処理の疑似待ち時間を挿入する。
func (s *Service) wait(ctx context.Context) error {
	if s.config.LoginDelay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.config.LoginDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Service) clean(p *string) *string {
	if p == nil {
		return nil
	}
	v := s.config.Text.PlainText(*p)
	return &v
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var nonUsername = regexp.MustCompile(`[^a-z0-9_]+`)

// usernameFromEmail はメールアドレスのローカル部からユーザー名を作る。
func usernameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	name := strings.Trim(nonUsername.ReplaceAllString(strings.ToLower(local), "_"), "_")
	if name == "" {
		return "user"
	}
	return name
}
