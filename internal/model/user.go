// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"time"
)

// アカウント登録先が返すエラー。
var (
	ErrUserNotFound = errors.New("User not found")
	ErrUserExists   = errors.New("User already exists")
)

// Preferences はユーザーの嗜好と視聴・読書の統計を表す。
type Preferences struct {
	FavoriteGenres []string `json:"favoriteGenres"`
	WatchedAnime   int      `json:"watchedAnime"`
	ReadManga      int      `json:"readManga"`
}

// SessionUser はログイン中ユーザーとしてUIに提示されるレコード。
// userクッキーにJSONとして保存される。パスワードは含まない。
type SessionUser struct {
	ID          string       `json:"id"`
	Email       string       `json:"email"`
	Name        string       `json:"name"`
	Username    string       `json:"username,omitempty"`
	Bio         string       `json:"bio,omitempty"`
	Avatar      string       `json:"avatar,omitempty"`
	CoverImage  string       `json:"coverImage,omitempty"`
	Location    string       `json:"location,omitempty"`
	IsPremium   bool         `json:"isPremium"`
	JoinDate    string       `json:"joinDate"`
	Preferences *Preferences `json:"preferences,omitempty"`
}

// Account はディレクトリに登録されたユーザー。
// SessionUserにパスワードハッシュと作成日時を加えたもの。
type Account struct {
	SessionUser
	PasswordHash string
	CreatedAt    time.Time
}

// UserUpdate はユーザー情報の部分更新を表す。
// nilのフィールドは変更しない。
type UserUpdate struct {
	Name        *string      `json:"name,omitempty"`
	Username    *string      `json:"username,omitempty"`
	Bio         *string      `json:"bio,omitempty"`
	Avatar      *string      `json:"avatar,omitempty"`
	CoverImage  *string      `json:"coverImage,omitempty"`
	Location    *string      `json:"location,omitempty"`
	IsPremium   *bool        `json:"isPremium,omitempty"`
	Preferences *Preferences `json:"preferences,omitempty"`
}

// Apply はSessionUserに部分更新を浅くマージした新しい値を返す。
func (u UserUpdate) Apply(user SessionUser) SessionUser {
	if u.Name != nil {
		user.Name = *u.Name
	}
	if u.Username != nil {
		user.Username = *u.Username
	}
	if u.Bio != nil {
		user.Bio = *u.Bio
	}
	if u.Avatar != nil {
		user.Avatar = *u.Avatar
	}
	if u.CoverImage != nil {
		user.CoverImage = *u.CoverImage
	}
	if u.Location != nil {
		user.Location = *u.Location
	}
	if u.IsPremium != nil {
		user.IsPremium = *u.IsPremium
	}
	if u.Preferences != nil {
		p := *u.Preferences
		user.Preferences = &p
	}
	return user
}
