// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/minnego/internal/model"
)

// AccountRepository はアカウントの永続化インターフェース。
type AccountRepository interface {
	// FindByEmail はメールアドレス（大文字小文字を区別しない）でアカウントを取得する。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Account, error)

	// Create はアカウントと嗜好情報を同一トランザクションで作成する。
	// メールアドレスが登録済みの場合はmodel.ErrUserExistsを返す。
	Create(ctx context.Context, account *model.Account) error
}
