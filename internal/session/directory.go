package session

import (
	"context"
	"strings"
	"sync"

	"github.com/hitoshi/minnego/internal/model"
)

// MemoryDirectory はメモリ上のアカウント登録先。DATABASE_URL未設定時とテストで使う。
type MemoryDirectory struct {
	mu       sync.RWMutex
	accounts map[string]model.Account
}

// NewMemoryDirectory は空のMemoryDirectoryを生成する。
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{accounts: make(map[string]model.Account)}
}

// FindByEmail はメールアドレスでアカウントを検索する。
func (d *MemoryDirectory) FindByEmail(_ context.Context, email string) (*model.Account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.accounts[strings.ToLower(email)]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

// Create はアカウントを登録する。
func (d *MemoryDirectory) Create(_ context.Context, account *model.Account) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := strings.ToLower(account.Email)
	if _, ok := d.accounts[key]; ok {
		return ErrUserExists
	}
	d.accounts[key] = *account
	return nil
}

var _ Directory = (*MemoryDirectory)(nil)
