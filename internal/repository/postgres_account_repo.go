package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/minnego/internal/model"
)

// uniqueViolation はPostgreSQLの一意制約違反のエラーコード。
const uniqueViolation = "23505"

const joinDateLayout = "2006-01-02"

// PostgresAccountRepo はPostgreSQLを使用したアカウントリポジトリ。
type PostgresAccountRepo struct {
	db *sql.DB
}

// NewPostgresAccountRepo はPostgresAccountRepoを生成する。
func NewPostgresAccountRepo(db *sql.DB) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: db}
}

// FindByEmail はメールアドレスでアカウントを取得する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	a := &model.Account{}
	var joinDate time.Time
	var genres pq.StringArray
	var watched, read sql.NullInt64
	var hasPrefs bool

	err := r.db.QueryRowContext(ctx,
		`SELECT a.id, a.email, a.password_hash, a.name, a.username, a.bio, a.avatar,
		        a.cover_image, a.location, a.is_premium, a.join_date, a.created_at,
		        p.account_id IS NOT NULL, COALESCE(p.favorite_genres, '{}'), p.watched_anime, p.read_manga
		 FROM accounts a
		 LEFT JOIN account_preferences p ON p.account_id = a.id
		 WHERE LOWER(a.email) = LOWER($1)`,
		email,
	).Scan(
		&a.ID, &a.Email, &a.PasswordHash, &a.Name, &a.Username, &a.Bio, &a.Avatar,
		&a.CoverImage, &a.Location, &a.IsPremium, &joinDate, &a.CreatedAt,
		&hasPrefs, &genres, &watched, &read,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account by email: %w", err)
	}

	a.JoinDate = joinDate.Format(joinDateLayout)
	if hasPrefs {
		a.Preferences = &model.Preferences{
			FavoriteGenres: []string(genres),
			WatchedAnime:   int(watched.Int64),
			ReadManga:      int(read.Int64),
		}
	}

	return a, nil
}

// Create はアカウントと嗜好情報を同一トランザクションで作成する。
func (r *PostgresAccountRepo) Create(ctx context.Context, account *model.Account) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	createdAt := account.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO accounts (id, email, password_hash, name, username, bio, avatar,
		                       cover_image, location, is_premium, join_date, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)`,
		account.ID, strings.ToLower(account.Email), account.PasswordHash, account.Name,
		account.Username, account.Bio, account.Avatar, account.CoverImage, account.Location,
		account.IsPremium, joinDateOrToday(account.JoinDate, createdAt), createdAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrUserExists
		}
		return fmt.Errorf("failed to insert account: %w", err)
	}

	if account.Preferences != nil {
		if err := upsertPreferences(ctx, tx, account.ID, account.Preferences); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func upsertPreferences(ctx context.Context, tx *sql.Tx, accountID string, p *model.Preferences) error {
	genres := p.FavoriteGenres
	if genres == nil {
		genres = []string{}
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO account_preferences (account_id, favorite_genres, watched_anime, read_manga, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (account_id) DO UPDATE
		 SET favorite_genres = EXCLUDED.favorite_genres,
		     watched_anime = EXCLUDED.watched_anime,
		     read_manga = EXCLUDED.read_manga,
		     updated_at = now()`,
		accountID, pq.Array(genres), p.WatchedAnime, p.ReadManga,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert preferences: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// joinDateOrToday はYYYY-MM-DD形式の登録日を返す。不正な場合は作成日を使う。
func joinDateOrToday(joinDate string, createdAt time.Time) string {
	if _, err := time.Parse(joinDateLayout, joinDate); err == nil {
		return joinDate
	}
	return createdAt.Format(joinDateLayout)
}

// compile-time interface check
var _ AccountRepository = (*PostgresAccountRepo)(nil)
