package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/habitman/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, telegram_id, username, first_name, last_name, is_active, auth_token, created_at, updated_at
		 FROM users WHERE id = $1`,
		id,
	)
	return scanUser(row)
}

// FindByTelegramID はTelegram IDでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, telegram_id, username, first_name, last_name, is_active, auth_token, created_at, updated_at
		 FROM users WHERE telegram_id = $1`,
		telegramID,
	)
	return scanUser(row)
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, telegram_id, username, first_name, last_name, is_active, auth_token, created_at, updated_at)
		 VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8, $9)`,
		user.ID, user.TelegramID, user.Username, user.FirstName, user.LastName,
		user.IsActive, user.AuthToken, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// UpdateProfile はユーザーの表示属性を更新する。
func (r *PostgresUserRepo) UpdateProfile(ctx context.Context, id string, profile model.UserProfile) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET username = NULLIF($2, ''), first_name = NULLIF($3, ''), last_name = NULLIF($4, ''), updated_at = now()
		 WHERE id = $1`,
		id, profile.Username, profile.FirstName, profile.LastName,
	)
	if err != nil {
		return fmt.Errorf("failed to update user profile: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}

// ListActive はアクティブな全ユーザーを返す。
func (r *PostgresUserRepo) ListActive(ctx context.Context) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, telegram_id, username, first_name, last_name, is_active, auth_token, created_at, updated_at
		 FROM users WHERE is_active ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list active users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// rowScanner は*sql.Rowと*sql.Rowsを共通に扱うためのインターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanUser は1行分のユーザーカラムをスキャンする。
// NULLのオプション項目は空文字列にマッピングする。
func scanUser(row rowScanner) (*model.User, error) {
	user := &model.User{}
	var username, firstName, lastName sql.NullString

	err := row.Scan(
		&user.ID, &user.TelegramID, &username, &firstName, &lastName,
		&user.IsActive, &user.AuthToken, &user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	user.Username = username.String
	user.FirstName = firstName.String
	user.LastName = lastName.String
	return user, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
