// Package bot はTelegram BOTフロントエンドを提供する。
// ロングポーリングで更新を受信し、バックエンドAPIを介して習慣を操作する。
package bot

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// TokenStore はユーザーごとの認証トークンをSQLiteに永続化する。
// BOT再起動後もユーザーの再認証を不要にするためのキャッシュ。
type TokenStore struct {
	db *sql.DB
}

// OpenTokenStore は指定パスのSQLiteデータベースを開き、テーブルを初期化する。
// 親ディレクトリが存在しない場合は作成する。
func OpenTokenStore(path string) (*TokenStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("トークンストアのディレクトリ作成に失敗しました: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("トークンストアのオープンに失敗しました: %w", err)
	}

	const schema = `
		CREATE TABLE IF NOT EXISTS user_tokens (
			telegram_id INTEGER PRIMARY KEY,
			auth_token TEXT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("トークンストアの初期化に失敗しました: %w", err)
	}

	return &TokenStore{db: db}, nil
}

// Close はデータベース接続を閉じる。
func (s *TokenStore) Close() error {
	return s.db.Close()
}

// Save は認証トークンを保存する。既存の場合は上書きする。
func (s *TokenStore) Save(ctx context.Context, telegramID int64, authToken string) error {
	const query = `
		INSERT INTO user_tokens (telegram_id, auth_token, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(telegram_id) DO UPDATE SET
			auth_token = excluded.auth_token,
			updated_at = CURRENT_TIMESTAMP`

	if _, err := s.db.ExecContext(ctx, query, telegramID, authToken); err != nil {
		return fmt.Errorf("認証トークンの保存に失敗しました: %w", err)
	}
	return nil
}

// Find は認証トークンを取得する。未保存の場合は空文字列を返す。
func (s *TokenStore) Find(ctx context.Context, telegramID int64) (string, error) {
	const query = `SELECT auth_token FROM user_tokens WHERE telegram_id = ?`

	var token string
	err := s.db.QueryRowContext(ctx, query, telegramID).Scan(&token)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("認証トークンの取得に失敗しました: %w", err)
	}
	return token, nil
}

// Delete は認証トークンを削除する。
func (s *TokenStore) Delete(ctx context.Context, telegramID int64) error {
	const query = `DELETE FROM user_tokens WHERE telegram_id = ?`

	if _, err := s.db.ExecContext(ctx, query, telegramID); err != nil {
		return fmt.Errorf("認証トークンの削除に失敗しました: %w", err)
	}
	return nil
}
