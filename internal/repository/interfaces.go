// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"

	"github.com/hitoshi/habitman/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByTelegramID はTelegram IDでユーザーを検索する。見つからない場合はnilを返す。
	FindByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// UpdateProfile はユーザーの表示属性（username, first_name, last_name）を更新する。
	UpdateProfile(ctx context.Context, id string, profile model.UserProfile) error

	// ListActive はアクティブな全ユーザーを返す。
	ListActive(ctx context.Context) ([]*model.User, error)
}

// HabitRepository は習慣データの永続化インターフェース。
type HabitRepository interface {
	// FindByID は指定IDの習慣を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Habit, error)

	// ListByUserID はユーザーの全習慣をcreated_at昇順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Habit, error)

	// ListActiveByUserID はユーザーのアクティブな習慣をcreated_at昇順で返す。
	ListActiveByUserID(ctx context.Context, userID string) ([]*model.Habit, error)

	// ListActive は全ユーザーのアクティブな習慣を返す。
	// 日次転送ジョブとリマインダー配信が使用する。
	ListActive(ctx context.Context) ([]*model.Habit, error)

	// Create は習慣を作成する。
	Create(ctx context.Context, habit *model.Habit) error

	// Update は習慣のtitle/description/is_activeを更新しupdated_atを進める。
	// 完了カウンタと完了日時は変更しない。
	Update(ctx context.Context, habit *model.Habit) error

	// UpdateCompletion は習慣のcompletion_countとlast_completedを更新する。
	UpdateCompletion(ctx context.Context, habit *model.Habit) error

	// Delete は指定IDの習慣を物理削除する。対象が存在しない場合はエラーを返す。
	Delete(ctx context.Context, id string) error

	// UpdateLifecycleBatch は複数習慣のis_active/last_completedを
	// 単一トランザクションで更新する。全件成功しない限りコミットしない。
	UpdateLifecycleBatch(ctx context.Context, habits []*model.Habit) error
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
