package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/habitman/internal/model"
)

// PostgresHabitRepo はPostgreSQLを使用した習慣リポジトリ。
type PostgresHabitRepo struct {
	db *sql.DB
}

// NewPostgresHabitRepo はPostgresHabitRepoを生成する。
func NewPostgresHabitRepo(db *sql.DB) *PostgresHabitRepo {
	return &PostgresHabitRepo{db: db}
}

const habitColumns = `id, user_id, title, description, is_active, completion_count, last_completed, created_at, updated_at`

// FindByID は指定IDの習慣を取得する。見つからない場合はnilを返す。
func (r *PostgresHabitRepo) FindByID(ctx context.Context, id string) (*model.Habit, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+habitColumns+` FROM habits WHERE id = $1`,
		id,
	)
	habit, err := scanHabit(row)
	if err != nil {
		return nil, err
	}
	return habit, nil
}

// ListByUserID はユーザーの全習慣をcreated_at昇順で返す。
func (r *PostgresHabitRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Habit, error) {
	return r.list(ctx,
		`SELECT `+habitColumns+` FROM habits WHERE user_id = $1 ORDER BY created_at`,
		userID,
	)
}

// ListActiveByUserID はユーザーのアクティブな習慣をcreated_at昇順で返す。
func (r *PostgresHabitRepo) ListActiveByUserID(ctx context.Context, userID string) ([]*model.Habit, error) {
	return r.list(ctx,
		`SELECT `+habitColumns+` FROM habits WHERE user_id = $1 AND is_active ORDER BY created_at`,
		userID,
	)
}

// ListActive は全ユーザーのアクティブな習慣を返す。
func (r *PostgresHabitRepo) ListActive(ctx context.Context) ([]*model.Habit, error) {
	return r.list(ctx,
		`SELECT `+habitColumns+` FROM habits WHERE is_active ORDER BY created_at`,
	)
}

// Create は習慣を作成する。
func (r *PostgresHabitRepo) Create(ctx context.Context, habit *model.Habit) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO habits (id, user_id, title, description, is_active, completion_count, last_completed, created_at, updated_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9)`,
		habit.ID, habit.UserID, habit.Title, habit.Description,
		habit.IsActive, habit.CompletionCount, habit.LastCompleted,
		habit.CreatedAt, habit.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert habit: %w", err)
	}
	return nil
}

// Update は習慣のtitle/description/is_activeを更新しupdated_atを進める。
func (r *PostgresHabitRepo) Update(ctx context.Context, habit *model.Habit) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE habits
		 SET title = $2, description = NULLIF($3, ''), is_active = $4, updated_at = now()
		 WHERE id = $1`,
		habit.ID, habit.Title, habit.Description, habit.IsActive,
	)
	if err != nil {
		return fmt.Errorf("failed to update habit: %w", err)
	}
	return requireRowAffected(result, habit.ID)
}

// UpdateCompletion は習慣のcompletion_countとlast_completedを更新する。
func (r *PostgresHabitRepo) UpdateCompletion(ctx context.Context, habit *model.Habit) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE habits
		 SET completion_count = $2, last_completed = $3, updated_at = now()
		 WHERE id = $1`,
		habit.ID, habit.CompletionCount, habit.LastCompleted,
	)
	if err != nil {
		return fmt.Errorf("failed to update habit completion: %w", err)
	}
	return requireRowAffected(result, habit.ID)
}

// Delete は指定IDの習慣を物理削除する。対象が存在しない場合はエラーを返す。
func (r *PostgresHabitRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM habits WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete habit: %w", err)
	}
	return requireRowAffected(result, id)
}

// UpdateLifecycleBatch は複数習慣のis_active/last_completedを
// 単一トランザクションで更新する。途中で失敗した場合は全体をロールバックする。
func (r *PostgresHabitRepo) UpdateLifecycleBatch(ctx context.Context, habits []*model.Habit) error {
	if len(habits) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, habit := range habits {
		_, err := tx.ExecContext(ctx,
			`UPDATE habits
			 SET is_active = $2, last_completed = $3, updated_at = now()
			 WHERE id = $1`,
			habit.ID, habit.IsActive, habit.LastCompleted,
		)
		if err != nil {
			return fmt.Errorf("failed to update habit lifecycle %s: %w", habit.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// list はクエリを実行して習慣のスライスを返す。
func (r *PostgresHabitRepo) list(ctx context.Context, query string, args ...any) ([]*model.Habit, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list habits: %w", err)
	}
	defer rows.Close()

	var habits []*model.Habit
	for rows.Next() {
		habit, err := scanHabit(rows)
		if err != nil {
			return nil, err
		}
		habits = append(habits, habit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate habits: %w", err)
	}
	return habits, nil
}

// scanHabit は1行分の習慣カラムをスキャンする。
// NULLのdescriptionは空文字列にマッピングする。
func scanHabit(row rowScanner) (*model.Habit, error) {
	habit := &model.Habit{}
	var description sql.NullString

	err := row.Scan(
		&habit.ID, &habit.UserID, &habit.Title, &description,
		&habit.IsActive, &habit.CompletionCount, &habit.LastCompleted,
		&habit.CreatedAt, &habit.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan habit: %w", err)
	}

	habit.Description = description.String
	return habit, nil
}

// requireRowAffected は更新・削除が1行以上に作用したことを確認する。
func requireRowAffected(result sql.Result, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("habit not found: %s", id)
	}
	return nil
}
