// Package habit は習慣のライフサイクルに関するドメインロジックを提供する。
// 作成・部分更新・削除・完了遷移と、ユーザーごとの統計集計を含む。
package habit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hitoshi/habitman/internal/model"
	"github.com/hitoshi/habitman/internal/repository"
)

// Service は習慣管理のサービス層。
type Service struct {
	habitRepo repository.HabitRepository
}

// NewService はServiceを生成する。
func NewService(habitRepo repository.HabitRepository) *Service {
	return &Service{habitRepo: habitRepo}
}

// Create は新しい習慣を作成する。
// completion_count=0、is_active=true、last_completed=nilで初期化する。
func (s *Service) Create(ctx context.Context, userID, title, description string) (*model.Habit, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)

	if err := validateTitle(title); err != nil {
		return nil, err
	}
	if err := validateDescription(description); err != nil {
		return nil, err
	}

	now := time.Now()
	habit := &model.Habit{
		ID:              uuid.New().String(),
		UserID:          userID,
		Title:           title,
		Description:     description,
		IsActive:        true,
		CompletionCount: 0,
		LastCompleted:   nil,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.habitRepo.Create(ctx, habit); err != nil {
		return nil, fmt.Errorf("習慣の作成に失敗しました: %w", err)
	}

	slog.Info("habit created",
		slog.String("habit_id", habit.ID),
		slog.String("user_id", userID),
	)
	return habit, nil
}

// Get は指定IDの習慣を取得する。見つからない場合はnilを返す。
func (s *Service) Get(ctx context.Context, habitID string) (*model.Habit, error) {
	habit, err := s.habitRepo.FindByID(ctx, habitID)
	if err != nil {
		return nil, fmt.Errorf("習慣の取得に失敗しました: %w", err)
	}
	return habit, nil
}

// ListByUser はユーザーの全習慣を返す。
func (s *Service) ListByUser(ctx context.Context, userID string) ([]*model.Habit, error) {
	habits, err := s.habitRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("習慣一覧の取得に失敗しました: %w", err)
	}
	return habits, nil
}

// ListActiveByUser はユーザーのアクティブな習慣を返す。
func (s *Service) ListActiveByUser(ctx context.Context, userID string) ([]*model.Habit, error) {
	habits, err := s.habitRepo.ListActiveByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("アクティブな習慣一覧の取得に失敗しました: %w", err)
	}
	return habits, nil
}

// Update は習慣を部分更新する。
// nilでないフィールドのみ適用し、完了カウンタと完了日時は変更しない。
func (s *Service) Update(ctx context.Context, habitID string, upd model.HabitUpdate) (*model.Habit, error) {
	habit, err := s.habitRepo.FindByID(ctx, habitID)
	if err != nil {
		return nil, fmt.Errorf("習慣の取得に失敗しました: %w", err)
	}
	if habit == nil {
		return nil, model.NewHabitNotFoundError(habitID)
	}

	if upd.Title != nil {
		title := strings.TrimSpace(*upd.Title)
		if err := validateTitle(title); err != nil {
			return nil, err
		}
		habit.Title = title
	}
	if upd.Description != nil {
		description := strings.TrimSpace(*upd.Description)
		if err := validateDescription(description); err != nil {
			return nil, err
		}
		habit.Description = description
	}
	if upd.IsActive != nil {
		habit.IsActive = *upd.IsActive
	}

	if err := s.habitRepo.Update(ctx, habit); err != nil {
		return nil, fmt.Errorf("習慣の更新に失敗しました: %w", err)
	}
	return habit, nil
}

// Delete は習慣を物理削除する。
func (s *Service) Delete(ctx context.Context, habitID string) error {
	habit, err := s.habitRepo.FindByID(ctx, habitID)
	if err != nil {
		return fmt.Errorf("習慣の取得に失敗しました: %w", err)
	}
	if habit == nil {
		return model.NewHabitNotFoundError(habitID)
	}

	if err := s.habitRepo.Delete(ctx, habitID); err != nil {
		return fmt.Errorf("習慣の削除に失敗しました: %w", err)
	}

	slog.Info("habit deleted",
		slog.String("habit_id", habitID),
		slog.String("user_id", habit.UserID),
	)
	return nil
}

// Complete は習慣を完了状態に遷移させる。
// 同じUTC日付にすでに完了している場合はALREADY_COMPLETEDエラーを返し、
// カウンタは変更しない。非アクティブな習慣のガードは呼び出し側の責務。
func (s *Service) Complete(ctx context.Context, habitID string) (*model.Habit, error) {
	habit, err := s.habitRepo.FindByID(ctx, habitID)
	if err != nil {
		return nil, fmt.Errorf("習慣の取得に失敗しました: %w", err)
	}
	if habit == nil {
		return nil, model.NewHabitNotFoundError(habitID)
	}

	now := time.Now()
	if habit.CompletedOn(now) {
		return nil, model.NewAlreadyCompletedError()
	}

	habit.CompletionCount++
	habit.LastCompleted = &now

	if err := s.habitRepo.UpdateCompletion(ctx, habit); err != nil {
		return nil, fmt.Errorf("完了状態の保存に失敗しました: %w", err)
	}

	slog.Info("habit completed",
		slog.String("habit_id", habit.ID),
		slog.Int("completion_count", habit.CompletionCount),
	)
	return habit, nil
}

// validateTitle はタイトルの長さ制約を検証する。
func validateTitle(title string) error {
	length := utf8.RuneCountInString(title)
	if length < model.TitleMinLength {
		return model.NewValidationError(fmt.Sprintf("タイトルは%d文字以上で入力してください", model.TitleMinLength))
	}
	if length > model.TitleMaxLength {
		return model.NewValidationError(fmt.Sprintf("タイトルは%d文字以内で入力してください", model.TitleMaxLength))
	}
	return nil
}

// validateDescription は説明の長さ制約を検証する。空は許容する。
func validateDescription(description string) error {
	if utf8.RuneCountInString(description) > model.DescriptionMaxLength {
		return model.NewValidationError(fmt.Sprintf("説明は%d文字以内で入力してください", model.DescriptionMaxLength))
	}
	return nil
}
