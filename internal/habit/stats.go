package habit

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/habitman/internal/model"
)

// Stats はユーザーの習慣に関する統計情報を表す。
type Stats struct {
	TotalActiveHabits    int
	CompletedToday       int
	CompletedThisWeek    int
	TotalCompletions     int
	CurrentStreakDays    int
	BestHabitTitle       string
	BestHabitCompletions int
}

// Stats はユーザーの習慣統計を集計する。
// ストリークは「今日から遡って、少なくとも1つの習慣が完了している連続日数」。
func (s *Service) Stats(ctx context.Context, userID string) (*Stats, error) {
	habits, err := s.habitRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("習慣一覧の取得に失敗しました: %w", err)
	}

	stats := &Stats{}
	if len(habits) == 0 {
		return stats, nil
	}

	now := time.Now()
	today := model.UTCDate(now)
	weekAgo := today.AddDate(0, 0, -7)

	var best *model.Habit
	for _, h := range habits {
		if h.IsActive {
			stats.TotalActiveHabits++
		}
		stats.TotalCompletions += h.CompletionCount

		if h.LastCompleted != nil {
			completedDate := model.UTCDate(*h.LastCompleted)
			if completedDate.Equal(today) {
				stats.CompletedToday++
			}
			if !completedDate.Before(weekAgo) {
				stats.CompletedThisWeek++
			}
		}

		if best == nil || h.CompletionCount > best.CompletionCount {
			best = h
		}
	}

	if best != nil && best.CompletionCount > 0 {
		stats.BestHabitTitle = best.Title
		stats.BestHabitCompletions = best.CompletionCount
	}

	stats.CurrentStreakDays = streakDays(habits, today)
	return stats, nil
}

// streakDays は今日から遡り、いずれかの習慣が完了した連続日数を数える。
// last_completedは直近の完了日時しか保持しないため、習慣ごとに最大1日分として数える。
func streakDays(habits []*model.Habit, today time.Time) int {
	streak := 0
	checkDate := today
	for {
		hasCompletion := false
		for _, h := range habits {
			if h.LastCompleted != nil && model.UTCDate(*h.LastCompleted).Equal(checkDate) {
				hasCompletion = true
				break
			}
		}
		if !hasCompletion {
			break
		}
		streak++
		checkDate = checkDate.AddDate(0, 0, -1)
	}
	return streak
}
