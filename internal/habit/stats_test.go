package habit

import (
	"context"
	"testing"
	"time"

	"github.com/hitoshi/habitman/internal/model"
)

// 習慣が1つもないユーザーの統計が全てゼロ値になることを検証
func TestService_Stats_NoHabits(t *testing.T) {
	svc := NewService(&mockHabitRepo{})

	stats, err := svc.Stats(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if stats.TotalActiveHabits != 0 || stats.TotalCompletions != 0 || stats.CurrentStreakDays != 0 {
		t.Errorf("expected zero stats, got %+v", stats)
	}
	if stats.BestHabitTitle != "" {
		t.Errorf("BestHabitTitle = %q, want empty", stats.BestHabitTitle)
	}
}

// 今日・今週の完了数、合計完了数、最多完了の習慣が正しく集計されることを検証
func TestService_Stats_Aggregates(t *testing.T) {
	now := time.Now()
	tenDaysAgo := now.AddDate(0, 0, -10)

	habits := []*model.Habit{
		{ID: "h1", Title: "Run", IsActive: true, CompletionCount: 7, LastCompleted: &now},
		{ID: "h2", Title: "Read", IsActive: true, CompletionCount: 12, LastCompleted: &tenDaysAgo},
		{ID: "h3", Title: "Meditate", IsActive: false, CompletionCount: 21},
	}

	repo := &mockHabitRepo{
		listByUserIDFn: func(ctx context.Context, userID string) ([]*model.Habit, error) {
			return habits, nil
		},
	}
	svc := NewService(repo)

	stats, err := svc.Stats(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}

	if stats.TotalActiveHabits != 2 {
		t.Errorf("TotalActiveHabits = %d, want 2", stats.TotalActiveHabits)
	}
	if stats.CompletedToday != 1 {
		t.Errorf("CompletedToday = %d, want 1", stats.CompletedToday)
	}
	if stats.CompletedThisWeek != 1 {
		t.Errorf("CompletedThisWeek = %d, want 1", stats.CompletedThisWeek)
	}
	if stats.TotalCompletions != 40 {
		t.Errorf("TotalCompletions = %d, want 40", stats.TotalCompletions)
	}
	if stats.BestHabitTitle != "Meditate" {
		t.Errorf("BestHabitTitle = %q, want %q", stats.BestHabitTitle, "Meditate")
	}
	if stats.BestHabitCompletions != 21 {
		t.Errorf("BestHabitCompletions = %d, want 21", stats.BestHabitCompletions)
	}
}

// ストリークが今日から連続する完了日数として数えられることを検証
func TestStreakDays(t *testing.T) {
	today := model.UTCDate(time.Now())
	yesterday := today.AddDate(0, 0, -1)
	threeDaysAgo := today.AddDate(0, 0, -3)

	tests := []struct {
		name   string
		habits []*model.Habit
		want   int
	}{
		{
			name:   "完了なし",
			habits: []*model.Habit{{ID: "h1"}},
			want:   0,
		},
		{
			name: "今日のみ完了",
			habits: []*model.Habit{
				{ID: "h1", LastCompleted: &today},
			},
			want: 1,
		},
		{
			name: "今日と昨日が別習慣で完了",
			habits: []*model.Habit{
				{ID: "h1", LastCompleted: &today},
				{ID: "h2", LastCompleted: &yesterday},
			},
			want: 2,
		},
		{
			name: "昨日のみ完了（今日が未完了なのでストリークは切れる）",
			habits: []*model.Habit{
				{ID: "h1", LastCompleted: &yesterday},
			},
			want: 0,
		},
		{
			name: "間が空いている場合は今日までの連続分のみ",
			habits: []*model.Habit{
				{ID: "h1", LastCompleted: &today},
				{ID: "h2", LastCompleted: &threeDaysAgo},
			},
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := streakDays(tt.habits, today); got != tt.want {
				t.Errorf("streakDays = %d, want %d", got, tt.want)
			}
		})
	}
}
