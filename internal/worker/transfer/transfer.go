// Package transfer は習慣の日次転送ジョブを提供する。
// 完了フラグのリセットと継続日数に達した習慣の卒業処理を
// 日次バッチで実行する。
package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/habitman/internal/model"
	"github.com/hitoshi/habitman/internal/repository"
)

// defaultHabitDuration は習慣が卒業するまでのデフォルト完了回数。
const defaultHabitDuration = 21

// Metrics は転送ジョブのメトリクス記録インターフェース。
type Metrics interface {
	RecordHabitsRetired(count int)
	RecordHabitsReset(count int)
}

// Job は習慣の日次転送ジョブ。
// 日次実行のバッチジョブとして設計されており、同日内の再実行は冪等。
type Job struct {
	habitRepo     repository.HabitRepository
	metrics       Metrics
	logger        *slog.Logger
	habitDuration int
}

// NewJob は新しいJobを生成する。metricsはnil可。
// habitDurationが0以下の場合はデフォルト値21を使用する。
func NewJob(habitRepo repository.HabitRepository, metrics Metrics, logger *slog.Logger, habitDuration int) *Job {
	if habitDuration <= 0 {
		habitDuration = defaultHabitDuration
	}
	return &Job{
		habitRepo:     habitRepo,
		metrics:       metrics,
		logger:        logger,
		habitDuration: habitDuration,
	}
}

// Run は全アクティブ習慣のライフサイクルを1日分進める。
//   - completion_countが継続日数に達した習慣は非アクティブ化（卒業）
//   - last_completedが今日より前の習慣は完了フラグをリセット（カウンタは維持）
//   - それ以外は変更なし
//
// 変更は単一トランザクションでまとめてコミットする（全件成功か全件なしか）。
func (j *Job) Run(ctx context.Context) error {
	start := time.Now()

	habits, err := j.habitRepo.ListActive(ctx)
	if err != nil {
		j.logger.Error("転送対象の習慣の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("転送対象の取得に失敗: %w", err)
	}

	now := time.Now()
	var changed []*model.Habit
	retired := 0
	reset := 0

	for _, habit := range habits {
		switch {
		case habit.CompletionCount >= j.habitDuration:
			habit.IsActive = false
			changed = append(changed, habit)
			retired++
		case habit.LastCompleted != nil && model.BeforeUTCDate(*habit.LastCompleted, now):
			habit.LastCompleted = nil
			changed = append(changed, habit)
			reset++
		}
	}

	if err := j.habitRepo.UpdateLifecycleBatch(ctx, changed); err != nil {
		j.logger.Error("転送結果の保存に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("changed_count", len(changed)),
		)
		return fmt.Errorf("転送結果の保存に失敗: %w", err)
	}

	if j.metrics != nil {
		j.metrics.RecordHabitsRetired(retired)
		j.metrics.RecordHabitsReset(reset)
	}

	duration := time.Since(start)
	j.logger.Info("日次転送ジョブが完了しました",
		slog.Int("active_count", len(habits)),
		slog.Int("retired_count", retired),
		slog.Int("reset_count", reset),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
	return nil
}
