// Package reminder は未完了習慣の日次リマインダー配信ジョブを提供する。
// アクティブユーザーとアクティブ習慣を突き合わせ、当日未完了の習慣を持つ
// ユーザーへ1通ずつ通知を送る。
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/habitman/internal/repository"
)

// Notifier は通知チャネルへの送信インターフェース。
type Notifier interface {
	// SendMessage は指定チャットにテキストメッセージを送信する。
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Metrics はリマインダー配信のメトリクス記録インターフェース。
type Metrics interface {
	RecordReminderSent()
	RecordReminderFailed()
}

// Job は日次リマインダー配信ジョブ。
// ユーザーごとの送信は互いに独立しており、1件の失敗が他の配信を妨げない。
// リトライは行わない（翌日のジョブに委ねる）。
type Job struct {
	habitRepo      repository.HabitRepository
	userRepo       repository.UserRepository
	notifier       Notifier
	metrics        Metrics
	logger         *slog.Logger
	sendTimeout    time.Duration
	maxConcurrency int
}

// NewJob は新しいJobを生成する。
// maxConcurrencyが0以下の場合はデフォルト値10、
// sendTimeoutが0以下の場合はデフォルト値10秒を使用する。
func NewJob(
	habitRepo repository.HabitRepository,
	userRepo repository.UserRepository,
	notifier Notifier,
	metrics Metrics,
	logger *slog.Logger,
	sendTimeout time.Duration,
	maxConcurrency int,
) *Job {
	if maxConcurrency <= 0 {
		maxConcurrency = 10
	}
	if sendTimeout <= 0 {
		sendTimeout = 10 * time.Second
	}
	return &Job{
		habitRepo:      habitRepo,
		userRepo:       userRepo,
		notifier:       notifier,
		metrics:        metrics,
		logger:         logger,
		sendTimeout:    sendTimeout,
		maxConcurrency: maxConcurrency,
	}
}

// pendingReminder は1ユーザー分の未完了習慣リマインダーを表す。
type pendingReminder struct {
	telegramID int64
	titles     []string
}

// Run はリマインダー配信を1回実行する。
// semaphoreパターンで並列数を制御し、送信ごとにタイムアウトを設ける。
// 最後に送信成功数/対象数のサマリをログに出力する。
func (j *Job) Run(ctx context.Context) error {
	start := time.Now()

	reminders, err := j.collect(ctx)
	if err != nil {
		return err
	}

	if len(reminders) == 0 {
		j.logger.Info("本日のリマインダー対象はありません")
		return nil
	}

	sem := make(chan struct{}, j.maxConcurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	sent := 0

	for _, reminder := range reminders {
		wg.Add(1)
		sem <- struct{}{}

		go func(rem pendingReminder) {
			defer wg.Done()
			defer func() { <-sem }()

			sendCtx, cancel := context.WithTimeout(ctx, j.sendTimeout)
			defer cancel()

			if err := j.notifier.SendMessage(sendCtx, rem.telegramID, composeMessage(rem.titles)); err != nil {
				j.logger.Error("リマインダーの送信に失敗しました",
					slog.Int64("telegram_id", rem.telegramID),
					slog.String("error", err.Error()),
				)
				if j.metrics != nil {
					j.metrics.RecordReminderFailed()
				}
				return
			}

			if j.metrics != nil {
				j.metrics.RecordReminderSent()
			}
			mu.Lock()
			sent++
			mu.Unlock()
		}(reminder)
	}

	wg.Wait()

	duration := time.Since(start)
	j.logger.Info("日次リマインダー配信が完了しました",
		slog.Int("sent_count", sent),
		slog.Int("total_count", len(reminders)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
	return nil
}

// collect はアクティブユーザーごとの当日未完了習慣タイトルを収集する。
func (j *Job) collect(ctx context.Context) ([]pendingReminder, error) {
	users, err := j.userRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("アクティブユーザーの取得に失敗: %w", err)
	}

	habits, err := j.habitRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("アクティブ習慣の取得に失敗: %w", err)
	}

	now := time.Now()
	incompleteByUser := make(map[string][]string)
	for _, habit := range habits {
		if !habit.CompletedOn(now) {
			incompleteByUser[habit.UserID] = append(incompleteByUser[habit.UserID], habit.Title)
		}
	}

	var reminders []pendingReminder
	for _, u := range users {
		titles := incompleteByUser[u.ID]
		if len(titles) == 0 {
			continue
		}
		reminders = append(reminders, pendingReminder{
			telegramID: u.TelegramID,
			titles:     titles,
		})
	}
	return reminders, nil
}

// composeMessage は未完了習慣リストから1通分のリマインダー本文を組み立てる。
func composeMessage(titles []string) string {
	var b strings.Builder
	b.WriteString("Good morning!\n\n")
	if len(titles) == 1 {
		b.WriteString("You have <b>1</b> habit to complete today:\n\n")
	} else {
		fmt.Fprintf(&b, "You have <b>%d</b> habits to complete today:\n\n", len(titles))
	}
	for i, title := range titles {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("-- ")
		b.WriteString(title)
	}
	b.WriteString("\n\nHave a productive day!")
	return b.String()
}
